package activation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"winsbygroup.com/licverify/internal/activation"
	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/testutil"
)

func TestVerify_SQLiteStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.Seed(t, db,
		&license.License{LicenseKey: "XYZ1", ProductType: "pro", Active: true},
		&license.License{LicenseKey: "OFF", ProductType: "pro", Active: false},
	)
	svc := activation.NewService(license.New(db), zerolog.Nop())
	ctx := context.Background()

	t.Run("xyz1 scenario", func(t *testing.T) {
		for i, step := range []struct {
			hwid  string
			match bool
		}{{"H1", true}, {"H2", false}, {"H1", true}} {
			res, err := svc.Verify(ctx, "XYZ1", step.hwid)
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if !res.Valid || res.HWIDMatch != step.match {
				t.Errorf("step %d (%s) = %+v, want valid match=%v", i, step.hwid, res, step.match)
			}
		}

		lic, err := license.New(db).FindByKey(ctx, "XYZ1")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if lic.BoundHWID == nil || *lic.BoundHWID != "H1" {
			t.Errorf("stored hwid = %v, want H1", lic.BoundHWID)
		}
		if lic.BoundAt == nil {
			t.Errorf("bound_at not recorded")
		}
	})

	t.Run("inactive", func(t *testing.T) {
		res, err := svc.Verify(ctx, "OFF", "H1")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if res.Valid || res.Reason != activation.ReasonNotActive {
			t.Errorf("result = %+v, want NOT_ACTIVE", res)
		}
	})

	t.Run("not found", func(t *testing.T) {
		res, err := svc.Verify(ctx, "nope", "H1")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if res.Valid || res.Reason != activation.ReasonNotFound {
			t.Errorf("result = %+v, want NOT_FOUND", res)
		}
	})
}

func TestVerify_SQLiteConcurrentBind(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.Seed(t, db, &license.License{LicenseKey: "RACE", ProductType: "pro", Active: true})
	svc := activation.NewService(license.New(db), zerolog.Nop())

	const n = 12
	results := make([]*activation.Result, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := svc.Verify(ctx, "RACE", fmt.Sprintf("HWID-%02d", i))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Verify: %v", err)
	}

	var winner string
	for i, res := range results {
		if !res.Valid {
			t.Errorf("result %d not valid: %+v", i, res)
		}
		if res.HWIDMatch {
			if winner != "" {
				t.Fatalf("two winners: %s and HWID-%02d", winner, i)
			}
			winner = fmt.Sprintf("HWID-%02d", i)
		}
	}
	if winner == "" {
		t.Fatal("no request won the bind")
	}

	lic, err := license.New(db).FindByKey(context.Background(), "RACE")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if lic.BoundHWID == nil || *lic.BoundHWID != winner {
		t.Errorf("stored hwid = %v, want winner %s", lic.BoundHWID, winner)
	}

	// The loser hwids keep getting hwid_match=false
	res, err := svc.Verify(context.Background(), "RACE", winner+"-other")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.HWIDMatch {
		t.Errorf("non-winner matched after race")
	}
}
