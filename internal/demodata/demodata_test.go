package demodata_test

import (
	"context"
	"testing"

	"winsbygroup.com/licverify/internal/demodata"
	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/testutil"
)

func TestLicenses(t *testing.T) {
	lics, err := demodata.Licenses()
	if err != nil {
		t.Fatalf("Licenses: %v", err)
	}
	if len(lics) == 0 {
		t.Fatal("expected demo licenses")
	}

	seen := map[string]bool{}
	for _, lic := range lics {
		if err := lic.Validate(); err != nil {
			t.Errorf("demo license %q invalid: %v", lic.LicenseKey, err)
		}
		if seen[lic.LicenseKey] {
			t.Errorf("duplicate demo key %q", lic.LicenseKey)
		}
		seen[lic.LicenseKey] = true
	}
	if !seen["XYZ1"] {
		t.Error("expected XYZ1 in demo data")
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("loads into new database", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		store := license.New(db)

		n, err := demodata.Load(ctx, store)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		want, _ := demodata.Licenses()
		if n != len(want) {
			t.Errorf("added %d, want %d", n, len(want))
		}

		lic, err := store.FindByKey(ctx, "XYZ1")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if lic == nil || !lic.Active || lic.IsBound() {
			t.Errorf("XYZ1 should be active and unbound, got %+v", lic)
		}
	})

	t.Run("does not overwrite existing licenses", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		testutil.Seed(t, db, &license.License{
			LicenseKey:  "XYZ1",
			ProductType: "custom",
			Active:      true,
			BoundHWID:   testutil.StrPtr("H1"),
		})
		store := license.New(db)

		n, err := demodata.Load(ctx, store)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		want, _ := demodata.Licenses()
		if n != len(want)-1 {
			t.Errorf("added %d, want %d", n, len(want)-1)
		}

		lic, err := store.FindByKey(ctx, "XYZ1")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if lic.ProductType != "custom" || !lic.MatchesHWID("H1") {
			t.Errorf("existing license was modified: %+v", lic)
		}
	})
}
