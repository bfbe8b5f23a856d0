package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"winsbygroup.com/licverify/internal/license"
)

// RunStoreContract exercises the behaviour every license.Store backend must
// share. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) license.Store) {
	t.Helper()
	ctx := context.Background()

	create := func(t *testing.T, s license.Store, lics ...*license.License) {
		t.Helper()
		for _, lic := range lics {
			if err := s.Create(ctx, lic); err != nil {
				t.Fatalf("create %q: %v", lic.LicenseKey, err)
			}
		}
	}

	t.Run("find missing returns nil", func(t *testing.T) {
		s := newStore(t)
		lic, err := s.FindByKey(ctx, "missing")
		if err != nil || lic != nil {
			t.Fatalf("FindByKey = %+v, %v; want nil, nil", lic, err)
		}
	})

	t.Run("create and find round trip", func(t *testing.T) {
		s := newStore(t)
		create(t, s,
			&license.License{LicenseKey: "A", ProductType: "pro", Active: true},
			&license.License{LicenseKey: "B", ProductType: "basic", Active: true, BoundHWID: StrPtr("HW")},
		)

		a, err := s.FindByKey(ctx, "A")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if a == nil || a.ProductType != "pro" || !a.Active || a.IsBound() || a.CreatedAt == "" {
			t.Errorf("A = %+v", a)
		}

		b, err := s.FindByKey(ctx, "B")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if b == nil || !b.MatchesHWID("HW") {
			t.Errorf("B = %+v", b)
		}

		if lic, _ := s.FindByKey(ctx, "a"); lic != nil {
			t.Errorf("keys must be case sensitive, found %+v", lic)
		}
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := newStore(t)
		create(t, s, &license.License{LicenseKey: "DUP", ProductType: "pro"})
		err := s.Create(ctx, &license.License{LicenseKey: "DUP", ProductType: "other"})
		if !errors.Is(err, license.ErrDuplicateKey) {
			t.Fatalf("err = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("bind first wins and never overwrites", func(t *testing.T) {
		s := newStore(t)
		create(t, s, &license.License{LicenseKey: "K", ProductType: "pro", Active: true})

		ok, err := s.BindIfUnbound(ctx, "K", "H1")
		if err != nil || !ok {
			t.Fatalf("first bind = %v, %v; want true, nil", ok, err)
		}
		ok, err = s.BindIfUnbound(ctx, "K", "H2")
		if err != nil || ok {
			t.Fatalf("second bind = %v, %v; want false, nil", ok, err)
		}
		ok, err = s.BindIfUnbound(ctx, "K", "H1")
		if err != nil || ok {
			t.Fatalf("repeat bind = %v, %v; want false, nil", ok, err)
		}

		lic, err := s.FindByKey(ctx, "K")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if !lic.MatchesHWID("H1") || lic.BoundAt == nil {
			t.Errorf("after binds: %+v", lic)
		}
	})

	t.Run("bind refuses inactive and unknown", func(t *testing.T) {
		s := newStore(t)
		create(t, s, &license.License{LicenseKey: "OFF", ProductType: "pro"})

		for _, key := range []string{"OFF", "UNKNOWN"} {
			ok, err := s.BindIfUnbound(ctx, key, "H1")
			if err != nil || ok {
				t.Errorf("bind %s = %v, %v; want false, nil", key, ok, err)
			}
		}
		lic, _ := s.FindByKey(ctx, "OFF")
		if lic == nil || lic.IsBound() {
			t.Errorf("inactive license changed: %+v", lic)
		}
		if lic, _ := s.FindByKey(ctx, "UNKNOWN"); lic != nil {
			t.Errorf("bind created a record: %+v", lic)
		}
	})

	t.Run("concurrent binds have one winner", func(t *testing.T) {
		s := newStore(t)
		create(t, s, &license.License{LicenseKey: "RACE", ProductType: "pro", Active: true})

		const n = 10
		won := make([]bool, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				ok, err := s.BindIfUnbound(gctx, "RACE", fmt.Sprintf("H%d", i))
				won[i] = ok
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("BindIfUnbound: %v", err)
		}

		winner := -1
		for i, ok := range won {
			if ok {
				if winner >= 0 {
					t.Fatalf("both H%d and H%d won", winner, i)
				}
				winner = i
			}
		}
		if winner < 0 {
			t.Fatal("no bind succeeded")
		}
		lic, err := s.FindByKey(ctx, "RACE")
		if err != nil {
			t.Fatalf("FindByKey: %v", err)
		}
		if !lic.MatchesHWID(fmt.Sprintf("H%d", winner)) {
			t.Errorf("stored hwid %v does not match winner H%d", lic.BoundHWID, winner)
		}
	})

	t.Run("stats", func(t *testing.T) {
		s := newStore(t)
		create(t, s,
			&license.License{LicenseKey: "S1", ProductType: "pro", Active: true},
			&license.License{LicenseKey: "S2", ProductType: "pro", Active: true, BoundHWID: StrPtr("H")},
			&license.License{LicenseKey: "S3", ProductType: "pro"},
		)
		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st != (license.Stats{Total: 3, Active: 2, Bound: 1}) {
			t.Errorf("Stats = %+v", st)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := newStore(t).Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
