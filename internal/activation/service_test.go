package activation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"winsbygroup.com/licverify/internal/activation"
	"winsbygroup.com/licverify/internal/license"
)

// memStore is an in-memory Store with the same conditional-bind semantics
// as the real backends.
type memStore struct {
	mu       sync.Mutex
	lics     map[string]license.License
	findErr  error
	bindErr  error
	finds    int
	binds    int
	onBind   func(s *memStore) // runs before the bind, with mu held
	bindLoss bool              // report false without binding
}

func newMemStore(lics ...license.License) *memStore {
	s := &memStore{lics: make(map[string]license.License)}
	for _, l := range lics {
		s.lics[l.LicenseKey] = l
	}
	return s
}

func (s *memStore) FindByKey(_ context.Context, key string) (*license.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	l, ok := s.lics[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *memStore) BindIfUnbound(_ context.Context, key, hwid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binds++
	if s.bindErr != nil {
		return false, s.bindErr
	}
	if s.onBind != nil {
		s.onBind(s)
	}
	if s.bindLoss {
		return false, nil
	}
	l, ok := s.lics[key]
	if !ok || !l.Active || l.BoundHWID != nil {
		return false, nil
	}
	l.BoundHWID = &hwid
	s.lics[key] = l
	return true, nil
}

func (s *memStore) boundHWID(key string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lics[key].BoundHWID
}

func strPtr(s string) *string { return &s }

func newService(store activation.Store) *activation.Service {
	return activation.NewService(store, zerolog.Nop())
}

func TestVerify_FirstActivationBinds(t *testing.T) {
	store := newMemStore(license.License{LicenseKey: "XYZ1", ProductType: "pro", Active: true})
	svc := newService(store)

	res, err := svc.Verify(context.Background(), "XYZ1", "H1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid || !res.HWIDMatch || res.ProductType != "pro" {
		t.Errorf("result = %+v, want valid match product pro", res)
	}
	if res.Reason != "" || res.Message != "" {
		t.Errorf("valid result should not carry reason/message: %+v", res)
	}
	if got := store.boundHWID("XYZ1"); got == nil || *got != "H1" {
		t.Errorf("bound hwid = %v, want H1", got)
	}
}

func TestVerify_XYZ1Scenario(t *testing.T) {
	store := newMemStore(license.License{LicenseKey: "XYZ1", ProductType: "pro", Active: true})
	svc := newService(store)
	ctx := context.Background()

	steps := []struct {
		hwid      string
		wantValid bool
		wantMatch bool
	}{
		{"H1", true, true},
		{"H2", true, false},
		{"H1", true, true},
	}
	for i, s := range steps {
		res, err := svc.Verify(ctx, "XYZ1", s.hwid)
		if err != nil {
			t.Fatalf("step %d: Verify: %v", i, err)
		}
		if res.Valid != s.wantValid || res.HWIDMatch != s.wantMatch {
			t.Errorf("step %d (%s): got valid=%v match=%v, want valid=%v match=%v",
				i, s.hwid, res.Valid, res.HWIDMatch, s.wantValid, s.wantMatch)
		}
	}

	if got := store.boundHWID("XYZ1"); got == nil || *got != "H1" {
		t.Errorf("bound hwid = %v, want H1 after mismatch attempt", got)
	}
	if store.binds != 1 {
		t.Errorf("bind attempts = %d, want 1", store.binds)
	}
}

func TestVerify_IdempotentRecheck(t *testing.T) {
	store := newMemStore(license.License{LicenseKey: "K", ProductType: "basic", Active: true, BoundHWID: strPtr("H")})
	svc := newService(store)

	for i := 0; i < 5; i++ {
		res, err := svc.Verify(context.Background(), "K", "H")
		if err != nil {
			t.Fatalf("Verify #%d: %v", i, err)
		}
		if !res.Valid || !res.HWIDMatch {
			t.Fatalf("Verify #%d = %+v, want valid match", i, res)
		}
	}
	if store.binds != 0 {
		t.Errorf("bound license triggered %d bind attempts", store.binds)
	}
}

func TestVerify_ExactMatch(t *testing.T) {
	store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", Active: true, BoundHWID: strPtr("abc")})
	svc := newService(store)

	for _, hwid := range []string{"ABC", "abc ", " abc", "ab"} {
		t.Run(hwid, func(t *testing.T) {
			res, err := svc.Verify(context.Background(), "K", hwid)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if !res.Valid {
				t.Errorf("bound active license should stay valid")
			}
			if res.HWIDMatch {
				t.Errorf("hwid %q matched bound %q", hwid, "abc")
			}
		})
	}
}

func TestVerify_NotFound(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	res, err := svc.Verify(context.Background(), "missing", "H1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid || res.HWIDMatch {
		t.Errorf("result = %+v, want invalid", res)
	}
	if res.Reason != activation.ReasonNotFound {
		t.Errorf("reason = %q, want %q", res.Reason, activation.ReasonNotFound)
	}
	if res.ProductType != "" {
		t.Errorf("product type leaked on invalid result: %q", res.ProductType)
	}
	if len(store.lics) != 0 || store.binds != 0 {
		t.Errorf("not found must not mutate the store")
	}
}

func TestVerify_Inactive(t *testing.T) {
	tests := []struct {
		name  string
		bound *string
		hwid  string
	}{
		{"unbound", nil, "H1"},
		{"bound same hwid", strPtr("H1"), "H1"},
		{"bound other hwid", strPtr("H1"), "H2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", BoundHWID: tt.bound})
			svc := newService(store)

			res, err := svc.Verify(context.Background(), "K", tt.hwid)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if res.Valid || res.HWIDMatch {
				t.Errorf("result = %+v, want invalid no match", res)
			}
			if res.Reason != activation.ReasonNotActive {
				t.Errorf("reason = %q, want %q", res.Reason, activation.ReasonNotActive)
			}
			if store.binds != 0 {
				t.Errorf("inactive license triggered a bind")
			}
			if got := store.boundHWID("K"); (got == nil) != (tt.bound == nil) {
				t.Errorf("binding changed: %v", got)
			}
		})
	}
}

func TestVerify_MalformedRequest(t *testing.T) {
	tests := []struct {
		name string
		key  string
		hwid string
	}{
		{"empty key", "", "H1"},
		{"empty hwid", "K", ""},
		{"both empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", Active: true})
			svc := newService(store)

			res, err := svc.Verify(context.Background(), tt.key, tt.hwid)
			if !errors.Is(err, activation.ErrMalformedRequest) {
				t.Fatalf("err = %v, want ErrMalformedRequest", err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if store.finds != 0 || store.binds != 0 {
				t.Errorf("malformed request touched the store")
			}
		})
	}
}

func TestVerify_StorageErrors(t *testing.T) {
	boom := errors.New("disk on fire")

	t.Run("find fails", func(t *testing.T) {
		store := newMemStore()
		store.findErr = boom
		res, err := newService(store).Verify(context.Background(), "K", "H1")
		if !errors.Is(err, activation.ErrStorageUnavailable) {
			t.Fatalf("err = %v, want ErrStorageUnavailable", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("cause not wrapped: %v", err)
		}
		if res != nil {
			t.Errorf("storage failure must not produce a result, got %+v", res)
		}
	})

	t.Run("bind fails", func(t *testing.T) {
		store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", Active: true})
		store.bindErr = boom
		res, err := newService(store).Verify(context.Background(), "K", "H1")
		if !errors.Is(err, activation.ErrStorageUnavailable) {
			t.Fatalf("err = %v, want ErrStorageUnavailable", err)
		}
		if res != nil {
			t.Errorf("storage failure must not produce a result, got %+v", res)
		}
	})
}

func TestVerify_LostRaceRereads(t *testing.T) {
	tests := []struct {
		name      string
		interfere func(s *memStore)
		hwid      string
		wantValid bool
		wantMatch bool
		wantErr   error
	}{
		{
			name: "other device won",
			interfere: func(s *memStore) {
				l := s.lics["K"]
				l.BoundHWID = strPtr("OTHER")
				s.lics["K"] = l
			},
			hwid: "H1", wantValid: true, wantMatch: false,
		},
		{
			name: "same hwid won concurrently",
			interfere: func(s *memStore) {
				l := s.lics["K"]
				l.BoundHWID = strPtr("H1")
				s.lics["K"] = l
			},
			hwid: "H1", wantValid: true, wantMatch: true,
		},
		{
			name: "deactivated in between",
			interfere: func(s *memStore) {
				l := s.lics["K"]
				l.Active = false
				s.lics["K"] = l
			},
			hwid: "H1", wantValid: false,
		},
		{
			name: "deleted in between",
			interfere: func(s *memStore) {
				delete(s.lics, "K")
			},
			hwid: "H1", wantValid: false,
		},
		{
			name:      "still unbound",
			interfere: func(s *memStore) { s.bindLoss = true },
			hwid:      "H1",
			wantErr:   activation.ErrBindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", Active: true})
			store.onBind = tt.interfere

			res, err := newService(store).Verify(context.Background(), "K", tt.hwid)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if res.Valid != tt.wantValid || res.HWIDMatch != tt.wantMatch {
				t.Errorf("result = %+v, want valid=%v match=%v", res, tt.wantValid, tt.wantMatch)
			}
			if store.finds != 2 {
				t.Errorf("finds = %d, want exactly one re-read", store.finds)
			}
		})
	}
}

func TestVerify_ConcurrentSingleWinner(t *testing.T) {
	store := newMemStore(license.License{LicenseKey: "K", ProductType: "pro", Active: true})
	svc := newService(store)

	const n = 32
	results := make([]*activation.Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hwid := string(rune('A' + i%26)) + string(rune('a'+i/26))
			res, err := svc.Verify(context.Background(), "K", hwid)
			if err != nil {
				t.Errorf("Verify(%s): %v", hwid, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		if res != nil && res.Valid && res.HWIDMatch {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
	if store.binds < 1 {
		t.Errorf("no bind attempted")
	}
}
