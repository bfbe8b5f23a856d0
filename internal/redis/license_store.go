package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"winsbygroup.com/licverify/internal/license"
)

// DefaultPrefix namespaces license keys.
// Key format: <prefix>:license:<license_key>
const DefaultPrefix = "licverify"

// Hash fields
const (
	fieldProductType = "product_type"
	fieldActive      = "active"
	fieldHWID        = "hwid"
	fieldCreatedAt   = "created_at"
	fieldBoundAt     = "bound_at"
)

// bindScript sets hwid only on an existing, active hash that has none yet.
var bindScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if redis.call('HGET', KEYS[1], 'active') ~= '1' then return 0 end
if redis.call('HEXISTS', KEYS[1], 'hwid') == 1 then return 0 end
redis.call('HSET', KEYS[1], 'hwid', ARGV[1], 'bound_at', ARGV[2])
return 1
`)

// createScript writes the hash only if the key is free.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

type LicenseStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewLicenseStore returns a store using prefix, or DefaultPrefix when empty.
func NewLicenseStore(client *redis.Client, prefix string) *LicenseStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &LicenseStore{client: client, prefix: prefix, now: time.Now}
}

var _ license.Store = (*LicenseStore)(nil)

func (s *LicenseStore) key(licenseKey string) string {
	return s.prefix + ":license:" + licenseKey
}

func (s *LicenseStore) FindByKey(ctx context.Context, key string) (*license.License, error) {
	h, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	return fromHash(key, h), nil
}

func (s *LicenseStore) BindIfUnbound(ctx context.Context, key, hwid string) (bool, error) {
	if hwid == "" {
		return false, license.ErrEmptyHWID
	}
	n, err := bindScript.Run(ctx, s.client, []string{s.key(key)}, hwid, license.Now(s.now())).Int()
	if err != nil {
		return false, fmt.Errorf("bind license: %w", err)
	}
	return n == 1, nil
}

func (s *LicenseStore) Create(ctx context.Context, lic *license.License) error {
	if err := lic.Validate(); err != nil {
		return err
	}
	if lic.CreatedAt == "" {
		lic.CreatedAt = license.Now(s.now())
	}

	n, err := createScript.Run(ctx, s.client, []string{s.key(lic.LicenseKey)}, toHash(lic)...).Int()
	if err != nil {
		return fmt.Errorf("create license: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", license.ErrDuplicateKey, lic.LicenseKey)
	}
	return nil
}

func (s *LicenseStore) Stats(ctx context.Context) (license.Stats, error) {
	var st license.Stats
	iter := s.client.Scan(ctx, 0, s.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		vals, err := s.client.HMGet(ctx, iter.Val(), fieldActive, fieldHWID).Result()
		if err != nil {
			return license.Stats{}, fmt.Errorf("count licenses: %w", err)
		}
		st.Total++
		if vals[0] == "1" {
			st.Active++
		}
		if vals[1] != nil {
			st.Bound++
		}
	}
	if err := iter.Err(); err != nil {
		return license.Stats{}, fmt.Errorf("scan licenses: %w", err)
	}
	return st, nil
}

func (s *LicenseStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func toHash(lic *license.License) []any {
	active := "0"
	if lic.Active {
		active = "1"
	}
	fields := []any{
		fieldProductType, lic.ProductType,
		fieldActive, active,
		fieldCreatedAt, lic.CreatedAt,
	}
	if lic.BoundHWID != nil {
		fields = append(fields, fieldHWID, *lic.BoundHWID)
	}
	if lic.BoundAt != nil {
		fields = append(fields, fieldBoundAt, *lic.BoundAt)
	}
	return fields
}

func fromHash(key string, h map[string]string) *license.License {
	lic := &license.License{
		LicenseKey:  key,
		ProductType: h[fieldProductType],
		Active:      h[fieldActive] == "1",
		CreatedAt:   h[fieldCreatedAt],
	}
	if v, ok := h[fieldHWID]; ok {
		lic.BoundHWID = &v
	}
	if v, ok := h[fieldBoundAt]; ok {
		lic.BoundAt = &v
	}
	return lic
}
