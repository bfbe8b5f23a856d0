package license

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrKeyRequired         = errors.New("license key is required")
	ErrProductTypeRequired = errors.New("product type is required")
	ErrEmptyHWID           = errors.New("bound hwid must not be empty")
	ErrDuplicateKey        = errors.New("license key already exists")
)

// ErrBusy means another connection held the database write lock past the
// busy timeout.
var ErrBusy = errors.New("license database busy")

// TimeFormat is the layout used for created_at and bound_at in every store.
const TimeFormat = time.RFC3339

// License is a license record. BoundHWID is nil until the first activation
// claims the license for a device; once set it never changes.
type License struct {
	LicenseKey  string  `db:"license_key" json:"license_key"`
	ProductType string  `db:"product_type" json:"product_type"`
	Active      bool    `db:"is_active" json:"active"`
	BoundHWID   *string `db:"hwid" json:"bound_hwid,omitempty"`
	CreatedAt   string  `db:"created_at" json:"created_at"`
	BoundAt     *string `db:"bound_at" json:"bound_at,omitempty"`
}

// IsBound reports whether a device has claimed the license.
func (l *License) IsBound() bool {
	return l.BoundHWID != nil
}

// MatchesHWID compares hwid against the bound value byte for byte.
// An unbound license matches nothing.
func (l *License) MatchesHWID(hwid string) bool {
	return l.BoundHWID != nil && *l.BoundHWID == hwid
}

// Validate checks the record before it is written by a store.
func (l *License) Validate() error {
	if l.LicenseKey == "" {
		return ErrKeyRequired
	}
	if l.ProductType == "" {
		return ErrProductTypeRequired
	}
	if l.BoundHWID != nil && *l.BoundHWID == "" {
		return ErrEmptyHWID
	}
	return nil
}

// Now formats t the way stores persist timestamps.
func Now(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
