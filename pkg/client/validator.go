package client

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Source says where a Decision came from.
type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// Decision is the outcome of Validator.Validate.
type Decision struct {
	Authorized  bool
	Source      Source
	ProductType string
	// Result is the server answer; nil for offline decisions.
	Result *Result
}

// Validator checks a license for this machine, online first.
type Validator struct {
	client *Client
	cache  *OfflineCache
	hwid   string
	log    zerolog.Logger
}

type ValidatorOption func(*Validator)

// WithHWID overrides the machine identifier (defaults to MachineHWID).
func WithHWID(hwid string) ValidatorOption {
	return func(v *Validator) { v.hwid = hwid }
}

// WithValidatorLogger sets the logger for validation events.
func WithValidatorLogger(log zerolog.Logger) ValidatorOption {
	return func(v *Validator) { v.log = log }
}

func NewValidator(c *Client, cache *OfflineCache, opts ...ValidatorOption) *Validator {
	v := &Validator{client: c, cache: cache, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	if v.hwid == "" {
		v.hwid = MachineHWID()
	}
	return v
}

// HWID returns the identifier sent to the server.
func (v *Validator) HWID() string { return v.hwid }

// Validate verifies licenseKey for this machine. An authorized online answer
// refreshes the offline cache. The cache is consulted only when the server
// could not give an answer; a negative answer from the server is final.
func (v *Validator) Validate(ctx context.Context, licenseKey string) (*Decision, error) {
	res, err := v.client.Verify(ctx, licenseKey, v.hwid)
	if err == nil {
		d := &Decision{Authorized: res.Authorized(), Source: SourceOnline, ProductType: res.ProductType, Result: res}
		if d.Authorized {
			if err := v.cache.Save(licenseKey, v.hwid); err != nil {
				v.log.Warn().Err(err).Str("cache", v.cache.Path()).Msg("could not update offline license cache")
			}
		}
		return d, nil
	}

	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	v.log.Warn().Err(err).Str("cache", v.cache.Path()).Msg("license server unavailable, trying offline cache")
	ok, cerr := v.cache.Matches(licenseKey, v.hwid)
	if cerr != nil {
		v.log.Warn().Err(cerr).Str("cache", v.cache.Path()).Msg("offline license cache unreadable")
	}
	if !ok {
		return nil, err
	}
	return &Decision{Authorized: true, Source: SourceOffline}, nil
}
