package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"winsbygroup.com/licverify/internal/license"
	"winsbygroup.com/licverify/internal/metrics"
)

// Store is the part of a license backend the service needs.
type Store interface {
	FindByKey(ctx context.Context, key string) (*license.License, error)
	BindIfUnbound(ctx context.Context, key, hwid string) (bool, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "activation").Logger(),
	}
}

// Verify answers whether hwid may run under licenseKey, binding the license
// to hwid if this is its first activation.
func (s *Service) Verify(ctx context.Context, licenseKey, hwid string) (*Result, error) {
	start := time.Now()
	res, err := s.verify(ctx, licenseKey, hwid)
	outcome := outcomeOf(res, err)
	metrics.ObserveVerify(outcome, time.Since(start))

	ev := s.log.Info()
	if err != nil && !errors.Is(err, ErrMalformedRequest) {
		ev = s.log.Error().Err(err)
	}
	ev.Str("license_key", licenseKey).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("license verification")

	return res, err
}

func (s *Service) verify(ctx context.Context, licenseKey, hwid string) (*Result, error) {
	if licenseKey == "" || hwid == "" {
		return nil, ErrMalformedRequest
	}

	lic, err := s.find(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if res := decide(lic, hwid); res != nil {
		return res, nil
	}

	// Active and unbound: try to claim it
	won, err := s.store.BindIfUnbound(ctx, licenseKey, hwid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	metrics.ObserveBind(won)
	if won {
		s.log.Info().Str("license_key", licenseKey).Str("hwid", hwid).Msg("license bound to device")
		return valid(lic.ProductType, true), nil
	}

	// Lost the race (or the record changed underneath us); answer from the current state
	lic, err = s.find(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if res := decide(lic, hwid); res != nil {
		return res, nil
	}
	return nil, ErrBindConflict
}

func (s *Service) find(ctx context.Context, licenseKey string) (*license.License, error) {
	lic, err := s.store.FindByKey(ctx, licenseKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return lic, nil
}

// decide returns the result for lic, or nil when lic is active and unbound
// and a bind has to be attempted.
func decide(lic *license.License, hwid string) *Result {
	switch {
	case lic == nil:
		return notFound()
	case !lic.Active:
		return notActive()
	case !lic.IsBound():
		return nil
	default:
		return valid(lic.ProductType, lic.MatchesHWID(hwid))
	}
}

func outcomeOf(res *Result, err error) string {
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return metrics.OutcomeMalformed
	case errors.Is(err, ErrStorageUnavailable):
		return metrics.OutcomeStorageError
	case errors.Is(err, ErrBindConflict):
		return metrics.OutcomeBindConflict
	case err != nil || res == nil:
		return metrics.OutcomeUnknownFailed
	case res.Reason == ReasonNotFound:
		return metrics.OutcomeNotFound
	case res.Reason == ReasonNotActive:
		return metrics.OutcomeNotActive
	case !res.HWIDMatch:
		return metrics.OutcomeHWIDMismatch
	default:
		return metrics.OutcomeValid
	}
}
