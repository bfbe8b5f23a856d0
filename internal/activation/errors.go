package activation

import "errors"

// Infrastructure errors. Business negatives (not found, not active, hwid
// mismatch) are reported through Result, never through these.
var (
	// ErrMalformedRequest means the license key or hwid was missing.
	ErrMalformedRequest = errors.New("malformed request: license_key and hwid are required")
	// ErrStorageUnavailable wraps any failure to read or update the store.
	ErrStorageUnavailable = errors.New("license storage unavailable")
	// ErrBindConflict means the conditional bind failed but the record
	// still looked unbound afterwards. The caller may retry.
	ErrBindConflict = errors.New("license binding conflict, retry")
)
