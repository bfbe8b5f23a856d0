package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"winsbygroup.com/licverify/internal/sqlite"
)

// Store is the persistence contract shared by every license backend.
type Store interface {
	// FindByKey returns nil, nil when no license has the key.
	FindByKey(ctx context.Context, key string) (*License, error)
	// BindIfUnbound atomically sets the bound hwid of an active, unbound
	// license and reports whether this call performed the bind.
	BindIfUnbound(ctx context.Context, key, hwid string) (bool, error)
	Create(ctx context.Context, lic *License) error
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// Stats summarises the license table.
type Stats struct {
	Total  int `db:"total" json:"total"`
	Active int `db:"active" json:"active"`
	Bound  int `db:"bound" json:"bound"`
}

type repo struct {
	db  *sqlx.DB
	now func() time.Time
}

// New returns the SQLite-backed Store.
func New(db *sqlx.DB) Store {
	return &repo{db: db, now: time.Now}
}

func (r *repo) FindByKey(ctx context.Context, key string) (*License, error) {
	var lic License
	err := r.db.GetContext(ctx, &lic, findLicenseByKeySQL, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	return &lic, nil
}

func (r *repo) BindIfUnbound(ctx context.Context, key, hwid string) (bool, error) {
	if hwid == "" {
		return false, ErrEmptyHWID
	}
	res, err := r.db.ExecContext(ctx, bindIfUnboundSQL, hwid, Now(r.now()), key)
	if err != nil {
		return false, fmt.Errorf("bind license: %w", busy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind license rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *repo) Create(ctx context.Context, lic *License) error {
	if err := lic.Validate(); err != nil {
		return err
	}
	if lic.CreatedAt == "" {
		lic.CreatedAt = Now(r.now())
	}
	_, err := r.db.ExecContext(ctx, createLicenseSQL,
		lic.LicenseKey,
		lic.ProductType,
		lic.Active,
		lic.BoundHWID,
		lic.CreatedAt,
		lic.BoundAt,
	)
	if sqlite.IsUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, lic.LicenseKey)
	}
	if err != nil {
		return fmt.Errorf("create license: %w", busy(err))
	}
	return nil
}

func (r *repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.GetContext(ctx, &s, countLicensesSQL); err != nil {
		return Stats{}, fmt.Errorf("count licenses: %w", err)
	}
	return s, nil
}

func (r *repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// busy tags lock timeouts with ErrBusy, keeping the driver error in the chain.
func busy(err error) error {
	if sqlite.IsBusyError(err) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return err
}
