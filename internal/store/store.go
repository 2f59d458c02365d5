package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	ErrAmbiguous = errors.New("more than one match")
)

// Tx is one unit of work. Nothing it writes is visible to other readers
// until the callback passed to Store.InTx returns nil.
type Tx interface {
	JobByDomain(ctx context.Context, host string) (domain.Job, error)
	InsertJob(ctx context.Context, j *domain.Job) error
	UpdateJob(ctx context.Context, j domain.Job) error
	DeleteJob(ctx context.Context, id string) error
	// MarkJobRefreshed returns ErrNotFound when the job no longer exists.
	MarkJobRefreshed(ctx context.Context, id string, at time.Time) error

	ListingByName(ctx context.Context, name string) (domain.Listing, error)
	InsertListing(ctx context.Context, l *domain.Listing) error
	UpdateListingOrigin(ctx context.Context, id, origin string, at time.Time) error
	// DeleteListing removes the listing and, by cascade, its records.
	DeleteListing(ctx context.Context, id string) error

	CountRecords(ctx context.Context, listingID string) (int, error)
	DeleteRecords(ctx context.Context, listingID string) (int64, error)
	InsertRecord(ctx context.Context, r *domain.Record) error
	RecordsByName(ctx context.Context, name string) ([]domain.Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error

	ListJobs(ctx context.Context) ([]domain.Job, error)
	ListListings(ctx context.Context) ([]ListingSummary, error)
	ListRecords(ctx context.Context, listingID string) ([]domain.Record, error)
	Close() error
}

type ListingSummary struct {
	domain.Listing
	RecordCount int
}

// Open connects to the configured backend and brings its schema up to date.
// driver is "sqlite" (dsn is a file path) or "postgres" (dsn is a URL).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		db, err := OpenSQLite(dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		if err := Migrate(db.Pool); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return db, nil
	case "postgres":
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := MigratePostgres(ctx, pg.Pool); err != nil {
			pg.Pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func newID() string { return uuid.NewString() }
