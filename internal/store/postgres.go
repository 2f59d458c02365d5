package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres creates and verifies a pgxpool connection pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS crawl_jobs (
		id                TEXT PRIMARY KEY,
		domain            TEXT NOT NULL UNIQUE,
		instruction_ref   TEXT NOT NULL DEFAULT '',
		interval_hours    INTEGER NOT NULL CHECK (interval_hours > 0),
		last_refreshed_at TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		origin     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		seq             BIGSERIAL,
		id              TEXT PRIMARY KEY,
		listing_id      TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		name            TEXT NOT NULL,
		addresses       TEXT[] NOT NULL DEFAULT '{}',
		phone_numbers   TEXT[] NOT NULL DEFAULT '{}',
		email_addresses TEXT[] NOT NULL DEFAULT '{}',
		description     TEXT,
		website         TEXT,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_listing_id ON records(listing_id)`,
	`CREATE INDEX IF NOT EXISTS idx_records_name ON records(name)`,
}

// MigratePostgres is idempotent; every statement is IF NOT EXISTS.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range postgresSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Close() error {
	p.Pool.Close()
	return nil
}

func (p *Postgres) InTx(ctx context.Context, fn func(Tx) error) error {
	return pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func scanPgJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.Domain, &j.InstructionRef, &j.IntervalHours, &j.LastRefreshedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (t pgTx) JobByDomain(ctx context.Context, host string) (domain.Job, error) {
	j, err := scanPgJob(t.tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE domain = $1`, host))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("crawl job %q: %w", host, ErrNotFound)
	}
	return j, err
}

func (t pgTx) InsertJob(ctx context.Context, j *domain.Job) error {
	if j.ID == "" {
		j.ID = newID()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO crawl_jobs (id, domain, instruction_ref, interval_hours, last_refreshed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.ID, j.Domain, j.InstructionRef, j.IntervalHours, j.LastRefreshedAt, j.CreatedAt, j.UpdatedAt,
	)
	return pgErr(err)
}

func (t pgTx) UpdateJob(ctx context.Context, j domain.Job) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE crawl_jobs SET instruction_ref = $1, interval_hours = $2, updated_at = $3
		WHERE id = $4`, j.InstructionRef, j.IntervalHours, j.UpdatedAt, j.ID)
	return pgAffected(tag, err, "crawl job "+j.ID)
}

func (t pgTx) DeleteJob(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM crawl_jobs WHERE id = $1`, id)
	return pgAffected(tag, err, "crawl job "+id)
}

func (t pgTx) MarkJobRefreshed(ctx context.Context, id string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE crawl_jobs SET last_refreshed_at = $1, updated_at = $1
		WHERE id = $2`, at, id)
	return pgAffected(tag, err, "crawl job "+id)
}

func (t pgTx) ListingByName(ctx context.Context, name string) (domain.Listing, error) {
	var l domain.Listing
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, origin, created_at, updated_at FROM listings WHERE name = $1`, name,
	).Scan(&l.ID, &l.Name, &l.Origin, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("listing %q: %w", name, ErrNotFound)
	}
	return l, err
}

func (t pgTx) InsertListing(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = newID()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO listings (id, name, origin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`, l.ID, l.Name, l.Origin, l.CreatedAt, l.UpdatedAt)
	return pgErr(err)
}

func (t pgTx) UpdateListingOrigin(ctx context.Context, id, origin string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE listings SET origin = $1, updated_at = $2 WHERE id = $3`, origin, at, id)
	return pgAffected(tag, err, "listing "+id)
}

func (t pgTx) DeleteListing(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	return pgAffected(tag, err, "listing "+id)
}

func (t pgTx) CountRecords(ctx context.Context, listingID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE listing_id = $1`, listingID).Scan(&n)
	return n, err
}

func (t pgTx) DeleteRecords(ctx context.Context, listingID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM records WHERE listing_id = $1`, listingID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t pgTx) InsertRecord(ctx context.Context, r *domain.Record) error {
	if r.ID == "" {
		r.ID = newID()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO records (id, listing_id, name, addresses, phone_numbers, email_addresses, description, website, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ListingID, r.Name, nonNilList(r.Addresses), nonNilList(r.PhoneNumbers), nonNilList(r.EmailAddresses),
		r.Description, r.Website, r.CreatedAt,
	)
	return pgErr(err)
}

func (t pgTx) RecordsByName(ctx context.Context, name string) ([]domain.Record, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+recordColumns+` FROM records WHERE name = $1 ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	return scanPgRecords(rows)
}

func (t pgTx) DeleteRecord(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	return pgAffected(tag, err, "record "+id)
}

// ---- read side ----

func (p *Postgres) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+jobColumns+` FROM crawl_jobs ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("listJobs query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Job, 0)
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("listJobs scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) ListListings(ctx context.Context) ([]ListingSummary, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT l.id, l.name, l.origin, l.created_at, l.updated_at, COUNT(r.id)
		FROM listings l
		LEFT JOIN records r ON r.listing_id = l.id
		GROUP BY l.id
		ORDER BY l.name`)
	if err != nil {
		return nil, fmt.Errorf("listListings query: %w", err)
	}
	defer rows.Close()

	out := make([]ListingSummary, 0)
	for rows.Next() {
		var s ListingSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Origin, &s.CreatedAt, &s.UpdatedAt, &s.RecordCount); err != nil {
			return nil, fmt.Errorf("listListings scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRecords(ctx context.Context, listingID string) ([]domain.Record, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+recordColumns+` FROM records WHERE listing_id = $1 ORDER BY seq`, listingID)
	if err != nil {
		return nil, fmt.Errorf("listRecords query: %w", err)
	}
	return scanPgRecords(rows)
}

func scanPgRecords(rows pgx.Rows) ([]domain.Record, error) {
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(
			&r.ID, &r.ListingID, &r.Name, &r.Addresses, &r.PhoneNumbers, &r.EmailAddresses,
			&r.Description, &r.Website, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNilList(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func pgAffected(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
