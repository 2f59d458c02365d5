package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS crawl_jobs (
  id TEXT PRIMARY KEY,
  domain TEXT NOT NULL UNIQUE,
  instruction_ref TEXT NOT NULL DEFAULT '',
  interval_hours INTEGER NOT NULL CHECK (interval_hours > 0),
  last_refreshed_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  origin TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS records (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  addresses TEXT NOT NULL DEFAULT '[]',
  phone_numbers TEXT NOT NULL DEFAULT '[]',
  email_addresses TEXT NOT NULL DEFAULT '[]',
  description TEXT,
  website TEXT,
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_records_listing_id
ON records(listing_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_records_name
ON records(name);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

type sqliteTx struct {
	tx *sql.Tx
}

type scanner interface {
	Scan(dest ...any) error
}

const jobColumns = `id, domain, instruction_ref, interval_hours, last_refreshed_at, created_at, updated_at`

func scanSQLiteJob(row scanner) (domain.Job, error) {
	var (
		j                    domain.Job
		last                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&j.ID, &j.Domain, &j.InstructionRef, &j.IntervalHours, &last, &createdAt, &updatedAt); err != nil {
		return domain.Job{}, err
	}
	if last.Valid && last.String != "" {
		t := parseTime(last.String)
		j.LastRefreshedAt = &t
	}
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return j, nil
}

func (t sqliteTx) JobByDomain(ctx context.Context, host string) (domain.Job, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE domain = ?;`, host)
	j, err := scanSQLiteJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("crawl job %q: %w", host, ErrNotFound)
	}
	return j, err
}

func (t sqliteTx) InsertJob(ctx context.Context, j *domain.Job) error {
	if j.ID == "" {
		j.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO crawl_jobs (id, domain, instruction_ref, interval_hours, last_refreshed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		j.ID, j.Domain, j.InstructionRef, j.IntervalHours, nullTime(j.LastRefreshedAt),
		fmtTime(j.CreatedAt), fmtTime(j.UpdatedAt),
	)
	return sqliteErr(err)
}

func (t sqliteTx) UpdateJob(ctx context.Context, j domain.Job) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE crawl_jobs SET instruction_ref = ?, interval_hours = ?, updated_at = ?
WHERE id = ?;`, j.InstructionRef, j.IntervalHours, fmtTime(j.UpdatedAt), j.ID)
	return affected(res, err, "crawl job "+j.ID)
}

func (t sqliteTx) DeleteJob(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM crawl_jobs WHERE id = ?;`, id)
	return affected(res, err, "crawl job "+id)
}

func (t sqliteTx) MarkJobRefreshed(ctx context.Context, id string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE crawl_jobs SET last_refreshed_at = ?, updated_at = ?
WHERE id = ?;`, fmtTime(at), fmtTime(at), id)
	return affected(res, err, "crawl job "+id)
}

func (t sqliteTx) ListingByName(ctx context.Context, name string) (domain.Listing, error) {
	var (
		l                    domain.Listing
		createdAt, updatedAt string
	)
	err := t.tx.QueryRowContext(ctx, `
SELECT id, name, origin, created_at, updated_at FROM listings WHERE name = ?;`, name,
	).Scan(&l.ID, &l.Name, &l.Origin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("listing %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return domain.Listing{}, err
	}
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

func (t sqliteTx) InsertListing(ctx context.Context, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO listings (id, name, origin, created_at, updated_at)
VALUES (?, ?, ?, ?, ?);`, l.ID, l.Name, l.Origin, fmtTime(l.CreatedAt), fmtTime(l.UpdatedAt))
	return sqliteErr(err)
}

func (t sqliteTx) UpdateListingOrigin(ctx context.Context, id, origin string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE listings SET origin = ?, updated_at = ? WHERE id = ?;`, origin, fmtTime(at), id)
	return affected(res, err, "listing "+id)
}

func (t sqliteTx) DeleteListing(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?;`, id)
	return affected(res, err, "listing "+id)
}

func (t sqliteTx) CountRecords(ctx context.Context, listingID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE listing_id = ?;`, listingID).Scan(&n)
	return n, err
}

func (t sqliteTx) DeleteRecords(ctx context.Context, listingID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM records WHERE listing_id = ?;`, listingID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (t sqliteTx) InsertRecord(ctx context.Context, r *domain.Record) error {
	if r.ID == "" {
		r.ID = newID()
	}
	addrs, phones, emails := jsonList(r.Addresses), jsonList(r.PhoneNumbers), jsonList(r.EmailAddresses)
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO records (id, listing_id, name, addresses, phone_numbers, email_addresses, description, website, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.ID, r.ListingID, r.Name, addrs, phones, emails, nullString(r.Description), nullString(r.Website), fmtTime(r.CreatedAt),
	)
	return sqliteErr(err)
}

func (t sqliteTx) RecordsByName(ctx context.Context, name string) ([]domain.Record, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+recordColumns+` FROM records WHERE name = ? ORDER BY rowid;`, name)
	if err != nil {
		return nil, err
	}
	return scanSQLiteRecords(rows)
}

func (t sqliteTx) DeleteRecord(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?;`, id)
	return affected(res, err, "record "+id)
}

// ---- read side ----

func (d *SQLite) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT `+jobColumns+` FROM crawl_jobs ORDER BY domain;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		j, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (d *SQLite) ListListings(ctx context.Context) ([]ListingSummary, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT l.id, l.name, l.origin, l.created_at, l.updated_at, COUNT(r.id)
FROM listings l
LEFT JOIN records r ON r.listing_id = l.id
GROUP BY l.id
ORDER BY l.name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ListingSummary{}
	for rows.Next() {
		var (
			s                    ListingSummary
			createdAt, updatedAt string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Origin, &createdAt, &updatedAt, &s.RecordCount); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAt)
		s.UpdatedAt = parseTime(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *SQLite) ListRecords(ctx context.Context, listingID string) ([]domain.Record, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE listing_id = ? ORDER BY rowid;`, listingID)
	if err != nil {
		return nil, err
	}
	return scanSQLiteRecords(rows)
}

const recordColumns = `id, listing_id, name, addresses, phone_numbers, email_addresses, description, website, created_at`

func scanSQLiteRecords(rows *sql.Rows) ([]domain.Record, error) {
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var (
			r                     domain.Record
			addrs, phones, emails string
			description, website  sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&r.ID, &r.ListingID, &r.Name, &addrs, &phones, &emails, &description, &website, &createdAt); err != nil {
			return nil, err
		}
		r.Addresses = parseList(addrs)
		r.PhoneNumbers = parseList(phones)
		r.EmailAddresses = parseList(emails)
		if description.Valid {
			r.Description = &description.String
		}
		if website.Valid {
			r.Website = &website.String
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- helpers ----

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func jsonList(xs []string) string {
	if xs == nil {
		xs = []string{}
	}
	b, _ := json.Marshal(xs)
	return string(b)
}

func parseList(s string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func sqliteErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func affected(res sql.Result, err error, what string) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
