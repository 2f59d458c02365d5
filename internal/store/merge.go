package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

type MergeResult struct {
	Listing domain.Listing
	Removed int64
	Added   int
}

// MergeListing makes the listing called name hold exactly entries. A missing
// listing is created; an existing one keeps its id and gets a fresh origin.
// Entries sharing a name collapse to the last one.
func MergeListing(ctx context.Context, tx Tx, name, origin string, entries []domain.ExtractedEntry, now time.Time) (MergeResult, error) {
	var res MergeResult

	l, err := tx.ListingByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		l = domain.Listing{Name: name, Origin: origin, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertListing(ctx, &l); err != nil {
			return res, fmt.Errorf("insert listing %q: %w", name, err)
		}
		log.Printf("[store] created listing name=%q", name)
	case err != nil:
		return res, fmt.Errorf("find listing %q: %w", name, err)
	default:
		if err := tx.UpdateListingOrigin(ctx, l.ID, origin, now); err != nil {
			return res, fmt.Errorf("update listing %q: %w", name, err)
		}
		l.Origin, l.UpdatedAt = origin, now
		if res.Removed, err = tx.DeleteRecords(ctx, l.ID); err != nil {
			return res, fmt.Errorf("delete records of %q: %w", name, err)
		}
	}
	res.Listing = l

	for _, e := range domain.DedupeByName(entries) {
		r := e.ToRecord(l.ID)
		r.CreatedAt = now
		if err := tx.InsertRecord(ctx, &r); err != nil {
			return res, fmt.Errorf("insert record %q: %w", r.Name, err)
		}
		res.Added++
	}

	log.Printf("[store] merged listing name=%q removed=%d added=%d", name, res.Removed, res.Added)
	return res, nil
}

// MergeJobResult replaces the job's listing with entries and stamps the job
// as refreshed at now. Either all of it lands or none of it does.
func MergeJobResult(ctx context.Context, s Store, job domain.Job, entries []domain.ExtractedEntry, now time.Time) (MergeResult, error) {
	var res MergeResult
	err := s.InTx(ctx, func(tx Tx) error {
		r, err := MergeListing(ctx, tx, domain.ListingNameForDomain(job.Domain), job.Domain, entries, now)
		if err != nil {
			return err
		}
		if err := tx.MarkJobRefreshed(ctx, job.ID, now); err != nil {
			return fmt.Errorf("mark %q refreshed: %w", job.Domain, err)
		}
		res = r
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}
