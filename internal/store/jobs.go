package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

// UpsertJob creates the crawl job for host or updates the interval and
// instruction of the existing one. created reports which happened.
func UpsertJob(ctx context.Context, s Store, host string, intervalHours int, instructionRef string, now time.Time) (job domain.Job, created bool, err error) {
	host = domain.NormalizeDomain(host)
	if err := domain.ValidateJob(host, intervalHours); err != nil {
		return domain.Job{}, false, err
	}

	err = s.InTx(ctx, func(tx Tx) error {
		existing, err := tx.JobByDomain(ctx, host)
		switch {
		case errors.Is(err, ErrNotFound):
			job = domain.Job{
				Domain:         host,
				InstructionRef: instructionRef,
				IntervalHours:  intervalHours,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			created = true
			return tx.InsertJob(ctx, &job)
		case err != nil:
			return err
		}

		existing.IntervalHours = intervalHours
		existing.InstructionRef = instructionRef
		existing.UpdatedAt = now
		job = existing
		return tx.UpdateJob(ctx, existing)
	})
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("upsert crawl job %q: %w", host, err)
	}

	if created {
		log.Printf("[store] created crawl job domain=%q interval=%dh", host, intervalHours)
	} else {
		log.Printf("[store] updated crawl job domain=%q interval=%dh", host, intervalHours)
	}
	return job, created, nil
}

// DeleteJob removes the crawl job for host together with its listing.
// A job whose listing was never written is still deleted.
func DeleteJob(ctx context.Context, s Store, host string) (listingDeleted bool, err error) {
	host = domain.NormalizeDomain(host)

	err = s.InTx(ctx, func(tx Tx) error {
		job, err := tx.JobByDomain(ctx, host)
		if err != nil {
			return err
		}
		if err := tx.DeleteJob(ctx, job.ID); err != nil {
			return err
		}

		name := domain.ListingNameForDomain(host)
		l, err := tx.ListingByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			log.Printf("[store] no listing %q for deleted crawl job", name)
			return nil
		}
		if err != nil {
			return err
		}
		listingDeleted = true
		return tx.DeleteListing(ctx, l.ID)
	})
	if err != nil {
		return false, fmt.Errorf("delete crawl job %q: %w", host, err)
	}

	log.Printf("[store] deleted crawl job domain=%q listing_deleted=%v", host, listingDeleted)
	return listingDeleted, nil
}
