package store

import (
	"context"
	"fmt"
	"log"
)

// DeleteListingByName removes a listing and all of its records.
func DeleteListingByName(ctx context.Context, s Store, name string) (records int, err error) {
	err = s.InTx(ctx, func(tx Tx) error {
		l, err := tx.ListingByName(ctx, name)
		if err != nil {
			return err
		}
		if records, err = tx.CountRecords(ctx, l.ID); err != nil {
			return err
		}
		return tx.DeleteListing(ctx, l.ID)
	})
	if err != nil {
		return 0, fmt.Errorf("delete listing %q: %w", name, err)
	}
	log.Printf("[store] deleted listing name=%q records=%d", name, records)
	return records, nil
}

// DeleteRecordByName removes the single record called name. The owning
// listing goes with it when it has no records left.
func DeleteRecordByName(ctx context.Context, s Store, name string) (listingDeleted bool, err error) {
	err = s.InTx(ctx, func(tx Tx) error {
		recs, err := tx.RecordsByName(ctx, name)
		if err != nil {
			return err
		}
		switch len(recs) {
		case 0:
			return fmt.Errorf("record %q: %w", name, ErrNotFound)
		case 1:
		default:
			return fmt.Errorf("record %q matches %d records: %w", name, len(recs), ErrAmbiguous)
		}

		rec := recs[0]
		if err := tx.DeleteRecord(ctx, rec.ID); err != nil {
			return err
		}
		left, err := tx.CountRecords(ctx, rec.ListingID)
		if err != nil {
			return err
		}
		if left > 0 {
			return nil
		}
		listingDeleted = true
		return tx.DeleteListing(ctx, rec.ListingID)
	})
	if err != nil {
		return false, fmt.Errorf("delete record %q: %w", name, err)
	}
	log.Printf("[store] deleted record name=%q listing_deleted=%v", name, listingDeleted)
	return listingDeleted, nil
}
