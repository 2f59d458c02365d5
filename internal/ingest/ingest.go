// Package ingest turns a plain-text resource guide into a listing by running
// the extraction loop over overlapping chunks of the document.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/prompts"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

type Extractor interface {
	Extract(ctx context.Context, instruction, scope string) ([]domain.ExtractedEntry, error)
}

type Renderer interface {
	Render(ref string, d prompts.Data) (string, error)
}

type Ingester struct {
	Store     store.Store
	Extractor Extractor
	Prompts   Renderer
	// InstructionRef names the prompt; it gets the chunk as .Document.
	InstructionRef   string
	PassagesPerChunk int
	Overlap          int
	Concurrency      int
	Hub              *events.Hub
	Now              func() time.Time
}

// Ingest reads a text file and replaces the listing called name with what
// the extractor finds in it. The file path becomes the listing origin.
func (in *Ingester) Ingest(ctx context.Context, name, path string) (store.MergeResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return store.MergeResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return in.IngestText(ctx, name, path, string(b))
}

// IngestText extracts every chunk concurrently. One failed chunk fails the
// whole ingest and nothing is written.
func (in *Ingester) IngestText(ctx context.Context, name, origin, content string) (store.MergeResult, error) {
	perChunk, overlap := in.PassagesPerChunk, in.Overlap
	if perChunk <= 0 {
		perChunk, overlap = DefaultPassagesPerChunk, DefaultOverlap
	}
	chunks, err := SplitPassages(content, perChunk, overlap)
	if err != nil {
		return store.MergeResult{}, err
	}
	log.Printf("[ingest] name=%q origin=%s chunks=%d", name, origin, len(chunks))

	ref := in.InstructionRef
	if ref == "" {
		ref = prompts.ExtractDocument
	}

	results := make([][]domain.ExtractedEntry, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if in.Concurrency > 0 {
		g.SetLimit(in.Concurrency)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			instruction, err := in.Prompts.Render(ref, prompts.Data{Document: chunk})
			if err != nil {
				return err
			}
			entries, err := in.Extractor.Extract(gctx, instruction, "")
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			log.Printf("[ingest] name=%q chunk=%d/%d entries=%d", name, i+1, len(chunks), len(entries))
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return store.MergeResult{}, fmt.Errorf("ingest %q: %w", name, err)
	}

	var all []domain.ExtractedEntry
	for _, r := range results {
		all = append(all, r...)
	}

	var res store.MergeResult
	err = in.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = store.MergeListing(ctx, tx, name, origin, all, in.now())
		return err
	})
	if err != nil {
		return store.MergeResult{}, fmt.Errorf("ingest %q: %w", name, err)
	}

	in.Hub.Emit(events.ListingMerged, events.JobMerged{Listing: name, Records: res.Added})
	return res, nil
}

func (in *Ingester) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now().UTC()
}
