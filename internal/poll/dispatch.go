package poll

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/extract"
)

type Extractor interface {
	Extract(ctx context.Context, instruction, scope string) ([]domain.ExtractedEntry, error)
}

// Instructions resolves a job's instruction ref into the prompt text.
type Instructions interface {
	Instruction(ref, host string) (string, error)
}

type Result struct {
	Job     domain.Job
	Entries []domain.ExtractedEntry
	Err     error
}

type Dispatcher struct {
	Extractor Extractor
	// Instructions may be nil, in which case the ref is used as the prompt.
	Instructions Instructions
	// Concurrency caps jobs in flight. Zero or less means unbounded.
	Concurrency int
}

// RunAll extracts every job concurrently and returns one Result per job in
// input order. A job's failure never cancels its siblings.
func (d Dispatcher) RunAll(ctx context.Context, jobs []domain.Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	if d.Concurrency > 0 {
		g.SetLimit(d.Concurrency)
	}

	for i, j := range jobs {
		results[i].Job = j
		g.Go(func() error {
			log.Printf("[dispatch] domain=%q running...", j.Domain)
			entries, err := d.runOne(ctx, j)
			if err != nil {
				log.Printf("[dispatch] domain=%q error: %v", j.Domain, err)
			}
			results[i].Entries, results[i].Err = entries, err
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (d Dispatcher) runOne(ctx context.Context, j domain.Job) (entries []domain.ExtractedEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] domain=%q panic: %v\n%s", j.Domain, r, debug.Stack())
			entries, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if !j.Generative() {
		return nil, extract.ErrNotImplemented
	}

	instruction := j.InstructionRef
	if d.Instructions != nil {
		if instruction, err = d.Instructions.Instruction(j.InstructionRef, j.Domain); err != nil {
			return nil, fmt.Errorf("instruction %q: %w", j.InstructionRef, err)
		}
	}
	return d.Extractor.Extract(ctx, instruction, j.Domain)
}
