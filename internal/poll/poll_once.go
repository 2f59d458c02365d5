package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/lock"
	"github.com/navapbc/labs-referral-pilot/internal/scheduler"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

const DefaultMergeTimeout = 2 * time.Minute

const (
	OutcomeNoJobsDue      = "no_jobs_due"
	OutcomeOK             = "ok"
	OutcomePartialFailure = "partial_failure"
	OutcomeMergeFailed    = "merge_failed"
)

type JobOutcome struct {
	Domain  string `json:"domain"`
	Stage   string `json:"stage,omitempty"` // extract | merge, set on failure
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Summary counts one batch. Succeeded + Failed + MergeFailed == Attempted.
type Summary struct {
	Attempted   int          `json:"attempted"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	MergeFailed int          `json:"merge_failed"`
	Jobs        []JobOutcome `json:"jobs"`
}

func (s Summary) Outcome() string {
	switch {
	case s.Attempted == 0:
		return OutcomeNoJobsDue
	case s.MergeFailed > 0:
		return OutcomeMergeFailed
	case s.Failed > 0:
		return OutcomePartialFailure
	default:
		return OutcomeOK
	}
}

// Pipeline runs the whole batch: select due jobs, extract them in parallel,
// then merge each result on its own transaction.
type Pipeline struct {
	Store      store.Store
	Dispatcher Dispatcher
	// Lock is optional. When set, a concurrent batch gets lock.ErrHeld.
	Lock         lock.Locker
	Hub          *events.Hub
	MergeTimeout time.Duration
	Now          func() time.Time
}

// ProcessAllDueJobs is the batch entry point. Per-job failures only show up
// in the Summary; the error return is for failures that stop the batch
// before any job runs.
func (p *Pipeline) ProcessAllDueJobs(ctx context.Context) (Summary, error) {
	if p.Lock != nil {
		release, err := p.Lock.Acquire(ctx)
		if err != nil {
			return Summary{}, err
		}
		defer release()
	}

	now := p.now()
	jobs, err := p.Store.ListJobs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list crawl jobs: %w", err)
	}

	due := scheduler.SelectDueJobs(jobs, now)
	sum := Summary{Attempted: len(due), Jobs: make([]JobOutcome, 0, len(due))}
	if len(due) == 0 {
		log.Printf("[poll] no crawl jobs due")
		p.Hub.Emit(events.CrawlBatchDone, batchDone(sum))
		return sum, nil
	}

	results := p.Dispatcher.RunAll(ctx, due)

	for _, r := range results {
		out := JobOutcome{Domain: r.Job.Domain}

		if r.Err != nil {
			sum.Failed++
			out.Stage, out.Error = "extract", r.Err.Error()
			log.Printf("[poll] domain=%q extract failed: %v", r.Job.Domain, r.Err)
			p.Hub.Emit(events.CrawlJobFailed, events.JobFailed{Domain: out.Domain, Stage: out.Stage, Error: out.Error})
			sum.Jobs = append(sum.Jobs, out)
			continue
		}

		res, err := p.merge(r, now)
		if err != nil {
			sum.MergeFailed++
			out.Stage, out.Error = "merge", err.Error()
			log.Printf("[poll] domain=%q merge failed: %v", r.Job.Domain, err)
			p.Hub.Emit(events.CrawlJobFailed, events.JobFailed{Domain: out.Domain, Stage: out.Stage, Error: out.Error})
			sum.Jobs = append(sum.Jobs, out)
			continue
		}

		sum.Succeeded++
		out.Records = res.Added
		p.Hub.Emit(events.CrawlJobMerged, events.JobMerged{
			Domain:  r.Job.Domain,
			Listing: res.Listing.Name,
			Records: res.Added,
		})
		sum.Jobs = append(sum.Jobs, out)
	}

	log.Printf("[poll] batch done outcome=%s attempted=%d succeeded=%d failed=%d merge_failed=%d",
		sum.Outcome(), sum.Attempted, sum.Succeeded, sum.Failed, sum.MergeFailed)
	p.Hub.Emit(events.CrawlBatchDone, batchDone(sum))
	return sum, nil
}

// merge gets its own deadline off a fresh context so work already
// extracted still lands after the caller gives up.
func (p *Pipeline) merge(r Result, now time.Time) (store.MergeResult, error) {
	timeout := p.MergeTimeout
	if timeout <= 0 {
		timeout = DefaultMergeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := store.MergeJobResult(ctx, p.Store, r.Job, r.Entries, now)
	if errors.Is(err, store.ErrNotFound) {
		return res, fmt.Errorf("crawl job was deleted during the batch: %w", err)
	}
	return res, err
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func batchDone(s Summary) events.BatchDone {
	return events.BatchDone{
		Outcome:     s.Outcome(),
		Attempted:   s.Attempted,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		MergeFailed: s.MergeFailed,
	}
}
