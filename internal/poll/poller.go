package poll

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/lock"
)

type Status struct {
	Running     bool     `json:"running"`
	LastRunAt   string   `json:"last_run_at"`
	LastOkAt    string   `json:"last_ok_at"`
	LastError   string   `json:"last_error"`
	LastOutcome string   `json:"last_outcome"`
	LastSummary *Summary `json:"last_summary,omitempty"`
}

var ErrAlreadyRunning = errors.New("a crawl batch is already running")

// Poller wraps a Pipeline with status tracking for the HTTP surface and
// the cron runner.
type Poller struct {
	Pipeline *Pipeline

	running atomic.Bool
	status  atomic.Value // Status
}

func NewPoller(p *Pipeline) *Poller {
	pl := &Poller{Pipeline: p}
	pl.status.Store(Status{})
	return pl
}

func (p *Poller) Status() Status {
	return p.status.Load().(Status)
}

// RunOnce runs a batch in the caller's goroutine.
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRunning
	}
	return p.runReserved(ctx)
}

// runReserved runs a batch for a caller that already set running, and
// clears it when done.
func (p *Poller) runReserved(ctx context.Context) (Summary, error) {
	defer p.running.Store(false)

	st := p.Status()
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	p.status.Store(st)

	sum, err := p.Pipeline.ProcessAllDueJobs(ctx)

	st = p.Status()
	st.Running = false
	switch {
	case errors.Is(err, lock.ErrHeld):
		st.LastError = err.Error()
		log.Printf("[poll] skipped: %v", err)
	case err != nil:
		st.LastError = err.Error()
		log.Printf("[poll] error: %v", err)
	default:
		st.LastError = ""
		st.LastOutcome = sum.Outcome()
		st.LastSummary = &sum
		if sum.Outcome() == OutcomeOK || sum.Outcome() == OutcomeNoJobsDue {
			st.LastOkAt = time.Now().Format(time.RFC3339)
		}
	}
	p.status.Store(st)
	return sum, err
}

// TriggerAsync starts a batch in the background unless one is running.
// The slot is reserved before returning, so of two racing callers exactly
// one gets nil.
func (p *Poller) TriggerAsync(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		if _, err := p.runReserved(ctx); err != nil {
			log.Printf("[poll] async run error: %v", err)
		}
	}()
	return nil
}

// Task adapts RunOnce to scheduler.Task.
func (p *Poller) Task(ctx context.Context) error {
	_, err := p.RunOnce(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		return nil
	}
	return err
}
