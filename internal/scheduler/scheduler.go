package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Runner fires a task on a cron spec such as "@every 1h" or "0 3 * * *".
// Overlapping ticks are skipped while the previous run is still going.
type Runner struct {
	cron *cron.Cron
	spec string
	name string
	task Task
}

func New(spec, name string, task Task) *Runner {
	return &Runner{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		spec: spec,
		name: name,
		task: task,
	}
}

// ValidateSpec checks a spec with the parser Runner uses.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// Start registers the task and runs it once right away so a fresh process
// does not wait a full period for its first run.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", r.spec, err)
	}
	r.cron.Start()
	log.Printf("[scheduler] %s started spec=%s", r.name, r.spec)

	go r.run(ctx)
	return nil
}

// Stop halts future ticks and returns a context done once running tasks end.
func (r *Runner) Stop() context.Context {
	log.Printf("[scheduler] %s stopping", r.name)
	return r.cron.Stop()
}

func (r *Runner) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.task(ctx); err != nil {
		log.Printf("[%s] error: %v", r.name, err)
	}
}
