package httpapi

import (
	"sync/atomic"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/poll"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

type Deps struct {
	Store store.Store

	Hub *events.Hub

	// Checks instruction refs on job upsert; *prompts.Registry fits.
	Prompts PromptChecker

	// Batch runner with status
	Poller *poll.Poller

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string

	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
