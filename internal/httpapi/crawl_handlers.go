package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/navapbc/labs-referral-pilot/internal/poll"
)

type CrawlHandler struct {
	Poller *poll.Poller
}

func (h CrawlHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Poller.Status())
}

// Run starts a batch in the background. The request context is not used so
// the batch outlives the response.
func (h CrawlHandler) Run(w http.ResponseWriter, r *http.Request) {
	err := h.Poller.TriggerAsync(context.Background())
	if errors.Is(err, poll.ErrAlreadyRunning) {
		WriteError(w, r, http.StatusConflict, "already_running", err.Error())
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "started": true})
}
