package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/store"
)

type HealthHandler struct {
	Store store.Store
}

// Health reports ok when the store answers a cheap read within two seconds.
func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)}
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := h.Store.ListJobs(ctx); err != nil {
			resp["ok"] = false
			resp["error"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
