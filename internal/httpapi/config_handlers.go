package httpapi

import (
	"net/http"
	"path/filepath"
	"sync/atomic"

	"github.com/navapbc/labs-referral-pilot/internal/config"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
}

// Get returns the active config with connection URLs blanked out.
func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	cur.Database.URL = redact(cur.Database.URL)
	cur.Lock.RedisURL = redact(cur.Lock.RedisURL)

	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs, "config": cur})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	_, vr := config.NormalizeAndValidate(cur)

	status := http.StatusOK
	if !vr.OK() {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, vr)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}
