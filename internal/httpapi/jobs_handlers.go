package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

// PromptChecker reports whether an instruction ref names a known prompt.
type PromptChecker interface {
	Has(ref string) bool
}

type JobsHandler struct {
	Store   store.Store
	Prompts PromptChecker // nil accepts any ref
	Hub     *events.Hub
	Now     func() time.Time
}

type jobDTO struct {
	ID              string  `json:"id"`
	Domain          string  `json:"domain"`
	InstructionRef  string  `json:"instruction_ref"`
	IntervalHours   int     `json:"interval_hours"`
	LastRefreshedAt *string `json:"last_refreshed_at"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toJobDTO(j domain.Job) jobDTO {
	d := jobDTO{
		ID:             j.ID,
		Domain:         j.Domain,
		InstructionRef: j.InstructionRef,
		IntervalHours:  j.IntervalHours,
		CreatedAt:      j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      j.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if j.LastRefreshedAt != nil {
		s := j.LastRefreshedAt.UTC().Format(time.RFC3339)
		d.LastRefreshedAt = &s
	}
	return d
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	WriteJSON(w, http.StatusOK, out)
}

type upsertJobReq struct {
	Domain         string `json:"domain"`
	IntervalHours  int    `json:"interval_hours"`
	InstructionRef string `json:"instruction_ref"`
}

func (h JobsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req upsertJobReq
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	ref := strings.TrimSpace(req.InstructionRef)
	if ref != "" && h.Prompts != nil && !h.Prompts.Has(ref) {
		WriteError(w, r, http.StatusBadRequest, "unknown_prompt", "unknown instruction_ref "+strconv.Quote(ref))
		return
	}

	job, created, err := store.UpsertJob(r.Context(), h.Store, req.Domain, req.IntervalHours, ref, h.Now())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	h.Hub.Emit(events.CrawlJobUpserted, events.JobChanged{Domain: job.Domain, Created: created})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, toJobDTO(job))
}

// DeleteByPath handles DELETE /crawl-jobs/{domain}.
func (h JobsHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	host := strings.Trim(strings.TrimPrefix(r.URL.Path, "/crawl-jobs/"), "/")
	if host == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "missing domain")
		return
	}

	listingDeleted, err := store.DeleteJob(r.Context(), h.Store, host)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	host = domain.NormalizeDomain(host)
	h.Hub.Emit(events.CrawlJobDeleted, events.JobChanged{Domain: host, ListingDeleted: listingDeleted})

	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"domain":          host,
		"listing_deleted": listingDeleted,
	})
}
