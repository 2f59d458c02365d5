package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

type ListingsHandler struct {
	Store store.Store
}

type listingDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	RecordCount int    `json:"record_count"`
	UpdatedAt   string `json:"updated_at"`
}

type recordDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Addresses    []string `json:"addresses"`
	PhoneNumbers []string `json:"phone_numbers"`
	Emails       []string `json:"emails"`
	Website      *string  `json:"website"`
	Description  *string  `json:"description"`
}

func toRecordDTO(rec domain.Record) recordDTO {
	return recordDTO{
		ID:           rec.ID,
		Name:         rec.Name,
		Addresses:    nonNil(rec.Addresses),
		PhoneNumbers: nonNil(rec.PhoneNumbers),
		Emails:       nonNil(rec.EmailAddresses),
		Website:      rec.Website,
		Description:  rec.Description,
	}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func (h ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Store.ListListings(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]listingDTO, 0, len(ls))
	for _, l := range ls {
		out = append(out, listingDTO{
			ID:          l.ID,
			Name:        l.Name,
			Origin:      l.Origin,
			RecordCount: l.RecordCount,
			UpdatedAt:   l.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Records handles GET /listings/{id}/records.
func (h ListingsHandler) Records(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/listings/")
	id, tail, ok := strings.Cut(rest, "/")
	if !ok || id == "" || tail != "records" {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown path")
		return
	}

	recs, err := h.Store.ListRecords(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]recordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordDTO(rec))
	}
	WriteJSON(w, http.StatusOK, out)
}

// DeleteByName handles DELETE /listings?name=...
func (h ListingsHandler) DeleteByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "missing name")
		return
	}
	n, err := store.DeleteListingByName(r.Context(), h.Store, name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "records_deleted": n})
}
