package events

import (
	"encoding/json"
	"time"
)

const (
	CrawlJobMerged   = "crawl_job_merged"
	CrawlJobFailed   = "crawl_job_failed"
	CrawlJobUpserted = "crawl_job_upserted"
	CrawlJobDeleted  = "crawl_job_deleted"
	CrawlBatchDone   = "crawl_batch_done"
	ListingMerged    = "listing_merged"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// JobMerged is the payload of CrawlJobMerged.
type JobMerged struct {
	Domain  string `json:"domain"`
	Listing string `json:"listing"`
	Records int    `json:"records"`
}

// JobFailed is the payload of CrawlJobFailed.
type JobFailed struct {
	Domain string `json:"domain"`
	Stage  string `json:"stage"` // extract | merge
	Error  string `json:"error"`
}

// JobChanged is the payload of CrawlJobUpserted and CrawlJobDeleted.
type JobChanged struct {
	Domain         string `json:"domain"`
	Created        bool   `json:"created,omitempty"`
	ListingDeleted bool   `json:"listing_deleted,omitempty"`
}

// BatchDone is the payload of CrawlBatchDone.
type BatchDone struct {
	Outcome     string `json:"outcome"`
	Attempted   int    `json:"attempted"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	MergeFailed int    `json:"merge_failed"`
}
