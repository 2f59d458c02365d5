package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/config"
	"github.com/navapbc/labs-referral-pilot/internal/domain"
	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/httpapi"
	"github.com/navapbc/labs-referral-pilot/internal/poll"
	"github.com/navapbc/labs-referral-pilot/internal/prompts"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, store.Store, *events.Hub) {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Database.URL = "postgres://user:secret@db/referrals"
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	reg, err := prompts.New(prompts.Defaults())
	if err != nil {
		t.Fatalf("prompts.New: %v", err)
	}
	hub := events.NewHub()

	pl := poll.NewPoller(&poll.Pipeline{Store: s, Now: func() time.Time { return fixedNow }})

	d := httpapi.Deps{
		Store:       s,
		Hub:         hub,
		Prompts:     reg,
		Poller:      pl,
		CfgVal:      &cfgVal,
		UserCfgPath: filepath.Join(t.TempDir(), "config.yml"),
		Now:         func() time.Time { return fixedNow },
	}
	h := httpapi.Chain(httpapi.NewMux(d), httpapi.RequestID, httpapi.Recover)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, s, hub
}

func do(t *testing.T, method, url, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, body := do(t, http.MethodPut, srv.URL+"/crawl-jobs", "{}")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var e httpapi.APIError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code != "method_not_allowed" {
		t.Errorf("body = %s", body)
	}
}

func TestCrawlJobs_UpsertListDelete(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/crawl-jobs",
		`{"domain":"HTTPS://FoodBank.org/","interval_hours":24,"instruction_ref":"crawl_supports"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", resp.StatusCode, body)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/crawl-jobs",
		`{"domain":"foodbank.org","interval_hours":12,"instruction_ref":"crawl_supports"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/crawl-jobs", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var jobs []struct {
		Domain          string  `json:"domain"`
		IntervalHours   int     `json:"interval_hours"`
		LastRefreshedAt *string `json:"last_refreshed_at"`
	}
	if err := json.Unmarshal(body, &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Domain != "foodbank.org" || jobs[0].IntervalHours != 12 || jobs[0].LastRefreshedAt != nil {
		t.Fatalf("jobs = %+v", jobs)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/crawl-jobs/foodbank.org", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/crawl-jobs/foodbank.org", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCrawlJobs_RejectsUnknownPrompt(t *testing.T) {
	srv, s, _ := newServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/crawl-jobs",
		`{"domain":"example.org","interval_hours":24,"instruction_ref":"no_such_prompt"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var e httpapi.APIError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Code != "unknown_prompt" {
		t.Errorf("body = %s", body)
	}

	jobs, err := s.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("rejected job was stored: %+v", jobs)
	}
}

func TestCrawlJobs_EmitsChangeEvents(t *testing.T) {
	srv, _, hub := newServer(t)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	resp, _ := do(t, http.MethodPost, srv.URL+"/crawl-jobs",
		`{"domain":"example.org","interval_hours":24,"instruction_ref":"crawl_supports"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/crawl-jobs/example.org", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	for _, want := range []string{events.CrawlJobUpserted, events.CrawlJobDeleted} {
		select {
		case msg := <-ch:
			var evt events.Event
			if err := json.Unmarshal([]byte(msg), &evt); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if evt.Type != want {
				t.Errorf("event type = %q, want %q", evt.Type, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}
}

func TestCrawlJobs_RejectsBadInterval(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/crawl-jobs", `{"domain":"a.org","interval_hours":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListingsAndRecords(t *testing.T) {
	srv, s, _ := newServer(t)
	ctx := context.Background()

	var id string
	err := s.InTx(ctx, func(tx store.Tx) error {
		res, err := store.MergeListing(ctx, tx, "Crawl: foodbank.org", "foodbank.org",
			[]domain.ExtractedEntry{{Name: "Food Bank", Addresses: []string{"1 Main St"}}}, fixedNow)
		id = res.Listing.ID
		return err
	})
	if err != nil {
		t.Fatalf("MergeListing: %v", err)
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/listings", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var ls []struct {
		ID          string `json:"id"`
		RecordCount int    `json:"record_count"`
	}
	_ = json.Unmarshal(body, &ls)
	if len(ls) != 1 || ls[0].ID != id || ls[0].RecordCount != 1 {
		t.Fatalf("listings = %s", body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/listings/"+id+"/records", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("records status = %d", resp.StatusCode)
	}
	var recs []struct {
		Name   string   `json:"name"`
		Emails []string `json:"emails"`
	}
	_ = json.Unmarshal(body, &recs)
	if len(recs) != 1 || recs[0].Name != "Food Bank" || recs[0].Emails == nil {
		t.Fatalf("records = %s", body)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/listings/"+id+"/other", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown subpath status = %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/listings?name=Crawl:%20foodbank.org", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/listings?name=Crawl:%20foodbank.org", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
}

func TestCrawlRunAndStatus(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/crawl/run", "")
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusConflict {
		t.Fatalf("run status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := do(t, http.MethodGet, srv.URL+"/crawl/status", "")
		var st poll.Status
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if !st.Running && st.LastOutcome == poll.OutcomeNoJobsDue {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch did not finish: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConfig_RedactsURLs(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/config", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "secret") {
		t.Errorf("config leaked credentials: %s", body)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/config/validate", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("validate status = %d", resp.StatusCode)
	}
}

func TestEventsStreamThroughMiddleware(t *testing.T) {
	hub := events.NewHub()
	d := httpapi.Deps{Hub: hub}
	h := httpapi.Chain(httpapi.NewMux(d), httpapi.RequestID, httpapi.Recover, httpapi.AccessLog)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q (status %d)", ct, resp.StatusCode)
	}

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if !strings.Contains(string(buf[:n]), `"type":"ping"`) {
		t.Errorf("first event = %q", buf[:n])
	}
}

func TestRecoverReturns500(t *testing.T) {
	h := httpapi.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), httpapi.RequestID, httpapi.Recover)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
