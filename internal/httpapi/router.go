package httpapi

import "net/http"

// NewMux wires every route. Callers wrap it with Chain for middleware.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Store: d.Store}.Health,
	}))

	// Crawl batch
	ch := CrawlHandler{Poller: d.Poller}
	mux.HandleFunc("/crawl/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Status,
	}))
	mux.HandleFunc("/crawl/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.Run,
	}))

	// Crawl jobs
	jh := JobsHandler{Store: d.Store, Prompts: d.Prompts, Hub: d.Hub, Now: d.now}
	mux.HandleFunc("/crawl-jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  jh.List,
		http.MethodPost: jh.Upsert,
	}))
	mux.HandleFunc("/crawl-jobs/", methodMux(map[string]http.HandlerFunc{
		http.MethodDelete: jh.DeleteByPath, // expects /crawl-jobs/{domain}
	}))

	// Listings
	lh := ListingsHandler{Store: d.Store}
	mux.HandleFunc("/listings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    lh.List,
		http.MethodDelete: lh.DeleteByName, // ?name=
	}))
	mux.HandleFunc("/listings/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Records, // expects /listings/{id}/records
	}))

	// Config (read-only)
	cfh := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Get,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Validate,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}
