package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Database.Driver = strings.ToLower(strings.TrimSpace(out.Database.Driver))
	out.Lock.Backend = strings.ToLower(strings.TrimSpace(out.Lock.Backend))
	out.Generator.BaseURL = strings.TrimRight(strings.TrimSpace(out.Generator.BaseURL), "/")
	out.Crawl.Schedule = strings.TrimSpace(out.Crawl.Schedule)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// database
	switch out.Database.Driver {
	case "", "sqlite":
		out.Database.Driver = "sqlite"
		if strings.TrimSpace(out.Database.Path) == "" {
			res.addErr("database.path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(out.Database.URL) == "" {
			res.addErr("database.url is required for postgres")
		}
	default:
		res.addErr("database.driver must be sqlite or postgres, got %q", out.Database.Driver)
	}

	// crawl
	if out.Crawl.Schedule == "" {
		res.addErr("crawl.schedule is required")
	} else if _, err := cron.ParseStandard(out.Crawl.Schedule); err != nil {
		res.addErr("crawl.schedule %q is not a valid cron spec: %v", out.Crawl.Schedule, err)
	}
	if out.Crawl.MaxAttempts <= 0 {
		res.addErr("crawl.max_attempts must be > 0")
	} else if out.Crawl.MaxAttempts > 10 {
		res.addWarn("crawl.max_attempts is high (%d); each attempt is a paid generator call.", out.Crawl.MaxAttempts)
	}
	if out.Crawl.Concurrency < 0 {
		res.addErr("crawl.concurrency must be >= 0 (0 means unbounded)")
	} else if out.Crawl.Concurrency == 0 {
		res.addWarn("crawl.concurrency is 0; every due job runs at once.")
	}
	if out.Crawl.GenerateTimeoutSeconds < 0 {
		res.addErr("crawl.generate_timeout_seconds must be >= 0")
	}
	if out.Crawl.RetryDelayMS < 0 {
		res.addErr("crawl.retry_delay_ms must be >= 0")
	}
	if out.Crawl.MergeTimeoutSeconds < 0 {
		res.addErr("crawl.merge_timeout_seconds must be >= 0")
	}

	// generator
	if out.Generator.BaseURL == "" {
		res.addErr("generator.base_url is required")
	}
	if strings.TrimSpace(out.Generator.Model) == "" {
		res.addErr("generator.model is required")
	}
	switch out.Generator.ReasoningEffort {
	case "", "minimal", "low", "medium", "high":
	default:
		res.addWarn("generator.reasoning_effort %q is not one of minimal, low, medium, high", out.Generator.ReasoningEffort)
	}
	if out.Generator.RequestsPerSecond < 0 {
		res.addErr("generator.requests_per_second must be >= 0 (0 means unlimited)")
	}

	// lock
	switch out.Lock.Backend {
	case "", "file":
		out.Lock.Backend = "file"
		if strings.TrimSpace(out.Lock.Path) == "" {
			res.addErr("lock.path is required for the file backend")
		}
	case "redis":
		if strings.TrimSpace(out.Lock.RedisURL) == "" {
			res.addErr("lock.redis_url is required for the redis backend")
		}
		if out.Lock.TTLSeconds <= 0 {
			res.addWarn("lock.ttl_seconds is unset; using the default of 2h.")
		}
	case "none":
		res.addWarn("lock.backend is none; overlapping batch runs are possible.")
	default:
		res.addErr("lock.backend must be file, redis or none, got %q", out.Lock.Backend)
	}

	// ingest
	if out.Ingest.PassagesPerChunk <= 0 {
		res.addErr("ingest.passages_per_chunk must be > 0")
	} else if out.Ingest.Overlap < 0 || out.Ingest.Overlap >= out.Ingest.PassagesPerChunk {
		res.addErr("ingest.overlap must be in [0, passages_per_chunk)")
	}

	return out, res
}
