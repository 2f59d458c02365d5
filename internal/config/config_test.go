package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/navapbc/labs-referral-pilot/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	_, v := config.NormalizeAndValidate(config.Default())
	if !v.OK() {
		t.Errorf("default config invalid: %v", v.Errors)
	}
}

func TestLoad_KeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := "crawl:\n  schedule: \"0 3 * * *\"\n  concurrency: 8\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawl.Schedule != "0 3 * * *" || cfg.Crawl.Concurrency != 8 {
		t.Errorf("overrides not applied: %+v", cfg.Crawl)
	}
	if cfg.Crawl.MaxAttempts != 3 || cfg.Database.Driver != "sqlite" {
		t.Errorf("defaults lost: max_attempts=%d driver=%q", cfg.Crawl.MaxAttempts, cfg.Database.Driver)
	}
}

func TestNormalizeAndValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad cron", func(c *config.Config) { c.Crawl.Schedule = "hourly-ish" }, "crawl.schedule"},
		{"zero attempts", func(c *config.Config) { c.Crawl.MaxAttempts = 0 }, "crawl.max_attempts"},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without url", func(c *config.Config) { c.Database.Driver = "postgres" }, "database.url"},
		{"redis without url", func(c *config.Config) { c.Lock.Backend = "redis" }, "lock.redis_url"},
		{"overlap too big", func(c *config.Config) { c.Ingest.Overlap = 11 }, "ingest.overlap"},
		{"port", func(c *config.Config) { c.App.Port = 70000 }, "app.port"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := config.Default()
			c.mutate(&cfg)
			_, v := config.NormalizeAndValidate(cfg)
			if v.OK() {
				t.Fatal("expected validation errors")
			}
			if !strings.Contains(strings.Join(v.Errors, "\n"), c.want) {
				t.Errorf("errors %v do not mention %q", v.Errors, c.want)
			}
		})
	}
}

func TestNormalizeAndValidate_Normalizes(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = " SQLite "
	cfg.Generator.BaseURL = "https://api.openai.com/"

	out, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		t.Fatalf("errors: %v", v.Errors)
	}
	if out.Database.Driver != "sqlite" || out.Generator.BaseURL != "https://api.openai.com" {
		t.Errorf("not normalized: driver=%q base=%q", out.Database.Driver, out.Generator.BaseURL)
	}
}

func TestEnsureUserConfig_WritesDefault(t *testing.T) {
	dir := t.TempDir()
	path, err := config.EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatalf("EnsureUserConfig: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawl.Schedule != config.Default().Crawl.Schedule {
		t.Errorf("schedule = %q", cfg.Crawl.Schedule)
	}
}

func TestEnsureUserConfig_SeedsFromDefaultFile(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yml")
	if err := os.WriteFile(seed, []byte("crawl:\n  concurrency: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := config.EnsureUserConfig(filepath.Join(dir, "data"), seed)
	if err != nil {
		t.Fatalf("EnsureUserConfig: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawl.Concurrency != 7 {
		t.Errorf("concurrency = %d, want 7", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.MaxAttempts != config.Default().Crawl.MaxAttempts {
		t.Errorf("omitted key lost its default: max_attempts = %d", cfg.Crawl.MaxAttempts)
	}
}

func TestSaveAtomic_RejectsInvalidAndKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := config.SaveAtomic(path, config.Default()); err != nil {
		t.Fatalf("SaveAtomic: %v", err)
	}

	bad := config.Default()
	bad.Crawl.MaxAttempts = -1
	if err := config.SaveAtomic(path, bad); err == nil {
		t.Fatal("invalid config saved")
	}

	next := config.Default()
	next.Crawl.Concurrency = 9
	if err := config.SaveAtomic(path, next); err != nil {
		t.Fatalf("SaveAtomic: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	cfg, _ := config.Load(path)
	if cfg.Crawl.Concurrency != 9 {
		t.Errorf("concurrency = %d, want 9", cfg.Crawl.Concurrency)
	}
}

func TestOverlayEnv(t *testing.T) {
	t.Setenv(config.EnvDataDir, "/var/lib/referral")
	t.Setenv(config.EnvDatabaseURL, "postgres://u:p@db/referral")

	cfg := config.Default()
	config.OverlayEnv(&cfg)
	if cfg.App.DataDir != "/var/lib/referral" {
		t.Errorf("DataDir = %q", cfg.App.DataDir)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.URL != "postgres://u:p@db/referral" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if got := cfg.Resolve("referral.db"); got != filepath.Join("/var/lib/referral", "referral.db") {
		t.Errorf("Resolve = %q", got)
	}
}
