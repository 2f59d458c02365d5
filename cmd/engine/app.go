package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/navapbc/labs-referral-pilot/internal/config"
	"github.com/navapbc/labs-referral-pilot/internal/events"
	"github.com/navapbc/labs-referral-pilot/internal/extract"
	"github.com/navapbc/labs-referral-pilot/internal/generator"
	"github.com/navapbc/labs-referral-pilot/internal/lock"
	"github.com/navapbc/labs-referral-pilot/internal/poll"
	"github.com/navapbc/labs-referral-pilot/internal/prompts"
	"github.com/navapbc/labs-referral-pilot/internal/secrets"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

// commonFlags are shared by every subcommand that touches the data dir.
type commonFlags struct {
	dataDir    string
	defaultCfg string
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	def := os.Getenv(config.EnvDataDir)
	if def == "" {
		def = "."
	}
	fs.StringVar(&c.dataDir, "data-dir", def, "directory holding config.yml, prompts and the sqlite database")
	fs.StringVar(&c.defaultCfg, "default-config", filepath.Join("config", "config.yml"), "file copied to the data dir when config.yml is missing")
}

// app is everything a subcommand may need, built from one config.
type app struct {
	cfg     config.Config
	cfgPath string
	store   store.Store
	prompts *prompts.Registry
	hub     *events.Hub
}

// loadConfig bootstraps, loads and validates the config. Warnings are
// logged; any error stops the command.
func loadConfig(c commonFlags) (config.Config, string, error) {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return config.Config{}, "", err
	}
	path, err := config.EnsureUserConfig(c.dataDir, c.defaultCfg)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if !filepath.IsAbs(cfg.App.DataDir) {
		cfg.App.DataDir = filepath.Join(c.dataDir, cfg.App.DataDir)
	}
	config.OverlayEnv(&cfg)

	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !vr.OK() {
		return config.Config{}, "", fmt.Errorf("invalid config %s: %v", path, vr.Errors)
	}
	return cfg, path, nil
}

func openApp(ctx context.Context, c commonFlags) (*app, error) {
	cfg, path, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	dsn := cfg.Resolve(cfg.Database.Path)
	if cfg.Database.Driver == "postgres" {
		dsn = cfg.Database.URL
	}
	s, err := store.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}

	promptPath := cfg.Resolve(cfg.Prompts.Path)
	if err := prompts.EnsureDefault(promptPath); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("write default prompts: %w", err)
	}
	reg, err := prompts.Load(promptPath)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load prompts %s: %w", promptPath, err)
	}

	log.Printf("[engine] config=%s driver=%s prompts=%s", path, cfg.Database.Driver, promptPath)
	return &app{cfg: cfg, cfgPath: path, store: s, prompts: reg, hub: events.NewHub()}, nil
}

func (a *app) Close() error { return a.store.Close() }

// extractor builds the generate/validate/retry loop against the configured
// generator. It needs the API key, so only commands that call the
// generator ask for it.
func (a *app) extractor() (extract.Extractor, error) {
	g := a.cfg.Generator
	key, err := secrets.APIKey(secrets.KeyringAccount(g.BaseURL), g.APIKeyEnv)
	if err != nil {
		return extract.Extractor{}, err
	}
	gen := generator.NewOpenAI(generator.Config{
		BaseURL:         g.BaseURL,
		APIKey:          key,
		Model:           g.Model,
		ReasoningEffort: g.ReasoningEffort,
		Limiter:         generator.NewKeyedLimiter(g.RequestsPerSecond, g.Burst),
	})
	c := a.cfg.Crawl
	return extract.Extractor{
		Gen:         gen,
		MaxAttempts: c.MaxAttempts,
		Timeout:     time.Duration(c.GenerateTimeoutSeconds) * time.Second,
		RetryDelay:  time.Duration(c.RetryDelayMS) * time.Millisecond,
	}, nil
}

func (a *app) locker(ctx context.Context) (lock.Locker, error) {
	l := a.cfg.Lock
	return lock.Open(ctx, lock.Options{
		Backend:  l.Backend,
		Path:     a.cfg.Resolve(l.Path),
		RedisURL: l.RedisURL,
		Key:      lock.DefaultKey,
		TTL:      time.Duration(l.TTLSeconds) * time.Second,
	})
}

// pipeline wires the batch. The caller closes the returned locker.
func (a *app) pipeline(ctx context.Context) (*poll.Pipeline, lock.Locker, error) {
	x, err := a.extractor()
	if err != nil {
		return nil, nil, err
	}
	lk, err := a.locker(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &poll.Pipeline{
		Store: a.store,
		Dispatcher: poll.Dispatcher{
			Extractor:    x,
			Instructions: a.prompts,
			Concurrency:  a.cfg.Crawl.Concurrency,
		},
		Lock:         lk,
		Hub:          a.hub,
		MergeTimeout: time.Duration(a.cfg.Crawl.MergeTimeoutSeconds) * time.Second,
	}, lk, nil
}
