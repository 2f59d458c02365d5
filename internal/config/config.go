package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Database struct {
		Driver string `yaml:"driver"` // sqlite | postgres
		Path   string `yaml:"path"`
		URL    string `yaml:"url"`
	} `yaml:"database"`

	Crawl struct {
		Schedule               string `yaml:"schedule"`
		MaxAttempts            int    `yaml:"max_attempts"`
		Concurrency            int    `yaml:"concurrency"`
		GenerateTimeoutSeconds int    `yaml:"generate_timeout_seconds"`
		RetryDelayMS           int    `yaml:"retry_delay_ms"`
		MergeTimeoutSeconds    int    `yaml:"merge_timeout_seconds"`
	} `yaml:"crawl"`

	Generator struct {
		BaseURL           string  `yaml:"base_url"`
		Model             string  `yaml:"model"`
		ReasoningEffort   string  `yaml:"reasoning_effort"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		APIKeyEnv         string  `yaml:"api_key_env"`
	} `yaml:"generator"`

	Prompts struct {
		Path string `yaml:"path"`
	} `yaml:"prompts"`

	Lock struct {
		Backend    string `yaml:"backend"` // file | redis | none
		Path       string `yaml:"path"`
		RedisURL   string `yaml:"redis_url"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"lock"`

	Ingest struct {
		PassagesPerChunk int    `yaml:"passages_per_chunk"`
		Overlap          int    `yaml:"overlap"`
		InstructionRef   string `yaml:"instruction_ref"`
	} `yaml:"ingest"`
}

func Default() Config {
	var c Config
	c.App.Port = 38471
	c.App.DataDir = "."

	c.Database.Driver = "sqlite"
	c.Database.Path = "referral.db"

	c.Crawl.Schedule = "@every 1h"
	c.Crawl.MaxAttempts = 3
	c.Crawl.Concurrency = 4
	c.Crawl.GenerateTimeoutSeconds = 300
	c.Crawl.MergeTimeoutSeconds = 120

	c.Generator.BaseURL = "https://api.openai.com"
	c.Generator.Model = "gpt-5-mini"
	c.Generator.ReasoningEffort = "low"
	c.Generator.RequestsPerSecond = 1
	c.Generator.Burst = 2
	c.Generator.APIKeyEnv = "OPENAI_API_KEY"

	c.Prompts.Path = "prompts.yml"

	c.Lock.Backend = "file"
	c.Lock.Path = "crawl.lock"
	c.Lock.TTLSeconds = 7200

	c.Ingest.PassagesPerChunk = 11
	c.Ingest.Overlap = 1
	c.Ingest.InstructionRef = "extract_document"
	return c
}

// Load reads path on top of Default, so omitted keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Resolve makes a relative path from the config live under the data dir.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}
