package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database                  DatabaseConfig   `json:"database"`
	Port                      int              `json:"port"`
	LogConfig                 logger.LogConfig `json:"log_config"`
	Embedding                 EmbeddingConfig  `json:"embedding"`
	Ingest                    IngestConfig     `json:"ingest"`
	Quota                     QuotaConfig      `json:"quota"`
	Sources                   []SourceConfig   `json:"sources"`
	EmbeddingCacheCleanupCron string           `json:"embedding_cache_cleanup_cron"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type EmbeddingConfig struct {
	Providers  []ProviderConfig `json:"providers"`
	Dimensions int              `json:"dimensions"`
	// Timeout bounds a single provider call, in seconds.
	Timeout   int             `json:"timeout"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Cache     CacheConfig     `json:"cache"`
	Retry     RetryConfig     `json:"retry"`
}

type ProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type CacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts"`
	BaseDelayMs int     `json:"base_delay_ms"`
	MaxDelayMs  int     `json:"max_delay_ms"`
	Jitter      float64 `json:"jitter"`
}

type IngestConfig struct {
	MaxChunkChars    int    `json:"max_chunk_chars"`
	MinContentChars  int    `json:"min_content_chars"`
	Concurrency      int    `json:"concurrency"`
	Tokenizer        string `json:"tokenizer"`
	CharsPerToken    int    `json:"chars_per_token"`
	TiktokenEncoding string `json:"tiktoken_encoding"`
}

type QuotaConfig struct {
	DefaultPlanTokens int64            `json:"default_plan_tokens"`
	Teams             map[string]int64 `json:"teams"`
}

type SourceConfig struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	TeamID      string          `json:"team_id"`
	Type        string          `json:"type"`
	Dir         string          `json:"dir"`
	S3          S3Config        `json:"s3"`
	Include     []string        `json:"include"`
	Exclude     []string        `json:"exclude"`
	Selectors   SelectorsConfig `json:"selectors"`
	ContentType string          `json:"content_type"`
	Cron        string          `json:"cron"`
}

type SelectorsConfig struct {
	Include string `json:"include"`
	Exclude string `json:"exclude"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if len(cfg.Embedding.Providers) == 0 {
		return fmt.Errorf("embedding.providers is required")
	}
	for i, p := range cfg.Embedding.Providers {
		if p.Provider == "" || p.Model == "" {
			return fmt.Errorf("embedding.providers[%d] provider/model are required", i)
		}
		if p.Name == "" {
			cfg.Embedding.Providers[i].Name = p.Provider + ":" + p.Model
		}
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60
	}
	if cfg.Embedding.Cache.MaxAgeDays == 0 {
		cfg.Embedding.Cache.MaxAgeDays = 30
	}
	r := &cfg.Embedding.Retry
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 10
	}
	if r.BaseDelayMs == 0 {
		r.BaseDelayMs = 3000
	}
	if r.MaxDelayMs == 0 {
		r.MaxDelayMs = 60000
	}
	if r.Jitter == 0 {
		r.Jitter = 0.2
	}
	in := &cfg.Ingest
	if in.MaxChunkChars == 0 {
		in.MaxChunkChars = 1800
	}
	if in.MinContentChars == 0 {
		in.MinContentChars = 20
	}
	if in.Concurrency == 0 {
		in.Concurrency = 10
	}
	if in.Tokenizer == "" {
		in.Tokenizer = "heuristic"
	}
	if in.CharsPerToken == 0 {
		in.CharsPerToken = 4
	}
	if in.TiktokenEncoding == "" {
		in.TiktokenEncoding = "cl100k_base"
	}
	if cfg.EmbeddingCacheCleanupCron == "" {
		cfg.EmbeddingCacheCleanupCron = "0 4 * * *"
	}
	seen := map[string]bool{}
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id: %s", src.ID)
		}
		seen[src.ID] = true
		if src.ProjectID == "" {
			src.ProjectID = src.ID
		}
		src.Type = strings.ToLower(strings.TrimSpace(src.Type))
		if src.Type == "" {
			src.Type = "local"
		}
		switch src.Type {
		case "local":
			if src.Dir == "" {
				return fmt.Errorf("sources[%d].dir is required for local source", i)
			}
		case "s3":
			if src.S3.Endpoint == "" || src.S3.Bucket == "" || src.S3.SecretID == "" || src.S3.SecretKey == "" {
				return fmt.Errorf("sources[%d].s3 endpoint/bucket/secret_id/secret_key are required for s3 source", i)
			}
			if src.S3.Region == "" {
				src.S3.Region = "us-east-1"
			}
		default:
			return fmt.Errorf("sources[%d].type must be local or s3", i)
		}
	}
	return nil
}

func (cfg *Config) Source(id string) (*SourceConfig, bool) {
	for i := range cfg.Sources {
		if cfg.Sources[i].ID == id {
			return &cfg.Sources[i], true
		}
	}
	return nil, false
}
