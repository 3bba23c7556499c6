package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database        DatabaseConfig   `json:"database"`
	JWTSecret       string           `json:"jwt_secret"`
	Port            int              `json:"port"`
	AdminAPIKeyHash string           `json:"admin_api_key_hash"`
	LogConfig       logger.LogConfig `json:"log_config"`
	FileStore       FileStoreConfig  `json:"file_store"`
	MaxUploadBytes  int64            `json:"max_upload_bytes"`
	CORSAllowlist   []string         `json:"cors_allowlist"`
	RateLimitMillis int              `json:"rate_limit_ms"`
	Usage           UsageConfig      `json:"usage"`
	Redis           RedisConfig      `json:"redis"`
	Retrieval       RetrievalConfig  `json:"retrieval"`
	Embed           EmbedConfig      `json:"embed"`
	Schedule        ScheduleConfig   `json:"schedule"`
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

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type UsageConfig struct {
	// Timezone fixes the calendar used for daily and monthly buckets.
	Timezone string `json:"timezone"`
	// MonthlySource is "rollup" or "daily".
	MonthlySource string `json:"monthly_source"`
	// Store is "postgres" or "redis".
	Store              string `json:"store"`
	OverrideTTLHours   int    `json:"override_ttl_hours"`
	RecordTimeoutMilli int    `json:"record_timeout_ms"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type RetrievalConfig struct {
	// Index is "pgvector", "qdrant" or "memory".
	Index              string       `json:"index"`
	YearTolerance      *int         `json:"year_tolerance"`
	DefaultLimit       int          `json:"default_limit"`
	MaxLimit           int          `json:"max_limit"`
	ChunkTokens        int          `json:"chunk_tokens"`
	ChunkOverlapTokens int          `json:"chunk_overlap_tokens"`
	Qdrant             QdrantConfig `json:"qdrant"`
}

const defaultYearTolerance = 3

// Tolerance is the vehicle year window in years; 0 matches the exact year.
func (c RetrievalConfig) Tolerance() int {
	if c.YearTolerance == nil {
		return defaultYearTolerance
	}
	return *c.YearTolerance
}

type QdrantConfig struct {
	URL       string `json:"url"`
	APIKey    string `json:"api_key"`
	TimeoutMs int    `json:"timeout_ms"`
}

type EmbedProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type EmbedConfig struct {
	Providers       []EmbedProviderConfig `json:"providers"`
	LRUSize         int                   `json:"lru_size"`
	LRUTTLSeconds   int                   `json:"lru_ttl_seconds"`
	DBCache         bool                  `json:"db_cache"`
	CacheMaxAgeDays int                   `json:"cache_max_age_days"`
	TimeoutSeconds  int                   `json:"timeout_seconds"`
}

type ScheduleConfig struct {
	UsageRollup           string `json:"usage_rollup"`
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
}

const (
	MonthlySourceRollup = "rollup"
	MonthlySourceDaily  = "daily"

	UsageStorePostgres = "postgres"
	UsageStoreRedis    = "redis"

	IndexPGVector = "pgvector"
	IndexQdrant   = "qdrant"
	IndexMemory   = "memory"
)

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
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 * 1024 * 1024
	}
	if cfg.RateLimitMillis < 0 {
		cfg.RateLimitMillis = 0
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	cfg.FileStore.Type = strings.ToLower(cfg.FileStore.Type)
	if cfg.FileStore.Type != "local" && cfg.FileStore.Type != "s3" {
		return fmt.Errorf("file_store.type must be local or s3")
	}

	if cfg.Usage.Timezone == "" {
		cfg.Usage.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Usage.Timezone); err != nil {
		return fmt.Errorf("usage.timezone is invalid: %w", err)
	}
	switch cfg.Usage.MonthlySource {
	case "":
		cfg.Usage.MonthlySource = MonthlySourceRollup
	case MonthlySourceRollup, MonthlySourceDaily:
	default:
		return fmt.Errorf("usage.monthly_source must be rollup or daily")
	}
	switch cfg.Usage.Store {
	case "":
		cfg.Usage.Store = UsageStorePostgres
	case UsageStorePostgres:
	case UsageStoreRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis usage store")
		}
	default:
		return fmt.Errorf("usage.store must be postgres or redis")
	}
	if cfg.Usage.OverrideTTLHours <= 0 {
		cfg.Usage.OverrideTTLHours = 24
	}
	if cfg.Usage.RecordTimeoutMilli <= 0 {
		cfg.Usage.RecordTimeoutMilli = 2000
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "greasemonkey"
	}

	switch cfg.Retrieval.Index {
	case "":
		cfg.Retrieval.Index = IndexPGVector
	case IndexPGVector, IndexMemory:
	case IndexQdrant:
		if cfg.Retrieval.Qdrant.URL == "" {
			return fmt.Errorf("retrieval.qdrant.url is required for qdrant index")
		}
	default:
		return fmt.Errorf("retrieval.index must be pgvector, qdrant or memory")
	}
	if cfg.Retrieval.YearTolerance == nil {
		tolerance := defaultYearTolerance
		cfg.Retrieval.YearTolerance = &tolerance
	}
	if *cfg.Retrieval.YearTolerance < 0 {
		return fmt.Errorf("retrieval.year_tolerance must not be negative")
	}
	if cfg.Retrieval.DefaultLimit <= 0 {
		cfg.Retrieval.DefaultLimit = 5
	}
	if cfg.Retrieval.MaxLimit <= 0 {
		cfg.Retrieval.MaxLimit = 50
	}
	if cfg.Retrieval.ChunkTokens <= 0 {
		cfg.Retrieval.ChunkTokens = 400
	}
	if cfg.Retrieval.ChunkOverlapTokens <= 0 || cfg.Retrieval.ChunkOverlapTokens >= cfg.Retrieval.ChunkTokens {
		cfg.Retrieval.ChunkOverlapTokens = cfg.Retrieval.ChunkTokens / 5
	}
	if cfg.Retrieval.Qdrant.TimeoutMs <= 0 {
		cfg.Retrieval.Qdrant.TimeoutMs = 5000
	}

	for i, p := range cfg.Embed.Providers {
		if p.Provider == "" || p.Model == "" {
			return fmt.Errorf("embed.providers[%d] provider/model are required", i)
		}
		if p.Name == "" {
			cfg.Embed.Providers[i].Name = p.Provider + ":" + p.Model
		}
	}
	if cfg.Embed.LRUSize == 0 {
		cfg.Embed.LRUSize = 1024
	}
	if cfg.Embed.LRUTTLSeconds == 0 {
		cfg.Embed.LRUTTLSeconds = 600
	}
	if cfg.Embed.CacheMaxAgeDays <= 0 {
		cfg.Embed.CacheMaxAgeDays = 30
	}
	if cfg.Embed.TimeoutSeconds <= 0 {
		cfg.Embed.TimeoutSeconds = 15
	}

	if cfg.Schedule.UsageRollup == "" {
		cfg.Schedule.UsageRollup = "15 0 * * *"
	}
	if cfg.Schedule.EmbeddingCacheCleanup == "" {
		cfg.Schedule.EmbeddingCacheCleanup = "30 3 * * *"
	}
	return nil
}

// Location returns the usage calendar timezone. Load has already validated it.
func (u UsageConfig) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) RateLimitGap() time.Duration {
	return time.Duration(cfg.RateLimitMillis) * time.Millisecond
}

func (q QdrantConfig) Timeout() time.Duration {
	return time.Duration(q.TimeoutMs) * time.Millisecond
}
