package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	RateLimitMS int              `json:"rate_limit_ms"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Extract     ExtractConfig    `json:"extract"`
	Chunk       ChunkConfig      `json:"chunk"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Providers      []ProviderConfig `json:"providers"`
	GenerateModel  string           `json:"generate_model"`
	EmbedModel     string           `json:"embed_model"`
	EmbedDim       int              `json:"embed_dim"`
	EmbedBatchSize int              `json:"embed_batch_size"`
	EmbedDelayMS   int              `json:"embed_delay_ms"`
	EmbedMaxChars  int              `json:"embed_max_chars"`
	Timeout        int              `json:"timeout"`
	CacheSize      int              `json:"cache_size"`
	CacheTTLHours  int              `json:"cache_ttl_hours"`
}

// ExtractConfig holds the readability acceptance thresholds applied to
// extracted text. The defaults were tuned against sample documents and are
// deliberately overridable.
type ExtractConfig struct {
	MinTextChars   int     `json:"min_text_chars"`
	MinLetterRatio float64 `json:"min_letter_ratio"`
	MinVowelRatio  float64 `json:"min_vowel_ratio"`
	MaxDigitRatio  float64 `json:"max_digit_ratio"`
}

type ChunkConfig struct {
	MaxChars int `json:"max_chars"`
	MinChars int `json:"min_chars"`
}

type RetrievalConfig struct {
	Threshold     float64  `json:"threshold"`
	WideThreshold float64  `json:"wide_threshold"`
	TopK          int      `json:"top_k"`
	WideTopK      int      `json:"wide_top_k"`
	Keywords      []string `json:"keywords"`
}

type JobsConfig struct {
	CacheCleanupSpec   string `json:"cache_cleanup_spec"`
	CacheKeepDays      int    `json:"cache_keep_days"`
	StaleIngestSpec    string `json:"stale_ingest_spec"`
	StaleIngestMinutes int    `json:"stale_ingest_minutes"`
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
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("ai.providers is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AI.EmbedDim == 0 {
		cfg.AI.EmbedDim = 768
	}
	if cfg.AI.EmbedBatchSize == 0 {
		cfg.AI.EmbedBatchSize = 5
	}
	if cfg.AI.EmbedDelayMS == 0 {
		cfg.AI.EmbedDelayMS = 200
	}
	if cfg.AI.EmbedMaxChars == 0 {
		cfg.AI.EmbedMaxChars = 2000
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 2
	}
	if cfg.Extract.MinTextChars == 0 {
		cfg.Extract.MinTextChars = 60
	}
	if cfg.Extract.MinLetterRatio == 0 {
		cfg.Extract.MinLetterRatio = 0.45
	}
	if cfg.Extract.MinVowelRatio == 0 {
		cfg.Extract.MinVowelRatio = 0.18
	}
	if cfg.Extract.MaxDigitRatio == 0 {
		cfg.Extract.MaxDigitRatio = 0.45
	}
	if cfg.Chunk.MaxChars == 0 {
		cfg.Chunk.MaxChars = 1800
	}
	if cfg.Chunk.MinChars == 0 {
		cfg.Chunk.MinChars = 60
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = 0.3
	}
	if cfg.Retrieval.WideThreshold == 0 {
		cfg.Retrieval.WideThreshold = 0.1
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.WideTopK == 0 {
		cfg.Retrieval.WideTopK = 8
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "30 3 * * *"
	}
	if cfg.Jobs.CacheKeepDays == 0 {
		cfg.Jobs.CacheKeepDays = 30
	}
	if cfg.Jobs.StaleIngestSpec == "" {
		cfg.Jobs.StaleIngestSpec = "*/30 * * * *"
	}
	if cfg.Jobs.StaleIngestMinutes == 0 {
		cfg.Jobs.StaleIngestMinutes = 60
	}
}
