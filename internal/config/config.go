// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	LedgerMemory = "memory"
	LedgerSQL    = "sql"
	LedgerRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Streams lists the score streams (one per game type) the leaderboard aggregates.
	Streams []string `koanf:"streams"`
	// DefaultStream receives the bonus when a request names no stream. Empty means Streams[0].
	DefaultStream string `koanf:"default_stream"`

	// EligibleTopN is how many leading players may receive a bonus.
	EligibleTopN int `koanf:"eligible_top_n"`
	// BonusAmount is the server-side bonus value.
	BonusAmount int64 `koanf:"bonus_amount"`
	// GrantTimeout bounds a whole grant request.
	GrantTimeout time.Duration `koanf:"grant_timeout"`
	// ReleaseTimeout bounds the synchronous compensating release.
	ReleaseTimeout time.Duration `koanf:"release_timeout"`

	// DefaultLeaderboardLimit applies when GET /leaderboard has no limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ScoreStore selects memory, sqlite or postgres.
	ScoreStore string `koanf:"score_store"`
	// Ledger selects memory, sql or redis. sql shares the score store database.
	Ledger string `koanf:"ledger"`
	// DatabaseDSN is a file path for sqlite or a connection string for postgres.
	DatabaseDSN string `koanf:"database_dsn"`
	// CreateStreamTables creates missing stream tables on startup.
	CreateStreamTables bool `koanf:"create_stream_tables"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// SeedFile optionally preloads score records from YAML.
	SeedFile string `koanf:"seed_file"`

	// Release workers retry compensations that failed synchronously.
	ReleaseWorkers     int           `koanf:"release_workers"`
	ReleaseQueueSize   int           `koanf:"release_queue_size"`
	ReleaseMaxAttempts int           `koanf:"release_max_attempts"`
	ReleaseBackoff     time.Duration `koanf:"release_backoff"`

	// BonusRatePerSecond and BonusRateBurst limit POST /leaderboard/bonus per client.
	// A zero rate disables limiting.
	BonusRatePerSecond float64 `koanf:"bonus_rate_per_second"`
	BonusRateBurst     int     `koanf:"bonus_rate_burst"`

	// TracingEndpoint is an OTLP/HTTP URL; empty disables tracing.
	TracingEndpoint string `koanf:"tracing_endpoint"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// MetricsRefreshInterval paces the periodic gauge updaters.
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		Streams:                 []string{"scores", "emoji_scores"},
		EligibleTopN:            3,
		BonusAmount:             10,
		GrantTimeout:            5 * time.Second,
		ReleaseTimeout:          2 * time.Second,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     100,
		ScoreStore:              StoreSQLite,
		Ledger:                  LedgerSQL,
		DatabaseDSN:             "podium.db",
		CreateStreamTables:      true,
		RedisAddr:               "localhost:6379",
		RedisKeyPrefix:          "podium:grant:",
		ReleaseWorkers:          2,
		ReleaseQueueSize:        1024,
		ReleaseMaxAttempts:      5,
		ReleaseBackoff:          200 * time.Millisecond,
		BonusRatePerSecond:      20,
		BonusRateBurst:          40,
		MetricsEnabled:          true,
		MetricsRefreshInterval:  10 * time.Second,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if len(c.Streams) == 0 {
		problems = append(problems, "at least one stream is required")
	}
	for _, s := range c.Streams {
		if strings.TrimSpace(s) == "" {
			problems = append(problems, "stream names must not be empty")
			break
		}
	}
	if c.DefaultStream != "" && !slices.Contains(c.Streams, c.DefaultStream) {
		problems = append(problems, fmt.Sprintf("default_stream %q is not in streams", c.DefaultStream))
	}
	if c.EligibleTopN < 1 {
		problems = append(problems, "eligible_top_n must be positive")
	}
	if c.BonusAmount < 1 {
		problems = append(problems, "bonus_amount must be positive")
	}
	if c.GrantTimeout <= 0 || c.ReleaseTimeout <= 0 {
		problems = append(problems, "grant_timeout and release_timeout must be positive")
	}
	if c.DefaultLeaderboardLimit < 1 || c.MaxLeaderboardLimit < c.DefaultLeaderboardLimit {
		problems = append(problems, "leaderboard limits must satisfy 1 <= default_leaderboard_limit <= max_leaderboard_limit")
	}

	switch c.ScoreStore {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		problems = append(problems, fmt.Sprintf("unknown score_store %q", c.ScoreStore))
	}
	switch c.Ledger {
	case LedgerMemory:
	case LedgerSQL:
		if c.ScoreStore == StoreMemory {
			problems = append(problems, "ledger sql requires score_store sqlite or postgres")
		}
	case LedgerRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "redis_addr is required for ledger redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown ledger %q", c.Ledger))
	}
	if c.ScoreStore != StoreMemory && c.DatabaseDSN == "" {
		problems = append(problems, "database_dsn is required for sql score stores")
	}
	if c.ReleaseQueueSize < 1 || c.ReleaseMaxAttempts < 1 {
		problems = append(problems, "release_queue_size and release_max_attempts must be positive")
	}
	if c.BonusRatePerSecond < 0 {
		problems = append(problems, "bonus_rate_per_second must not be negative")
	}
	if c.MetricsRefreshInterval <= 0 {
		problems = append(problems, "metrics_refresh_interval must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
