package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pitchside/contest/internal/domain"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"contest"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"contest"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"contest"`

	// Connection pool
	PGPoolMaxConns    int           `env:"PG_POOL_MAX_CONNS" envDefault:"20"`
	PGPoolMinConns    int           `env:"PG_POOL_MIN_CONNS" envDefault:"2"`
	PGConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTUserExpiry  time.Duration `env:"JWT_USER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string `env:"KAFKA_TOPIC_PREFIX" envDefault:"contest"`

	// Scoring
	ExactScorePoints int `env:"SCORING_EXACT_POINTS" envDefault:"3"`
	WinnerOnlyPoints int `env:"SCORING_WINNER_POINTS" envDefault:"1"`

	// Betting window
	WindowCloseMinutesBefore int           `env:"WINDOW_CLOSE_MINUTES_BEFORE" envDefault:"0"`
	GateSeedHorizon          time.Duration `env:"GATE_SEED_HORIZON" envDefault:"168h"`
	DeadlineSweepSpec        string        `env:"DEADLINE_SWEEP_SPEC" envDefault:"@every 1m"`

	// Leaderboard
	TieBreak              string        `env:"LEADERBOARD_TIE_BREAK" envDefault:"fewerPredictionsHigher"`
	LeaderboardCacheTTL   time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`
	LeaderboardAroundSpan int           `env:"LEADERBOARD_AROUND_SPAN" envDefault:"5"`

	// Outbox consumers
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	RetryBase          time.Duration `env:"RETRY_BASE" envDefault:"1s"`
	RetryCap           time.Duration `env:"RETRY_CAP" envDefault:"5m"`
	RetryBudget        time.Duration `env:"RETRY_BUDGET" envDefault:"24h"`

	// Prediction write rate limit
	PredictionRateLimit  int           `env:"PREDICTION_RATE_LIMIT" envDefault:"30"`
	PredictionRateWindow time.Duration `env:"PREDICTION_RATE_WINDOW" envDefault:"1m"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or inconsistent configuration.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	if c.PGPoolMinConns > c.PGPoolMaxConns {
		return fmt.Errorf("PG_POOL_MIN_CONNS (%d) exceeds PG_POOL_MAX_CONNS (%d)", c.PGPoolMinConns, c.PGPoolMaxConns)
	}
	if c.ExactScorePoints < c.WinnerOnlyPoints {
		return fmt.Errorf("SCORING_EXACT_POINTS (%d) must be at least SCORING_WINNER_POINTS (%d)", c.ExactScorePoints, c.WinnerOnlyPoints)
	}
	if _, err := c.TieBreakRule(); err != nil {
		return err
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// TieBreakRule maps the configured tie-break name to its domain value.
func (c *Config) TieBreakRule() (domain.TieBreak, error) {
	tb := domain.TieBreak(c.TieBreak)
	if !domain.ValidTieBreaks[tb] {
		return "", fmt.Errorf("unknown LEADERBOARD_TIE_BREAK: %q", c.TieBreak)
	}
	return tb, nil
}
