// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type Config struct {
	// --- HTTP ---
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	EventsSecret    string        `envconfig:"EVENTS_SECRET"`
	RateLimitRPS    float64       `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"100"`

	// --- Storage ---
	StoreBackend string `envconfig:"STORE_BACKEND" default:"firestore"`

	FirebaseProjectID          string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseStorageBucket      string `envconfig:"FIREBASE_STORAGE_BUCKET"`
	FirebaseServiceAccountJSON string `envconfig:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	FirebaseCredentialsFile    string `envconfig:"FIREBASE_CREDENTIALS_FILE"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Clerk ---
	ClerkWebhookSecret string `envconfig:"CLERK_WEBHOOK_SECRET"`

	// --- Kafka ---
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"gymbuddy.events"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"gymbuddy-functions"`

	// --- Record claim sweep ---
	SweepSchedule    string        `envconfig:"SWEEP_SCHEDULE" default:"@hourly"`
	SweepPageSize    int           `envconfig:"SWEEP_PAGE_SIZE" default:"200"`
	SweepConcurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"8"`
	SweepTimeout     time.Duration `envconfig:"SWEEP_TIMEOUT" default:"10m"`

	// --- Logging ---
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogFile   string `envconfig:"LOG_FILE"`

	// --- Metrics ---
	MetricsUser string `envconfig:"METRICS_USER"`
	MetricsPass string `envconfig:"METRICS_PASS"`
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.SweepPageSize <= 0 {
		return fmt.Errorf("SWEEP_PAGE_SIZE must be > 0")
	}
	if c.SweepConcurrency <= 0 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be > 0")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// UsesFirebase reports whether the Firebase app has to be initialised.
func (c *Config) UsesFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.FirebaseStorageBucket != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
