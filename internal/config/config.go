package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
type Config struct {
	// Server
	Host            string        `envconfig:"HOST" default:"[::]:8081"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"40s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	StaticDir       string        `envconfig:"STATIC_DIR" default:"./web"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	// VAPID. One of the two key sources is required.
	VAPIDPrivateKey     string            `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDPrivateKeyFile string            `envconfig:"VAPID_PRIVATE_KEY_FILE"`
	VAPIDSubject        string            `envconfig:"VAPID_SUBJECT" default:"mailto:admin@example.com"`
	VAPIDClaims         map[string]string `envconfig:"VAPID_CLAIMS"`
	VAPIDExpiration     time.Duration     `envconfig:"VAPID_EXPIRATION" default:"12h"`

	// Dispatch
	QueueCapacity      int           `envconfig:"QUEUE_CAPACITY" default:"100"`
	DispatchWorkers    int           `envconfig:"DISPATCH_WORKERS" default:"1"`
	DefaultTTL         int           `envconfig:"DEFAULT_TTL" default:"2419200"`
	PushTimeout        time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
	WaitTimeout        time.Duration `envconfig:"WAIT_TIMEOUT" default:"30s"`
	RateLimitPerOrigin int           `envconfig:"RATE_LIMIT_PER_ORIGIN" default:"0"`

	// Receipts. Without DATABASE_URL they are kept in memory.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.VAPIDPrivateKey == "" && c.VAPIDPrivateKeyFile == "" {
		return errors.New("VAPID_PRIVATE_KEY or VAPID_PRIVATE_KEY_FILE is required")
	}
	if c.QueueCapacity < 1 {
		return errors.Newf("QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity)
	}
	if c.DispatchWorkers < 1 {
		return errors.Newf("DISPATCH_WORKERS must be positive, got %d", c.DispatchWorkers)
	}
	if c.DefaultTTL < 0 {
		return errors.Newf("DEFAULT_TTL must not be negative, got %d", c.DefaultTTL)
	}
	if c.PushTimeout <= 0 {
		return errors.Newf("PUSH_TIMEOUT must be positive, got %s", c.PushTimeout)
	}
	if c.RateLimitPerOrigin < 0 {
		return errors.Newf("RATE_LIMIT_PER_ORIGIN must not be negative, got %d", c.RateLimitPerOrigin)
	}
	return nil
}

// Claims returns VAPID_CLAIMS in the shape the signer expects. Values that
// are JSON numbers or booleans keep that type; everything else is a string.
func (c *Config) Claims() map[string]any {
	claims := make(map[string]any, len(c.VAPIDClaims))
	for k, v := range c.VAPIDClaims {
		claims[k] = claimValue(v)
	}
	return claims
}

func claimValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v := v.(type) {
	case json.Number, bool:
		return v
	}
	return raw
}
