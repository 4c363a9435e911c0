package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Supported values for STORE_DRIVER.
const (
	DriverBadger  = "badger"
	DriverSurreal = "surreal"
	DriverMongo   = "mongo"
)

// Config holds all configuration for the application.
type Config struct {
	Env  string `env:"ENV,default=development"`
	Host string `env:"HOST"`
	Port int    `env:"PORT,default=3000"`

	JWTSecret string        `env:"JWT_SECRET,required=true"`
	JWTExpire time.Duration `env:"JWT_EXPIRE,default=168h"`

	StoreDriver  string        `env:"STORE_DRIVER,default=badger"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=10s"`
	BadgerPath   string        `env:"BADGER_PATH,default=./data"`

	DBUrl  string `env:"SURREAL_URL"`
	DBNs   string `env:"SURREAL_NS"`
	DBDb   string `env:"SURREAL_DB"`
	DBUser string `env:"SURREAL_USER"`
	DBPass string `env:"SURREAL_PASS"`

	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=authdb"`

	ProfileCacheTTL     time.Duration `env:"PROFILE_CACHE_TTL,default=30s"`
	HistoryDefaultLimit int           `env:"HISTORY_DEFAULT_LIMIT,default=50"`
	HistoryMaxLimit     int           `env:"HISTORY_MAX_LIMIT,default=100"`
	MaxMessageLength    int           `env:"MAX_MESSAGE_LENGTH,default=4000"`
	SessionSendBuffer   int           `env:"SESSION_SEND_BUFFER,default=256"`
	WSOriginPatterns    string        `env:"WS_ORIGIN_PATTERNS"`

	Argon2MemoryKB    int `env:"ARGON2_MEMORY_KB,default=65536"`
	Argon2Iterations  int `env:"ARGON2_ITERATIONS,default=3"`
	Argon2Parallelism int `env:"ARGON2_PARALLELISM,default=2"`
	HashConcurrency   int `env:"HASH_CONCURRENCY,default=4"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE,default=10"`

	LogFormat string `env:"LOG_FORMAT,default=text"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
}

// New loads configuration from the environment, reading a .env file first
// when one is present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnviron()
}

// FromEnviron builds a Config from the current process environment only.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.JWTExpire <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRE must be positive, got %s", c.JWTExpire))
	}

	switch c.StoreDriver {
	case DriverBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required for the badger driver"))
		}
	case DriverSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			errs = append(errs, errors.New("SURREAL_URL, SURREAL_NS and SURREAL_DB are required for the surreal driver"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit < c.HistoryDefaultLimit {
		errs = append(errs, fmt.Errorf("invalid history limits: default=%d max=%d", c.HistoryDefaultLimit, c.HistoryMaxLimit))
	}
	if c.SessionSendBuffer <= 0 {
		errs = append(errs, errors.New("SESSION_SEND_BUFFER must be positive"))
	}
	if c.HashConcurrency <= 0 {
		errs = append(errs, errors.New("HASH_CONCURRENCY must be positive"))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the app runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// OriginPatterns splits WS_ORIGIN_PATTERNS into its entries.
func (c *Config) OriginPatterns() []string {
	if c.WSOriginPatterns == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(c.WSOriginPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// The getters below let consumers depend on Provider instead of the struct.

func (c *Config) GetDBURL() string { return c.DBUrl }
func (c *Config) GetDBNs() string { return c.DBNs }
func (c *Config) GetDBDb() string { return c.DBDb }
func (c *Config) GetDBUser() string { return c.DBUser }
func (c *Config) GetDBPass() string { return c.DBPass }
func (c *Config) GetStoreTimeout() time.Duration { return c.StoreTimeout }

// Provider is the subset of configuration the database layer needs.
type Provider interface {
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetStoreTimeout() time.Duration
}
