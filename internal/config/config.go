// Package config loads the service settings: defaults, an optional TOML
// file, then environment variables (populated from .env in main.go).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BartekS5/cinesync/pkg/retry"
	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

// Config holds all configuration for the application.
type Config struct {
	SQLDriver       string `toml:"sql_driver"`
	SQLConnString   string `toml:"sql_connection_string"`
	SQLSchema       string `toml:"sql_schema"`
	MongoConnString string `toml:"mongo_connection_string"`
	MongoDatabase   string `toml:"mongo_database"`

	Collections Collections `toml:"collections"`

	BatchSize    int      `toml:"batch_size"`
	IdleInterval Duration `toml:"idle_interval"`
	WriteTimeout Duration `toml:"write_timeout"`
	SchemaDir    string   `toml:"schema_dir"`

	State StateConfig `toml:"state"`
	Log   LogConfig   `toml:"log"`

	SourceRetry RetryConfig `toml:"source_retry"`
	SinkRetry   RetryConfig `toml:"sink_retry"`
}

type Collections struct {
	Films  string `toml:"films"`
	Genres string `toml:"genres"`
	People string `toml:"people"`
}

type StateConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	Base        Duration `toml:"base"`
	Factor      float64  `toml:"factor"`
	Cap         Duration `toml:"cap"`
	Jitter      Duration `toml:"jitter"`
}

// Policy converts the settings into a retry.Policy without a classifier;
// call sites add their own.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		Base:        r.Base.Duration,
		Factor:      r.Factor,
		Cap:         r.Cap.Duration,
		Jitter:      r.Jitter.Duration,
	}
}

// Duration lets durations be written as "5s" in TOML and env vars.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func defaultRetry() RetryConfig {
	p := retry.Default()
	return RetryConfig{
		MaxAttempts: p.MaxAttempts,
		Base:        Duration{p.Base},
		Factor:      p.Factor,
		Cap:         Duration{p.Cap},
		Jitter:      Duration{p.Jitter},
	}
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		SQLDriver:     "postgres",
		SQLSchema:     "content",
		MongoDatabase: "movies",
		Collections: Collections{
			Films:  "movies",
			Genres: "genres",
			People: "persons",
		},
		BatchSize:    200,
		IdleInterval: Duration{5 * time.Second},
		WriteTimeout: Duration{30 * time.Second},
		State: StateConfig{
			Backend: "file",
			Path:    ".state.json",
		},
		Log: LogConfig{
			Level: "info",
		},
		SourceRetry: defaultRetry(),
		SinkRetry:   defaultRetry(),
	}
}

// LoadConfig builds the configuration. path may be empty, in which case
// only defaults and environment variables are used.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStateConfig is LoadConfig for commands that only touch the
// watermark store and need no database connections.
func LoadStateConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateState(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"SQL_DRIVER":              &cfg.SQLDriver,
		"SQL_CONNECTION_STRING":   &cfg.SQLConnString,
		"SQL_SCHEMA":              &cfg.SQLSchema,
		"MONGO_CONNECTION_STRING": &cfg.MongoConnString,
		"MONGO_DATABASE":          &cfg.MongoDatabase,
		"MONGO_FILMS_COLLECTION":  &cfg.Collections.Films,
		"MONGO_GENRES_COLLECTION": &cfg.Collections.Genres,
		"MONGO_PEOPLE_COLLECTION": &cfg.Collections.People,
		"SCHEMA_DIR":              &cfg.SchemaDir,
		"STATE_BACKEND":           &cfg.State.Backend,
		"STATE_FILE":              &cfg.State.Path,
		"LOG_LEVEL":               &cfg.Log.Level,
		"LOG_FILE":                &cfg.Log.File,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BATCH_SIZE %q: %w", v, err)
		}
		cfg.BatchSize = n
	}
	for name, dst := range map[string]*Duration{
		"IDLE_INTERVAL": &cfg.IdleInterval,
		"WRITE_TIMEOUT": &cfg.WriteTimeout,
	} {
		if v := os.Getenv(name); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
		}
	}
	return nil
}

var knownDrivers = []string{"postgres", "sqlserver", "sqlite"}

func (c *Config) Validate() error {
	var errs []error
	if c.SQLConnString == "" {
		errs = append(errs, errors.New("SQL_CONNECTION_STRING environment variable not set"))
	}
	if c.MongoConnString == "" {
		errs = append(errs, errors.New("MONGO_CONNECTION_STRING environment variable not set"))
	}
	if !lo.Contains(knownDrivers, c.SQLDriver) {
		errs = append(errs, fmt.Errorf("unsupported SQL driver %q (expected %s)", c.SQLDriver, strings.Join(knownDrivers, ", ")))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.IdleInterval.Duration < 0 {
		errs = append(errs, fmt.Errorf("idle interval must not be negative"))
	}
	if err := c.validateState(); err != nil {
		errs = append(errs, err)
	}
	for name, r := range map[string]RetryConfig{"source_retry": c.SourceRetry, "sink_retry": c.SinkRetry} {
		if r.MaxAttempts < 1 || r.Factor < 1 {
			errs = append(errs, fmt.Errorf("%s: max_attempts must be >= 1 and factor >= 1", name))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateState() error {
	var errs []error
	if c.State.Backend != "file" && c.State.Backend != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported state backend %q", c.State.Backend))
	}
	if c.State.Path == "" {
		errs = append(errs, errors.New("state path must be set"))
	}
	return errors.Join(errs...)
}
