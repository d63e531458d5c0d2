// Package config loads the eams run configuration.
//
// Precedence, lowest first: Default, the config file (format chosen by
// extension), EAMS_* environment variables, then command flags applied by the
// caller.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EAMS_PORTAL_BASE_URL.
const EnvPrefix = "EAMS"

// Duration is a time.Duration written as "30s" in every config format.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Job       string    `json:"job" yaml:"job" toml:"job" envconfig:"JOB"`
	Portal    Portal    `json:"portal" yaml:"portal" toml:"portal" envconfig:"PORTAL"`
	Requester Requester `json:"requester" yaml:"requester" toml:"requester" envconfig:"REQUESTER"`
	Extract   Extract   `json:"extract" yaml:"extract" toml:"extract" envconfig:"EXTRACT"`
	Storage   Storage   `json:"storage" yaml:"storage" toml:"storage" envconfig:"STORAGE"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics" toml:"metrics" envconfig:"METRICS"`
	Log       Log       `json:"log" yaml:"log" toml:"log" envconfig:"LOG"`
}

// Portal configures the HTTP session.
type Portal struct {
	BaseURL   string   `json:"base_url" yaml:"base_url" toml:"base_url" envconfig:"BASE_URL"`
	Timeout   Duration `json:"timeout" yaml:"timeout" toml:"timeout" envconfig:"TIMEOUT"`
	Retries   int      `json:"retries" yaml:"retries" toml:"retries" envconfig:"RETRIES"`
	RateLimit float64  `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit" envconfig:"RATE_LIMIT"`
	UserAgent string   `json:"user_agent" yaml:"user_agent" toml:"user_agent" envconfig:"USER_AGENT"`
	CacheDir  string   `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir" envconfig:"CACHE_DIR"`
	CacheTTL  Duration `json:"cache_ttl" yaml:"cache_ttl" toml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// Requester is sent on the information capture form. SessionID reuses an
// existing portal session.
type Requester struct {
	FirstName string `json:"first_name" yaml:"first_name" toml:"first_name" envconfig:"FIRST_NAME"`
	LastName  string `json:"last_name" yaml:"last_name" toml:"last_name" envconfig:"LAST_NAME"`
	UAN       string `json:"uan" yaml:"uan" toml:"uan" envconfig:"UAN"`
	Email     string `json:"email" yaml:"email" toml:"email" envconfig:"EMAIL"`
	Reason    string `json:"reason" yaml:"reason" toml:"reason" envconfig:"REASON"`
	SessionID string `json:"session_id" yaml:"session_id" toml:"session_id" envconfig:"SESSION_ID"`
}

// Extract selects the expansion. An empty Expand uses the per-search default.
type Extract struct {
	Expand      string `json:"expand" yaml:"expand" toml:"expand" envconfig:"EXPAND"`
	Events      bool   `json:"events" yaml:"events" toml:"events" envconfig:"EVENTS"`
	Concurrency int    `json:"concurrency" yaml:"concurrency" toml:"concurrency" envconfig:"CONCURRENCY"`
}

// Storage persists results when Kind is set.
type Storage struct {
	Kind  string `json:"kind" yaml:"kind" toml:"kind" envconfig:"KIND"`
	DSN   string `json:"dsn" yaml:"dsn" toml:"dsn" envconfig:"DSN"`
	Table string `json:"table" yaml:"table" toml:"table" envconfig:"TABLE"`
}

// Metrics selects the metrics backend: none, pushgateway or datadog.
type Metrics struct {
	Backend        string   `json:"backend" yaml:"backend" toml:"backend" envconfig:"BACKEND"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url" toml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL"`
	Tags           []string `json:"tags" yaml:"tags" toml:"tags" envconfig:"TAGS"`
}

type Log struct {
	Level       string `json:"level" yaml:"level" toml:"level" envconfig:"LEVEL"`
	Development bool   `json:"development" yaml:"development" toml:"development" envconfig:"DEVELOPMENT"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Job: "eams",
		Portal: Portal{
			BaseURL:  "https://eams.dwc.ca.gov/WebEnhancement/",
			Timeout:  Duration(30 * time.Second),
			Retries:  2,
			CacheTTL: Duration(24 * time.Hour),
		},
		Extract: Extract{Concurrency: 1},
		Storage: Storage{Table: "eams_results"},
		Metrics: Metrics{Backend: "none"},
		Log:     Log{Level: "info"},
	}
}

// Format is a config file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q (want .json, .yaml, .yml or .toml)", ext)
	}
}

// Parse decodes data in format on top of cfg. Unknown keys are errors.
func Parse(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// ApplyEnv overrides cfg from EAMS_* variables. Unset variables leave the
// current value alone.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	return nil
}

// Load reads path (if non-empty) over Default and applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		format, err := FormatFromPath(path)
		if err != nil {
			return cfg, err
		}
		if err := Parse(data, format, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
