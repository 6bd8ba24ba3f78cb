package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds everything the dashboard needs for one deployment:
// the warehouse connection, the target event, and the cohort policy.
type Config struct {
	DatabaseURL string
	ListenAddr  string

	// EventID is the base event the dashboard is rendered for.
	EventID int64

	// PriceThreshold is the relative price band used for cohort
	// selection, in [0,1]. 0.1 means +/-10% of the base ticket price.
	PriceThreshold float64

	// SimilarEvents optionally pins the cohort to an explicit id list,
	// bypassing similarity selection entirely.
	SimilarEvents []int64

	GeocoderBaseURL string
}

const (
	DefaultPriceThreshold  = 0.1
	DefaultListenAddr      = ":3000"
	DefaultGeocoderBaseURL = "https://nominatim.openstreetmap.org"
)

// cohortFile is the on-disk shape of an explicit cohort override.
type cohortFile struct {
	Events []int64 `yaml:"events"`
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SMARTEVENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_url", "")
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("event_id", 0)
	v.SetDefault("price_threshold", DefaultPriceThreshold)
	v.SetDefault("similar_events", "")
	v.SetDefault("cohort_file", "")
	v.SetDefault("geocoder_base_url", DefaultGeocoderBaseURL)

	v.SetConfigName("smart-events")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/smart-events")

	return v
}

// Load reads configuration from the environment and, when present, the
// smart-events.yaml config file. Environment variables win.
func Load() (*Config, error) {
	v := newBaseViper()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from env
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:     v.GetString("database_url"),
		ListenAddr:      v.GetString("listen_addr"),
		EventID:         v.GetInt64("event_id"),
		PriceThreshold:  v.GetFloat64("price_threshold"),
		GeocoderBaseURL: v.GetString("geocoder_base_url"),
	}

	// DATABASE_URL without the prefix is honored for parity with the
	// usual Postgres tooling
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	explicit, err := parseIDList(v.GetString("similar_events"))
	if err != nil {
		return nil, fmt.Errorf("invalid similar_events: %w", err)
	}
	cfg.SimilarEvents = explicit

	if len(cfg.SimilarEvents) == 0 {
		if path := v.GetString("cohort_file"); path != "" {
			ids, err := readCohortFile(path)
			if err != nil {
				return nil, err
			}
			cfg.SimilarEvents = ids
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the value ranges the rest of the system relies on.
func (c *Config) Validate() error {
	if c.PriceThreshold < 0 || c.PriceThreshold > 1 {
		return fmt.Errorf("price_threshold must be between 0 and 1, got %g", c.PriceThreshold)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	return nil
}

// HasExplicitCohort reports whether cohort selection should be bypassed.
func (c *Config) HasExplicitCohort() bool {
	return len(c.SimilarEvents) > 0
}

// parseIDList parses a comma-separated id list ("101,102,103").
func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad event id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readCohortFile(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cohort file: %w", err)
	}

	var cf cohortFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse cohort file %s: %w", path, err)
	}

	if len(cf.Events) == 0 {
		return nil, fmt.Errorf("cohort file %s lists no events", path)
	}
	return cf.Events, nil
}
