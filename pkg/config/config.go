package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Config struct {
	APIBaseURL       string   `json:"api_base_url"       validate:"required,url"`
	AnalyticsBaseURL string   `json:"analytics_base_url" validate:"required,url"`
	StoreURL         string   `json:"store_url"          validate:"required"`
	Environment      string   `json:"environment"        validate:"required"`
	PollInterval     Duration `json:"poll_interval"`
	CheckInterval    Duration `json:"check_interval"`
	MaxWaitTime      Duration `json:"max_wait_time"`
	MaxInstances     int      `json:"max_instances"      validate:"gte=1"`
	KeepRuns         int      `json:"keep_runs"          validate:"gte=1"`
	LogLevel         string   `json:"log_level"`
	TmpDir           string   `json:"tmp_dir"`
}

func Default() *Config {
	return &Config{
		APIBaseURL:       "https://microapi.forecasthealth.org",
		AnalyticsBaseURL: "https://analytics.forecasthealth.org",
		StoreURL:         "results.db",
		Environment:      "standard",
		PollInterval:     Duration{3 * time.Second},
		CheckInterval:    Duration{10 * time.Second},
		MaxWaitTime:      Duration{2 * time.Hour},
		MaxInstances:     100,
		KeepRuns:         10,
		LogLevel:         "info",
		TmpDir:           "tmp",
	}
}

// Load reads a JSON config file over the defaults. A missing path is not an
// error: the defaults already describe a working setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyLogLevel configures the global logrus level from the config,
// falling back to info on an unparseable level string.
func (c *Config) ApplyLogLevel() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
