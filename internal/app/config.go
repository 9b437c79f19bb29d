package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vk/classkit/internal/classname"
)

// DefaultWatchDebounce is the quiet period after a file change before the
// classes are resolved again.
const DefaultWatchDebounce = 200 * time.Millisecond

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Entry      []string // class names or name expressions to require
	Root       string   // base directory of relative resource paths
	ConfigPath string   // optional loader config file (.hcl, .yaml, .toml)
	Preload    []string // files or directories defined before resolving

	Sync bool // fetch inline instead of through the event loop

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	Watch         bool
	WatchDebounce time.Duration
	WatchIgnore   []string // doublestar patterns, relative to Root
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Entry) == 0 {
		return nil, errors.New("at least one entry class is required")
	}
	for _, e := range cfg.Entry {
		check := classname.Validate
		if classname.IsPattern(e) {
			check = classname.ValidatePattern
		}
		if err := check(e); err != nil {
			return nil, fmt.Errorf("invalid entry: %w", err)
		}
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("healthcheck port cannot be negative, got %d", cfg.HealthcheckPort)
	}
	if cfg.WatchDebounce < 0 {
		return nil, fmt.Errorf("watch debounce cannot be negative, got %s", cfg.WatchDebounce)
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}
	for _, p := range cfg.WatchIgnore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch ignore pattern %q", p)
		}
	}
	return &cfg, nil
}
