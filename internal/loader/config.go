package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/vk/classkit/internal/classname"
)

// Mode selects how missing resources are fetched.
type Mode int

const (
	// Async fetches off the loop and delivers completions as later turns.
	Async Mode = iota
	// Sync fetches and evaluates inline, before Require returns.
	Sync
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == Sync {
		return "sync"
	}
	return "async"
}

// ParseMode converts "sync" or "async" (case-insensitive) to a Mode. An
// empty string is Async.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "async":
		return Async, nil
	case "sync":
		return Sync, nil
	default:
		return Async, fmt.Errorf("invalid loader mode %q: must be 'sync' or 'async'", s)
	}
}

// DefaultExtension is appended to resolved resource paths.
const DefaultExtension = ".hcl"

// Config controls resource resolution and fetching.
type Config struct {
	// Enabled turns fetching on. A disabled loader still queues callbacks;
	// they only fire for classes defined by other means.
	Enabled bool
	// Paths maps a dotted namespace prefix to a directory or base URL.
	Paths map[string]string
	// DisableCaching adds a _dc cache-busting parameter to remote URLs.
	DisableCaching bool
	// PreserveScripts keeps fetched sources, retrievable with Source.
	PreserveScripts bool
	// ScriptCharset is the charset resources are transcoded from.
	ScriptCharset string
	// ScriptChainDelay, when positive, is inserted between a fetch
	// completion and the queue refresh it triggers.
	ScriptChainDelay time.Duration
	// Mode is the default fetch mode.
	Mode Mode
	// Extension is appended to resolved paths.
	Extension string
	// Manifest pre-declares the dependencies of classes that have not been
	// fetched yet, for cycle detection before any fetch.
	Manifest map[string][]string
}

// DefaultConfig returns an enabled, asynchronous configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Paths:     map[string]string{},
		Mode:      Async,
		Extension: DefaultExtension,
		Manifest:  map[string][]string{},
	}
}

// Validate checks names and fills in defaults.
func (c *Config) Validate() error {
	if c.Paths == nil {
		c.Paths = map[string]string{}
	}
	if c.Manifest == nil {
		c.Manifest = map[string][]string{}
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("extension %q must start with a dot", c.Extension)
	}
	if c.ScriptChainDelay < 0 {
		return fmt.Errorf("script chain delay cannot be negative, got %s", c.ScriptChainDelay)
	}
	for prefix := range c.Paths {
		if err := classname.Validate(prefix); err != nil {
			return fmt.Errorf("paths: %w", err)
		}
	}
	for name, deps := range c.Manifest {
		if err := classname.Validate(name); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		for _, d := range deps {
			if classname.IsPattern(d) {
				return fmt.Errorf("manifest: class %q: dependency %q must be a plain name", name, d)
			}
			if err := classname.Validate(d); err != nil {
				return fmt.Errorf("manifest: class %q: %w", name, err)
			}
		}
	}
	return nil
}
