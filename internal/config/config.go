package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk/classkit/internal/loader"
)

// File is the format-agnostic content of a configuration file.
type File struct {
	Loader   LoaderSection            `yaml:"loader" toml:"loader"`
	Manifest map[string]ManifestClass `yaml:"manifest" toml:"manifest"`
}

// LoaderSection mirrors loader.Config with file-friendly types. Unset
// fields keep their defaults.
type LoaderSection struct {
	Enabled          *bool             `yaml:"enabled" toml:"enabled"`
	Paths            map[string]string `yaml:"paths" toml:"paths"`
	DisableCaching   bool              `yaml:"disable_caching" toml:"disable_caching"`
	PreserveScripts  bool              `yaml:"preserve_scripts" toml:"preserve_scripts"`
	ScriptCharset    string            `yaml:"script_charset" toml:"script_charset"`
	ScriptChainDelay string            `yaml:"script_chain_delay" toml:"script_chain_delay"`
	Mode             string            `yaml:"mode" toml:"mode"`
	Extension        string            `yaml:"extension" toml:"extension"`
}

// ManifestClass pre-declares the dependencies of one class.
type ManifestClass struct {
	Requires []string `yaml:"requires" toml:"requires"`
}

// LoaderConfig converts the file into a validated loader configuration.
func (f *File) LoaderConfig() (loader.Config, error) {
	cfg := loader.DefaultConfig()
	s := f.Loader

	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	for prefix, dir := range s.Paths {
		cfg.Paths[prefix] = dir
	}
	cfg.DisableCaching = s.DisableCaching
	cfg.PreserveScripts = s.PreserveScripts
	cfg.ScriptCharset = strings.TrimSpace(s.ScriptCharset)

	if d := strings.TrimSpace(s.ScriptChainDelay); d != "" {
		delay, err := time.ParseDuration(d)
		if err != nil {
			return loader.Config{}, fmt.Errorf("parse script_chain_delay: %w", err)
		}
		cfg.ScriptChainDelay = delay
	}

	mode, err := loader.ParseMode(strings.TrimSpace(s.Mode))
	if err != nil {
		return loader.Config{}, err
	}
	cfg.Mode = mode

	if ext := strings.TrimSpace(s.Extension); ext != "" {
		cfg.Extension = ext
	}

	names := make([]string, 0, len(f.Manifest))
	for name := range f.Manifest {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg.Manifest[name] = append([]string(nil), f.Manifest[name].Requires...)
	}

	if err := cfg.Validate(); err != nil {
		return loader.Config{}, err
	}
	return cfg, nil
}
