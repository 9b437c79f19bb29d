package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/classkit/internal/loader"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config file %q: expected .hcl, .yaml, .yml or .toml", path)
	}
}

// Load reads the configuration file at path.
func Load(path string) (loader.Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return loader.Config{}, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return loader.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(src, format, path)
}

// Parse decodes src in the given format. filename only labels diagnostics.
func Parse(src []byte, format Format, filename string) (loader.Config, error) {
	var (
		f   *File
		err error
	)
	switch format {
	case FormatHCL:
		f, err = parseHCL(src, filename)
	case FormatYAML:
		f, err = parseYAML(src)
	case FormatTOML:
		f, err = parseTOML(src)
	default:
		err = fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return loader.Config{}, fmt.Errorf("load config %s: %w", filename, err)
	}

	cfg, err := f.LoaderConfig()
	if err != nil {
		return loader.Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

func parseYAML(src []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, err
	}
	return f, nil
}

func parseTOML(src []byte) (*File, error) {
	f := &File{}
	meta, err := toml.Decode(string(src), f)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return f, nil
}

type hclRoot struct {
	Loader   *hclLoader   `hcl:"loader,block"`
	Manifest *hclManifest `hcl:"manifest,block"`
}

type hclLoader struct {
	Enabled          *bool             `hcl:"enabled,optional"`
	Paths            map[string]string `hcl:"paths,optional"`
	DisableCaching   *bool             `hcl:"disable_caching,optional"`
	PreserveScripts  *bool             `hcl:"preserve_scripts,optional"`
	ScriptCharset    *string           `hcl:"script_charset,optional"`
	ScriptChainDelay *string           `hcl:"script_chain_delay,optional"`
	Mode             *string           `hcl:"mode,optional"`
	Extension        *string           `hcl:"extension,optional"`
}

type hclManifest struct {
	Classes []*hclManifestClass `hcl:"class,block"`
}

type hclManifestClass struct {
	Name     string   `hcl:"name,label"`
	Requires []string `hcl:"requires,optional"`
}

func parseHCL(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	f := &File{}
	if l := root.Loader; l != nil {
		f.Loader = LoaderSection{
			Enabled:          l.Enabled,
			Paths:            l.Paths,
			DisableCaching:   deref(l.DisableCaching),
			PreserveScripts:  deref(l.PreserveScripts),
			ScriptCharset:    deref(l.ScriptCharset),
			ScriptChainDelay: deref(l.ScriptChainDelay),
			Mode:             deref(l.Mode),
			Extension:        deref(l.Extension),
		}
	}
	if root.Manifest != nil {
		f.Manifest = make(map[string]ManifestClass, len(root.Manifest.Classes))
		for _, c := range root.Manifest.Classes {
			if _, dup := f.Manifest[c.Name]; dup {
				return nil, fmt.Errorf("manifest: class %q declared twice", c.Name)
			}
			f.Manifest[c.Name] = ManifestClass{Requires: c.Requires}
		}
	}
	return f, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
