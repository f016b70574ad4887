package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks the environment variables the loader reads.
	EnvPrefix = "SIGMUX_"
	// Delimiter separates nested keys, as in "server.port".
	Delimiter = "."
)

// Loader merges configuration sources onto one koanf tree. Later
// sources win per leaf key: defaults, then the config file, then
// environment variables, then explicit overrides.
type Loader struct {
	k *koanf.Koanf
}

func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load merges every source, unmarshals the tree and validates the
// result. An empty configPath probes the standard file locations.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	if err := l.k.Load(confmap.Provider(flatten(DefaultConfig()), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := l.mergeFile(configPath); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.mergeFirstFound()
	}

	if err := l.mergeEnv(); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile merges one config file, choosing the parser from the
// file extension.
func (l *Loader) mergeFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("config file %s: unrecognized extension", path)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return l.k.Load(file.Provider(path), parser)
}

// mergeFirstFound merges the first config file present in the
// standard locations. Absence is not an error.
func (l *Loader) mergeFirstFound() {
	for _, path := range []string{
		"sigmux.yaml",
		"sigmux.json",
		"config.yaml",
		"config.yml",
		"configs/config.yaml",
		"/etc/sigmux/config.yaml",
	} {
		if _, err := os.Stat(path); err == nil {
			_ = l.mergeFile(path)
			return
		}
	}
}

// mergeEnv merges SIGMUX_* variables, mapping SIGMUX_SERVER_PORT to
// server.port. Leaf keys that themselves contain underscores, such as
// watch.log_every, are not addressable this way.
func (l *Loader) mergeEnv() error {
	return l.k.Load(env.Provider(EnvPrefix, Delimiter, func(name string) string {
		name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		return strings.ReplaceAll(name, "_", Delimiter)
	}), nil)
}

// Get returns the merged value at a delimited key.
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// Set writes a value at a delimited key, shadowing earlier sources.
func (l *Loader) Set(key string, value interface{}) error {
	return l.k.Set(key, value)
}

// flatten walks a config struct and returns its leaves keyed by
// delimited mapstructure paths. Feeding the flattened form to confmap
// lets later sources override single leaves without wiping whole
// sections.
func flatten(cfg *Config) map[string]interface{} {
	leaves := make(map[string]interface{})
	flattenInto(leaves, reflect.ValueOf(cfg), "")
	return leaves
}

func flattenInto(leaves map[string]interface{}, val reflect.Value, prefix string) {
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + Delimiter + key
		}

		fv := val.Field(i)
		switch fv.Kind() {
		case reflect.Struct, reflect.Ptr:
			// time.Duration is an int64 under the hood, so only real
			// structs land here.
			flattenInto(leaves, fv, key)
		default:
			leaves[key] = fv.Interface()
		}
	}
}

// normalize canonicalizes string fields after unmarshalling so the
// rest of the daemon never sees mixed-case kind names or an empty
// exporter selection.
func (c *Config) normalize() {
	for i, kind := range c.Watch.Kinds {
		c.Watch.Kinds[i] = strings.ToLower(strings.TrimSpace(kind))
	}

	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "otlpgrpc"
	}
	c.Tracing.Sampler = strings.ToLower(strings.TrimSpace(c.Tracing.Sampler))
	if c.Tracing.Sampler == "" {
		c.Tracing.Sampler = "ratio"
	}
}

// Load builds a configuration with a throwaway loader.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
