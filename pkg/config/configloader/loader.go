// Package configloader assembles a service configuration from defaults,
// a YAML file, a .env file and the process environment.
package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Validator is implemented by configurations and their sections.
type Validator interface {
	Validate() error
}

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

type options struct {
	file     string
	envFile  string
	defaults map[string]any
}

type Option func(*options)

// WithFile reads the YAML configuration from path instead of config.yaml.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvFile reads dotenv variables from path instead of .env.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithDefaults sets the lowest priority values, keyed by dotted path.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// Load builds the configuration of serviceName. Later sources override
// earlier ones: defaults, YAML file, .env file, environment.
// Environment keys carry the upper-cased service name as prefix and use "_"
// between levels, so CATALOG_FILTER_DEBOUNCEWINDOW sets filter.debouncewindow.
// <PREFIX>_CONFIG_FILE overrides the YAML file location.
func Load[T Validator](serviceName string, opts ...Option) (T, error) {
	var cfg T
	envPrefix := strings.ToUpper(serviceName) + "_"
	o := options{file: defaultConfigFile, envFile: defaultEnvFile}
	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		o.file = path
	}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")
	if len(o.defaults) > 0 {
		if err := k.Load(confmap.Provider(o.defaults, "."), nil); err != nil {
			return cfg, fmt.Errorf("error loading defaults: %w", err)
		}
	}

	if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("error loading config file %q: %w", o.file, err)
		}
		log.Printf("config file %q not found, using defaults and environment", o.file)
	}

	toKey := func(name string) string {
		name = strings.TrimPrefix(strings.ToLower(name), strings.ToLower(envPrefix))
		return strings.ReplaceAll(name, "_", ".")
	}
	if dotenv, err := godotenv.Read(o.envFile); err == nil {
		values := make(map[string]any, len(dotenv))
		for name, value := range dotenv {
			if strings.HasPrefix(strings.ToUpper(name), envPrefix) {
				values[toKey(name)] = value
			}
		}
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return cfg, fmt.Errorf("error loading %s: %w", o.envFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: error reading %s: %v", o.envFile, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", toKey), nil); err != nil {
		return cfg, fmt.Errorf("error loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
