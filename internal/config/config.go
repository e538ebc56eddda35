// Package config reads optload.yaml, layering defaults, the file, and
// OPTLOAD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/notwillk/optload/internal/jsonschema"
	"github.com/notwillk/optload/internal/loader"
	"github.com/notwillk/optload/internal/logging"
	"github.com/notwillk/optload/internal/validator"
	"github.com/notwillk/optload/internal/yamlfront"
)

// DefaultFile is the config file name used when none is given.
const DefaultFile = "optload.yaml"

// EnvPrefix prefixes environment overrides: OPTLOAD_ERRORS_MISSING sets
// errors.missing.
const EnvPrefix = "OPTLOAD_"

// YAMLConfig holds the YAML adapter options.
type YAMLConfig struct {
	Encoding     string `koanf:"encoding"`
	Break        string `koanf:"break"`
	Indent       int    `koanf:"indent"`
	Width        int    `koanf:"width"`
	Inline       int    `koanf:"inline"`
	ParseObjects bool   `koanf:"parseObjects"`
	EmitObjects  bool   `koanf:"emitObjects"`
}

// ErrorsConfig holds the silent/warn/fail policy of each failure category.
type ErrorsConfig struct {
	Missing  string `koanf:"missing"`
	Invalid  string `koanf:"invalid"`
	Empty    string `koanf:"empty"`
	Iterable string `koanf:"iterable"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the fully merged, resolved configuration.
type Config struct {
	Backend string       `koanf:"backend"`
	Invalid string       `koanf:"invalid"`
	YAML    YAMLConfig   `koanf:"yaml"`
	Errors  ErrorsConfig `koanf:"errors"`
	Log     LogConfig    `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"backend":           "",
		"invalid":           "fail",
		"yaml.encoding":     "any",
		"yaml.break":        "any",
		"yaml.indent":       yamlfront.DefaultIndent,
		"yaml.width":        yamlfront.DefaultWidth,
		"yaml.inline":       yamlfront.DefaultInline,
		"yaml.parseObjects": false,
		"yaml.emitObjects":  false,
		"errors.missing":    "silent",
		"errors.invalid":    "fail",
		"errors.empty":      "fail",
		"errors.iterable":   "fail",
		"log.level":         "info",
		"log.format":        logging.FormatLogfmt,
	}
}

// Default returns a Config populated entirely with default values.
func Default() *Config {
	cfg, err := load(koanf.New("."), "", false)
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads the config file at path (if it exists) over the defaults and
// applies environment overrides. The file is validated against the config
// schema before it is merged.
func Load(path string) (*Config, error) {
	return load(koanf.New("."), path, true)
}

func load(k *koanf.Koanf, path string, withEnv bool) (*Config, error) {
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := validateFile(path, data); err != nil {
				return nil, err
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps OPTLOAD_YAML_PARSEOBJECTS to yaml.parseObjects.
func envKey(s string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	for _, camel := range []string{"parseObjects", "emitObjects"} {
		key = strings.Replace(key, strings.ToLower(camel), camel, 1)
	}
	return key
}

func validateFile(path string, data []byte) error {
	var doc any
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if doc == nil {
		return nil
	}
	schema, err := jsonschema.GenerateConfigSchema()
	if err != nil {
		return err
	}
	v, err := validator.New(schema, loader.PolicyFatal, nil)
	if err != nil {
		return err
	}
	return v.Validate(path, doc)
}

func (c *Config) check() error {
	if _, err := loader.ParsePolicy(c.Invalid); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if _, err := c.Flags(); err != nil {
		return err
	}
	switch c.Backend {
	case "", yamlfront.Native, yamlfront.Library:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// Flags converts the errors section into loader flags.
func (c *Config) Flags() (loader.Flags, error) {
	var flags loader.Flags
	for _, item := range []struct {
		name  string
		value string
		kind  loader.Kind
	}{
		{"missing", c.Errors.Missing, loader.MissingFile},
		{"invalid", c.Errors.Invalid, loader.InvalidContent},
		{"empty", c.Errors.Empty, loader.EmptyContent},
		{"iterable", c.Errors.Iterable, loader.NotIterable},
	} {
		p, err := loader.ParsePolicy(item.value)
		if err != nil {
			return 0, fmt.Errorf("config: errors.%s: %w", item.name, err)
		}
		flags = flags.With(item.kind, p)
	}
	return flags, nil
}

// IntoFlags is Flags with a missing file always fatal, for merging.
func (c *Config) IntoFlags() (loader.Flags, error) {
	flags, err := c.Flags()
	if err != nil {
		return 0, err
	}
	return flags | loader.FatalMissing, nil
}

// InvalidPolicy returns the schema validation policy.
func (c *Config) InvalidPolicy() loader.Policy {
	p, _ := loader.ParsePolicy(c.Invalid)
	return p
}

// YAMLOptions returns the YAML adapter options.
func (c *Config) YAMLOptions() yamlfront.Options {
	return yamlfront.OptionsFromMap(map[string]any{
		yamlfront.KeyBackend:      c.Backend,
		yamlfront.KeyEncoding:     c.YAML.Encoding,
		yamlfront.KeyBreak:        c.YAML.Break,
		yamlfront.KeyIndent:       c.YAML.Indent,
		yamlfront.KeyWidth:        c.YAML.Width,
		yamlfront.KeyInline:       c.YAML.Inline,
		yamlfront.KeyParseObjects: c.YAML.ParseObjects,
		yamlfront.KeyEmitObjects:  c.YAML.EmitObjects,
	})
}

// Logger builds the logger described by the log section.
func (c *Config) Logger(w io.Writer) log.Logger {
	return logging.New(w, c.Log.Level, c.Log.Format)
}

// Loader builds a loader using this configuration.
func (c *Config) Loader(logger log.Logger, opts ...loader.Option) *loader.Loader {
	yopts := c.YAMLOptions()
	yopts.Logger = logger
	base := []loader.Option{loader.WithLogger(logger), loader.WithYAMLOptions(yopts)}
	return loader.New(append(base, opts...)...)
}

// WithInvalid returns a copy of cfg with the validation policy overridden if override is non-empty.
func (c *Config) WithInvalid(override string) *Config {
	if override == "" {
		return c
	}
	out := *c
	out.Invalid = override
	return &out
}

// WithBackend returns a copy of cfg using the named backend if override is non-empty.
func (c *Config) WithBackend(override string) *Config {
	if override == "" {
		return c
	}
	out := *c
	out.Backend = override
	return &out
}

// WithLog returns a copy of cfg with the non-empty log settings overridden.
func (c *Config) WithLog(lvl, format string) *Config {
	if lvl == "" && format == "" {
		return c
	}
	out := *c
	if lvl != "" {
		out.Log.Level = lvl
	}
	if format != "" {
		out.Log.Format = format
	}
	return &out
}
