// Package config loads crunch settings from a YAML file and CRUNCH_*
// environment variables. Command-line flags are applied on top by cmd.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"crunch/internal/options"
)

const (
	// EnvPath names the environment variable that points at a config file.
	EnvPath     = "CRUNCH_CONFIG"
	DefaultPath = "crunch.yaml"

	EngineLocal   = "local"
	EngineProcess = "process"
)

type Config struct {
	OutputDir string   `yaml:"output_dir" env:"CRUNCH_OUTPUT_DIR"`
	Defaults  Defaults `yaml:"defaults"`
	Workers   int      `yaml:"workers" env:"CRUNCH_WORKERS"`
	Engine    Engine   `yaml:"engine"`
	Log       Log      `yaml:"log"`
	Notify    bool     `yaml:"notify" env:"CRUNCH_NOTIFY"`
	Bell      bool     `yaml:"bell" env:"CRUNCH_BELL"`
	Plain     bool     `yaml:"plain" env:"CRUNCH_PLAIN"`
	Report    Report   `yaml:"report"`
}

// Defaults are the processing options a run starts from.
type Defaults struct {
	Format       string `yaml:"format" env:"CRUNCH_FORMAT"`
	Quality      int    `yaml:"quality" env:"CRUNCH_QUALITY"`
	Width        int    `yaml:"width" env:"CRUNCH_WIDTH"`
	Height       int    `yaml:"height" env:"CRUNCH_HEIGHT"`
	KeepMetadata bool   `yaml:"keep_metadata" env:"CRUNCH_KEEP_METADATA"`
	Compression  string `yaml:"compression" env:"CRUNCH_COMPRESSION"`
}

type Engine struct {
	Kind    string   `yaml:"kind" env:"CRUNCH_ENGINE"`
	Command string   `yaml:"command" env:"CRUNCH_ENGINE_COMMAND"`
	Args    []string `yaml:"args" env:"CRUNCH_ENGINE_ARGS"`
}

type Log struct {
	Level string `yaml:"level" env:"CRUNCH_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"CRUNCH_LOG_JSON"`
	File  string `yaml:"file" env:"CRUNCH_LOG_FILE"`
}

type Report struct {
	Path   string `yaml:"path" env:"CRUNCH_REPORT"`
	Format string `yaml:"format" env:"CRUNCH_REPORT_FORMAT"`
}

func Default() *Config {
	d := options.Default()
	return &Config{
		Defaults: Defaults{
			Format:      string(d.Format),
			Quality:     d.Quality,
			Compression: string(d.Compression),
		},
		Engine: Engine{Kind: EngineLocal},
		Log:    Log{Level: "info"},
		Notify: true,
	}
}

// Load builds the configuration from defaults, then the file at path, then
// the environment. An empty path falls back to $CRUNCH_CONFIG and then to
// crunch.yaml in the working directory; only an explicitly named file has
// to exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the fields that are not covered by options validation.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch c.Engine.Kind {
	case EngineLocal:
	case EngineProcess:
		if c.Engine.Command == "" {
			errs = append(errs, errors.New("engine.command is required for the process engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q", c.Engine.Kind))
	}
	if _, err := c.ProcessingOptions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ProcessingOptions converts Defaults into validated options. A zero width or
// height means no resize on that axis; negative values are rejected.
func (c *Config) ProcessingOptions() (options.Options, error) {
	format, err := options.ParseFormat(c.Defaults.Format)
	if err != nil {
		return options.Options{}, err
	}
	compression, err := options.ParseCompression(c.Defaults.Compression)
	if err != nil {
		return options.Options{}, err
	}
	opts := options.Options{
		Format:       format,
		Quality:      c.Defaults.Quality,
		KeepMetadata: c.Defaults.KeepMetadata,
		Compression:  compression,
	}
	if c.Defaults.Width != 0 {
		w := c.Defaults.Width
		opts.ResizeWidth = &w
	}
	if c.Defaults.Height != 0 {
		h := c.Defaults.Height
		opts.ResizeHeight = &h
	}
	return opts, opts.Validate()
}

// applyEnv overwrites every field tagged env whose variable is set.
func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		ft := t.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		name := ft.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Fields(raw)
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
