package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks the environment variables that override settings, with
// "__" separating sections: DSP_ENGINE__WORKERS=8.
const EnvPrefix = "DSP_"

// Settings configures the engine around the graphs: backends, dispatch
// defaults and logging.
type Settings struct {
	Engine   EngineSettings   `json:"engine"`
	Dispatch DispatchSettings `json:"dispatch"`
	Logging  LoggingSettings  `json:"logging"`
}

// EngineSettings selects the execution backend.
type EngineSettings struct {
	// Executor is "sync" or "pool".
	Executor   string `json:"executor"`
	Workers    int    `json:"workers"`
	QueueDepth int    `json:"queueDepth"`
}

func (c *EngineSettings) SetDefaults() {
	if c.Executor == "" {
		c.Executor = "sync"
	}
	if c.Workers == 0 {
		c.Workers = 8
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 1024
	}
}

func (c EngineSettings) Validate() error {
	if c.Executor != "sync" && c.Executor != "pool" {
		return fmt.Errorf("engine: unknown executor %q", c.Executor)
	}
	if c.Workers < 1 {
		return fmt.Errorf("engine: workers must be positive")
	}
	if c.QueueDepth < 0 {
		return fmt.Errorf("engine: queueDepth must not be negative")
	}
	return nil
}

// DispatchSettings hold the defaults of every dispatch the CLI runs.
type DispatchSettings struct {
	// Cutoff stops the search beyond this distance; 0 disables it.
	Cutoff float64 `json:"cutoff"`
	// Raises makes every invocation error fatal.
	Raises bool `json:"raises"`
}

func (c DispatchSettings) Validate() error {
	if c.Cutoff < 0 {
		return fmt.Errorf("dispatch: cutoff must not be negative")
	}
	return nil
}

// LoggingSettings configure the slog handler.
type LoggingSettings struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func (c *LoggingSettings) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c LoggingSettings) Validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("logging: unknown format %q", c.Format)
	}
	return nil
}

// SlogLevel returns the parsed level; Validate has already accepted it.
func (c LoggingSettings) SlogLevel() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.Level))
	return l
}

// LoadSettings reads the optional YAML file at path, then applies DSP_
// environment overrides, defaults and validation.
func LoadSettings(path string) (*Settings, error) {
	k := koanf.New(".")
	if path != "" {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
			return nil, fmt.Errorf("unsupported settings format: %s", ext)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load settings %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, fmt.Errorf("load settings env: %w", err)
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Engine.SetDefaults()
	s.Logging.SetDefaults()
	if err := s.Engine.Validate(); err != nil {
		return nil, err
	}
	if err := s.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := s.Logging.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey maps DSP_ENGINE__QUEUEDEPTH to engine.queuedepth. koanf matches
// keys case-insensitively when decoding.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
