// Package config provides application configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables (a .env file in the working directory is loaded
// first). Command-line flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/njchilds90/descent"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	DBPath        string
	StepDelay     time.Duration
	LogLevel      string
	LogFormat     string
	PresetsFile   string
	MaxIterations int
	Defaults      Defaults
	// Presets are the [[preset]] entries of the config file.
	Presets []descent.Preset
}

// Defaults apply to runs that name neither a preset nor explicit values.
type Defaults struct {
	Preset       string  `toml:"preset"`
	LearningRate float64 `toml:"learning_rate"`
	Steps        int     `toml:"steps"`
}

// file mirrors the TOML layout.
type file struct {
	Server struct {
		Port      string `toml:"port"`
		DBPath    string `toml:"db_path"`
		StepDelay string `toml:"step_delay"`
	} `toml:"server"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Reference struct {
		MaxIterations int `toml:"max_iterations"`
	} `toml:"reference"`
	Catalog struct {
		PresetsFile string `toml:"presets_file"`
	} `toml:"catalog"`
	Defaults Defaults         `toml:"defaults"`
	Presets  []descent.Preset `toml:"preset"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:          "8080",
		DBPath:        "./data/descent.db",
		StepDelay:     250 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "json",
		MaxIterations: descent.DefaultReferenceOptions().MaxIterations,
		Defaults:      Defaults{Preset: "convex"},
	}
}

// Load reads configuration from path (skipped when empty; DESCENT_CONFIG is
// consulted instead) and the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("DESCENT_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Port, f.Server.Port)
	setString(&c.DBPath, f.Server.DBPath)
	if f.Server.StepDelay != "" {
		d, err := time.ParseDuration(f.Server.StepDelay)
		if err != nil {
			return fmt.Errorf("config %s: server.step_delay: %w", path, err)
		}
		c.StepDelay = d
	}
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	setString(&c.PresetsFile, f.Catalog.PresetsFile)
	if f.Reference.MaxIterations != 0 {
		c.MaxIterations = f.Reference.MaxIterations
	}
	setString(&c.Defaults.Preset, f.Defaults.Preset)
	if f.Defaults.LearningRate != 0 {
		c.Defaults.LearningRate = f.Defaults.LearningRate
	}
	if f.Defaults.Steps != 0 {
		c.Defaults.Steps = f.Defaults.Steps
	}
	c.Presets = f.Presets
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("DESCENT_PORT", c.Port)
	c.DBPath = getEnv("DESCENT_DB_PATH", c.DBPath)
	c.LogLevel = getEnv("DESCENT_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("DESCENT_LOG_FORMAT", c.LogFormat)
	c.PresetsFile = getEnv("DESCENT_PRESETS_FILE", c.PresetsFile)

	if v, ok := os.LookupEnv("DESCENT_STEP_DELAY"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DESCENT_STEP_DELAY: %w", err)
		}
		c.StepDelay = d
	}
	if v, ok := os.LookupEnv("DESCENT_MAX_ITER"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DESCENT_MAX_ITER: %w", err)
		}
		c.MaxIterations = n
	}
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("step delay must not be negative, got %s", c.StepDelay)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("reference max iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.Defaults.LearningRate < 0 {
		return fmt.Errorf("defaults.learning_rate must not be negative")
	}
	if c.Defaults.Steps < 0 || c.Defaults.Steps > descent.MaxBudget {
		return fmt.Errorf("defaults.steps must be between 0 and %d", descent.MaxBudget)
	}
	for _, p := range c.Presets {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ReferenceOptions returns the optimizer options implied by c.
func (c *Config) ReferenceOptions() descent.ReferenceOptions {
	opts := descent.DefaultReferenceOptions()
	opts.MaxIterations = c.MaxIterations
	return opts
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
