// pattern: Imperative Shell

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the project directory.
const DefaultPath = "droid.yml"

// ConfigurationVersion is the schema version written by the wizard.
const ConfigurationVersion = 1

// Config is the project configuration loaded from droid.yml.
// Key spellings (including the spaced ones) are the file format and
// must not change.
type Config struct {
	Droid   DroidConfig   `yaml:"droid"`
	Project ProjectConfig `yaml:"project"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Paths   PathsConfig   `yaml:"paths"`
	Make    MakeConfig    `yaml:"make"`

	// Found reports whether the file existed when loaded.
	Found bool `yaml:"-"`
}

type DroidConfig struct {
	ConfigurationVersion int `yaml:"configuration version"`
}

type ProjectConfig struct {
	Name               string `yaml:"name"`
	GitHubOrganization string `yaml:"GitHub organization"`
	GitHubProject      string `yaml:"GitHub project"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PathsConfig struct {
	Workspace string `yaml:"workspace"`
	Temp      string `yaml:"temp"`
}

type MakeConfig struct {
	Binary string `yaml:"binary"`
}

// LookPathFunc is the function signature for looking up executables.
type LookPathFunc func(name string) (string, error)

func DefaultConfig() Config {
	return Config{
		Droid: DroidConfig{
			ConfigurationVersion: ConfigurationVersion,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 5000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Paths: PathsConfig{
			Workspace: "workspace",
			Temp:      "temp",
		},
		Make: MakeConfig{
			Binary: "make",
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads the configuration file at configPath. A missing file is
// not an error: defaults are returned with Found=false so the server can
// run unconfigured and point the user at `droid init`.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}
	cfg.Found = true

	// Sections the file omits keep their defaults
	defaults := DefaultConfig()
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = defaults.Server.Bind
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Paths.Workspace == "" {
		cfg.Paths.Workspace = defaults.Paths.Workspace
	}
	if cfg.Paths.Temp == "" {
		cfg.Paths.Temp = defaults.Paths.Temp
	}
	if cfg.Make.Binary == "" {
		cfg.Make.Binary = defaults.Make.Binary
	}

	return cfg, nil
}

// Save writes the configuration to configPath with the canonical key
// spellings and two-space indentation.
func Save(configPath string, cfg Config) error {
	data, err := Render(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(configPath, data, 0644)
}

// Render returns the YAML encoding Save writes.
func Render(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks the loaded values. lookPath resolves the make binary;
// pass exec.LookPath outside tests.
func (c *Config) Validate(lookPath LookPathFunc) error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 0-65535, got: %d", c.Server.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got: %q", c.Log.Level)
	}

	if c.Paths.Workspace == "" {
		return fmt.Errorf("workspace path must not be empty")
	}
	if c.Paths.Temp == "" {
		return fmt.Errorf("temp path must not be empty")
	}

	if c.Make.Binary == "" {
		return fmt.Errorf("make binary must not be empty")
	}
	if !filepath.IsAbs(c.Make.Binary) {
		if _, err := lookPath(c.Make.Binary); err != nil {
			return fmt.Errorf("make binary %q not found in PATH", c.Make.Binary)
		}
	}

	return nil
}

// GitHubURL returns the project repository URL, or "" when the project
// section is incomplete.
func (c *Config) GitHubURL() string {
	if c.Project.GitHubOrganization == "" || c.Project.GitHubProject == "" {
		return ""
	}
	return "https://github.com/" + c.Project.GitHubOrganization + "/" + c.Project.GitHubProject
}
