package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tkingovr/viewfilter/internal/policy"
	"gopkg.in/yaml.v3"
)

// File is the on-disk site file.
type File struct {
	Version  int           `yaml:"version"`
	Settings Settings      `yaml:"settings"`
	Policy   policy.Policy `yaml:"policy"`
	Filters  []string      `yaml:"filters,omitempty"`
	Routes   []Route       `yaml:"routes,omitempty"`
}

// Settings holds the server-wide options of a site file.
type Settings struct {
	Listen        string                 `yaml:"listen,omitempty"`
	AdminAddr     string                 `yaml:"admin_addr,omitempty"`
	BasePath      string                 `yaml:"base_path,omitempty"`
	LogDir        string                 `yaml:"log_dir,omitempty"`
	SecretScanner *SecretScannerSettings `yaml:"secret_scanner,omitempty"`
	RateLimit     *RateLimitSettings     `yaml:"rate_limit,omitempty"`
}

// SecretScannerSettings configures the response secret scanner.
type SecretScannerSettings struct {
	Enabled          bool    `yaml:"enabled"`
	EntropyThreshold float64 `yaml:"entropy_threshold,omitempty"`
}

// RateLimitSettings configures request rate limits.
type RateLimitSettings struct {
	Global  *RateLimitRule            `yaml:"global,omitempty"`
	PerPath map[string]*RateLimitRule `yaml:"per_path,omitempty"`
}

// RateLimitRule is a single limit: Max requests per Window (a Go duration).
type RateLimitRule struct {
	Max    int    `yaml:"max"`
	Window string `yaml:"window"`
}

// Route binds a named handler to a path. Keys other than path, methods and
// handler are collected in Options and decoded by the route binder.
type Route struct {
	Path    string         `yaml:"path"`
	Methods []string       `yaml:"methods,omitempty"`
	Handler string         `yaml:"handler"`
	Options map[string]any `yaml:",inline"`
}

// Config is the runtime configuration for viewfilter.
type Config struct {
	File      *File
	Path      string
	Listen    string
	AdminAddr string
	BasePath  string
	LogDir    string
}

// Load reads a site file and produces a runtime Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	if p := cfg.File.Policy.OPAPolicy; p != "" && !filepath.IsAbs(p) {
		cfg.File.Policy.OPAPolicy = filepath.Join(filepath.Dir(path), p)
	}
	return cfg, nil
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loading config: parsing YAML: %w", err)
	}
	if err := validate(&f); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromFile(&f), nil
}

func validate(f *File) error {
	if f.Version != 1 {
		return fmt.Errorf("unsupported version %d (expected 1)", f.Version)
	}
	if err := policy.Validate(&f.Policy); err != nil {
		return err
	}
	for i, r := range f.Routes {
		if r.Handler == "" {
			return fmt.Errorf("route %d (%q): handler is required", i, r.Path)
		}
	}
	if rl := f.Settings.RateLimit; rl != nil {
		if err := rl.Global.validate("global"); err != nil {
			return err
		}
		for path, rule := range rl.PerPath {
			if err := rule.validate(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func fromFile(f *File) *Config {
	cfg := &Config{
		File:      f,
		Listen:    f.Settings.Listen,
		AdminAddr: f.Settings.AdminAddr,
		BasePath:  f.Settings.BasePath,
		LogDir:    f.Settings.LogDir,
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListenAddr
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = DefaultAdminAddr
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	cfg.LogDir = expandHome(cfg.LogDir)
	return cfg
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	f := &File{Version: 1}
	_ = policy.Validate(&f.Policy)
	return fromFile(f)
}

// MarshalYAML serializes the site file for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c.File)
}
