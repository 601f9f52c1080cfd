package uigen

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the preview server and pipeline.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Preview  PreviewConfig  `yaml:"preview"`
	Compiler CompilerConfig `yaml:"compiler"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP preview server.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	LiveReload bool   `yaml:"live_reload"`
}

// PreviewConfig configures the generated preview document.
type PreviewConfig struct {
	// CDNBaseURL serves bare (third-party) imports, e.g. https://esm.sh.
	CDNBaseURL string `yaml:"cdn_base_url"`
	// StylingURL is the script tag source of the styling framework.
	StylingURL   string `yaml:"styling_url"`
	ReactVersion string `yaml:"react_version"`
	// ExternalReact asks the CDN to leave react imports of packages
	// unresolved, so every package shares the import map's React.
	ExternalReact bool `yaml:"external_react"`
	// Pins maps package names to versions. A root /package.json in the tree
	// takes precedence.
	Pins map[string]string `yaml:"pins"`
	// ModulePrefix is the URL prefix of served modules. Empty means modules
	// are inlined as data: URLs.
	ModulePrefix string `yaml:"module_prefix"`
	Title        string `yaml:"title"`
}

// CompilerConfig bounds the transform pipeline.
type CompilerConfig struct {
	Workers         int `yaml:"workers"`
	CacheEntries    int `yaml:"cache_entries"`
	RegistryEntries int `yaml:"registry_entries"`
}

// LoggingConfig selects the logger flavour.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:3000",
			LiveReload: true,
		},
		Preview: PreviewConfig{
			CDNBaseURL:    "https://esm.sh",
			StylingURL:    "https://cdn.tailwindcss.com",
			ReactVersion:  "19",
			ExternalReact: true,
			Pins:          map[string]string{},
			ModulePrefix:  "/_modules/",
			Title:         "Preview",
		},
		Compiler: CompilerConfig{
			Workers:         4,
			CacheEntries:    512,
			RegistryEntries: 2048,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads configuration from a YAML file, then applies .env and
// environment overrides. A missing file (or an empty path) yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv("UIGEN_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("UIGEN_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("UIGEN_LOG_FORMAT")); v != "" {
		c.Logging.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("UIGEN_CDN_URL")); v != "" {
		c.Preview.CDNBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("UIGEN_STYLING_URL")); v != "" {
		c.Preview.StylingURL = v
	}
	if v := strings.TrimSpace(os.Getenv("UIGEN_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid UIGEN_WORKERS %q: %w", v, err)
		}
		c.Compiler.Workers = n
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if c.Compiler.Workers < 1 {
		return fmt.Errorf("compiler.workers must be at least 1, got %d", c.Compiler.Workers)
	}
	if c.Compiler.CacheEntries < 1 || c.Compiler.RegistryEntries < 1 {
		return fmt.Errorf("compiler cache sizes must be positive")
	}
	if strings.TrimSpace(c.Preview.CDNBaseURL) == "" {
		return fmt.Errorf("preview.cdn_base_url must not be empty")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}
