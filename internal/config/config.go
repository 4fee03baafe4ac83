// Package config loads and validates the TOML configuration for the
// analysis service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	Version  int      `toml:"version"`
	Server   Server   `toml:"server"`
	DB       Database `toml:"db"`
	Oracle   Oracle   `toml:"oracle"`
	Annotate Annotate `toml:"annotate"`
	Tracing  Tracing  `toml:"tracing"`
}

type Server struct {
	Address     string   `toml:"address"`
	CORSOrigins []string `toml:"cors_origins"`
}

type Database struct {
	Path string `toml:"path"`
}

type Oracle struct {
	Enabled        bool          `toml:"enabled"`
	BaseURL        string        `toml:"base_url"`
	Model          string        `toml:"model"`
	Timeout        time.Duration `toml:"timeout"`
	RequestsPerSec float64       `toml:"requests_per_sec"`
}

type Annotate struct {
	// SkipNames are glob patterns for identifiers that must never be
	// annotated (e.g. "_*", "test_*").
	SkipNames []string `toml:"skip_names"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

// Load reads the TOML file at path. A missing file yields the defaults,
// so the binary runs without any configuration at all.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to defaults
	case err != nil:
		return nil, err
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode config %q: %w", path, err)
		}
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		cfg.Server.Address = "127.0.0.1:8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "typesage.db"
	}

	if strings.TrimSpace(cfg.Oracle.BaseURL) == "" {
		cfg.Oracle.BaseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(cfg.Oracle.Model) == "" {
		cfg.Oracle.Model = "qwen2.5-coder:7b"
	}
	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = 60 * time.Second
	}
	if cfg.Oracle.RequestsPerSec <= 0 {
		cfg.Oracle.RequestsPerSec = 1
	}

	if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		cfg.Tracing.Endpoint = "localhost:4317"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if _, err := cfg.SkipGlobs(); err != nil {
		return err
	}
	return nil
}

// SkipGlobs compiles the annotate.skip_names patterns.
func (c *Config) SkipGlobs() ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(c.Annotate.SkipNames))
	for _, pattern := range c.Annotate.SkipNames {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("annotate.skip_names pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
