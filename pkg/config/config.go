// Package config loads settings from built-in defaults, an optional JSON file
// and CODEPARSER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DirName is the per-project state directory.
	DirName = ".codeparser"
	// FileName is the config file inside DirName.
	FileName = "config.json"
	// EnvPrefix prefixes environment overrides. A double underscore nests:
	// CODEPARSER_SCAN__CONCURRENCY sets scan.concurrency.
	EnvPrefix = "CODEPARSER_"
)

type Config struct {
	Log    LogConfig    `koanf:"log"`
	Store  StoreConfig  `koanf:"store"`
	Scan   ScanConfig   `koanf:"scan"`
	Ignore IgnoreConfig `koanf:"ignore"`
	Rules  RulesConfig  `koanf:"rules"`
	Server ServerConfig `koanf:"server"`
	Watch  WatchConfig  `koanf:"watch"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "console" or "json"
}

type StoreConfig struct {
	// Dir holds the findings database. Relative paths resolve against the
	// project root.
	Dir string `koanf:"dir"`
}

type ScanConfig struct {
	Concurrency         int   `koanf:"concurrency"` // 0 means one worker per CPU
	MaxFileSize         int64 `koanf:"max_file_size"`
	ComplexityThreshold int   `koanf:"complexity_threshold"`
	Incremental         bool  `koanf:"incremental"`
	DeepSecrets         bool  `koanf:"deep_secrets"`
	ValidateSecrets     bool  `koanf:"validate_secrets"`
}

type IgnoreConfig struct {
	Patterns []string `koanf:"patterns"`
}

type RulesConfig struct {
	// Files are YAML rule files appended to the built-in catalogs.
	Files       []string            `koanf:"files"`
	StrictParse bool                `koanf:"strict_parse"`
	BranchKinds map[string][]string `koanf:"branch_kinds"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":                 "info",
		"log.format":                "console",
		"store.dir":                 DirName,
		"scan.concurrency":          0,
		"scan.max_file_size":        1 << 20,
		"scan.complexity_threshold": 5000,
		"scan.incremental":          true,
		"scan.deep_secrets":         false,
		"scan.validate_secrets":     false,
		"server.addr":               "127.0.0.1:7777",
		"watch.debounce":            "500ms",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(koanf.New("."), "", false)
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

// Load reads configuration for the project at root. An empty path means
// <root>/.codeparser/config.json, which may be absent; an explicit path must
// exist.
func Load(root, path string) (*Config, error) {
	required := path != ""
	if path == "" {
		path = filepath.Join(root, DirName, FileName)
	}
	cfg, err := load(koanf.New("."), path, required)
	if err != nil {
		return nil, err
	}
	if root != "" && !filepath.IsAbs(cfg.Store.Dir) {
		cfg.Store.Dir = filepath.Join(root, cfg.Store.Dir)
	}
	for i, f := range cfg.Rules.Files {
		if root != "" && !filepath.IsAbs(f) {
			cfg.Rules.Files[i] = filepath.Join(root, f)
		}
	}
	return cfg, nil
}

func load(k *koanf.Koanf, path string, required bool) (*Config, error) {
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("scan.concurrency must not be negative"))
	}
	if c.Scan.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("scan.max_file_size must be positive"))
	}
	if c.Scan.ComplexityThreshold <= 0 {
		errs = append(errs, fmt.Errorf("scan.complexity_threshold must be positive"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	return errors.Join(errs...)
}
