package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// ConfigFileName is the config file read from the working directory when
// --config is not given.
const ConfigFileName = ".pipecache.json"

// Environment variables.
const (
	// envStateCache set to 0 or false disables the state cache.
	envStateCache = "PIPECACHE_STATE_CACHE"

	// envCache overrides the state cache path.
	envCache = "PIPECACHE_CACHE"
)

// Config errors.
var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
	errCachePathEmpty     = errors.New("cache path must not be empty")
	errShaderDirEmpty     = errors.New("shader directory must not be empty")
	errNegativeWorkers    = errors.New("workers must not be negative")
)

// Config holds the resolved CLI configuration.
type Config struct {
	Shaders    string // directory of shader files
	Cache      string // state cache file
	Pipelines  string // manifest file, optional
	Workers    int
	StateCache bool
	Verbose    bool
}

// fileConfig is Config as read from a file. Nil fields were not set.
type fileConfig struct {
	Shaders    *string `json:"shaders"`
	Cache      *string `json:"cache"`
	Pipelines  *string `json:"pipelines"`
	Workers    *int    `json:"workers"`
	StateCache *bool   `json:"state_cache"` //nolint:tagliatelle // snake_case for config file
	Verbose    *bool   `json:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Shaders:    "shaders",
		Cache:      "pipelines.psc",
		StateCache: true,
	}
}

// configFlags are the flags shared by commands that load a Config.
type configFlags struct {
	fs     *flag.FlagSet
	config string
	values Config
}

func newConfigFlags(fs *flag.FlagSet) *configFlags {
	f := &configFlags{fs: fs}
	def := DefaultConfig()

	fs.StringVarP(&f.config, "config", "c", "", "config file (default "+ConfigFileName+" if present)")
	fs.StringVarP(&f.values.Shaders, "shaders", "s", def.Shaders, "directory of *.wgsl shaders")
	fs.StringVar(&f.values.Cache, "cache", def.Cache, "state cache file")
	fs.StringVarP(&f.values.Pipelines, "pipelines", "p", "", "JSONC manifest of pipelines to compile")
	fs.IntVarP(&f.values.Workers, "workers", "j", 0, "background compile workers (0 = GOMAXPROCS)")
	fs.BoolVar(&f.values.StateCache, "state-cache", def.StateCache, "enable the state cache")
	fs.BoolVarP(&f.values.Verbose, "verbose", "v", false, "debug logging")
	return f
}

// overrides copies the flags set on the command line onto cfg.
func (f *configFlags) overrides(cfg Config) Config {
	if f.fs.Changed("shaders") {
		cfg.Shaders = f.values.Shaders
	}
	if f.fs.Changed("cache") {
		cfg.Cache = f.values.Cache
	}
	if f.fs.Changed("pipelines") {
		cfg.Pipelines = f.values.Pipelines
	}
	if f.fs.Changed("workers") {
		cfg.Workers = f.values.Workers
	}
	if f.fs.Changed("state-cache") {
		cfg.StateCache = f.values.StateCache
	}
	if f.fs.Changed("verbose") {
		cfg.Verbose = f.values.Verbose
	}
	return cfg
}

// resolve builds the Config from defaults, the config file, env and flags.
func (f *configFlags) resolve(env []string) (Config, error) {
	return LoadConfig(f.config, env, f.overrides)
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file: configPath if non-empty (must exist), else ConfigFileName if present
// 3. Environment (PIPECACHE_CACHE, PIPECACHE_STATE_CACHE)
// 4. CLI overrides.
func LoadConfig(configPath string, env []string, overrides func(Config) Config) (Config, error) {
	cfg := DefaultConfig()

	path, mustExist := configPath, true
	if path == "" {
		path, mustExist = ConfigFileName, false
	}

	fileCfg, err := loadConfigFile(path, mustExist)
	if err != nil {
		return Config{}, err
	}
	cfg = mergeConfig(cfg, fileCfg)
	cfg = applyEnv(cfg, env)

	if overrides != nil {
		cfg = overrides(cfg)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing
// file returns an empty fileConfig.
func loadConfigFile(path string, mustExist bool) (fileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return fileConfig{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func mergeConfig(base Config, overlay fileConfig) Config {
	if overlay.Shaders != nil {
		base.Shaders = *overlay.Shaders
	}
	if overlay.Cache != nil {
		base.Cache = *overlay.Cache
	}
	if overlay.Pipelines != nil {
		base.Pipelines = *overlay.Pipelines
	}
	if overlay.Workers != nil {
		base.Workers = *overlay.Workers
	}
	if overlay.StateCache != nil {
		base.StateCache = *overlay.StateCache
	}
	if overlay.Verbose != nil {
		base.Verbose = *overlay.Verbose
	}
	return base
}

// applyEnv applies environment overrides. Later entries win.
func applyEnv(cfg Config, env []string) Config {
	for _, e := range env {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		switch key {
		case envStateCache:
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "0", "false", "off", "no":
				cfg.StateCache = false
			case "1", "true", "on", "yes":
				cfg.StateCache = true
			}
		case envCache:
			if value != "" {
				cfg.Cache = value
			}
		}
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.Shaders == "" {
		return errShaderDirEmpty
	}
	if cfg.StateCache && cfg.Cache == "" {
		return errCachePathEmpty
	}
	if cfg.Workers < 0 {
		return errNegativeWorkers
	}
	return nil
}
