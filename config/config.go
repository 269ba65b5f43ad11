package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/resolve"
)

const (
	// FileName is the configuration file looked up in the working directory.
	FileName = "lrt.toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LRT"
)

// DefaultBuiltins lists the modules the runtime provides natively.
var DefaultBuiltins = []string{
	"assert", "async_hooks", "buffer", "child_process", "console", "crypto",
	"dgram", "dns", "events", "fs", "fs/promises", "https", "net", "os",
	"path", "perf_hooks", "process", "stream", "stream/web", "string_decoder",
	"timers", "tls", "tty", "url", "util", "zlib",
}

// Config is the runtime configuration.
type Config struct {
	Platform    string         `mapstructure:"platform" toml:"platform"`
	SearchPaths []string       `mapstructure:"search_paths" toml:"search_paths"`
	TaskRoot    string         `mapstructure:"task_root" toml:"task_root"`
	Cwd         string         `mapstructure:"cwd" toml:"cwd"`
	Home        string         `mapstructure:"home" toml:"home"`
	Builtins    []string       `mapstructure:"builtins" toml:"builtins"`
	Bytecode    BytecodeConfig `mapstructure:"bytecode" toml:"bytecode"`
	Registry    RegistryConfig `mapstructure:"registry" toml:"registry"`
	Log         LogConfig      `mapstructure:"log" toml:"log"`
}

// BytecodeConfig configures the bytecode codec.
type BytecodeConfig struct {
	MaxDecodedSize int `mapstructure:"max_decoded_size" toml:"max_decoded_size"`
	// Dictionary is a path to a zstd dictionary replacing the compiled-in one.
	Dictionary string `mapstructure:"dictionary" toml:"dictionary"`
}

// RegistryConfig locates precompiled modules embedded at startup.
type RegistryConfig struct {
	// Archive is a CBOR registry archive.
	Archive string `mapstructure:"archive" toml:"archive"`
	// Dir is a directory of .lrt files.
	Dir string `mapstructure:"dir" toml:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string
	// Dir is searched for FileName when File is empty. Defaults to ".".
	Dir string
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Platform:    resolve.PlatformBrowser,
		SearchPaths: []string{".", "/opt"},
		Builtins:    slices.Clone(DefaultBuiltins),
		Bytecode: BytecodeConfig{
			MaxDecodedSize: bytecode.DefaultMaxDecodedSize,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from defaults, file and environment.
// It returns the config and the path of the file used, if any.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load config canceled")
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("platform", defaults.Platform)
	v.SetDefault("search_paths", defaults.SearchPaths)
	v.SetDefault("task_root", defaults.TaskRoot)
	v.SetDefault("cwd", defaults.Cwd)
	v.SetDefault("home", defaults.Home)
	v.SetDefault("builtins", defaults.Builtins)
	v.SetDefault("bytecode.max_decoded_size", defaults.Bytecode.MaxDecodedSize)
	v.SetDefault("bytecode.dictionary", defaults.Bytecode.Dictionary)
	v.SetDefault("registry.archive", defaults.Registry.Archive)
	v.SetDefault("registry.dir", defaults.Registry.Dir)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("task_root", EnvPrefix+"_TASK_ROOT", "LAMBDA_TASK_ROOT")

	resolvedPath := ""
	switch {
	case opts.File != "":
		if !fileExists(opts.File) {
			return nil, "", errors.New(errors.PhaseConfig, errors.KindNotFound).
				Name(opts.File).
				Detail("config file not found").
				Build()
		}
		resolvedPath = opts.File
	default:
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		if p := filepath.Join(dir, FileName); fileExists(p) {
			resolvedPath = p
		}
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Name(resolvedPath).
				Cause(err).
				Detail("config file is not valid TOML").
				Build()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

// normalize maps any platform other than node to browser.
func (c *Config) normalize() {
	if c.Platform != resolve.PlatformNode {
		c.Platform = resolve.PlatformBrowser
	}
	c.SearchPaths = slices.DeleteFunc(c.SearchPaths, func(s string) bool { return strings.TrimSpace(s) == "" })
	c.Builtins = slices.DeleteFunc(c.Builtins, func(s string) bool { return strings.TrimSpace(s) == "" })
}

// Validate checks value constraints.
func (c *Config) Validate() error {
	if c.Bytecode.MaxDecodedSize <= 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Bytecode.MaxDecodedSize).
			Detail("bytecode.max_decoded_size must be positive").
			Build()
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		return err
	}
	return nil
}

// ResolvedSearchPaths returns the search paths followed by the task root.
func (c *Config) ResolvedSearchPaths() []string {
	out := slices.Clone(c.SearchPaths)
	if c.TaskRoot != "" && !slices.Contains(out, c.TaskRoot) {
		out = append(out, c.TaskRoot)
	}
	return out
}

// TOML renders the configuration as a TOML document.
func (c *Config) TOML() ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "render config")
	}
	return out, nil
}

// ZapLevel parses the configured log level.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return lvl, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(l.Level).
			Cause(err).
			Detail("log.level").
			Build()
	}
	return lvl, nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
