// Package config loads headelf configuration from flags, HEADELF_*
// environment variables and an optional config.yaml, in that order of
// precedence.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. HEADELF_LOG_LEVEL.
	EnvPrefix = "HEADELF"
	// DirName is the per-user configuration directory under $HOME.
	DirName = ".headelf"
)

// Config is the resolved configuration.
type Config struct {
	Root      string        `mapstructure:"root"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Git       GitConfig     `mapstructure:"git"`
	Serve     ServeConfig   `mapstructure:"serve"`
	Skills    SkillsConfig  `mapstructure:"skills"`
	Tracing   TracingConfig `mapstructure:"tracing"`
}

// GitConfig controls the audit trail.
type GitConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServeConfig is the dashboard API listen address.
type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SkillsConfig lists the skill roots, relative to Root unless absolute.
type SkillsConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// TracingConfig mirrors telemetry.Config.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// SetDefaults registers the default value of every key. Keys must have a
// default for HEADELF_* environment variables to be seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("git.enabled", true)
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8765)
	v.SetDefault("skills.dirs", []string{"skills"})
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "always")
	v.SetDefault("tracing.ratio", 1.0)
}

// Init wires environment variables and the config file search path into v.
// A missing config file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join("$HOME", DirName))
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load unmarshals v, resolves Root to an absolute path and validates the
// result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get current working directory")
		}
		cfg.Root = wd
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve root %s", cfg.Root)
	}
	cfg.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked by their consumers.
func (c *Config) Validate() error {
	if err := c.Serve.Validate(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "fmt", "text", "json":
	default:
		return errors.Errorf("invalid log format %q, must be one of fmt, json", c.LogFormat)
	}
	switch c.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		return errors.Errorf("invalid tracing sampler %q, must be one of always, never, ratio", c.Tracing.Sampler)
	}
	if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
		return errors.Errorf("tracing ratio must be between 0 and 1, got %v", c.Tracing.Ratio)
	}
	return nil
}

// Validate validates the listen address.
func (c *ServeConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Host != "localhost" && net.ParseIP(c.Host) == nil && strings.ContainsAny(c.Host, " :") {
		return errors.Errorf("invalid host: %s", c.Host)
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Addr returns host:port.
func (c *ServeConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SkillDirs returns the skill roots with relative entries resolved against
// Root.
func (c *Config) SkillDirs() []string {
	dirs := make([]string, 0, len(c.Skills.Dirs))
	for _, d := range c.Skills.Dirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(c.Root, d)
		}
		dirs = append(dirs, d)
	}
	return dirs
}
