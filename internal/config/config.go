// Package config loads tmplview configuration using Viper, from a YAML file,
// TMPLVIEW_ environment variables and command-line flags.
//
// Configuration covers where views live and how they are compiled and
// cached, output post-processing, the preview server, development options
// like hot reload, the optional SQL view store, and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/tmplview/internal/errors"
)

const (
	// EnvironmentProduction hides diagnostics and disables hot reload.
	EnvironmentProduction = "production"

	// EnvPrefix prefixes environment overrides, e.g. TMPLVIEW_SERVER_PORT.
	EnvPrefix = "TMPLVIEW"
)

type Config struct {
	Views       ViewsConfig       `mapstructure:"views" yaml:"views"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ViewsConfig struct {
	Root       string `mapstructure:"root" yaml:"root"`
	Extension  string `mapstructure:"extension" yaml:"extension"`
	Cache      bool   `mapstructure:"cache" yaml:"cache"`
	PersistDir string `mapstructure:"persist_dir" yaml:"persist_dir"`
	Locale     string `mapstructure:"locale" yaml:"locale"`
	Currency   string `mapstructure:"currency" yaml:"currency"`
	MaxDepth   int    `mapstructure:"max_depth" yaml:"max_depth"`
}

type OutputConfig struct {
	Pretty bool `mapstructure:"pretty" yaml:"pretty"`
	Minify bool `mapstructure:"minify" yaml:"minify"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port" yaml:"port"`
	Host        string `mapstructure:"host" yaml:"host"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

type DevelopmentConfig struct {
	HotReload   bool `mapstructure:"hot_reload" yaml:"hot_reload"`
	Diagnostics bool `mapstructure:"diagnostics" yaml:"diagnostics"`
}

// StoreConfig points at an optional SQL view store. Views found there take
// precedence over files when DSN is set.
type StoreConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("views.root", "./views")
	v.SetDefault("views.extension", ".html")
	v.SetDefault("views.cache", true)
	v.SetDefault("views.persist_dir", "")
	v.SetDefault("views.locale", "en-US")
	v.SetDefault("views.currency", "USD")
	v.SetDefault("views.max_depth", 32)

	v.SetDefault("output.pretty", false)
	v.SetDefault("output.minify", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.environment", "development")

	v.SetDefault("development.hot_reload", true)
	v.SetDefault("development.diagnostics", true)

	v.SetDefault("store.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnvironment makes v read TMPLVIEW_ prefixed environment variables,
// with dots in keys replaced by underscores.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, "CONFIG_DECODE", "failed to decode configuration")
	}

	config.Views.Extension = normalizeExtension(config.Views.Extension)
	config.Server.Environment = strings.ToLower(strings.TrimSpace(config.Server.Environment))
	config.Log.Level = strings.ToLower(config.Log.Level)

	if config.Production() {
		config.Development.HotReload = false
		config.Development.Diagnostics = false
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.WrapConfig(err, "CONFIG_INVALID", "invalid configuration")
	}

	return &config, nil
}

// Production reports whether the configured environment is production.
func (c *Config) Production() bool {
	return c.Server.Environment == EnvironmentProduction
}

// Address returns the host:port the preview server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateViewsConfig(&config.Views); err != nil {
		return fmt.Errorf("views config: %w", err)
	}

	if config.Output.Pretty && config.Output.Minify {
		return fmt.Errorf("output config: pretty and minify are mutually exclusive")
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateViewsConfig(config *ViewsConfig) error {
	if err := validatePath(config.Root); err != nil {
		return fmt.Errorf("invalid root '%s': %w", config.Root, err)
	}

	if config.Extension == "" || strings.ContainsAny(config.Extension, `/\ `) {
		return fmt.Errorf("invalid extension %q", config.Extension)
	}

	if config.PersistDir != "" {
		if err := validatePath(config.PersistDir); err != nil {
			return fmt.Errorf("invalid persist_dir '%s': %w", config.PersistDir, err)
		}
	}

	if config.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", config.MaxDepth)
	}

	if len(config.Currency) != 3 {
		return fmt.Errorf("currency must be an ISO 4217 code, got %q", config.Currency)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	switch config.Environment {
	case "development", EnvironmentProduction, "test":
	default:
		return fmt.Errorf("unknown environment %q", config.Environment)
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch config.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}
	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", config.Format)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
