// Package config loads the settings shared by the CLI and the MCP server.
package config

import (
	"fmt"
	"go/token"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mamaar/methodobject/pkg/accessbridge"
	"github.com/mamaar/methodobject/pkg/refactor"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".methodobject.yaml"

// EnvPrefix prefixes environment overrides, e.g. METHODOBJECT_BRIDGE_STATIC.
const EnvPrefix = "METHODOBJECT"

type Config struct {
	Bridge BridgeConfig `json:"bridge" yaml:"bridge" mapstructure:"bridge"`
	Engine EngineConfig `json:"engine" yaml:"engine" mapstructure:"engine"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
	Watch  WatchConfig  `json:"watch" yaml:"watch" mapstructure:"watch"`
}

type BridgeConfig struct {
	ConstructorPrefix string `json:"constructor_prefix" yaml:"constructor_prefix" mapstructure:"constructor_prefix"`
	MethodPrefix      string `json:"method_prefix" yaml:"method_prefix" mapstructure:"method_prefix"`
	FieldPrefix       string `json:"field_prefix" yaml:"field_prefix" mapstructure:"field_prefix"`
	// Static makes bridges package-level functions unless a request says
	// otherwise.
	Static   bool   `json:"static" yaml:"static" mapstructure:"static"`
	Receiver string `json:"receiver" yaml:"receiver" mapstructure:"receiver"`
}

type EngineConfig struct {
	SkipCompilation bool `json:"skip_compilation" yaml:"skip_compilation" mapstructure:"skip_compilation"`
	AllowBreaking   bool `json:"allow_breaking" yaml:"allow_breaking" mapstructure:"allow_breaking"`
	Backup          bool `json:"backup" yaml:"backup" mapstructure:"backup"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `json:"debounce" yaml:"debounce" mapstructure:"debounce"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	naming := accessbridge.DefaultNaming()
	return &Config{
		Bridge: BridgeConfig{
			ConstructorPrefix: naming.Construction,
			MethodPrefix:      naming.Method,
			FieldPrefix:       naming.Field,
			Receiver:          "o",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
	}
}

// Load reads the config file and environment overrides. path names the
// file explicitly; when empty, FileName is looked up in workspace. A
// missing file is not an error.
func Load(workspace, path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(workspace)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("bridge.constructor_prefix", d.Bridge.ConstructorPrefix)
	v.SetDefault("bridge.method_prefix", d.Bridge.MethodPrefix)
	v.SetDefault("bridge.field_prefix", d.Bridge.FieldPrefix)
	v.SetDefault("bridge.static", d.Bridge.Static)
	v.SetDefault("bridge.receiver", d.Bridge.Receiver)
	v.SetDefault("engine.skip_compilation", d.Engine.SkipCompilation)
	v.SetDefault("engine.allow_breaking", d.Engine.AllowBreaking)
	v.SetDefault("engine.backup", d.Engine.Backup)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	for field, name := range map[string]string{
		"bridge.constructor_prefix": c.Bridge.ConstructorPrefix,
		"bridge.method_prefix":      c.Bridge.MethodPrefix,
		"bridge.field_prefix":       c.Bridge.FieldPrefix,
		"bridge.receiver":           c.Bridge.Receiver,
	} {
		if !token.IsIdentifier(name) {
			return &ConfigError{Field: field, Message: fmt.Sprintf("%q is not a Go identifier", name)}
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return &ConfigError{Field: "log.level", Message: err.Error()}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return &ConfigError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	if c.Watch.Debounce < 0 {
		return &ConfigError{Field: "watch.debounce", Message: "must not be negative"}
	}
	return nil
}

// EngineConfig converts the settings for the refactoring engine.
func (c *Config) EngineConfig() *refactor.EngineConfig {
	return &refactor.EngineConfig{
		SkipCompilation: c.Engine.SkipCompilation,
		AllowBreaking:   c.Engine.AllowBreaking,
		Backup:          c.Engine.Backup,
		Naming: accessbridge.Naming{
			Construction: c.Bridge.ConstructorPrefix,
			Method:       c.Bridge.MethodPrefix,
			Field:        c.Bridge.FieldPrefix,
		},
		Receiver: c.Bridge.Receiver,
	}
}

// Logger builds the logger described by the log settings, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
