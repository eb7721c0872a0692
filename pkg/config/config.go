// Package config provides YAML-based configuration loading for commitcast.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the node, stamped as event origin by the CLI
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Broadcast configures the commit notification transport
    Broadcast BroadcastConfig `mapstructure:"broadcast"`

    // Membership configures periodic peer list updates
    Membership MembershipConfig `mapstructure:"membership"`

    // Status configures the HTTP status endpoint
    Status StatusConfig `mapstructure:"status"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// StatusConfig controls the HTTP status endpoint. An empty Listen disables it.
type StatusConfig struct {
    Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "commitcast-node",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: false,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/commitcast.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Broadcast:  defaultBroadcast(),
        Membership: defaultMembership(),
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix COMMITCAST and `.`/`-` are replaced with `_`.
// Example: COMMITCAST_BROADCAST_PEERS="node-b;node-c:5637"
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("COMMITCAST")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    cfg.Broadcast.setDefaults(v)
    cfg.Membership.setDefaults(v)
    v.SetDefault("status.listen", cfg.Status.Listen)

    // Choose config file
    if path == "" {
        if envPath := os.Getenv("COMMITCAST_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.SetConfigName("commitcast")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".commitcast"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if err := c.Broadcast.validate(); err != nil {
        return err
    }
    return c.Membership.validate()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
