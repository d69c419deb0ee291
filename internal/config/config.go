package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"boardsync/internal/coordinator"
)

const EnvPrefix = "BOARDSYNC"

// Config holds application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"`
	WriteMode  string `mapstructure:"write_mode"`
	SendBuffer int    `mapstructure:"send_buffer"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type ClientConfig struct {
	Server string `mapstructure:"server"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Timestamp bool   `mapstructure:"timestamp"`
	NoColor   bool   `mapstructure:"nocolor"`
}

// FlagBinding ties a config key to a command-line flag. Only flags the user
// actually set override the lower layers.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

func xdgDir(env string, fallback ...string) string {
	if d := strings.TrimSpace(os.Getenv(env)); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "boardsync", "config.toml")
}

func DefaultDBPath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "boardsync", "boardsync.sqlite")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.db", DefaultDBPath())
	v.SetDefault("server.write_mode", string(coordinator.ModeAtomic))
	v.SetDefault("server.send_buffer", 256)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("client.server", "http://127.0.0.1:5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.timestamp", true)
	v.SetDefault("log.nocolor", false)
}

// Load layers defaults, the TOML config file, BOARDSYNC_* env vars and flags,
// in that order. An explicit path that does not exist is an error; a missing
// default file is not.
func Load(path string, flags ...FlagBinding) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG"))
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigFile(DefaultConfigPath())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, fb := range flags {
		if fb.Flag == nil {
			continue
		}
		if err := v.BindPFlag(fb.Key, fb.Flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", fb.Key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case explicit != "":
			return Config{}, fmt.Errorf("read config %s: %w", explicit, err)
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if _, err := os.Stat(c.File); err != nil {
		c.File = ""
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is empty")
	}
	if strings.TrimSpace(c.Server.DB) == "" {
		return errors.New("config: server.db is empty")
	}
	if _, err := coordinator.ParseMode(c.Server.WriteMode); err != nil {
		return fmt.Errorf("config: server.write_mode: %w", err)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("config: server.send_buffer must be > 0 (got %d)", c.Server.SendBuffer)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: log.format must be console|json (got %q)", c.Log.Format)
	}
	return nil
}
