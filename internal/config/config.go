package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix    = "KANBAN"
	envConfigDir = "KANBAN_CONFIG_DIR"
)

type Config struct {
	// Server is the authority base URL, e.g. http://localhost:8080/api/v1.
	Server        string        `mapstructure:"server"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	Format        string        `mapstructure:"format"`
	Log           LogConfig     `mapstructure:"log"`
	TUI           TUIConfig     `mapstructure:"tui"`
	Serve         ServeConfig   `mapstructure:"serve"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File receives logs while the TUI owns the terminal. Empty disables TUI logging.
	File string `mapstructure:"file"`
}

type TUIConfig struct {
	// MarkdownStyle is a glamour standard style used for board previews.
	MarkdownStyle string `mapstructure:"markdown_style"`
}

type ServeConfig struct {
	Addr      string `mapstructure:"addr"`
	DB        string `mapstructure:"db"`
	RedisAddr string `mapstructure:"redis_addr"`
	Seed      bool   `mapstructure:"seed"`
}

// Dir returns the configuration directory: $KANBAN_CONFIG_DIR or ~/.kanban.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(envConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kanban"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration with paths under dir.
func Default(dir string) *Config {
	return &Config{
		Server:        "http://localhost:8080/api/v1",
		SubmitTimeout: 10 * time.Second,
		Format:        "json",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(dir, "kanban.log"),
		},
		TUI: TUIConfig{MarkdownStyle: "dark"},
		Serve: ServeConfig{
			Addr: ":8080",
			DB:   filepath.Join(dir, "authority.sqlite"),
			Seed: true,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server", d.Server)
	v.SetDefault("submit_timeout", d.SubmitTimeout)
	v.SetDefault("format", d.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("tui.markdown_style", d.TUI.MarkdownStyle)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.db", d.Serve.DB)
	v.SetDefault("serve.redis_addr", d.Serve.RedisAddr)
	v.SetDefault("serve.seed", d.Serve.Seed)
}

// Load merges defaults, the config file (if present) and KANBAN_* environment
// variables, in increasing precedence. Command-line flags are applied by the caller.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v, Default(dir))

	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if debug, err := strconv.ParseBool(os.Getenv("KANBAN_DEBUG")); err == nil && debug {
		cfg.Log.Level = "debug"
	}
	cfg.Serve.DB = expandHome(cfg.Serve.DB)
	cfg.Log.File = expandHome(cfg.Log.File)
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return errors.New("config: server must not be empty")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("config: submit_timeout must be positive, got %s", c.SubmitTimeout)
	}
	return nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
