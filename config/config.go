package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jyothri/mailpilot/constants"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "****"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	OAuth    OAuthConfig    `mapstructure:"oauth" yaml:"oauth"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Pubsub   PubsubConfig   `mapstructure:"pubsub" yaml:"pubsub"`
	Client   ClientConfig   `mapstructure:"client" yaml:"client"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	FrontendUrl  string        `mapstructure:"frontend_url" yaml:"frontend_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type OAuthConfig struct {
	ClientId     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectUrl  string `mapstructure:"redirect_url" yaml:"redirect_url"`
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `mapstructure:"driver" yaml:"driver"`
	Dsn    string `mapstructure:"dsn" yaml:"dsn"`
}

type PubsubConfig struct {
	Topic             string `mapstructure:"topic" yaml:"topic"`
	VerificationToken string `mapstructure:"verification_token" yaml:"verification_token"`
}

type ClientConfig struct {
	ServerUrl      string        `mapstructure:"server_url" yaml:"server_url"`
	PageSize       int64         `mapstructure:"page_size" yaml:"page_size"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	AgentAddr      string        `mapstructure:"agent_addr" yaml:"agent_addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File receives logs while the terminal UI owns stdout.
	File string `mapstructure:"file" yaml:"file"`
}

func DefaultConfig() Config {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	return Config{
		Server: ServerConfig{
			Addr:         ":8090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		OAuth: OAuthConfig{
			RedirectUrl: "http://localhost:8090/api/auth/callback",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Dsn:    filepath.Join(dir, constants.AppName+".db"),
		},
		Client: ClientConfig{
			ServerUrl:      "http://localhost:8090",
			PageSize:       constants.ClientPageSize,
			ReconnectDelay: 5 * time.Second,
			AgentAddr:      "localhost:8091",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, constants.AppName+".log"),
		},
	}
}

// Dir is the directory holding the config file, the sqlite database, the
// log file and the file keyring.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", constants.AppName), nil
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path, or the default config path when path is empty. A missing
// file yields the defaults. MAILPILOT_* environment variables override file
// values, e.g. MAILPILOT_OAUTH_CLIENT_SECRET for oauth.client_secret.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return cfg, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, or the default config path when path is empty,
// and returns the path written.
func Save(path string, cfg Config) (string, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing config to %s: %w", path, err)
	}
	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.OAuth.ClientSecret != "" {
		masked.OAuth.ClientSecret = redacted
	}
	if masked.Pubsub.VerificationToken != "" {
		masked.Pubsub.VerificationToken = redacted
	}
	if masked.Database.Driver == "postgres" && masked.Database.Dsn != "" {
		masked.Database.Dsn = redacted
	}
	return masked
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.frontend_url", cfg.Server.FrontendUrl)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("oauth.client_id", cfg.OAuth.ClientId)
	v.SetDefault("oauth.client_secret", cfg.OAuth.ClientSecret)
	v.SetDefault("oauth.redirect_url", cfg.OAuth.RedirectUrl)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.Dsn)

	v.SetDefault("pubsub.topic", cfg.Pubsub.Topic)
	v.SetDefault("pubsub.verification_token", cfg.Pubsub.VerificationToken)

	v.SetDefault("client.server_url", cfg.Client.ServerUrl)
	v.SetDefault("client.page_size", cfg.Client.PageSize)
	v.SetDefault("client.reconnect_delay", cfg.Client.ReconnectDelay)
	v.SetDefault("client.agent_addr", cfg.Client.AgentAddr)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
}

// ValidateServer checks what `serve` needs.
func ValidateServer(cfg Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.OAuth.ClientId == "" {
		return fmt.Errorf("oauth.client_id is required")
	}
	if cfg.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth.client_secret is required")
	}
	if cfg.OAuth.RedirectUrl == "" {
		return fmt.Errorf("oauth.redirect_url is required")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Dsn == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}

// ValidateClient checks what the terminal and agent clients need.
func ValidateClient(cfg Config) error {
	if cfg.Client.ServerUrl == "" {
		return fmt.Errorf("client.server_url is required")
	}
	if cfg.Client.PageSize <= 0 || cfg.Client.PageSize > 500 {
		return fmt.Errorf("client.page_size must be between 1 and 500")
	}
	if cfg.Client.ReconnectDelay <= 0 {
		return fmt.Errorf("client.reconnect_delay must be positive")
	}
	return nil
}

// LogLevel maps log.level to a slog level; unknown names mean info.
func LogLevel(cfg Config) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
