package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, int64(100), cfg.Client.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  write_timeout: 30s
oauth:
  client_id: cid
  client_secret: from-file
database:
  driver: postgres
  dsn: postgres://u:p@localhost/mail
client:
  page_size: 50
`), 0o600))
	t.Setenv("MAILPILOT_OAUTH_CLIENT_SECRET", "from-env")
	t.Setenv("MAILPILOT_PUBSUB_TOPIC", "projects/p/topics/gmail")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "cid", cfg.OAuth.ClientId)
	assert.Equal(t, "from-env", cfg.OAuth.ClientSecret)
	assert.Equal(t, "projects/p/topics/gmail", cfg.Pubsub.Topic)
	assert.Equal(t, int64(50), cfg.Client.PageSize)
	assert.NoError(t, ValidateServer(cfg))
}

func TestLoadRejectsBadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.OAuth.ClientId = "cid"
	cfg.Client.ServerUrl = "https://mail.example.com"

	written, err := Save(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.EqualError(t, ValidateServer(cfg), "oauth.client_id is required")
	cfg.OAuth.ClientId = "cid"
	cfg.OAuth.ClientSecret = "secret"
	assert.NoError(t, ValidateServer(cfg))
	cfg.Database.Driver = "mysql"
	assert.Error(t, ValidateServer(cfg))

	assert.NoError(t, ValidateClient(DefaultConfig()))
	cfg = DefaultConfig()
	cfg.Client.PageSize = 0
	assert.Error(t, ValidateClient(cfg))
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OAuth.ClientSecret = "secret"
	cfg.Pubsub.VerificationToken = "token"
	cfg.Database.Driver = "postgres"
	cfg.Database.Dsn = "postgres://u:p@h/db"

	masked := Redact(cfg)
	assert.Equal(t, "****", masked.OAuth.ClientSecret)
	assert.Equal(t, "****", masked.Pubsub.VerificationToken)
	assert.Equal(t, "****", masked.Database.Dsn)
	assert.Equal(t, "secret", cfg.OAuth.ClientSecret)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogLevel(Config{Log: LogConfig{Level: "debug"}}))
	assert.Equal(t, slog.LevelWarn, LogLevel(Config{Log: LogConfig{Level: "WARN"}}))
	assert.Equal(t, slog.LevelInfo, LogLevel(Config{Log: LogConfig{Level: "loud"}}))
}
