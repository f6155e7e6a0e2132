package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jyothri/mailpilot/config"
	"github.com/jyothri/mailpilot/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "config", "init", "--client-id", "cid", "--client-secret", "shh", "--topic", "projects/p/topics/t")
	require.NoError(t, err)
	assert.Contains(t, out, "Config saved to "+path)

	_, err = execute(t, "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "cid", shown.OAuth.ClientId)
	assert.Equal(t, "****", shown.OAuth.ClientSecret)
	assert.Equal(t, "projects/p/topics/t", shown.Pubsub.Topic)

	out, err = execute(t, "--config", path, "config", "show", "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "client_secret: shh")
}

func TestServeRequiresOAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "--config", path, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth.client_id is required")
}

func TestPromptSessionKeyReadsLine(t *testing.T) {
	var out bytes.Buffer
	key, err := promptSessionKey(strings.NewReader("  abc123  \nrest"), &out)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
	assert.Equal(t, "Session key: ", out.String())

	key, err = promptSessionKey(strings.NewReader("no-newline"), &out)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", key)
}

func TestLoggerTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("Linked account", "display_name", "jane")

	line := buf.String()
	assert.NotContains(t, line, "hidden")
	assert.Regexp(t, `^time="\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d{1,3})?" level=INFO msg="Linked account" display_name=jane\n$`, line)
}

func TestPrintWatchStatus(t *testing.T) {
	var watched atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !watched.Load() {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Mailbox is not watched"}}`))
			return
		}
		w.Write([]byte(`{"topic":"projects/p/topics/t","historyId":"4242","expiration":"2026-01-08T00:00:00Z"}`))
	}))
	defer ts.Close()
	api := fetch.NewAPI(ts.URL, "key")

	var out bytes.Buffer
	require.NoError(t, printWatchStatus(context.Background(), api, &out))
	assert.Equal(t, "Not watching\n", out.String())

	watched.Store(true)
	out.Reset()
	require.NoError(t, printWatchStatus(context.Background(), api, &out))
	assert.Equal(t, "Watching projects/p/topics/t (historyId 4242, expires 2026-01-08T00:00:00Z)\n", out.String())
}
