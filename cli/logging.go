package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jyothri/mailpilot/config"
)

const timeFormat = "2006-01-02 15:04:05.999"

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
			return a
		},
		Level: level,
	}
	return slog.New(slog.NewTextHandler(w, options))
}

func setupLogging(cfg config.Config) {
	level := config.LogLevel(cfg)
	slog.SetDefault(newLogger(os.Stdout, level))
	slog.SetLogLoggerLevel(level)
}

// setupFileLogging sends logs to log.file while the terminal UI owns stdout.
// The returned func closes the file.
func setupFileLogging(cfg config.Config) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	slog.SetDefault(newLogger(f, config.LogLevel(cfg)))
	return func() { f.Close() }, nil
}
