package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/capture-crawler/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := logging.New(logging.Options{Level: "debug", Format: "json", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("probe", slog.String("url", "https://example.com/"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "probe", record["msg"])
	assert.Equal(t, "capture-crawler", record["service"])
	assert.Equal(t, "https://example.com/", record["url"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Level: "warn", Console: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_WritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "crawler.log")
	logger, closer, err := logging.New(logging.Options{File: path, Console: &buf})
	require.NoError(t, err)

	logger.Info("crawl started")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "crawl started")
	assert.Contains(t, buf.String(), "crawl started")
}

func TestNew_RejectsUnknownOptions(t *testing.T) {
	_, _, err := logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = logging.New(logging.Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
