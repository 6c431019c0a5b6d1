package logging

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/config"
)

func TestNewWritesJSONToProjectLogFile(t *testing.T) {
	cfg, err := config.NewConfig(t.TempDir())
	require.NoError(t, err)

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Zap().Info("phase changed", zap.String("phase", "intro"))
	logger.Zap().Debug("hidden at info level")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(cfg.LogFilePath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "phase changed", entry["msg"])
	assert.Equal(t, "intro", entry["phase"])
	assert.Equal(t, "warroom", entry["logger"])
	assert.Contains(t, entry, "ts")
}

func TestNewAppendsAcrossRuns(t *testing.T) {
	cfg, err := config.NewConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Logging.Format = "console"

	for i := 0; i < 2; i++ {
		logger, err := New(cfg)
		require.NoError(t, err)
		logger.Zap().Warn("run")
		require.NoError(t, logger.Close())
	}
	data, err := os.ReadFile(cfg.LogFilePath())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "run"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNopIsSafe(t *testing.T) {
	l := Nop()
	l.Zap().Info("discarded")
	assert.NoError(t, l.Close())

	var nilLogger *Logger
	assert.NotNil(t, nilLogger.Zap())
	assert.NoError(t, nilLogger.Close())
}
