package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidmeta.log")
	log, err := New(Options{Level: "debug", Format: FormatJSON, File: path})
	require.NoError(t, err)

	log.Debug("tagged", zap.String("file", "grok_video_P1_v1.mp4"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "tagged", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "grok_video_P1_v1.mp4", entry["file"])
}

func TestNewFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidmeta.log")
	log, err := New(Options{Level: "warn", Format: FormatJSON, File: path})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewDefaults(t *testing.T) {
	log, err := New(Options{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestComponentNilLogger(t *testing.T) {
	assert.NotNil(t, Component(nil, "tagger"))
}
