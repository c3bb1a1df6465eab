package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidmeta/internal/config"
)

func TestApplyPositional(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyPositional(cfg, []string{"/opt/ffmpeg", "", "/out"}))
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "input", cfg.DefaultInputDir)
	assert.Equal(t, "/out", cfg.DefaultOutputDir)

	assert.Error(t, applyPositional(cfg, []string{"a", "b", "c", "d"}))
}

func setupWorkdir(t *testing.T) (in, out string) {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	in = filepath.Join(dir, "in")
	out = filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(in, 0755))
	sidecar := `{"original_prompt":"a cat","structured_prompt":{},"metadata":{"url":"https://grok.com/imagine/post/fa3f","download_time":"2025/10/20 07:23:07"}}`
	require.NoError(t, os.WriteFile(filepath.Join(in, "clip.json"), []byte(sidecar), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "clip.mp4"), []byte("v"), 0644))
	return in, out
}

func TestRun_PlanPrintsNames(t *testing.T) {
	in, out := setupWorkdir(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"plan", "", in, out}, &stdout, &stderr)

	assert.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "grok_video_fa3f_P1_v1.mp4")
	assert.Contains(t, stdout.String(), "Would tag 1 file(s)")
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_InvalidConfigIsUsageError(t *testing.T) {
	_, out := setupWorkdir(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"plan", "", filepath.Join(t.TempDir(), "missing"), out}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "default_input_dir")
}

func TestRun_UnknownFlag(t *testing.T) {
	setupWorkdir(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"plan", "-nope"}, &stdout, &stderr))
}

func TestRun_HistoryEmpty(t *testing.T) {
	setupWorkdir(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"history"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "No runs recorded")
}

func TestRun_UndoUsage(t *testing.T) {
	setupWorkdir(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"undo"}, &stdout, &stderr))

	stderr.Reset()
	assert.Equal(t, exitFailed, run(context.Background(), []string{"undo", "latest"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "no run to undo")
}

func TestRun_MissingFFmpeg(t *testing.T) {
	in, out := setupWorkdir(t)
	t.Setenv("PATH", t.TempDir())
	t.Setenv("VIDMETA_COMMON_FFMPEG_PATHS", filepath.Join(t.TempDir(), "ffmpeg"))
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"run", filepath.Join(t.TempDir(), "ffmpeg"), in, out}, &stdout, &stderr)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "ffmpeg")
}

// chdir is a stand-in for testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
