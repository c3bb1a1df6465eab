// Package tagger copies a video's streams into a new container with the
// prompt metadata written as container tags, using the ffmpeg binary.
package tagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrFFmpegNotFound is returned by Find when no ffmpeg binary can be located.
var ErrFFmpegNotFound = errors.New("ffmpeg not found")

// maxStderr bounds the stderr tail kept in an ExecError.
const maxStderr = 2048

// Job describes one tagging operation.
type Job struct {
	Source      string
	Destination string
	Comment     string // compact structured prompt
	Title       string // original prompt
	Genre       string // reference URL
}

// ExecError is returned when ffmpeg exits unsuccessfully.
type ExecError struct {
	Source string
	Stderr string // tail of ffmpeg's stderr
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed for %s: %v", e.Source, e.Err)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Runner executes a command and returns its captured stderr.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return stderrBuf.String(), err
}

// Find resolves the ffmpeg binary: explicit when it names an existing file or
// a command on PATH, then "ffmpeg" on PATH, then each of common in order.
func Find(explicit string, common []string) (string, error) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, nil
		}
		if p, err := exec.LookPath(explicit); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	for _, candidate := range common {
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", ErrFFmpegNotFound
}

// BuildArgs returns the ffmpeg arguments for job: a stream copy that keeps the
// source metadata and sets comment, title and genre. The destination is
// overwritten if present.
func BuildArgs(job Job) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", job.Source,
		"-c", "copy",
		"-map_metadata", "0",
		"-metadata", "comment=" + job.Comment,
		"-metadata", "title=" + job.Title,
		"-metadata", "genre=" + job.Genre,
		"-y", job.Destination,
	}
}

// Tagger runs tagging jobs.
type Tagger struct {
	Path   string
	Runner Runner
	Log    *zap.Logger
}

// New returns a Tagger using ffmpegPath and the os/exec runner.
func New(ffmpegPath string, log *zap.Logger) *Tagger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tagger{Path: ffmpegPath, Runner: ExecRunner{}, Log: log}
}

// Tag runs job. On failure the partial destination is removed.
func (t *Tagger) Tag(ctx context.Context, job Job) error {
	args := BuildArgs(job)
	t.Log.Debug("running ffmpeg",
		zap.String("source", job.Source),
		zap.String("destination", job.Destination))

	stderr, err := t.Runner.Run(ctx, t.Path, args)
	if err != nil {
		if rmErr := os.Remove(job.Destination); rmErr != nil && !os.IsNotExist(rmErr) {
			t.Log.Warn("could not remove partial output", zap.String("path", job.Destination), zap.Error(rmErr))
		}
		return &ExecError{Source: job.Source, Stderr: tail(stderr, maxStderr), Err: err}
	}
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (t *Tagger) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.Path, "-version").Output()
	if err != nil {
		return "", err
	}
	first := strings.TrimSpace(string(out))
	if idx := strings.Index(first, "\n"); idx > 0 {
		first = first[:idx]
	}
	return first, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
