package tagger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name   string
	args   []string
	stderr string
	err    error
	write  bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	f.name, f.args = name, args
	if f.write {
		dst := args[len(args)-1]
		if err := os.WriteFile(dst, []byte("partial"), 0644); err != nil {
			return "", err
		}
	}
	return f.stderr, f.err
}

func TestBuildArgs(t *testing.T) {
	args := BuildArgs(Job{
		Source:      "in/a.mp4",
		Destination: "out/grok_video_P1_v1.mp4",
		Comment:     `{"scene":"x"}`,
		Title:       "a cat",
		Genre:       "https://grok.com/imagine/post/abc",
	})

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i in/a.mp4 -c copy -map_metadata 0")
	assert.Contains(t, args, `comment={"scene":"x"}`)
	assert.Contains(t, args, "title=a cat")
	assert.Contains(t, args, "genre=https://grok.com/imagine/post/abc")
	assert.Equal(t, []string{"-y", "out/grok_video_P1_v1.mp4"}, args[len(args)-2:])
}

func TestTagSuccess(t *testing.T) {
	runner := &fakeRunner{}
	tg := New("/usr/bin/ffmpeg", nil)
	tg.Runner = runner

	require.NoError(t, tg.Tag(context.Background(), Job{Source: "a.mp4", Destination: "b.mp4"}))
	assert.Equal(t, "/usr/bin/ffmpeg", runner.name)
	assert.Equal(t, "b.mp4", runner.args[len(runner.args)-1])
}

func TestTagFailureRemovesPartialOutput(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.mp4")
	cause := errors.New("exit status 1")
	runner := &fakeRunner{
		stderr: "Input #0\nin.mp4: Invalid data found when processing input\n",
		err:    cause,
		write:  true,
	}
	tg := New("ffmpeg", nil)
	tg.Runner = runner

	err := tg.Tag(context.Background(), Job{Source: "in.mp4", Destination: dst})
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.NoFileExists(t, dst)
}

func TestExecErrorKeepsStderrTail(t *testing.T) {
	long := strings.Repeat("x", maxStderr*2) + "\nlast line"
	tg := New("ffmpeg", nil)
	tg.Runner = &fakeRunner{stderr: long, err: errors.New("boom")}

	err := tg.Tag(context.Background(), Job{Source: "in.mp4", Destination: filepath.Join(t.TempDir(), "o.mp4")})
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Len(t, execErr.Stderr, maxStderr)
	assert.True(t, strings.HasSuffix(execErr.Stderr, "last line"))
}

func TestFindExplicitAndCommon(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "my-ffmpeg")
	require.NoError(t, os.WriteFile(explicit, []byte("#!/bin/sh\n"), 0755))

	got, err := Find(explicit, nil)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	t.Setenv("PATH", t.TempDir())
	common := filepath.Join(dir, "common-ffmpeg")
	require.NoError(t, os.WriteFile(common, []byte("#!/bin/sh\n"), 0755))

	got, err = Find(filepath.Join(dir, "missing"), []string{filepath.Join(dir, "nope"), common})
	require.NoError(t, err)
	assert.Equal(t, common, got)

	_, err = Find("", []string{filepath.Join(dir, "nope")})
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
}
