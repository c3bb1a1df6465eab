package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStabilityChecker_StableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	s := NewStabilityCheckerWithOptions(50*time.Millisecond, time.Second, 10*time.Millisecond)
	assert.NoError(t, s.WaitForStable(context.Background(), path))
}

func TestStabilityChecker_MissingFile(t *testing.T) {
	s := NewStabilityChecker(50 * time.Millisecond)
	err := s.WaitForStable(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStabilityChecker_GrowingFileTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.mp4")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		defer f.Close()
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				f.Write([]byte("x"))
			}
		}
	}()

	s := NewStabilityCheckerWithOptions(200*time.Millisecond, 150*time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, s.WaitForStable(context.Background(), path), ErrFileUnstable)
}

func TestStabilityChecker_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStabilityChecker(time.Second)
	assert.ErrorIs(t, s.WaitForStable(ctx, path), context.Canceled)
}

func TestNewStabilityChecker_MinimumInterval(t *testing.T) {
	s := NewStabilityChecker(0)
	assert.Equal(t, 50*time.Millisecond, s.interval)
	assert.Equal(t, time.Duration(0), s.GetThreshold())
}
