package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func(string) { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Add("/in/a.json")
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, d.PendingCount())
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	d := NewDebouncer(20*time.Millisecond, func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
	})

	d.Add("a")
	d.Add("b")
	assert.Equal(t, 2, d.PendingCount())
	assert.True(t, d.IsPending("a"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a"] == 1 && seen["b"] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncer_Cancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func(string) { calls.Add(1) })

	d.Add("a")
	d.Add("b")
	d.Cancel("a")
	d.Cancel("missing")
	assert.False(t, d.IsPending("a"))

	d.CancelAll()
	assert.Equal(t, 0, d.PendingCount())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
