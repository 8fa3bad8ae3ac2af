package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	var seen sync.Map
	err := ForEach(context.Background(), 50, 3, func(_ context.Context, i int) error {
		seen.Store(i, true)
		return nil
	})
	require.NoError(t, err)

	count := 0
	seen.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 50, count)
}

func TestForEach_Limit(t *testing.T) {
	var inFlight, peak atomic.Int32
	err := ForEach(context.Background(), 40, 2, func(_ context.Context, _ int) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestForEach_Error(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 10, 1, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := ForEach(ctx, 10, 2, func(_ context.Context, _ int) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestParallelize(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"empty", 0, 4},
		{"fewer items than workers", 3, 8},
		{"uneven split", 17, 4},
		{"default workers", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]int, tt.items)
			Parallelize(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					out[i] = i * 2
				}
			})
			for i, v := range out {
				assert.Equal(t, i*2, v)
			}
		})
	}
}
