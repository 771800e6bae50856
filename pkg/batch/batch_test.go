package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	inputs := []int{1, 2, 3, 4, 5, 6, 7}

	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, Chunks(inputs, 3))
	assert.Len(t, Chunks(inputs, 0), 7)
	assert.Len(t, Chunks(inputs, 100), 1)
	assert.Empty(t, Chunks([]int{}, 3))
}

func TestRunPreservesInputOrder(t *testing.T) {
	inputs := make([]int, 23)
	for i := range inputs {
		inputs[i] = i
	}

	for _, size := range []int{1, 2, 5, 7, 23, 50} {
		out, err := Run(context.Background(), inputs, size, func(ctx context.Context, n int) (int, error) {
			// later inputs finish first inside a chunk
			time.Sleep(time.Duration(30-n%10) * 100 * time.Microsecond)
			return n * 10, nil
		})
		require.NoError(t, err)
		require.Len(t, out, len(inputs), "size %d", size)
		for i, v := range out {
			assert.Equal(t, i*10, v, "size %d index %d", size, i)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	inputs := make([]int, 20)

	_, err := Run(context.Background(), inputs, 4, func(ctx context.Context, _ int) (struct{}, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestRunSettlesChunkAndStopsOnFailure(t *testing.T) {
	boom := errors.New("rate limited")
	var mu sync.Mutex
	seen := map[int]bool{}

	_, err := Run(context.Background(), []int{0, 1, 2, 3, 4, 5}, 3, func(ctx context.Context, n int) (int, error) {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		if n == 1 {
			return 0, boom
		}
		return n, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var batchErr *Error
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, 0, batchErr.Chunk)

	// whole first chunk ran, second chunk never dispatched
	assert.True(t, seen[0] && seen[1] && seen[2])
	assert.False(t, seen[3] || seen[4] || seen[5])
}

func TestRunReportsLowestFailingIndex(t *testing.T) {
	lateFailed := make(chan struct{})

	_, err := Run(context.Background(), []int{0, 1, 2, 3}, 4, func(ctx context.Context, n int) (int, error) {
		switch n {
		case 3:
			defer close(lateFailed)
			return 0, errors.New("week 3 failed")
		case 1:
			<-lateFailed
			return 0, errors.New("week 1 failed")
		}
		return n, nil
	})

	var batchErr *Error
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.EqualError(t, batchErr.Err, "week 1 failed")
}

func TestRunEmptyInput(t *testing.T) {
	out, err := Run(context.Background(), nil, 3, func(ctx context.Context, n int) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}
