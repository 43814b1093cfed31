package api

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolBasic(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 2, MaxSlowWorkers: 1})

	release, err := pool.Acquire(context.Background(), KindEval, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pool.Stats().Kinds["eval"].Active)

	release()
	release()
	stats := pool.Stats()
	assert.Equal(t, int64(0), stats.Kinds["eval"].Active)
	assert.Equal(t, int64(1), stats.Kinds["eval"].Total)
}

func TestWorkerPoolLanes(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		plies int
		slow  bool
	}{
		{"shallow eval", KindEval, 2, false},
		{"deep eval", KindEval, 3, true},
		{"shallow moves", KindMoves, 0, false},
		{"deep tutor", KindTutor, 4, true},
		{"rollout", KindRollout, 0, true},
		{"analysis", KindAnalysis, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1, DeepPly: 3})
			release, err := pool.Acquire(context.Background(), tc.kind, tc.plies)
			require.NoError(t, err)
			defer release()

			// A second request in the same lane has to wait.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			lane := KindEval
			if tc.slow {
				lane = KindRollout
			}
			_, err = pool.Acquire(ctx, lane, 0)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			if tc.slow && tc.kind != KindRollout && tc.kind != KindAnalysis {
				assert.Equal(t, int64(1), pool.Stats().Kinds[tc.kind.String()].Deep)
			}
		})
	}
}

func TestWorkerPoolDeepPlyDisabled(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 2, MaxSlowWorkers: 1})
	slow, err := pool.Acquire(context.Background(), KindRollout, 0)
	require.NoError(t, err)
	defer slow()

	release, err := pool.Acquire(context.Background(), KindEval, 4)
	require.NoError(t, err, "no deep lane without DeepPly")
	release()
}

func TestWorkerPoolQueueLimit(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1, MaxQueued: 1})
	release, err := pool.Acquire(context.Background(), KindRollout, 0)
	require.NoError(t, err)

	waiting := make(chan error, 1)
	go func() {
		r, err := pool.Acquire(context.Background(), KindAnalysis, 0)
		if err == nil {
			r()
		}
		waiting <- err
	}()
	require.Eventually(t, func() bool { return pool.Stats().Queued == 1 }, time.Second, time.Millisecond)

	_, err = pool.Acquire(context.Background(), KindRollout, 0)
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, int64(1), pool.Stats().Kinds["rollout"].Rejected)

	// Free fast workers are not counted against the queue.
	fast, err := pool.Acquire(context.Background(), KindCube, 1)
	require.NoError(t, err)
	fast()

	release()
	require.NoError(t, <-waiting)
	assert.Equal(t, int64(0), pool.Stats().Queued)
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	release, err := pool.Acquire(context.Background(), KindMoves, 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx, KindMoves, 0)
	assert.ErrorIs(t, err, context.Canceled)

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Kinds["moves"].Rejected)
	assert.Equal(t, int64(0), stats.Queued)
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 5, MaxSlowWorkers: 2})

	var (
		wg      sync.WaitGroup
		running int64
		peak    int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(kind Kind) {
			defer wg.Done()
			release, err := pool.Acquire(context.Background(), kind, 0)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			release()
		}(Kind(i % int(KindRollout)))
	}
	wg.Wait()

	var total int64
	for _, k := range pool.Stats().Kinds {
		total += k.Total
	}
	assert.Equal(t, int64(20), total)
	assert.LessOrEqual(t, peak, int64(5))
}

func TestWorkerPoolDefaults(t *testing.T) {
	stats := NewWorkerPool(PoolConfig{}).Stats()
	assert.Equal(t, DefaultPoolConfig().MaxFastWorkers, stats.MaxFast)
	assert.Equal(t, DefaultPoolConfig().MaxSlowWorkers, stats.MaxSlow)
	assert.Len(t, stats.Kinds, int(numKinds))

	stats = NewWorkerPool(PoolConfig{MaxFastWorkers: 10, MaxSlowWorkers: 4}).Stats()
	assert.Equal(t, 10, stats.MaxFast)
	assert.Equal(t, 4, stats.MaxSlow)
	assert.Equal(t, "unknown", Kind(99).String())
}
