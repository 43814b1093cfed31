package api

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrPoolFull is returned when too many requests are already waiting for
// a worker.
var ErrPoolFull = errors.New("too many queued requests")

// Kind classifies an engine request for admission.
type Kind int

const (
	KindEval Kind = iota
	KindMoves
	KindCube
	KindTutor
	KindRollout
	KindAnalysis
	numKinds
)

var kindNames = [numKinds]string{"eval", "moves", "cube", "tutor", "rollout", "analysis"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// PoolConfig sizes a WorkerPool.
type PoolConfig struct {
	MaxFastWorkers int // quick requests running at once
	MaxSlowWorkers int // rollouts, analyses and deep evaluations running at once
	MaxQueued      int // requests allowed to wait for a worker, 0 for no limit
	DeepPly        int // lookahead at which a quick request takes a slow worker, 0 to disable
}

// DefaultPoolConfig returns the default pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxFastWorkers: 100,
		MaxSlowWorkers: 4,
		MaxQueued:      256,
		DeepPly:        3,
	}
}

type kindCounters struct {
	active   atomic.Int64
	total    atomic.Int64
	deep     atomic.Int64
	rejected atomic.Int64
}

// WorkerPool admits engine requests by kind. Rollouts and game analysis
// always run in the slow lane; other requests run in the fast lane unless
// they ask for DeepPly or more plies, which costs as much as a short
// rollout. Waiting requests beyond MaxQueued are turned away at once.
type WorkerPool struct {
	config PoolConfig
	fast   *semaphore.Weighted
	slow   *semaphore.Weighted
	queued atomic.Int64
	kinds  [numKinds]kindCounters
}

// NewWorkerPool creates a pool. Zero worker counts take the defaults.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxFastWorkers <= 0 {
		config.MaxFastWorkers = def.MaxFastWorkers
	}
	if config.MaxSlowWorkers <= 0 {
		config.MaxSlowWorkers = def.MaxSlowWorkers
	}
	return &WorkerPool{
		config: config,
		fast:   semaphore.NewWeighted(int64(config.MaxFastWorkers)),
		slow:   semaphore.NewWeighted(int64(config.MaxSlowWorkers)),
	}
}

// slowLane reports whether a request of kind k at the given lookahead
// needs a slow worker.
func (p *WorkerPool) slowLane(k Kind, plies int) bool {
	if k == KindRollout || k == KindAnalysis {
		return true
	}
	return p.config.DeepPly > 0 && plies >= p.config.DeepPly
}

func (p *WorkerPool) counters(k Kind) *kindCounters {
	if k < 0 || k >= numKinds {
		k = KindEval
	}
	return &p.kinds[k]
}

// Acquire waits for a worker for a request of kind k searching the given
// number of plies. The returned function gives the worker back and must
// be called exactly once.
func (p *WorkerPool) Acquire(ctx context.Context, k Kind, plies int) (func(), error) {
	c := p.counters(k)
	sem := p.fast
	deep := p.slowLane(k, plies)
	if deep {
		sem = p.slow
	}

	if !sem.TryAcquire(1) {
		if limit := p.config.MaxQueued; limit > 0 && p.queued.Load() >= int64(limit) {
			c.rejected.Add(1)
			return nil, ErrPoolFull
		}
		p.queued.Add(1)
		err := sem.Acquire(ctx, 1)
		p.queued.Add(-1)
		if err != nil {
			c.rejected.Add(1)
			return nil, err
		}
	}

	c.active.Add(1)
	c.total.Add(1)
	if deep && k != KindRollout && k != KindAnalysis {
		c.deep.Add(1)
	}
	var done atomic.Bool
	return func() {
		if done.Swap(true) {
			return
		}
		c.active.Add(-1)
		sem.Release(1)
	}, nil
}

// KindStats counts the requests of one kind.
type KindStats struct {
	Active   int64 `json:"active"`
	Total    int64 `json:"total"`
	Deep     int64 `json:"deep,omitempty"` // admitted to the slow lane by lookahead
	Rejected int64 `json:"rejected,omitempty"`
}

// PoolStats is a snapshot of the pool for the health endpoint.
type PoolStats struct {
	MaxFast   int                  `json:"max_fast"`
	MaxSlow   int                  `json:"max_slow"`
	MaxQueued int                  `json:"max_queued"`
	DeepPly   int                  `json:"deep_ply"`
	Queued    int64                `json:"queued"`
	Kinds     map[string]KindStats `json:"kinds"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	s := PoolStats{
		MaxFast:   p.config.MaxFastWorkers,
		MaxSlow:   p.config.MaxSlowWorkers,
		MaxQueued: p.config.MaxQueued,
		DeepPly:   p.config.DeepPly,
		Queued:    p.queued.Load(),
		Kinds:     make(map[string]KindStats, numKinds),
	}
	for k := Kind(0); k < numKinds; k++ {
		c := &p.kinds[k]
		s.Kinds[k.String()] = KindStats{
			Active:   c.active.Load(),
			Total:    c.total.Load(),
			Deep:     c.deep.Load(),
			Rejected: c.rejected.Load(),
		}
	}
	return s
}
