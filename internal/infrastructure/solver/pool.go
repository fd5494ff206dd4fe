// Package solver holds oracle decorators: a concurrency-bounded pool and a
// metrics-recording wrapper.  Both wrap any ilp.Oracle.
package solver

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Pool bounds the number of concurrent solves across all requests.
type Pool struct {
	oracle   ilp.Oracle
	sem      *semaphore.Weighted
	size     int64
	inflight atomic.Int64
	logger   logging.Logger
}

// NewPool wraps oracle so that at most size solves run at once.
func NewPool(oracle ilp.Oracle, size int, logger logging.Logger) (*Pool, error) {
	if oracle == nil {
		return nil, errors.InvalidParam("oracle cannot be nil")
	}
	if size < 1 {
		return nil, errors.InvalidParam("pool size must be >= 1")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pool{
		oracle: oracle,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		logger: logger.Named("solver_pool"),
	}, nil
}

// Solve waits for a slot and delegates.  Running out of time while waiting
// is reported as TimedOut, like a solve that hit its deadline.
func (p *Pool) Solve(ctx context.Context, m *ilp.Model) (*ilp.Result, error) {
	waitStart := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("deadline expired waiting for solver slot", logging.Duration("waited", time.Since(waitStart)))
			return &ilp.Result{Status: ilp.StatusTimedOut}, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeOracleInternal, "waiting for solver slot")
	}
	defer p.sem.Release(1)

	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	return p.oracle.Solve(ctx, m)
}

// InFlight returns the number of solves currently running.
func (p *Pool) InFlight() int64 { return p.inflight.Load() }

// Size returns the pool capacity.
func (p *Pool) Size() int64 { return p.size }
