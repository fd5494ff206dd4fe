package solver

import (
	"context"
	"time"

	"github.com/turtacn/topk-planner/internal/domain/ilp"
)

// Recorder receives one observation per oracle call.
type Recorder interface {
	SolveStarted()
	SolveFinished()
	ObserveSolve(status string, d time.Duration, nodes int64)
}

// Instrumented records every call of the wrapped oracle.
type Instrumented struct {
	oracle   ilp.Oracle
	recorder Recorder
}

// NewInstrumented wraps oracle.
func NewInstrumented(oracle ilp.Oracle, recorder Recorder) *Instrumented {
	return &Instrumented{oracle: oracle, recorder: recorder}
}

func (i *Instrumented) Solve(ctx context.Context, m *ilp.Model) (*ilp.Result, error) {
	i.recorder.SolveStarted()
	defer i.recorder.SolveFinished()

	start := time.Now()
	res, err := i.oracle.Solve(ctx, m)
	if err != nil {
		i.recorder.ObserveSolve("error", time.Since(start), 0)
		return nil, err
	}
	i.recorder.ObserveSolve(string(res.Status), time.Since(start), res.Nodes)
	return res, nil
}
