package ilp

import (
	"context"
	"time"
)

// Status is the outcome class of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusTimedOut   Status = "timed_out"
)

// Result is what an Oracle returns.  Assignment and ObjectiveValue are only
// meaningful when Status is StatusOptimal.
type Result struct {
	Status         Status
	Assignment     Assignment
	ObjectiveValue float64
	Nodes          int64
	Duration       time.Duration
}

// Oracle solves a model to proven optimality.  Infeasible, unbounded and
// timed-out outcomes are statuses, not errors; a non-nil error means the
// oracle itself failed (malformed model, cancelled context, internal fault).
// Implementations must be safe for concurrent use.
type Oracle interface {
	Solve(ctx context.Context, m *Model) (*Result, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, m *Model) (*Result, error)

// Solve calls f.
func (f OracleFunc) Solve(ctx context.Context, m *Model) (*Result, error) {
	return f(ctx, m)
}
