package ilp

import (
	"fmt"
	"math"

	"github.com/turtacn/topk-planner/pkg/errors"
)

// Direction is the optimization direction.
type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

// FeasibilityTolerance is the slack allowed when checking constraints.
const FeasibilityTolerance = 1e-9

// Model is a binary integer linear program.
type Model struct {
	name        string
	vars        []string
	constraints []Constraint
	objective   *LinearExpr
	direction   Direction
}

// NewModel returns an empty model that maximizes 0.
func NewModel(name string) *Model {
	return &Model{name: name, objective: NewLinearExpr()}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// NewBoolVar adds a binary variable.
func (m *Model) NewBoolVar(name string) Var {
	m.vars = append(m.vars, name)
	return Var{index: len(m.vars) - 1}
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// VarName returns the name given to v.
func (m *Model) VarName(v Var) string {
	if v.index < 0 || v.index >= len(m.vars) {
		return ""
	}
	return m.vars[v.index]
}

// AddConstraint appends expr <sense> rhs.  The expression is copied.
func (m *Model) AddConstraint(name string, expr *LinearExpr, sense Sense, rhs float64) {
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: expr.Clone(), Sense: sense, RHS: rhs})
}

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint {
	return append([]Constraint(nil), m.constraints...)
}

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Maximize sets the objective.
func (m *Model) Maximize(expr *LinearExpr) {
	m.objective = expr.Clone()
	m.direction = Maximize
}

// Minimize sets the objective.
func (m *Model) Minimize(expr *LinearExpr) {
	m.objective = expr.Clone()
	m.direction = Minimize
}

// Objective returns a copy of the objective and its direction.
func (m *Model) Objective() (*LinearExpr, Direction) {
	return m.objective.Clone(), m.direction
}

// ObjectiveValue evaluates the objective under a.
func (m *Model) ObjectiveValue(a Assignment) float64 {
	return m.objective.Evaluate(a)
}

// Feasible reports whether a satisfies every constraint.
func (m *Model) Feasible(a Assignment) bool {
	if len(a) != len(m.vars) {
		return false
	}
	for _, c := range m.constraints {
		if !c.Satisfied(a, FeasibilityTolerance) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy, so callers can add refinement constraints
// without touching the original.
func (m *Model) Clone() *Model {
	out := &Model{
		name:        m.name,
		vars:        append([]string(nil), m.vars...),
		constraints: make([]Constraint, len(m.constraints)),
		objective:   m.objective.Clone(),
		direction:   m.direction,
	}
	for i, c := range m.constraints {
		c.Expr = c.Expr.Clone()
		out.constraints[i] = c
	}
	return out
}

// Validate checks that every term references a variable of m and every
// number is finite.  A failure is an oracle-internal error.
func (m *Model) Validate() error {
	check := func(where string, e *LinearExpr) error {
		if e == nil {
			return errors.New(errors.ErrCodeOracleInternal, "malformed model").WithDetail(where + ": nil expression")
		}
		if !finite(e.constant) {
			return errors.New(errors.ErrCodeOracleInternal, "malformed model").WithDetail(where + ": non-finite constant")
		}
		for _, t := range e.terms {
			if t.Var.index < 0 || t.Var.index >= len(m.vars) {
				return errors.New(errors.ErrCodeOracleInternal, "malformed model").
					WithDetail(fmt.Sprintf("%s: variable %d out of range", where, t.Var.index))
			}
			if !finite(t.Coef) {
				return errors.New(errors.ErrCodeOracleInternal, "malformed model").
					WithDetail(fmt.Sprintf("%s: non-finite coefficient on %s", where, m.vars[t.Var.index]))
			}
		}
		return nil
	}
	if err := check("objective", m.objective); err != nil {
		return err
	}
	for _, c := range m.constraints {
		if err := check("constraint "+c.Name, c.Expr); err != nil {
			return err
		}
		if !finite(c.RHS) {
			return errors.New(errors.ErrCodeOracleInternal, "malformed model").WithDetail("constraint " + c.Name + ": non-finite rhs")
		}
		if c.Sense < LessOrEqual || c.Sense > Equal {
			return errors.New(errors.ErrCodeOracleInternal, "malformed model").WithDetail("constraint " + c.Name + ": unknown sense")
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
