// Package ilp describes pure-binary integer linear programs and the oracle
// port that solves them.  Models are built once per solve and never shared
// between goroutines while being built.
package ilp

import "strings"

// Var is a handle to a binary decision variable of one Model.
type Var struct {
	index int
}

// Index returns the variable's position in the model.
func (v Var) Index() int { return v.index }

// Term is coef * var.
type Term struct {
	Var  Var
	Coef float64
}

// LinearExpr is a sum of terms plus a constant.  Methods chain:
//
//	e := ilp.NewLinearExpr().AddTerm(x, 3).AddSum(y, z).AddConstant(1)
type LinearExpr struct {
	terms    []Term
	constant float64
}

// NewLinearExpr returns an empty expression.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// AddTerm adds coef * v.
func (e *LinearExpr) AddTerm(v Var, coef float64) *LinearExpr {
	e.terms = append(e.terms, Term{Var: v, Coef: coef})
	return e
}

// AddSum adds every v with coefficient 1.
func (e *LinearExpr) AddSum(vs ...Var) *LinearExpr {
	for _, v := range vs {
		e.AddTerm(v, 1)
	}
	return e
}

// AddWeightedSum adds vs[i] * coefs[i].  Extra entries of the longer slice
// are ignored.
func (e *LinearExpr) AddWeightedSum(vs []Var, coefs []float64) *LinearExpr {
	n := len(vs)
	if len(coefs) < n {
		n = len(coefs)
	}
	for i := 0; i < n; i++ {
		e.AddTerm(vs[i], coefs[i])
	}
	return e
}

// AddExpr adds every term and the constant of o.
func (e *LinearExpr) AddExpr(o *LinearExpr) *LinearExpr {
	if o == nil {
		return e
	}
	e.terms = append(e.terms, o.terms...)
	e.constant += o.constant
	return e
}

// AddConstant adds c.
func (e *LinearExpr) AddConstant(c float64) *LinearExpr {
	e.constant += c
	return e
}

// Terms returns a copy of the terms.
func (e *LinearExpr) Terms() []Term {
	return append([]Term(nil), e.terms...)
}

// Constant returns the constant part.
func (e *LinearExpr) Constant() float64 { return e.constant }

// Evaluate computes the expression under a.
func (e *LinearExpr) Evaluate(a Assignment) float64 {
	sum := e.constant
	for _, t := range e.terms {
		if a.Value(t.Var) {
			sum += t.Coef
		}
	}
	return sum
}

// Dense folds duplicate variables and returns one coefficient per variable
// for a model with n variables.
func (e *LinearExpr) Dense(n int) []float64 {
	out := make([]float64, n)
	for _, t := range e.terms {
		if t.Var.index >= 0 && t.Var.index < n {
			out[t.Var.index] += t.Coef
		}
	}
	return out
}

// Clone returns a deep copy.
func (e *LinearExpr) Clone() *LinearExpr {
	if e == nil {
		return nil
	}
	return &LinearExpr{terms: e.Terms(), constant: e.constant}
}

// Sense is the relation of a constraint.
type Sense int

const (
	LessOrEqual Sense = iota
	GreaterOrEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return "?"
	}
}

// Constraint is Expr <Sense> RHS.
type Constraint struct {
	Name  string
	Expr  *LinearExpr
	Sense Sense
	RHS   float64
}

// Satisfied reports whether a meets the constraint within tol.
func (c Constraint) Satisfied(a Assignment, tol float64) bool {
	lhs := c.Expr.Evaluate(a)
	switch c.Sense {
	case LessOrEqual:
		return lhs <= c.RHS+tol
	case GreaterOrEqual:
		return lhs >= c.RHS-tol
	case Equal:
		return lhs >= c.RHS-tol && lhs <= c.RHS+tol
	default:
		return false
	}
}

// Assignment holds one value per model variable.
type Assignment []bool

// Value returns the value of v; out-of-range variables read as false.
func (a Assignment) Value(v Var) bool {
	return v.index >= 0 && v.index < len(a) && a[v.index]
}

// String renders the assignment as a 0/1 string.
func (a Assignment) String() string {
	var b strings.Builder
	for _, v := range a {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
