// Package bnb is a depth-first branch-and-bound oracle for pure-binary
// linear programs.  It proves optimality by exhaustive search with constraint
// activity bounds, unit propagation and an optimistic objective bound, which
// is ample for catalogs of a few dozen items.
package bnb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

const (
	tol                  = 1e-9
	defaultCheckInterval = 1024
)

// Options tunes a Solver.
type Options struct {
	// NodeLimit caps explored nodes per solve; hitting it yields TimedOut.
	// 0 means unlimited.
	NodeLimit int64
	// CheckInterval is how many nodes pass between context checks.
	CheckInterval int64
}

// Solver implements ilp.Oracle.  It holds no per-solve state and is safe for
// concurrent use.
type Solver struct {
	opts   Options
	logger logging.Logger
}

// New returns a Solver.  A nil logger discards output.
func New(opts Options, logger logging.Logger) *Solver {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaultCheckInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Solver{opts: opts, logger: logger.Named("bnb")}
}

var _ ilp.Oracle = (*Solver)(nil)

// Solve searches m to proven optimality.  A context deadline or the node
// limit yields StatusTimedOut with no assignment; cancellation and malformed
// models are returned as ErrCodeOracleInternal errors.  Binary programs are
// always bounded, so StatusUnbounded is never produced.
func (s *Solver) Solve(ctx context.Context, m *ilp.Model) (res *ilp.Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.New(errors.ErrCodeOracleInternal, "solver panic").WithDetail(fmt.Sprint(r))
		}
	}()

	if m == nil {
		return nil, errors.New(errors.ErrCodeOracleInternal, "nil model")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	status, err := contextStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" {
		return &ilp.Result{Status: status, Duration: time.Since(start)}, nil
	}

	sr := newSearch(ctx, m, s.opts)
	if sr.propagateRows(sr.allRows()) {
		sr.dfs()
	}

	res = &ilp.Result{Nodes: sr.nodes, Duration: time.Since(start)}
	switch {
	case sr.err != nil:
		return nil, sr.err
	case sr.stop != "":
		res.Status = sr.stop
	case sr.found:
		res.Status = ilp.StatusOptimal
		res.Assignment = sr.best
		res.ObjectiveValue = m.ObjectiveValue(sr.best)
	default:
		res.Status = ilp.StatusInfeasible
	}

	s.logger.Debug("solve finished",
		logging.String("model", m.Name()),
		logging.String("status", string(res.Status)),
		logging.Int64("nodes", res.Nodes),
		logging.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// contextStatus maps an expired context to TimedOut and a cancelled one to an
// oracle error.
func contextStatus(ctx context.Context) (ilp.Status, error) {
	cerr := ctx.Err()
	switch {
	case cerr == nil:
		return "", nil
	case stderrors.Is(cerr, context.DeadlineExceeded):
		return ilp.StatusTimedOut, nil
	default:
		return "", errors.Wrap(cerr, errors.ErrCodeOracleInternal, "solve cancelled")
	}
}

// row is a normalized constraint sum(coef*x) <= rhs with its current minimum
// activity over the free variables.
type row struct {
	idx    []int
	coef   []float64
	rhs    float64
	minAct float64
}

type rowRef struct {
	row  int
	coef float64
}

const free int8 = -1

type search struct {
	ctx   context.Context
	opts  Options
	obj   []float64
	base  float64
	rows  []row
	inc   [][]rowRef
	order []int

	val      []int8
	trail    []int
	fixedObj float64
	freePos  float64

	best    ilp.Assignment
	bestObj float64
	found   bool

	nodes int64
	stop  ilp.Status
	err   error
}

func newSearch(ctx context.Context, m *ilp.Model, opts Options) *search {
	n := m.NumVars()
	objExpr, dir := m.Objective()
	obj := objExpr.Dense(n)
	base := objExpr.Constant()
	if dir == ilp.Minimize {
		for i := range obj {
			obj[i] = -obj[i]
		}
		base = -base
	}

	s := &search{
		ctx:  ctx,
		opts: opts,
		obj:  obj,
		base: base,
		inc:  make([][]rowRef, n),
		val:  make([]int8, n),
	}
	for _, c := range m.Constraints() {
		dense := c.Expr.Dense(n)
		rhs := c.RHS - c.Expr.Constant()
		switch c.Sense {
		case ilp.LessOrEqual:
			s.addRow(dense, rhs, 1)
		case ilp.GreaterOrEqual:
			s.addRow(dense, rhs, -1)
		case ilp.Equal:
			s.addRow(dense, rhs, 1)
			s.addRow(dense, rhs, -1)
		}
	}

	for i := range s.val {
		s.val[i] = free
		if obj[i] > 0 {
			s.freePos += obj[i]
		}
	}

	s.order = make([]int, n)
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return abs(obj[s.order[a]]) > abs(obj[s.order[b]])
	})
	return s
}

func (s *search) addRow(dense []float64, rhs, sign float64) {
	r := row{rhs: sign * rhs}
	for j, a := range dense {
		if a == 0 {
			continue
		}
		a *= sign
		r.idx = append(r.idx, j)
		r.coef = append(r.coef, a)
		if a < 0 {
			r.minAct += a
		}
	}
	ri := len(s.rows)
	s.rows = append(s.rows, r)
	for k, j := range r.idx {
		s.inc[j] = append(s.inc[j], rowRef{row: ri, coef: r.coef[k]})
	}
}

func (s *search) allRows() []int {
	out := make([]int, len(s.rows))
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *search) fix(j int, v int8) {
	s.val[j] = v
	s.trail = append(s.trail, j)
	c := s.obj[j]
	if c > 0 {
		s.freePos -= c
	}
	if v == 1 {
		s.fixedObj += c
	}
	for _, ref := range s.inc[j] {
		s.rows[ref.row].minAct += activityDelta(ref.coef, v)
	}
}

func (s *search) undo(mark int) {
	for len(s.trail) > mark {
		j := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		v := s.val[j]
		c := s.obj[j]
		if c > 0 {
			s.freePos += c
		}
		if v == 1 {
			s.fixedObj -= c
		}
		for _, ref := range s.inc[j] {
			s.rows[ref.row].minAct -= activityDelta(ref.coef, v)
		}
		s.val[j] = free
	}
}

// activityDelta is the change in a row's minimum activity when a free
// variable with coefficient a is fixed to v.
func activityDelta(a float64, v int8) float64 {
	d := a * float64(v)
	if a < 0 {
		d -= a
	}
	return d
}

// propagateRows checks the queued rows and fixes every variable whose other
// value would violate one of them.  It reports false on a conflict.
func (s *search) propagateRows(queue []int) bool {
	for len(queue) > 0 {
		r := &s.rows[queue[0]]
		queue = queue[1:]
		slack := r.rhs - r.minAct
		if slack < -tol {
			return false
		}
		for k, j := range r.idx {
			if s.val[j] != free {
				continue
			}
			a := r.coef[k]
			var forced int8
			switch {
			case a > slack+tol:
				forced = 0
			case -a > slack+tol:
				forced = 1
			default:
				continue
			}
			s.fix(j, forced)
			for _, ref := range s.inc[j] {
				queue = append(queue, ref.row)
			}
		}
	}
	return true
}

func (s *search) rowsOf(j int) []int {
	out := make([]int, len(s.inc[j]))
	for i, ref := range s.inc[j] {
		out[i] = ref.row
	}
	return out
}

func (s *search) halted() bool {
	return s.stop != "" || s.err != nil
}

func (s *search) nextFree() int {
	for _, j := range s.order {
		if s.val[j] == free {
			return j
		}
	}
	return -1
}

func (s *search) dfs() {
	if s.halted() {
		return
	}
	s.nodes++
	if s.opts.NodeLimit > 0 && s.nodes > s.opts.NodeLimit {
		s.stop = ilp.StatusTimedOut
		return
	}
	if s.nodes%s.opts.CheckInterval == 0 {
		if status, err := contextStatus(s.ctx); err != nil || status != "" {
			s.stop, s.err = status, err
			return
		}
	}

	current := s.base + s.fixedObj
	if s.found && current+s.freePos <= s.bestObj+tol {
		return
	}

	j := s.nextFree()
	if j < 0 {
		if !s.found || current > s.bestObj+tol {
			s.found = true
			s.bestObj = current
			s.best = make(ilp.Assignment, len(s.val))
			for i, v := range s.val {
				s.best[i] = v == 1
			}
		}
		return
	}

	first := int8(0)
	if s.obj[j] > 0 {
		first = 1
	}
	for _, v := range [2]int8{first, 1 - first} {
		mark := len(s.trail)
		s.fix(j, v)
		if s.propagateRows(s.rowsOf(j)) {
			s.dfs()
		}
		s.undo(mark)
		if s.halted() {
			return
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
