package bnb

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func knapsack() (*ilp.Model, []ilp.Var) {
	m := ilp.NewModel("knapsack")
	vars := []ilp.Var{m.NewBoolVar("a"), m.NewBoolVar("b"), m.NewBoolVar("c"), m.NewBoolVar("d")}
	m.AddConstraint("weight", ilp.NewLinearExpr().AddWeightedSum(vars, []float64{5, 4, 6, 3}), ilp.LessOrEqual, 10)
	m.Maximize(ilp.NewLinearExpr().AddWeightedSum(vars, []float64{10, 40, 30, 50}))
	return m, vars
}

func TestSolve_Knapsack(t *testing.T) {
	m, vars := knapsack()
	res, err := New(Options{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)

	require.Equal(t, ilp.StatusOptimal, res.Status)
	assert.Equal(t, 90.0, res.ObjectiveValue)
	assert.True(t, res.Assignment.Value(vars[1]))
	assert.True(t, res.Assignment.Value(vars[3]))
	assert.True(t, m.Feasible(res.Assignment))
	assert.Positive(t, res.Nodes)
}

func TestSolve_Minimize(t *testing.T) {
	m := ilp.NewModel("cover")
	x := m.NewBoolVar("x")
	y := m.NewBoolVar("y")
	z := m.NewBoolVar("z")
	m.AddConstraint("need2", ilp.NewLinearExpr().AddSum(x, y, z), ilp.GreaterOrEqual, 2)
	m.Minimize(ilp.NewLinearExpr().AddTerm(x, 5).AddTerm(y, 2).AddTerm(z, 3).AddConstant(1))

	res, err := New(Options{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, ilp.StatusOptimal, res.Status)
	assert.Equal(t, 6.0, res.ObjectiveValue)
	assert.Equal(t, "011", res.Assignment.String())
}

func TestSolve_Equality(t *testing.T) {
	m := ilp.NewModel("eq")
	x := m.NewBoolVar("x")
	y := m.NewBoolVar("y")
	m.AddConstraint("one", ilp.NewLinearExpr().AddSum(x, y), ilp.Equal, 1)
	m.Maximize(ilp.NewLinearExpr().AddTerm(x, 1).AddTerm(y, 2))

	res, err := New(Options{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "01", res.Assignment.String())
}

func TestSolve_Infeasible(t *testing.T) {
	m := ilp.NewModel("infeasible")
	x := m.NewBoolVar("x")
	m.AddConstraint("ge2", ilp.NewLinearExpr().AddTerm(x, 1), ilp.GreaterOrEqual, 2)
	m.Maximize(ilp.NewLinearExpr().AddTerm(x, 1))

	res, err := New(Options{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusInfeasible, res.Status)
	assert.Nil(t, res.Assignment)
}

func TestSolve_EmptyModel(t *testing.T) {
	res, err := New(Options{}, nil).Solve(context.Background(), ilp.NewModel("empty"))
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusOptimal, res.Status)
	assert.Empty(t, res.Assignment)
}

func TestSolve_ExpiredDeadlineIsTimedOut(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	m, _ := knapsack()
	res, err := New(Options{}, nil).Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusTimedOut, res.Status)
	assert.Nil(t, res.Assignment)
}

func TestSolve_CancelledIsOracleError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, _ := knapsack()
	_, err := New(Options{}, nil).Solve(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOracleInternal))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolve_NodeLimitIsTimedOut(t *testing.T) {
	m := ilp.NewModel("wide")
	obj := ilp.NewLinearExpr()
	count := ilp.NewLinearExpr()
	for i := 0; i < 16; i++ {
		v := m.NewBoolVar("x")
		obj.AddTerm(v, float64(i+1))
		count.AddTerm(v, 1)
	}
	m.AddConstraint("half", count, ilp.LessOrEqual, 8)
	m.Maximize(obj)

	res, err := New(Options{NodeLimit: 3}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ilp.StatusTimedOut, res.Status)
}

func TestSolve_MalformedModel(t *testing.T) {
	m := ilp.NewModel("bad")
	x := m.NewBoolVar("x")
	m.Maximize(ilp.NewLinearExpr().AddTerm(x, math.Inf(1)))

	_, err := New(Options{}, nil).Solve(context.Background(), m)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOracleInternal))

	_, err = New(Options{}, nil).Solve(context.Background(), nil)
	assert.Error(t, err)
}

func TestSolve_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New(Options{CheckInterval: 16}, nil)

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(10)
		m := randomModel(rng, n, 1+rng.Intn(4))

		res, err := s.Solve(context.Background(), m)
		require.NoError(t, err)

		bestObj, feasible := bruteForce(m)
		if !feasible {
			assert.Equal(t, ilp.StatusInfeasible, res.Status, "trial %d", trial)
			continue
		}
		require.Equal(t, ilp.StatusOptimal, res.Status, "trial %d", trial)
		assert.True(t, m.Feasible(res.Assignment), "trial %d", trial)
		assert.InDelta(t, bestObj, res.ObjectiveValue, 1e-6, "trial %d", trial)
	}
}

func TestSolve_Deterministic(t *testing.T) {
	m := ilp.NewModel("ties")
	vars := []ilp.Var{m.NewBoolVar("a"), m.NewBoolVar("b"), m.NewBoolVar("c")}
	m.AddConstraint("one", ilp.NewLinearExpr().AddSum(vars...), ilp.LessOrEqual, 1)
	m.Maximize(ilp.NewLinearExpr().AddWeightedSum(vars, []float64{1, 1, 1}))

	s := New(Options{}, nil)
	first, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Solve(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, first.Assignment, again.Assignment)
	}
	assert.Equal(t, "100", first.Assignment.String())
}

func randomModel(rng *rand.Rand, n, rows int) *ilp.Model {
	m := ilp.NewModel("random")
	vars := make([]ilp.Var, n)
	for i := range vars {
		vars[i] = m.NewBoolVar("x")
	}
	senses := []ilp.Sense{ilp.LessOrEqual, ilp.LessOrEqual, ilp.GreaterOrEqual, ilp.Equal}
	for r := 0; r < rows; r++ {
		e := ilp.NewLinearExpr()
		total := 0.0
		for _, v := range vars {
			if rng.Intn(2) == 0 {
				c := float64(rng.Intn(11) - 3)
				e.AddTerm(v, c)
				total += math.Max(c, 0)
			}
		}
		m.AddConstraint("r", e, senses[rng.Intn(len(senses))], math.Floor(rng.Float64()*(total+1)))
	}
	obj := ilp.NewLinearExpr()
	for _, v := range vars {
		obj.AddTerm(v, float64(rng.Intn(21)-5))
	}
	if rng.Intn(4) == 0 {
		m.Minimize(obj)
	} else {
		m.Maximize(obj)
	}
	return m
}

func bruteForce(m *ilp.Model) (float64, bool) {
	n := m.NumVars()
	_, dir := m.Objective()
	best, found := 0.0, false
	for mask := 0; mask < 1<<n; mask++ {
		a := make(ilp.Assignment, n)
		for i := 0; i < n; i++ {
			a[i] = mask&(1<<i) != 0
		}
		if !m.Feasible(a) {
			continue
		}
		v := m.ObjectiveValue(a)
		if !found || (dir == ilp.Maximize && v > best) || (dir == ilp.Minimize && v < best) {
			best, found = v, true
		}
	}
	return best, found
}
