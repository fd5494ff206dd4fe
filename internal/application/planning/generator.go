package planning

import (
	"context"
	"fmt"
	"math"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// GeneratorOptions tunes a TopKPlanGenerator.
type GeneratorOptions struct {
	// TieBreak enables the two refinement solves that prefer more items and
	// then a lower total price among plans tied on the objective.
	TieBreak bool
}

// GenerateInput is one top-K run.  Resolver must have been built for Catalog.
type GenerateInput struct {
	Catalog     *catalog.Catalog
	Resolver    *preference.Resolver
	Constraints recommendation.Constraints
	TopK        int
}

// TopKPlanGenerator produces up to K distinct plans in non-increasing
// objective order by re-solving with each earlier selection excluded.
type TopKPlanGenerator struct {
	oracle    ilp.Oracle
	builder   *ProblemBuilder
	extractor *SolutionExtractor
	opts      GeneratorOptions
	logger    logging.Logger
}

// NewTopKPlanGenerator returns a generator calling oracle once per round, or
// three times per round with tie-breaking enabled.
func NewTopKPlanGenerator(oracle ilp.Oracle, opts GeneratorOptions, logger logging.Logger) (*TopKPlanGenerator, error) {
	if oracle == nil {
		return nil, errors.InvalidParam("oracle cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopKPlanGenerator{
		oracle:    oracle,
		builder:   NewProblemBuilder(),
		extractor: NewSolutionExtractor(),
		opts:      opts,
		logger:    logger.Named("topk"),
	}, nil
}

type genState int

const (
	stateInit genState = iota
	stateSolving
	stateDone
)

// run is the mutable state of one Generate call.
type run struct {
	in         GenerateInput
	state      genState
	round      int
	plans      []recommendation.Plan
	exclusions []recommendation.Selection
	term       recommendation.Termination
	warnings   []recommendation.Warning
}

// Generate executes the Init -> Solving -> Done machine.  Infeasible,
// unbounded and timed-out rounds end generation early and are reported in
// Result.Termination; only input problems and oracle failures are errors.
func (g *TopKPlanGenerator) Generate(ctx context.Context, in GenerateInput) (*recommendation.Result, error) {
	r := &run{in: in, state: stateInit}
	for r.state != stateDone {
		switch r.state {
		case stateInit:
			if err := validateInput(in); err != nil {
				return nil, err
			}
			r.round = 1
			r.state = stateSolving
		case stateSolving:
			if r.round > in.TopK {
				r.term = recommendation.TerminationCompleted
				r.state = stateDone
				continue
			}
			if err := g.step(ctx, r); err != nil {
				return nil, err
			}
		}
	}

	res := &recommendation.Result{
		Plans:          r.plans,
		NoFeasiblePlan: len(r.plans) == 0,
		Termination:    r.term,
		Rounds:         r.round,
		Warnings:       r.warnings,
	}
	if res.Plans == nil {
		res.Plans = []recommendation.Plan{}
	}
	if r.round > in.TopK {
		res.Rounds = in.TopK
	}
	return res, nil
}

func validateInput(in GenerateInput) error {
	if in.Catalog == nil || in.Catalog.Len() == 0 {
		return errors.InvalidConfig("catalog must contain at least one item")
	}
	if in.Resolver == nil {
		return errors.InvalidConfig("resolver is required")
	}
	if in.TopK < 1 {
		return errors.InvalidConfig("top_k must be >= 1").WithDetail(fmt.Sprintf("top_k=%d", in.TopK))
	}
	return in.Constraints.Validate()
}

// step runs one round and advances the machine.
func (g *TopKPlanGenerator) step(ctx context.Context, r *run) error {
	inst, err := g.builder.Build(r.in.Catalog, r.in.Resolver, r.in.Constraints, r.exclusions)
	if err != nil {
		return err
	}

	res, err := g.solve(ctx, inst.Model, r.round, "primary")
	if err != nil {
		return err
	}
	if res.Status == ilp.StatusOptimal && g.opts.TieBreak {
		if res, err = g.refine(ctx, inst, res, r.round); err != nil {
			return err
		}
	}

	g.logger.Debug("round solved",
		logging.Int("round", r.round),
		logging.String("status", string(res.Status)),
		logging.Float64("objective", res.ObjectiveValue),
		logging.Int64("nodes", res.Nodes),
	)

	switch res.Status {
	case ilp.StatusOptimal:
		return g.accept(r, inst, res.Assignment)
	case ilp.StatusInfeasible:
		r.term = recommendation.TerminationExhausted
	case ilp.StatusUnbounded:
		r.term = recommendation.TerminationUnbounded
	case ilp.StatusTimedOut:
		g.logger.Warn("round timed out, returning plans found so far",
			logging.Int("round", r.round),
			logging.Int("plans", len(r.plans)),
		)
		r.term = recommendation.TerminationTimedOut
		r.warnings = append(r.warnings, recommendation.Warning{
			Code:    errors.ErrCodeSolveTimedOut.String(),
			Message: fmt.Sprintf("solver timed out in round %d; returning %d plan(s)", r.round, len(r.plans)),
			Round:   r.round,
		})
	default:
		return errors.New(errors.ErrCodeOracleInternal, "oracle returned an unknown status").
			WithDetail(string(res.Status))
	}
	r.state = stateDone
	return nil
}

// accept decodes an optimal assignment into the next plan.  An empty optimal
// selection yields no plan and ends generation.
func (g *TopKPlanGenerator) accept(r *run, inst *Instance, a ilp.Assignment) error {
	plan, err := g.extractor.Extract(r.in.Catalog, inst.Handles, a, r.in.Resolver, r.in.Constraints.DiversityBonusPerCategory)
	if err != nil {
		return err
	}
	if len(plan.Items) == 0 {
		r.term = recommendation.TerminationExhausted
		r.state = stateDone
		return nil
	}
	for _, prev := range r.exclusions {
		if prev.Equal(plan.Items) {
			return errors.New(errors.ErrCodePlanConsistency, "oracle returned an excluded selection").
				WithDetail(fmt.Sprintf("round=%d items=%v", r.round, plan.Items))
		}
	}
	plan.Rank = len(r.plans) + 1
	r.plans = append(r.plans, plan)
	r.exclusions = append(r.exclusions, plan.Items)
	r.round++
	return nil
}

// refine re-solves among the assignments tied with primary: first the
// largest item count, then the lowest total price.
func (g *TopKPlanGenerator) refine(ctx context.Context, inst *Instance, primary *ilp.Result, round int) (*ilp.Result, error) {
	z := primary.ObjectiveValue
	eps := 1e-6 * math.Max(1, math.Abs(z))

	byCount := inst.Model.Clone()
	byCount.AddConstraint("tie_objective", inst.Objective, ilp.GreaterOrEqual, z-eps)
	byCount.Maximize(inst.ItemCount)
	res, err := g.solve(ctx, byCount, round, "tie_count")
	if err != nil || res.Status != ilp.StatusOptimal {
		return refinementOutcome(res, err, round, "tie_count")
	}

	byPrice := byCount.Clone()
	byPrice.AddConstraint("tie_items", inst.ItemCount, ilp.GreaterOrEqual, math.Round(res.ObjectiveValue))
	byPrice.Minimize(inst.Price)
	res, err = g.solve(ctx, byPrice, round, "tie_price")
	if err != nil || res.Status != ilp.StatusOptimal {
		return refinementOutcome(res, err, round, "tie_price")
	}

	res.ObjectiveValue = inst.Objective.Evaluate(res.Assignment)
	return res, nil
}

// refinementOutcome passes TimedOut through and turns any other non-optimal
// status into a consistency error, since the primary optimum satisfies every
// refinement constraint.
func refinementOutcome(res *ilp.Result, err error, round int, stage string) (*ilp.Result, error) {
	if err != nil {
		return nil, err
	}
	if res.Status == ilp.StatusTimedOut {
		return res, nil
	}
	return nil, errors.New(errors.ErrCodePlanConsistency, "tie-break refinement lost the primary optimum").
		WithDetail(fmt.Sprintf("round=%d stage=%s status=%s", round, stage, res.Status))
}

func (g *TopKPlanGenerator) solve(ctx context.Context, m *ilp.Model, round int, stage string) (*ilp.Result, error) {
	res, err := g.oracle.Solve(ctx, m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeOracleInternal, "oracle failed").
			WithDetail(fmt.Sprintf("round=%d stage=%s", round, stage))
	}
	if res == nil {
		return nil, errors.New(errors.ErrCodeOracleInternal, "oracle returned no result").
			WithDetail(fmt.Sprintf("round=%d stage=%s", round, stage))
	}
	if res.Status == ilp.StatusOptimal && len(res.Assignment) != m.NumVars() {
		return nil, errors.New(errors.ErrCodeOracleInternal, "oracle assignment does not match model").
			WithDetail(fmt.Sprintf("round=%d stage=%s vars=%d assignment=%d", round, stage, m.NumVars(), len(res.Assignment)))
	}
	return res, nil
}
