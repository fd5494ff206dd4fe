// Package planning turns a catalog, preferences and limits into ranked plans.
// It owns model construction, solution decoding and the top-K loop, and
// exposes them to transports through Service.
package planning

import (
	"fmt"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Handles map model variables back to the catalog.  Items[i] is the
// selection variable of catalog item i; CategoryVars[k] is the indicator of
// Categories[k].
type Handles struct {
	Items        []ilp.Var
	Categories   []string
	CategoryVars []ilp.Var
}

// Instance is one round's model plus the expressions the tie-break stages
// reuse.
type Instance struct {
	Model     *ilp.Model
	Handles   Handles
	Objective *ilp.LinearExpr
	ItemCount *ilp.LinearExpr
	Price     *ilp.LinearExpr
}

// ProblemBuilder builds a fresh model per call and keeps no state.
type ProblemBuilder struct{}

// NewProblemBuilder returns a ProblemBuilder.
func NewProblemBuilder() *ProblemBuilder { return &ProblemBuilder{} }

// Build translates the inputs into a binary program:
//
//	max   sum score_i x_i + bonus * sum y_c
//	s.t.  budget, item count and duration limits
//	      at most one item per timeslot
//	      y_c <= sum_{i in c} x_i <= |c| y_c
//	      each prior selection S is excluded exactly
func (b *ProblemBuilder) Build(c *catalog.Catalog, r *preference.Resolver, cons recommendation.Constraints, prior []recommendation.Selection) (*Instance, error) {
	if c == nil || r == nil {
		return nil, errors.InvalidConfig("catalog and resolver are required")
	}
	if r.Catalog() != c {
		return nil, errors.InvalidConfig("resolver was built for a different catalog")
	}
	if err := cons.Validate(); err != nil {
		return nil, err
	}

	m := ilp.NewModel("topk_plan")
	h := Handles{Items: make([]ilp.Var, c.Len())}
	for i := 0; i < c.Len(); i++ {
		h.Items[i] = m.NewBoolVar("x_" + c.At(i).ID)
	}
	h.Categories = c.Categories()
	h.CategoryVars = make([]ilp.Var, len(h.Categories))
	for k, cat := range h.Categories {
		h.CategoryVars[k] = m.NewBoolVar("y_" + cat)
	}

	objective := ilp.NewLinearExpr()
	count := ilp.NewLinearExpr()
	price := ilp.NewLinearExpr()
	duration := ilp.NewLinearExpr()
	for i, x := range h.Items {
		it := c.At(i)
		objective.AddTerm(x, r.ScoreAt(i))
		count.AddTerm(x, 1)
		price.AddTerm(x, it.Price)
		duration.AddTerm(x, it.Duration)
	}
	for _, y := range h.CategoryVars {
		objective.AddTerm(y, cons.DiversityBonusPerCategory)
	}
	m.Maximize(objective)

	m.AddConstraint("budget", price, ilp.LessOrEqual, cons.MaxBudget)
	m.AddConstraint("max_items", count, ilp.LessOrEqual, float64(cons.MaxItemCount))
	m.AddConstraint("max_duration", duration, ilp.LessOrEqual, cons.MaxTotalDuration)

	bySlot := c.IndicesByTimeslot()
	for _, slot := range c.Timeslots() {
		e := ilp.NewLinearExpr()
		for _, i := range bySlot[slot] {
			e.AddTerm(h.Items[i], 1)
		}
		m.AddConstraint("timeslot["+slot+"]", e, ilp.LessOrEqual, 1)
	}

	byCat := c.IndicesByCategory()
	for k, cat := range h.Categories {
		members := byCat[cat]
		y := h.CategoryVars[k]

		lower := ilp.NewLinearExpr().AddTerm(y, -1)
		upper := ilp.NewLinearExpr().AddTerm(y, -float64(len(members)))
		for _, i := range members {
			lower.AddTerm(h.Items[i], 1)
			upper.AddTerm(h.Items[i], 1)
		}
		m.AddConstraint("category_lower["+cat+"]", lower, ilp.GreaterOrEqual, 0)
		m.AddConstraint("category_upper["+cat+"]", upper, ilp.LessOrEqual, 0)
	}

	for n, sel := range prior {
		e, rhs, err := exclusion(c, h, sel)
		if err != nil {
			return nil, err
		}
		m.AddConstraint(fmt.Sprintf("exclude[%d]", n), e, ilp.GreaterOrEqual, rhs)
	}

	return &Instance{Model: m, Handles: h, Objective: objective, ItemCount: count, Price: price}, nil
}

// exclusion renders sum_{j not in S} x_j - sum_{i in S} x_i >= 1 - |S|, which
// cuts off exactly the assignment selecting S.
func exclusion(c *catalog.Catalog, h Handles, sel recommendation.Selection) (*ilp.LinearExpr, float64, error) {
	in := make(map[int]bool, len(sel))
	for _, id := range sel {
		i := c.IndexOf(id)
		if i < 0 {
			return nil, 0, errors.InvalidConfig("excluded selection references unknown item").WithDetail("id=" + id)
		}
		in[i] = true
	}
	e := ilp.NewLinearExpr()
	for i, x := range h.Items {
		if in[i] {
			e.AddTerm(x, -1)
		} else {
			e.AddTerm(x, 1)
		}
	}
	return e, 1 - float64(len(in)), nil
}
