package planning

import (
	"fmt"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// SolutionExtractor decodes an assignment into a Plan.  It is pure.
type SolutionExtractor struct{}

// NewSolutionExtractor returns a SolutionExtractor.
func NewSolutionExtractor() *SolutionExtractor { return &SolutionExtractor{} }

// Extract reads the selected items from a, sums their catalog attributes and
// effective scores, and checks that the category indicators agree with the
// categories actually selected.  Rank is left zero for the caller.
func (e *SolutionExtractor) Extract(c *catalog.Catalog, h Handles, a ilp.Assignment, r *preference.Resolver, bonus float64) (recommendation.Plan, error) {
	var plan recommendation.Plan
	if len(h.Items) != c.Len() {
		return plan, errors.New(errors.ErrCodePlanConsistency, "handles do not match catalog").
			WithDetail(fmt.Sprintf("handles=%d items=%d", len(h.Items), c.Len()))
	}

	used := make(map[string]bool)
	plan.Items = recommendation.Selection{}
	for i, x := range h.Items {
		if x.Index() >= len(a) {
			return plan, errors.New(errors.ErrCodePlanConsistency, "assignment is shorter than the model")
		}
		if !a.Value(x) {
			continue
		}
		it := c.At(i)
		plan.Items = append(plan.Items, it.ID)
		plan.TotalPrice += it.Price
		plan.TotalDuration += it.Duration
		plan.SatisfactionScore += r.ScoreAt(i)
		used[it.Category] = true
	}

	plan.CategoriesUsed = []string{}
	for k, cat := range h.Categories {
		indicator := a.Value(h.CategoryVars[k])
		if indicator != used[cat] {
			return plan, errors.New(errors.ErrCodePlanConsistency, "category indicator disagrees with selection").
				WithDetail(fmt.Sprintf("category=%s indicator=%t selected=%t", cat, indicator, used[cat]))
		}
		if used[cat] {
			plan.CategoriesUsed = append(plan.CategoriesUsed, cat)
		}
	}
	plan.ObjectiveValue = plan.SatisfactionScore + bonus*float64(len(plan.CategoriesUsed))
	return plan, nil
}
