package recommendation

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
)

// ScoreFunc returns the effective score of an item id.
type ScoreFunc func(id string) (float64, bool)

// RenderPlan writes a human-readable summary of p under label.  A nil plan
// renders as "(No feasible plan)".  c and score may be nil, in which case
// per-item attributes print as zero values.
func RenderPlan(w io.Writer, label string, p *Plan, c *catalog.Catalog, score ScoreFunc, bonus float64) error {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ---\n", label)
	if p == nil || len(p.Items) == 0 {
		b.WriteString("  (No feasible plan)\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	for _, id := range p.Items {
		var it catalog.Item
		if c != nil {
			it, _ = c.Get(id)
		}
		var s float64
		if score != nil {
			s, _ = score(id)
		}
		fmt.Fprintf(&b, "  - %s: %s, %smin, $%s, score=%s, category=%s\n",
			id, it.Timeslot, num(it.Duration), num(it.Price), num(s), it.Category)
	}
	fmt.Fprintf(&b, "  Total: $%s, %s min, satisfaction=%s, categories=[%s]\n",
		num(p.TotalPrice), num(p.TotalDuration), num(p.SatisfactionScore), strings.Join(p.CategoriesUsed, ", "))
	if len(p.CategoriesUsed) > 0 && bonus != 0 {
		fmt.Fprintf(&b, "  Diversity: %d categories -> bonus +%s\n",
			len(p.CategoriesUsed), num(float64(len(p.CategoriesUsed))*bonus))
	}
	fmt.Fprintf(&b, "  Objective (satisfaction + diversity): %s\n", num(p.ObjectiveValue))
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderResult writes every plan of r, or a single "(No feasible plan)"
// block when there are none.
func RenderResult(w io.Writer, r *Result, c *catalog.Catalog, score ScoreFunc, bonus float64) error {
	if r == nil || len(r.Plans) == 0 {
		return RenderPlan(w, "PLAN 1", nil, c, score, bonus)
	}
	for i := range r.Plans {
		label := "PLAN " + strconv.Itoa(r.Plans[i].Rank)
		if i == 0 {
			label += " (Best)"
		}
		if err := RenderPlan(w, label, &r.Plans[i], c, score, bonus); err != nil {
			return err
		}
	}
	for _, warn := range r.Warnings {
		if _, err := fmt.Fprintf(w, "warning %s: %s\n", warn.Code, warn.Message); err != nil {
			return err
		}
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
