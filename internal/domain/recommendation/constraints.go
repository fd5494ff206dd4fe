// Package recommendation holds the value types a top-K run consumes and
// produces: request limits, selections and ranked plans.
package recommendation

import (
	"fmt"
	"math"

	"github.com/turtacn/topk-planner/pkg/errors"
)

// Constraints are the per-request limits.  All values must be >= 0; a
// DiversityBonusPerCategory of 0 disables the diversity term.
type Constraints struct {
	MaxBudget                 float64 `json:"max_budget" yaml:"max_budget"`
	MaxItemCount              int     `json:"max_item_count" yaml:"max_item_count"`
	MaxTotalDuration          float64 `json:"max_total_duration" yaml:"max_total_duration"`
	DiversityBonusPerCategory float64 `json:"diversity_bonus_per_category" yaml:"diversity_bonus_per_category"`
}

// Validate returns an InvalidConfig error for negative or non-finite limits.
func (c Constraints) Validate() error {
	checks := []struct {
		name string
		val  float64
	}{
		{"max_budget", c.MaxBudget},
		{"max_item_count", float64(c.MaxItemCount)},
		{"max_total_duration", c.MaxTotalDuration},
		{"diversity_bonus_per_category", c.DiversityBonusPerCategory},
	}
	for _, ch := range checks {
		if math.IsNaN(ch.val) || math.IsInf(ch.val, 0) || ch.val < 0 {
			return errors.InvalidConfig("constraint must be a finite number >= 0").WithDetail(fmt.Sprintf("%s=%v", ch.name, ch.val))
		}
	}
	return nil
}
