package recommendation

import (
	"sort"
	"strings"
)

// Selection is the set of item ids chosen in one round, in catalog order.
type Selection []string

// Key returns a canonical string for set comparison.
func (s Selection) Key() string {
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// Contains reports whether id is selected.
func (s Selection) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Equal reports whether s and o select the same items.
func (s Selection) Equal(o Selection) bool {
	return len(s) == len(o) && s.Key() == o.Key()
}

// Plan is one ranked recommendation.  ObjectiveValue equals
// SatisfactionScore + bonus * len(CategoriesUsed).
type Plan struct {
	Rank              int       `json:"rank"`
	Items             Selection `json:"items"`
	TotalPrice        float64   `json:"total_price"`
	TotalDuration     float64   `json:"total_duration"`
	SatisfactionScore float64   `json:"satisfaction_score"`
	CategoriesUsed    []string  `json:"categories_used"`
	ObjectiveValue    float64   `json:"objective_value"`
}

// Termination explains why top-K generation stopped.
type Termination string

const (
	// TerminationCompleted means K plans were produced.
	TerminationCompleted Termination = "completed"
	// TerminationExhausted means the oracle reported no further feasible
	// distinct selection.
	TerminationExhausted Termination = "exhausted"
	TerminationUnbounded Termination = "unbounded"
	TerminationTimedOut  Termination = "timed_out"
)

// Warning is a non-fatal note attached to a result, e.g. a timed-out round.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Round   int    `json:"round,omitempty"`
}

// Result is the outcome of one top-K run.  NoFeasiblePlan is set when the
// first round yielded nothing.
type Result struct {
	Plans          []Plan      `json:"plans"`
	NoFeasiblePlan bool        `json:"no_feasible_plan"`
	Termination    Termination `json:"termination"`
	Rounds         int         `json:"rounds"`
	Warnings       []Warning   `json:"warnings,omitempty"`
}
