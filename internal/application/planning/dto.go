package planning

import (
	"io"
	"time"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
)

// ItemInput is a catalog item supplied inline with a request.  Pointer
// fields distinguish a missing attribute from an explicit zero.
type ItemInput struct {
	ID        string   `json:"id" yaml:"id" validate:"required"`
	Price     *float64 `json:"price" yaml:"price" validate:"required,gte=0"`
	Duration  *float64 `json:"duration" yaml:"duration" validate:"required,gte=0"`
	Timeslot  string   `json:"timeslot" yaml:"timeslot" validate:"required"`
	Category  string   `json:"category" yaml:"category" validate:"required"`
	BaseScore *float64 `json:"base_score" yaml:"base_score" validate:"required"`
}

// ToItem converts a validated input.  Missing numbers become zero.
func (in ItemInput) ToItem() catalog.Item {
	return catalog.Item{
		ID:        in.ID,
		Price:     deref(in.Price),
		Duration:  deref(in.Duration),
		Timeslot:  in.Timeslot,
		Category:  in.Category,
		BaseScore: deref(in.BaseScore),
	}
}

// ItemInputFrom is the inverse of ToItem.
func ItemInputFrom(it catalog.Item) ItemInput {
	price, duration, score := it.Price, it.Duration, it.BaseScore
	return ItemInput{
		ID:        it.ID,
		Price:     &price,
		Duration:  &duration,
		Timeslot:  it.Timeslot,
		Category:  it.Category,
		BaseScore: &score,
	}
}

// ConstraintsInput holds optional limits.  Unset fields take the sample
// defaults (budget 50, 3 items, 150 minutes, bonus 2).
type ConstraintsInput struct {
	MaxBudget                 *float64 `json:"max_budget,omitempty" validate:"omitempty,gte=0"`
	MaxItemCount              *int     `json:"max_item_count,omitempty" validate:"omitempty,gte=0"`
	MaxTotalDuration          *float64 `json:"max_total_duration,omitempty" validate:"omitempty,gte=0"`
	DiversityBonusPerCategory *float64 `json:"diversity_bonus_per_category,omitempty" validate:"omitempty,gte=0"`
}

// Resolve fills unset limits with the sample defaults.
func (in ConstraintsInput) Resolve() recommendation.Constraints {
	c := recommendation.Constraints{
		MaxBudget:                 catalog.SampleMaxBudget,
		MaxItemCount:              catalog.SampleMaxItemCount,
		MaxTotalDuration:          catalog.SampleMaxTotalDuration,
		DiversityBonusPerCategory: catalog.SampleDiversityBonus,
	}
	if in.MaxBudget != nil {
		c.MaxBudget = *in.MaxBudget
	}
	if in.MaxItemCount != nil {
		c.MaxItemCount = *in.MaxItemCount
	}
	if in.MaxTotalDuration != nil {
		c.MaxTotalDuration = *in.MaxTotalDuration
	}
	if in.DiversityBonusPerCategory != nil {
		c.DiversityBonusPerCategory = *in.DiversityBonusPerCategory
	}
	return c
}

// ConstraintsInputFrom wraps fully specified limits.
func ConstraintsInputFrom(c recommendation.Constraints) ConstraintsInput {
	budget, count, duration, bonus := c.MaxBudget, c.MaxItemCount, c.MaxTotalDuration, c.DiversityBonusPerCategory
	return ConstraintsInput{
		MaxBudget:                 &budget,
		MaxItemCount:              &count,
		MaxTotalDuration:          &duration,
		DiversityBonusPerCategory: &bonus,
	}
}

// RecommendRequest is the transport-neutral request.  Exactly one of Items
// and CatalogID may be set; with neither, the configured default catalog is
// used.  An explicitly empty Items list is an empty catalog, not a request for
// the default.
type RecommendRequest struct {
	RequestID   string             `json:"request_id,omitempty" validate:"omitempty,max=128"`
	CatalogID   string             `json:"catalog_id,omitempty" validate:"omitempty,max=128"`
	Items       []ItemInput        `json:"items,omitempty" validate:"omitempty,dive"`
	Profile     string             `json:"profile,omitempty"`
	Preferences map[string]float64 `json:"preferences,omitempty"`
	Constraints ConstraintsInput   `json:"constraints"`
	// TopK defaults to planning.default_top_k.
	TopK      *int `json:"top_k,omitempty"`
	TimeoutMS int  `json:"timeout_ms,omitempty" validate:"gte=0"`
}

// RecommendResponse carries the ranked plans of one request.
type RecommendResponse struct {
	RequestID      string                     `json:"request_id"`
	CatalogID      string                     `json:"catalog_id,omitempty"`
	Profile        string                     `json:"profile,omitempty"`
	Plans          []recommendation.Plan      `json:"plans"`
	NoFeasiblePlan bool                       `json:"no_feasible_plan"`
	Termination    recommendation.Termination `json:"termination"`
	Rounds         int                        `json:"rounds"`
	Warnings       []recommendation.Warning   `json:"warnings,omitempty"`
	Constraints    recommendation.Constraints `json:"constraints"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	ElapsedMS      int64                      `json:"elapsed_ms"`

	catalog  *catalog.Catalog
	resolver *preference.Resolver
}

// Render writes the plans in the plain-text report format.  It is only
// available on responses produced in-process.
func (r *RecommendResponse) Render(w io.Writer) error {
	res := &recommendation.Result{
		Plans:          r.Plans,
		NoFeasiblePlan: r.NoFeasiblePlan,
		Termination:    r.Termination,
		Rounds:         r.Rounds,
		Warnings:       r.Warnings,
	}
	var score recommendation.ScoreFunc
	if r.resolver != nil {
		score = r.resolver.EffectiveScore
	}
	return recommendation.RenderResult(w, res, r.catalog, score, r.Constraints.DiversityBonusPerCategory)
}

// BatchItem is the outcome of one request in a batch.  Exactly one of
// Response and Err is set.
type BatchItem struct {
	Index    int
	Response *RecommendResponse
	Err      error
}

// PlansGeneratedEvent is published after every successful recommendation.
type PlansGeneratedEvent struct {
	EventID        string                     `json:"event_id"`
	RequestID      string                     `json:"request_id"`
	CatalogID      string                     `json:"catalog_id,omitempty"`
	Profile        string                     `json:"profile,omitempty"`
	Plans          []recommendation.Plan      `json:"plans"`
	NoFeasiblePlan bool                       `json:"no_feasible_plan"`
	Termination    recommendation.Termination `json:"termination"`
	OccurredAt     time.Time                  `json:"occurred_at"`
}

// CatalogView is a stored catalog as returned to clients.
type CatalogView struct {
	ID    string         `json:"id"`
	Items []catalog.Item `json:"items"`
}

// SaveCatalogRequest replaces or creates a stored catalog.
type SaveCatalogRequest struct {
	ID    string      `json:"id" yaml:"id" validate:"required,max=128"`
	Name  string      `json:"name" yaml:"name" validate:"max=256"`
	Items []ItemInput `json:"items" yaml:"items" validate:"required,min=1,dive"`
}

// Catalog builds the catalog described by a validated request.
func (r *SaveCatalogRequest) Catalog() (*catalog.Catalog, error) {
	items := make([]catalog.Item, len(r.Items))
	for i, in := range r.Items {
		items[i] = in.ToItem()
	}
	return catalog.NewCatalog(items)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
