// Package preference resolves the score each catalog item contributes to a
// plan, combining base scores with per-request overrides.
package preference

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Overrides maps item id to a replacement score.
type Overrides map[string]float64

// Clone returns a copy of o.  nil stays nil.
func (o Overrides) Clone() Overrides {
	if o == nil {
		return nil
	}
	out := make(Overrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Resolver answers EffectiveScore for one catalog.  It is immutable.
type Resolver struct {
	catalog *catalog.Catalog
	scores  []float64
	source  Overrides
}

// NewResolver binds overrides to c.  Every override id must name an item in
// c and every score must be finite; otherwise an InvalidConfig error is
// returned.
func NewResolver(c *catalog.Catalog, overrides Overrides) (*Resolver, error) {
	if c == nil {
		return nil, errors.InvalidConfig("catalog must not be nil")
	}
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !c.Contains(id) {
			return nil, errors.InvalidConfig("preference override references unknown item").WithDetail("id=" + id)
		}
		if s := overrides[id]; math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.InvalidConfig("preference override must be finite").WithDetail(fmt.Sprintf("id=%s score=%v", id, s))
		}
	}

	scores := make([]float64, c.Len())
	for i := range scores {
		it := c.At(i)
		if s, ok := overrides[it.ID]; ok {
			scores[i] = s
		} else {
			scores[i] = it.BaseScore
		}
	}
	return &Resolver{catalog: c, scores: scores, source: overrides.Clone()}, nil
}

// Catalog returns the catalog the resolver was built for.
func (r *Resolver) Catalog() *catalog.Catalog { return r.catalog }

// EffectiveScore returns the score of item id: its override if present,
// otherwise its base score.  Unknown ids yield false.
func (r *Resolver) EffectiveScore(id string) (float64, bool) {
	i := r.catalog.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return r.scores[i], true
}

// ScoreAt returns the effective score of the i-th catalog item.
func (r *Resolver) ScoreAt(i int) float64 { return r.scores[i] }

// Overrides returns a copy of the overrides in effect.
func (r *Resolver) Overrides() Overrides { return r.source.Clone() }
