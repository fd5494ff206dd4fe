package planning

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/ilp"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/internal/infrastructure/solver/bnb"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Solve(ctx context.Context, model *ilp.Model) (*ilp.Result, error) {
	args := m.Called(ctx, model)
	if r := args.Get(0); r != nil {
		return r.(*ilp.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleConstraints() recommendation.Constraints {
	return recommendation.Constraints{
		MaxBudget:                 catalog.SampleMaxBudget,
		MaxItemCount:              catalog.SampleMaxItemCount,
		MaxTotalDuration:          catalog.SampleMaxTotalDuration,
		DiversityBonusPerCategory: catalog.SampleDiversityBonus,
	}
}

func newBnBGenerator(t *testing.T, tieBreak bool) *TopKPlanGenerator {
	t.Helper()
	g, err := NewTopKPlanGenerator(bnb.New(bnb.Options{}, nil), GeneratorOptions{TieBreak: tieBreak}, nil)
	require.NoError(t, err)
	return g
}

func sampleInput(t *testing.T, topK int) GenerateInput {
	t.Helper()
	c := catalog.SampleGymCatalog()
	r, err := preference.NewResolver(c, nil)
	require.NoError(t, err)
	return GenerateInput{Catalog: c, Resolver: r, Constraints: sampleConstraints(), TopK: topK}
}

// feasibleSet is a brute-force enumerated selection.
type feasibleSet struct {
	ids       recommendation.Selection
	objective float64
	price     float64
}

// enumerate lists every non-empty feasible selection by objective, best
// first.
func enumerate(c *catalog.Catalog, r *preference.Resolver, cons recommendation.Constraints) []feasibleSet {
	var out []feasibleSet
	n := c.Len()
	for mask := 1; mask < 1<<n; mask++ {
		var price, duration, score float64
		count := 0
		slots := map[string]bool{}
		cats := map[string]bool{}
		ok := true
		var ids recommendation.Selection
		for i := 0; i < n; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			it := c.At(i)
			if slots[it.Timeslot] {
				ok = false
				break
			}
			slots[it.Timeslot] = true
			cats[it.Category] = true
			price += it.Price
			duration += it.Duration
			score += r.ScoreAt(i)
			count++
			ids = append(ids, it.ID)
		}
		if !ok || count > cons.MaxItemCount || price > cons.MaxBudget+1e-9 || duration > cons.MaxTotalDuration+1e-9 {
			continue
		}
		out = append(out, feasibleSet{ids: ids, objective: score + cons.DiversityBonusPerCategory*float64(len(cats)), price: price})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].objective > out[b].objective })
	return out
}

// randomCatalog builds a small catalog with positive integer scores so that
// every non-empty feasible selection beats the empty one.
func randomCatalog(rng *rand.Rand) *catalog.Catalog {
	slots := []string{"morning", "afternoon", "evening", "night"}
	cats := []string{"cardio", "strength", "mind_body"}
	n := 3 + rng.Intn(5)
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{
			ID:        string(rune('A' + i)),
			Price:     float64(5 + rng.Intn(20)),
			Duration:  float64(15 * (1 + rng.Intn(4))),
			Timeslot:  slots[rng.Intn(len(slots))],
			Category:  cats[rng.Intn(len(cats))],
			BaseScore: float64(1 + rng.Intn(10)),
		}
	}
	return catalog.MustCatalog(items)
}

// rankByTieBreak orders feasible sets the way the tie-break does: objective
// descending, then item count descending, then price ascending.
func rankByTieBreak(sets []feasibleSet) []feasibleSet {
	out := append([]feasibleSet(nil), sets...)
	sort.SliceStable(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if !approxEqual(x.objective, y.objective) {
			return x.objective > y.objective
		}
		if len(x.ids) != len(y.ids) {
			return len(x.ids) > len(y.ids)
		}
		return x.price < y.price-1e-9
	})
	return out
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }
