package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func TestDefaultRegistry_List(t *testing.T) {
	names := make([]string, 0)
	for _, p := range DefaultRegistry().List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"budget_focused", "cardio_lover", "default", "mind_body_fan", "mixed"}, names)
}

func TestRegistry_MergeOverridesWin(t *testing.T) {
	reg := DefaultRegistry()
	merged, err := reg.Merge(catalog.SampleGymCatalog(), "cardio_lover", Overrides{"Yoga": 7})
	require.NoError(t, err)
	assert.Equal(t, 7.0, merged["Yoga"])
	assert.Equal(t, 10.0, merged["HIIT"])
}

func TestRegistry_MergeDropsProfileItemsOutsideCatalog(t *testing.T) {
	small := catalog.MustCatalog([]catalog.Item{
		{ID: "HIIT", Price: 20, Duration: 45, Timeslot: "morning", Category: "cardio", BaseScore: 9},
	})
	r, err := DefaultRegistry().Resolve(small, "mixed", nil)
	require.NoError(t, err)
	assert.Equal(t, Overrides{"HIIT": 10}, r.Overrides())
}

func TestRegistry_ExplicitUnknownOverrideStillRejected(t *testing.T) {
	_, err := DefaultRegistry().Resolve(catalog.SampleGymCatalog(), "mixed", Overrides{"Rowing": 1})
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestRegistry_UnknownProfile(t *testing.T) {
	_, err := DefaultRegistry().Merge(catalog.SampleGymCatalog(), "night_owl", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestRegistry_DefaultAndEmptyProfileHaveNoOverrides(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"", DefaultProfile} {
		merged, err := reg.Merge(catalog.SampleGymCatalog(), name, nil)
		require.NoError(t, err)
		assert.Empty(t, merged)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg := DefaultRegistry()
	p, ok := reg.Get("mixed")
	require.True(t, ok)
	p.Scores["Yoga"] = 0

	again, _ := reg.Get("mixed")
	assert.Equal(t, 5.0, again.Scores["Yoga"])

	_, ok = reg.Get("nope")
	assert.False(t, ok)
}
