package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/pkg/errors"
)

func TestExtract_Totals(t *testing.T) {
	in := sampleInput(t, 1)
	inst, err := NewProblemBuilder().Build(in.Catalog, in.Resolver, in.Constraints, nil)
	require.NoError(t, err)
	a := assignmentFor(inst, in.Catalog, "HIIT", "Pilates", "Zumba")

	e := NewSolutionExtractor()
	plan, err := e.Extract(in.Catalog, inst.Handles, a, in.Resolver, 2)
	require.NoError(t, err)

	assert.Equal(t, recommendation.Selection{"HIIT", "Pilates", "Zumba"}, plan.Items)
	assert.Equal(t, 50.0, plan.TotalPrice)
	assert.Equal(t, 150.0, plan.TotalDuration)
	assert.Equal(t, 21.0, plan.SatisfactionScore)
	assert.Equal(t, []string{"mind_body", "cardio"}, plan.CategoriesUsed)
	assert.Equal(t, 25.0, plan.ObjectiveValue)

	again, err := e.Extract(in.Catalog, inst.Handles, a, in.Resolver, 2)
	require.NoError(t, err)
	assert.Equal(t, plan, again)
}

func TestExtract_EmptySelection(t *testing.T) {
	in := sampleInput(t, 1)
	inst, err := NewProblemBuilder().Build(in.Catalog, in.Resolver, in.Constraints, nil)
	require.NoError(t, err)

	plan, err := NewSolutionExtractor().Extract(in.Catalog, inst.Handles, assignmentFor(inst, in.Catalog), in.Resolver, 2)
	require.NoError(t, err)
	assert.Empty(t, plan.Items)
	assert.Empty(t, plan.CategoriesUsed)
	assert.Zero(t, plan.ObjectiveValue)
}

func TestExtract_IndicatorMismatch(t *testing.T) {
	in := sampleInput(t, 1)
	inst, err := NewProblemBuilder().Build(in.Catalog, in.Resolver, in.Constraints, nil)
	require.NoError(t, err)
	e := NewSolutionExtractor()

	a := assignmentFor(inst, in.Catalog, "Boxing")
	a[inst.Handles.CategoryVars[0].Index()] = true
	_, err = e.Extract(in.Catalog, inst.Handles, a, in.Resolver, 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodePlanConsistency))

	a = assignmentFor(inst, in.Catalog, "Boxing")
	a[inst.Handles.CategoryVars[2].Index()] = false
	_, err = e.Extract(in.Catalog, inst.Handles, a, in.Resolver, 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodePlanConsistency))

	_, err = e.Extract(in.Catalog, inst.Handles, a[:3], in.Resolver, 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodePlanConsistency))
}
