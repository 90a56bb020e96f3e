package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cie10-predict-server/internal/domain"
)

type fakeLookup struct {
	descriptions map[string]string
	err          error
	calls        int
	lastCodes    []string
}

func (f *fakeLookup) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	f.calls++
	f.lastCodes = codes
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptions, nil
}

func TestEnrichTopLevelSynthesizesLocally(t *testing.T) {
	lookup := &fakeLookup{}
	en := NewEnricher(lookup, testLogger())

	out := en.EnrichTopLevel([]domain.RankedPrediction{
		{Label: "Enfermedades del Sistema Respiratorio", Probability: 41.2},
		{Label: "Tumores", Probability: 12.01},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "Grupo CIE-10: Enfermedades del Sistema Respiratorio", out[0].Description)
	assert.Equal(t, "Grupo CIE-10: Tumores", out[1].Description)
	// The top-level path never reaches the reference store.
	assert.Zero(t, lookup.calls)
}

func TestEnrichCategoryBatchesOneLookup(t *testing.T) {
	lookup := &fakeLookup{descriptions: map[string]string{
		"A09": "Diarrea y gastroenteritis de presunto origen infeccioso",
		"A90": "Fiebre del dengue",
	}}
	en := NewEnricher(lookup, testLogger())

	out := en.EnrichCategory(context.Background(), []domain.RankedPrediction{
		{Label: "A09", Probability: 55.5},
		{Label: "A90", Probability: 30.0},
		{Label: "B99", Probability: 14.5},
	})

	require.Len(t, out, 3)
	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, []string{"A09", "A90", "B99"}, lookup.lastCodes)

	assert.Equal(t, "Diarrea y gastroenteritis de presunto origen infeccioso", out[0].Description)
	assert.Equal(t, "Fiebre del dengue", out[1].Description)
	// Unrecognized codes fall back to a placeholder, never an error.
	assert.Equal(t, "Descripción no disponible", out[2].Description)
}

func TestEnrichCategoryLookupFailureServesPlaceholders(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("connection refused")}
	en := NewEnricher(lookup, testLogger())

	out := en.EnrichCategory(context.Background(), []domain.RankedPrediction{
		{Label: "A09", Probability: 80.0},
		{Label: "J18", Probability: 20.0},
	})

	require.Len(t, out, 2)
	for _, p := range out {
		assert.Equal(t, "Descripción no disponible", p.Description)
	}
}

func TestEnrichCategoryEmptyInput(t *testing.T) {
	lookup := &fakeLookup{}
	en := NewEnricher(lookup, testLogger())

	out := en.EnrichCategory(context.Background(), nil)
	assert.Empty(t, out)
}
