package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticRows builds a separable 2-class dataset: class 0 clusters around
// age 10, class 1 around age 70, with a noisy second feature.
func syntheticRows(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	features := make([][]float64, n)
	labels := make([]int, n)
	for i := range features {
		class := i % 2
		center := 10.0
		if class == 1 {
			center = 70.0
		}
		features[i] = []float64{center + rng.Float64()*8, float64(rng.Intn(5))}
		labels[i] = class
	}
	return features, labels
}

func TestFitSeparatesClasses(t *testing.T) {
	features, labels := syntheticRows(400, 1)

	cfg := DefaultTrainConfig()
	cfg.Trees = 10
	forest, err := Fit(features, labels, 2, cfg)
	require.NoError(t, err)

	young, err := forest.PredictProba([]float64{12, 2})
	require.NoError(t, err)
	assert.Greater(t, young[0], 0.8)

	old, err := forest.PredictProba([]float64{72, 2})
	require.NoError(t, err)
	assert.Greater(t, old[1], 0.8)
}

func TestFitDeterministicForFixedSeed(t *testing.T) {
	features, labels := syntheticRows(200, 7)

	cfg := DefaultTrainConfig()
	cfg.Trees = 5

	a, err := Fit(features, labels, 2, cfg)
	require.NoError(t, err)
	b, err := Fit(features, labels, 2, cfg)
	require.NoError(t, err)

	probe := []float64{40, 1}
	pa, err := a.PredictProba(probe)
	require.NoError(t, err)
	pb, err := b.PredictProba(probe)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestFitInputValidation(t *testing.T) {
	_, err := Fit(nil, nil, 2, DefaultTrainConfig())
	require.Error(t, err)

	_, err = Fit([][]float64{{1, 2}}, []int{0, 1}, 2, DefaultTrainConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")

	_, err = Fit([][]float64{{1}, {2}}, []int{0, 5}, 2, DefaultTrainConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")
}

func TestFitProbabilitiesSumToOne(t *testing.T) {
	features, labels := syntheticRows(300, 3)

	cfg := DefaultTrainConfig()
	cfg.Trees = 8
	forest, err := Fit(features, labels, 2, cfg)
	require.NoError(t, err)

	for _, probe := range [][]float64{{5, 0}, {40, 3}, {90, 1}} {
		probs, err := forest.PredictProba(probe)
		require.NoError(t, err)
		sum := 0.0
		for _, p := range probs {
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}
