package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cie10-predict-server/internal/domain"
)

// stumpForest builds a two-tree forest over 2 features and 3 classes:
// each tree splits on feature 0 at 0.5.
func stumpForest() *Forest {
	tree := Tree{
		Feature:   []int{0, -1, -1},
		Threshold: []float64{0.5, 0, 0},
		Left:      []int{1, -1, -1},
		Right:     []int{2, -1, -1},
		Value:     [][]float64{nil, {0.8, 0.2, 0}, {0.1, 0.3, 0.6}},
	}
	return &Forest{
		NumFeatures: 2,
		NumClasses:  3,
		Trees:       []Tree{tree, tree},
	}
}

func TestPredictProba(t *testing.T) {
	f := stumpForest()

	probs, err := f.PredictProba([]float64{0.2, 9.0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.2, 0}, probs, 1e-12)

	probs, err = f.PredictProba([]float64{0.9, 9.0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.6}, probs, 1e-12)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPredictProbaShapeMismatch(t *testing.T) {
	f := stumpForest()

	_, err := f.PredictProba([]float64{1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rf_model.pkl")

	f := stumpForest()
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.NumFeatures, loaded.NumFeatures)
	assert.Equal(t, f.NumClasses, loaded.NumClasses)

	want, err := f.PredictProba([]float64{0.2, 0})
	require.NoError(t, err)
	got, err := loaded.PredictProba([]float64{0.2, 0})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rf_model.pkl")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, err := Load(path)
	require.Error(t, err)

	var loadErr *domain.ArtifactLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadRejectsBrokenSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rf_model.pkl")

	f := stumpForest()
	f.Trees[0].Feature[0] = 7 // out of the 2-feature schema
	require.NoError(t, f.Save(path))

	_, err := Load(path)
	require.Error(t, err)

	var loadErr *domain.ArtifactLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "out of schema")
}
