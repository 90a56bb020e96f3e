package encoder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cie10-predict-server/internal/domain"
)

func TestFitAssignsFirstSeenOrder(t *testing.T) {
	e := Fit("genero", []string{"Femenino", "Masculino", "Femenino", "Indeterminado", "Masculino"})

	require.Equal(t, 3, e.Len())
	assert.Equal(t, []string{"Femenino", "Masculino", "Indeterminado"}, e.Classes())

	code, err := e.Encode("Masculino")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	labels := []string{"Bogotá D.C.", "Antioquia", "Valle del Cauca", "Nariño"}
	e := Fit("deptoresiden", labels)

	for _, label := range labels {
		code, err := e.Encode(label)
		require.NoError(t, err)
		got, err := e.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}
}

func TestEncodeUnknownLabel(t *testing.T) {
	e := Fit("fuente", []string{"Urgencias", "Consulta externa"})

	_, err := e.Encode("Remisión")
	require.Error(t, err)

	var unknown *domain.UnknownLabelError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "fuente", unknown.Feature)
	assert.Equal(t, "Remisión", unknown.Label)
}

func TestDecodeOutOfRange(t *testing.T) {
	e := Fit("caufin", []string{"A09", "J18", "K29"})

	for _, code := range []int{-1, 3, 100} {
		_, err := e.Decode(code)
		require.Error(t, err, "code %d", code)

		var invalid *domain.InvalidCodeError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, 3, invalid.Size)
	}
}

func TestNewFromClassesRejectsDuplicates(t *testing.T) {
	_, err := NewFromClasses("genero", []string{"Femenino", "Femenino"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate class")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "encoder_muniresiden.pkl")

	e := Fit("muniresiden", []string{"Cali", "Medellín", "Pasto"})
	require.NoError(t, e.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "muniresiden", loaded.Feature())
	assert.Equal(t, e.Classes(), loaded.Classes())

	code, err := loaded.Encode("Medellín")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.pkl"))
	require.Error(t, err)

	var loadErr *domain.ArtifactLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "encoder_genero.pkl")
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0644))

	_, err := Load(path)
	require.Error(t, err)

	var loadErr *domain.ArtifactLoadError
	assert.True(t, errors.As(err, &loadErr))
}
