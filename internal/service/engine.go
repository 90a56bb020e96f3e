// Package service implements the prediction engine: categorical encoding,
// classifier invocation, top-N ranking and description enrichment.
package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
	"github.com/cie10-predict-server/internal/encoder"
	"github.com/cie10-predict-server/internal/store"
)

// BundleProvider resolves bundles for the two prediction tiers.
type BundleProvider interface {
	TopLevel() *store.Bundle
	Category(ctx context.Context, label string) (*store.Bundle, error)
}

// Engine runs the two-stage hierarchical prediction pipeline.
type Engine struct {
	bundles BundleProvider
	topN    int
	log     *logrus.Logger
}

// NewEngine creates a prediction engine over the given bundle provider.
func NewEngine(bundles BundleProvider, topN int, logger *logrus.Logger) *Engine {
	return &Engine{
		bundles: bundles,
		topN:    topN,
		log:     logger,
	}
}

// PredictCategories ranks diagnostic groups for the given attributes using
// the top-level bundle. Unknown categorical values surface as errors; any
// internal classifier failure degrades to an empty ranking with a logged
// diagnostic, matching the behavior downstream consumers depend on.
func (e *Engine) PredictCategories(attrs domain.PatientAttributes) ([]domain.RankedPrediction, error) {
	preds, err := e.PredictTopN(e.bundles.TopLevel(), attrs, e.topN)
	if err != nil {
		var unknown *domain.UnknownLabelError
		if errors.As(err, &unknown) {
			return nil, err
		}
		e.log.WithError(err).Error("Top-level prediction failed, returning empty ranking")
		return []domain.RankedPrediction{}, nil
	}
	return preds, nil
}

// PredictCauses ranks specific cause codes within one diagnostic category.
// A missing category bundle and a corrupt category artifact both surface as
// typed errors for the handler to map to not-found.
func (e *Engine) PredictCauses(ctx context.Context, category string, attrs domain.PatientAttributes) ([]domain.RankedPrediction, error) {
	bundle, err := e.bundles.Category(ctx, category)
	if err != nil {
		return nil, err
	}
	return e.PredictTopN(bundle, attrs, e.topN)
}

// PredictTopN encodes the attributes through the bundle's encoders, invokes
// the classifier once over a single row, and returns the n highest-ranked
// output classes decoded back to labels. If the model has fewer than n
// classes all of them are returned.
func (e *Engine) PredictTopN(bundle *store.Bundle, attrs domain.PatientAttributes, n int) ([]domain.RankedPrediction, error) {
	features, err := encodeAttributes(bundle, attrs)
	if err != nil {
		return nil, err
	}

	probs, err := bundle.Forest.PredictProba(features)
	if err != nil {
		return nil, domain.NewPredictionError(bundle.Kind, err)
	}

	ranked := make([]domain.RankedPrediction, 0, n)
	for _, idx := range rankTopN(probs, n) {
		label, err := bundle.Output.Decode(idx)
		if err != nil {
			return nil, domain.NewPredictionError(bundle.Kind, err)
		}
		ranked = append(ranked, domain.RankedPrediction{
			Label:       label,
			Probability: roundPercent(probs[idx]),
		})
	}
	return ranked, nil
}

// encodeAttributes assembles the fixed 6-feature vector: age passes
// through unencoded, the five categoricals go through their encoders.
func encodeAttributes(bundle *store.Bundle, attrs domain.PatientAttributes) ([]float64, error) {
	features := make([]float64, 0, store.NumFeatures)
	features = append(features, float64(attrs.Age))

	for _, field := range []struct {
		enc   *encoder.Encoder
		value string
	}{
		{bundle.Gender, attrs.Gender},
		{bundle.PopulationGroup, attrs.PopulationGroup},
		{bundle.Source, attrs.ReferralSource},
		{bundle.Department, attrs.ResidenceDepartment},
		{bundle.Municipality, attrs.ResidenceMunicipality},
	} {
		code, err := field.enc.Encode(field.value)
		if err != nil {
			return nil, err
		}
		features = append(features, float64(code))
	}
	return features, nil
}

// rankTopN selects the n highest-probability class indices. Class indices
// are stably sorted by ascending probability, then the top slice is taken
// from the end in reverse. Tie order falls out of exactly that sequence,
// so do not replace this with a plain descending sort.
func rankTopN(probs []float64, n int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	if n > len(idx) {
		n = len(idx)
	}
	top := make([]int, 0, n)
	for i := len(idx) - 1; i >= len(idx)-n; i-- {
		top = append(top, idx[i])
	}
	return top
}

// roundPercent scales a probability to a 0-100 percentage rounded to two
// decimal places.
func roundPercent(p float64) float64 {
	return math.Round(p*100*100) / 100
}
