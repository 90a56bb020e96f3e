package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
)

// Wire strings the registration front-end matches on. Do not translate.
const (
	groupDescriptionFormat = "Grupo CIE-10: %s"
	descriptionUnavailable = "Descripción no disponible"
)

// Enricher joins ranked predictions with human-readable description text.
// Diagnostic groups are self-descriptive and synthesized locally; specific
// cause codes need a reference-store lookup.
type Enricher struct {
	lookup domain.DescriptionLookup
	log    *logrus.Logger
}

// NewEnricher creates an enricher over the given description lookup.
func NewEnricher(lookup domain.DescriptionLookup, logger *logrus.Logger) *Enricher {
	return &Enricher{
		lookup: lookup,
		log:    logger,
	}
}

// EnrichTopLevel attaches synthesized group descriptions. No external call
// is made on this path.
func (en *Enricher) EnrichTopLevel(preds []domain.RankedPrediction) []domain.EnrichedPrediction {
	out := make([]domain.EnrichedPrediction, len(preds))
	for i, p := range preds {
		out[i] = domain.EnrichedPrediction{
			Label:       p.Label,
			Probability: p.Probability,
			Description: fmt.Sprintf(groupDescriptionFormat, p.Label),
		}
	}
	return out
}

// EnrichCategory looks up description text for every predicted code in one
// batched query. Codes the reference store doesn't recognize, and a failed
// lookup altogether, fall back to placeholder text; enrichment never fails
// a prediction that already succeeded.
func (en *Enricher) EnrichCategory(ctx context.Context, preds []domain.RankedPrediction) []domain.EnrichedPrediction {
	codes := make([]string, len(preds))
	for i, p := range preds {
		codes[i] = p.Label
	}

	descriptions, err := en.lookup.Descriptions(ctx, codes)
	if err != nil {
		en.log.WithFields(logrus.Fields{
			"codes": len(codes),
			"error": err,
		}).Warn("Description lookup failed, serving placeholders")
		descriptions = nil
	}

	out := make([]domain.EnrichedPrediction, len(preds))
	for i, p := range preds {
		desc, ok := descriptions[p.Label]
		if !ok || desc == "" {
			desc = descriptionUnavailable
		}
		out[i] = domain.EnrichedPrediction{
			Label:       p.Label,
			Probability: p.Probability,
			Description: desc,
		}
	}
	return out
}
