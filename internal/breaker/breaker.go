// Package breaker shields the prediction path from a failing reference
// store. When the store keeps erroring the breaker opens and description
// lookups fail fast; the enricher then serves placeholder text instead of
// stalling prediction requests.
package breaker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cie10-predict-server/internal/domain"
)

// DescriptionBreaker wraps a description lookup with a circuit breaker.
type DescriptionBreaker struct {
	next domain.DescriptionLookup
	cb   *gobreaker.CircuitBreaker
	log  *logrus.Logger
}

// NewDescriptionBreaker creates a breaker over the given lookup.
func NewDescriptionBreaker(next domain.DescriptionLookup, logger *logrus.Logger) *DescriptionBreaker {
	settings := gobreaker.Settings{
		Name:        "reference-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &DescriptionBreaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
		log:  logger,
	}
}

// Descriptions executes the lookup through the breaker. An open breaker
// surfaces as an error; callers degrade to placeholder descriptions.
func (b *DescriptionBreaker) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Descriptions(ctx, codes)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]string), nil
}
