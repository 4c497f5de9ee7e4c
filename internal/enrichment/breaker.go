package enrichment

import (
	"context"

	"parcel-sorter/internal/circuitbreaker"
	"parcel-sorter/internal/common/logging"
)

// BreakerEnricher guards the lookup with a circuit breaker. When the upstream
// keeps failing the circuit opens and lookups fail immediately, so parcels
// are evaluated without the payload instead of each waiting out a timeout.
type BreakerEnricher struct {
	inner   Enricher
	breaker *circuitbreaker.GoBreakerAdapter
}

// NewBreakerEnricher wraps inner with a circuit breaker.
func NewBreakerEnricher(inner Enricher, config circuitbreaker.Config) *BreakerEnricher {
	return &BreakerEnricher{
		inner: inner,
		breaker: circuitbreaker.NewGoBreaker("enrichment", config,
			logging.WithFields(logging.String("component", "enrichment"))),
	}
}

// Enrich runs the lookup inside the circuit breaker.
func (b *BreakerEnricher) Enrich(ctx context.Context, barcode string) (string, error) {
	var response string
	err := b.breaker.Execute(ctx, func() error {
		var innerErr error
		response, innerErr = b.inner.Enrich(ctx, barcode)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return response, nil
}
