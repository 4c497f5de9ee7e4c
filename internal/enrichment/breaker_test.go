package enrichment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-sorter/internal/circuitbreaker"
)

type flakyEnricher struct {
	calls int
	err   error
}

func (f *flakyEnricher) Enrich(ctx context.Context, barcode string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf(`{"barcode":%q}`, barcode), nil
}

func TestBreakerEnricherPassesThrough(t *testing.T) {
	inner := &flakyEnricher{}
	enricher := NewBreakerEnricher(inner, circuitbreaker.EnrichmentConfig)

	response, err := enricher.Enrich(context.Background(), "641234")
	require.NoError(t, err)
	assert.Equal(t, `{"barcode":"641234"}`, response)
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerEnricherOpensAndStopsCallingUpstream(t *testing.T) {
	inner := &flakyEnricher{err: fmt.Errorf("upstream down")}
	enricher := NewBreakerEnricher(inner, circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := enricher.Enrich(ctx, "641234")
		require.EqualError(t, err, "upstream down")
	}
	require.Equal(t, 2, inner.calls)

	// Circuit is open: further lookups fail fast without reaching upstream
	for i := 0; i < 5; i++ {
		_, err := enricher.Enrich(ctx, "641234")
		require.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}
