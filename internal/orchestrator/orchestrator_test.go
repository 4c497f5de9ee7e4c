package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-sorter/internal/events"
	"parcel-sorter/internal/sorting"
)

// capturePublisher records published events in order.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) byType(eventType events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type staticRules struct {
	rules []sorting.Rule
}

func (r staticRules) GetEnabledRules(ctx context.Context) ([]sorting.Rule, error) {
	return r.rules, nil
}

func weightRuleEngine() *sorting.Engine {
	repo := staticRules{rules: []sorting.Rule{
		{ID: "r-heavy", Name: "heavy parcels", Condition: "Weight > 1000", TargetChute: "A01",
			Priority: 10, Method: sorting.MethodWeight, Enabled: true},
		{ID: "r-default", Name: "catch-all", Condition: "DEFAULT", TargetChute: "Z99",
			Priority: 9999, Method: sorting.MethodFreeForm, Enabled: true},
	}}
	return sorting.NewEngine(repo, nil, time.Minute)
}

func measurement(weight int64) *sorting.Measurement {
	return &sorting.Measurement{Weight: decimal.NewFromInt(weight)}
}

func startOrchestrator(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.ProcessQueue(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestCreateParcelRejectsDuplicates(t *testing.T) {
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{})
	startOrchestrator(t, o)

	assert.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	assert.False(t, o.CreateParcel("P1", "C8", "other"), "second create of same id must be rejected")
	assert.False(t, o.CreateParcel("", "C7", ""), "blank parcel id must be rejected")

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeParcelCreated)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The surviving context is the first one
	created := publisher.byType(events.TypeParcelCreated)[0]
	data := created.Data.(events.ParcelCreatedData)
	assert.Equal(t, "C7", data.CartNumber)
	assert.Equal(t, "6412345678", data.Barcode)
}

func TestMeasurementDrivesRuleMatch(t *testing.T) {
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	require.True(t, o.ReceiveMeasurement("P1", measurement(1500)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1 && o.Store().Len() == 0
	}, 2*time.Second, 10*time.Millisecond, "decision published and context released")

	matched := publisher.byType(events.TypeRuleMatchCompleted)[0]
	data := matched.Data.(events.RuleMatchCompletedData)
	assert.Equal(t, "A01", data.Chute)
	assert.Equal(t, "r-heavy", data.RuleID)
	assert.Equal(t, "C7", data.CartNumber)
	assert.Equal(t, 1, data.CartCount)
	assert.False(t, o.ReceiveMeasurement("P1", measurement(1500)),
		"measurement after decision must be rejected")
}

func TestMeasurementEventCarriesFullDimensions(t *testing.T) {
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	require.True(t, o.ReceiveMeasurement("P1", &sorting.Measurement{
		Barcode: "6412345678",
		Weight:  decimal.NewFromInt(1500),
		Length:  decimal.NewFromInt(40),
		Width:   decimal.NewFromInt(30),
		Height:  decimal.NewFromInt(20),
	}))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeMeasurementReceived)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	data := publisher.byType(events.TypeMeasurementReceived)[0].Data.(events.MeasurementReceivedData)
	assert.Equal(t, "6412345678", data.Barcode)
	assert.True(t, decimal.NewFromInt(1500).Equal(data.Weight))
	assert.True(t, decimal.NewFromInt(40).Equal(data.Length))
	assert.True(t, decimal.NewFromInt(30).Equal(data.Width))
	assert.True(t, decimal.NewFromInt(20).Equal(data.Height))
	assert.True(t, decimal.NewFromInt(24000).Equal(data.Volume), "volume derived from dimensions")
}

func TestMeasurementForUnknownParcel(t *testing.T) {
	o := New(weightRuleEngine(), &capturePublisher{}, Options{})
	assert.False(t, o.ReceiveMeasurement("ghost", measurement(100)))
	assert.False(t, o.ReceiveMeasurement("P1", nil))
}

func TestFIFOOrdering(t *testing.T) {
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{QueueCapacity: 100})

	const parcels = 20
	for i := 0; i < parcels; i++ {
		id := fmt.Sprintf("P%03d", i)
		require.True(t, o.CreateParcel(id, "C1", ""))
		require.True(t, o.ReceiveMeasurement(id, measurement(1500)))
	}

	// Start consuming only after everything is enqueued
	startOrchestrator(t, o)

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == parcels
	}, 5*time.Second, 10*time.Millisecond)

	matches := publisher.byType(events.TypeRuleMatchCompleted)
	for i, event := range matches {
		assert.Equal(t, fmt.Sprintf("P%03d", i), event.ParcelID,
			"decisions must come out in enqueue order")
	}
}

func TestSequenceNumbersAreMonotonic(t *testing.T) {
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{})
	startOrchestrator(t, o)

	for i := 0; i < 5; i++ {
		require.True(t, o.CreateParcel(fmt.Sprintf("P%d", i), "C1", ""))
	}

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeParcelCreated)) == 5
	}, 2*time.Second, 10*time.Millisecond)

	var last uint64
	for _, event := range publisher.byType(events.TypeParcelCreated) {
		data := event.Data.(events.ParcelCreatedData)
		assert.Greater(t, data.Sequence, last)
		last = data.Sequence
	}
}

func TestCartCount(t *testing.T) {
	threshold := decimal.NewFromInt(100000)

	tests := []struct {
		name   string
		volume int64
		want   int
	}{
		{"oversize takes two carts", 150000, 2},
		{"regular takes one cart", 50000, 1},
		{"threshold itself takes one cart", 100000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &capturePublisher{}
			o := New(weightRuleEngine(), publisher, Options{CartVolumeThreshold: threshold})
			startOrchestrator(t, o)

			require.True(t, o.CreateParcel("P1", "C7", ""))
			m := measurement(1500)
			m.Volume = decimal.NewFromInt(tt.volume)
			require.True(t, o.ReceiveMeasurement("P1", m))

			require.Eventually(t, func() bool {
				return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1
			}, 2*time.Second, 10*time.Millisecond)

			data := publisher.byType(events.TypeRuleMatchCompleted)[0].Data.(events.RuleMatchCompletedData)
			assert.Equal(t, tt.want, data.CartCount)
		})
	}
}

// recordingEnricher captures lookups and returns a canned payload.
type recordingEnricher struct {
	mu       sync.Mutex
	barcodes []string
	response string
	err      error
}

func (e *recordingEnricher) Enrich(ctx context.Context, barcode string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.barcodes = append(e.barcodes, barcode)
	return e.response, e.err
}

func TestEnrichmentFeedsAPIResponseRules(t *testing.T) {
	repo := staticRules{rules: []sorting.Rule{
		{ID: "r-api", Name: "express route", Condition: "JSON:route=EXPRESS", TargetChute: "E01",
			Priority: 1, Method: sorting.MethodAPIResponse, Enabled: true},
	}}
	engine := sorting.NewEngine(repo, nil, time.Minute)

	enricher := &recordingEnricher{response: `{"route":"EXPRESS"}`}
	publisher := &capturePublisher{}
	o := New(engine, publisher, Options{Enricher: enricher})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	require.True(t, o.ReceiveMeasurement("P1", measurement(500)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	data := publisher.byType(events.TypeRuleMatchCompleted)[0].Data.(events.RuleMatchCompletedData)
	assert.Equal(t, "E01", data.Chute)

	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	assert.Equal(t, []string{"6412345678"}, enricher.barcodes)
}

func TestEnrichmentFailureDoesNotBlockDecision(t *testing.T) {
	enricher := &recordingEnricher{err: errors.New("upstream down")}
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{Enricher: enricher})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	require.True(t, o.ReceiveMeasurement("P1", measurement(1500)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	data := publisher.byType(events.TypeRuleMatchCompleted)[0].Data.(events.RuleMatchCompletedData)
	assert.Equal(t, "A01", data.Chute, "weight rule must still fire without enrichment")
}

func TestAttachedAPIResponseSkipsEnrichment(t *testing.T) {
	enricher := &recordingEnricher{response: "unused"}
	publisher := &capturePublisher{}
	o := New(weightRuleEngine(), publisher, Options{Enricher: enricher})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", "6412345678"))
	require.True(t, o.AttachAPIResponse("P1", `{"route":"ECONOMY"}`))
	require.True(t, o.ReceiveMeasurement("P1", measurement(1500)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	assert.Empty(t, enricher.barcodes, "pushed payload must suppress the lookup")
}

func TestOCRFeedsRuleEvaluation(t *testing.T) {
	repo := staticRules{rules: []sorting.Rule{
		{ID: "r-ocr", Name: "region 64", Condition: `firstSegmentCode=^64\d*$`, TargetChute: "R64",
			Priority: 1, Method: sorting.MethodOCR, Enabled: true},
	}}
	engine := sorting.NewEngine(repo, nil, time.Minute)
	publisher := &capturePublisher{}
	o := New(engine, publisher, Options{})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", ""))
	require.True(t, o.ReceiveOCR("P1", &sorting.OCRData{FirstSegmentCode: "6432"}))
	require.True(t, o.ReceiveMeasurement("P1", measurement(500)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeRuleMatchCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	data := publisher.byType(events.TypeRuleMatchCompleted)[0].Data.(events.RuleMatchCompletedData)
	assert.Equal(t, "R64", data.Chute)
}

func TestNoMatchKeepsContext(t *testing.T) {
	repo := staticRules{rules: []sorting.Rule{
		{ID: "r-heavy", Name: "heavy", Condition: "Weight > 99999", TargetChute: "A01",
			Priority: 10, Method: sorting.MethodWeight, Enabled: true},
	}}
	engine := sorting.NewEngine(repo, nil, time.Minute)
	publisher := &capturePublisher{}
	o := New(engine, publisher, Options{})
	startOrchestrator(t, o)

	require.True(t, o.CreateParcel("P1", "C7", ""))
	require.True(t, o.ReceiveMeasurement("P1", measurement(100)))

	require.Eventually(t, func() bool {
		return len(publisher.byType(events.TypeMeasurementReceived)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, publisher.byType(events.TypeRuleMatchCompleted))
	assert.Equal(t, 1, o.Store().Len(), "undecided parcel keeps its context for a retry")
}
