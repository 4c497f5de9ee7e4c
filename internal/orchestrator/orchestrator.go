// Package orchestrator drives a parcel from announcement to chute decision.
// Producers (HTTP handlers, device listeners) register data on the parcel's
// context and enqueue work; a single consumer goroutine drains the queue in
// FIFO order, runs enrichment and rule evaluation, and publishes the
// resulting events.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"parcel-sorter/internal/common/logging"
	"parcel-sorter/internal/events"
	"parcel-sorter/internal/sorting"
)

// DefaultQueueCapacity bounds the work queue. Producers block when it fills,
// which back-pressures the ingest side instead of growing memory.
const DefaultQueueCapacity = 1000

// DefaultEnrichmentTimeout bounds one enrichment lookup.
const DefaultEnrichmentTimeout = 2 * time.Second

// Enricher looks up third-party data for a barcode. The returned payload is
// opaque; it is matched as text by the API-response rules.
type Enricher interface {
	Enrich(ctx context.Context, barcode string) (string, error)
}

type itemKind int

const (
	itemCreate itemKind = iota
	itemMeasurement
)

func (k itemKind) String() string {
	switch k {
	case itemCreate:
		return "create"
	case itemMeasurement:
		return "measurement"
	default:
		return "unknown"
	}
}

type workItem struct {
	kind     itemKind
	parcelID string
}

// Options configures an Orchestrator. Zero values fall back to defaults;
// a nil Enricher disables enrichment.
type Options struct {
	QueueCapacity       int
	CartVolumeThreshold decimal.Decimal
	Enricher            Enricher
	EnrichmentTimeout   time.Duration
	Sequence            SequenceGenerator
	Clock               sorting.Clock
}

// Orchestrator owns the parcel contexts, the bounded work queue and the
// decision loop.
type Orchestrator struct {
	store     *ContextStore
	sequence  SequenceGenerator
	engine    *sorting.Engine
	publisher events.Publisher
	queue     chan workItem
	logger    logging.Logger

	enricher      Enricher
	enrichTimeout time.Duration
	cartThreshold decimal.Decimal
}

// New creates an orchestrator. ProcessQueue must be started for enqueued
// work to drain.
func New(engine *sorting.Engine, publisher events.Publisher, opts Options) *Orchestrator {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	sequence := opts.Sequence
	if sequence == nil {
		sequence = NewAtomicSequence()
	}
	enrichTimeout := opts.EnrichmentTimeout
	if enrichTimeout <= 0 {
		enrichTimeout = DefaultEnrichmentTimeout
	}

	return &Orchestrator{
		store:         NewContextStore(opts.Clock),
		sequence:      sequence,
		engine:        engine,
		publisher:     publisher,
		queue:         make(chan workItem, capacity),
		logger:        logging.WithFields(logging.String("component", "orchestrator")),
		enricher:      opts.Enricher,
		enrichTimeout: enrichTimeout,
		cartThreshold: opts.CartVolumeThreshold,
	}
}

// Store exposes the context store to the eviction janitor and handlers.
func (o *Orchestrator) Store() *ContextStore {
	return o.store
}

// CreateParcel announces a parcel. It registers a fresh context, assigns the
// next sequence number and enqueues the creation event. A duplicate parcel
// id is rejected: the call returns false and the existing context is
// untouched.
func (o *Orchestrator) CreateParcel(parcelID, cartNumber, barcode string) bool {
	if parcelID == "" {
		return false
	}
	if !o.store.Create(parcelID, cartNumber, barcode, o.sequence.Next()) {
		o.logger.Warn("duplicate parcel create rejected",
			logging.String("parcel_id", parcelID),
		)
		return false
	}
	o.queue <- workItem{kind: itemCreate, parcelID: parcelID}
	return true
}

// ReceiveMeasurement attaches a scanner payload to a known parcel and
// enqueues it for evaluation. Returns false for unknown parcels.
func (o *Orchestrator) ReceiveMeasurement(parcelID string, m *sorting.Measurement) bool {
	if m == nil || !o.store.SetMeasurement(parcelID, m) {
		return false
	}
	o.queue <- workItem{kind: itemMeasurement, parcelID: parcelID}
	return true
}

// ReceiveOCR attaches label recognition data to a known parcel. OCR arrives
// out of band and does not trigger evaluation on its own.
func (o *Orchestrator) ReceiveOCR(parcelID string, data *sorting.OCRData) bool {
	return o.store.SetOCR(parcelID, data)
}

// AttachAPIResponse attaches a third-party payload directly, bypassing the
// enrichment hook. Used when the upstream system pushes instead of being
// polled.
func (o *Orchestrator) AttachAPIResponse(parcelID, response string) bool {
	return o.store.SetAPIResponse(parcelID, response)
}

// QueueDepth reports the number of items waiting in the work queue.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// ProcessQueue drains the work queue until ctx is cancelled. Run exactly one
// instance: single consumption is what makes queue order decision order.
func (o *Orchestrator) ProcessQueue(ctx context.Context) {
	o.logger.Info("queue consumer started",
		logging.Int("capacity", cap(o.queue)),
	)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("queue consumer stopped",
				logging.Int("pending", len(o.queue)),
			)
			return
		case item := <-o.queue:
			o.handleItem(ctx, item)
		}
	}
}

// handleItem processes one unit of work. A panic or error affects only the
// current item; the loop always continues.
func (o *Orchestrator) handleItem(ctx context.Context, item workItem) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("work item panicked", fmt.Errorf("%v", r),
				logging.String("parcel_id", item.parcelID),
				logging.String("kind", item.kind.String()),
			)
		}
	}()

	switch item.kind {
	case itemCreate:
		o.handleCreate(ctx, item.parcelID)
	case itemMeasurement:
		o.handleMeasurement(ctx, item.parcelID)
	}
}

func (o *Orchestrator) handleCreate(ctx context.Context, parcelID string) {
	pc, ok := o.store.get(parcelID)
	if !ok {
		// Evicted between enqueue and processing
		return
	}
	pc.mu.Lock()
	data := events.ParcelCreatedData{
		CartNumber: pc.cartNumber,
		Barcode:    pc.barcode,
		Sequence:   pc.sequence,
	}
	pc.mu.Unlock()

	o.publish(ctx, events.New(events.TypeParcelCreated, parcelID, data))
}

func (o *Orchestrator) handleMeasurement(ctx context.Context, parcelID string) {
	pc, ok := o.store.get(parcelID)
	if !ok {
		o.logger.Warn("measurement for unknown parcel skipped",
			logging.String("parcel_id", parcelID),
		)
		return
	}

	subject := pc.subject()
	if subject.Measurement == nil {
		o.logger.Warn("measurement item without measurement skipped",
			logging.String("parcel_id", parcelID),
		)
		return
	}

	o.publish(ctx, events.New(events.TypeMeasurementReceived, parcelID, events.MeasurementReceivedData{
		Barcode: subject.Measurement.Barcode,
		Weight:  subject.Measurement.Weight,
		Length:  subject.Measurement.Length,
		Width:   subject.Measurement.Width,
		Height:  subject.Measurement.Height,
		Volume:  subject.Measurement.DerivedVolume(),
	}))

	o.enrich(ctx, parcelID, subject)

	match, err := o.engine.EvaluateRules(ctx, subject)
	if err != nil {
		o.logger.Error("rule evaluation failed", err,
			logging.String("parcel_id", parcelID),
		)
		return
	}
	if match == nil {
		o.logger.Info("no rule matched",
			logging.String("parcel_id", parcelID),
			logging.String("barcode", subject.EffectiveBarcode()),
		)
		return
	}

	pc.mu.Lock()
	cartNumber := pc.cartNumber
	sequence := pc.sequence
	pc.mu.Unlock()

	o.publish(ctx, events.New(events.TypeRuleMatchCompleted, parcelID, events.RuleMatchCompletedData{
		Chute:      match.Chute,
		RuleID:     match.Rule.ID,
		RuleName:   match.Rule.Name,
		CartNumber: cartNumber,
		CartCount:  o.cartCount(subject.Measurement),
		Sequence:   sequence,
	}))

	o.store.Delete(parcelID)

	o.logger.Info("parcel routed",
		logging.String("parcel_id", parcelID),
		logging.String("chute", match.Chute),
		logging.String("rule_id", match.Rule.ID),
	)
}

// enrich runs the configured enrichment hook with a bounded deadline and
// attaches the payload to the subject. Enrichment is best effort: a failure
// or timeout means evaluation proceeds without the payload.
func (o *Orchestrator) enrich(ctx context.Context, parcelID string, subject *sorting.Subject) {
	if o.enricher == nil || subject.APIResponse != "" {
		return
	}
	barcode := subject.EffectiveBarcode()
	if barcode == "" {
		return
	}

	enrichCtx, cancel := context.WithTimeout(ctx, o.enrichTimeout)
	defer cancel()

	response, err := o.enricher.Enrich(enrichCtx, barcode)
	if err != nil {
		o.logger.Warn("enrichment failed, evaluating without payload",
			logging.String("parcel_id", parcelID),
			logging.Err(err),
		)
		return
	}

	subject.APIResponse = response
	o.store.SetAPIResponse(parcelID, response)
}

// cartCount decides how many carts a parcel occupies: oversize parcels take
// two, everything else one.
func (o *Orchestrator) cartCount(m *sorting.Measurement) int {
	if m != nil && !o.cartThreshold.IsZero() && m.DerivedVolume().GreaterThan(o.cartThreshold) {
		return 2
	}
	return 1
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Error("event publish failed", err,
			logging.String("event_type", string(event.Type)),
			logging.String("parcel_id", event.ParcelID),
		)
	}
}
