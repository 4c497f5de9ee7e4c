// Package events defines the domain events emitted by the sorting pipeline
// and the publisher backends that carry them. An in-process bus serves local
// subscribers; RabbitMQ and Kafka backends fan the same events out to
// downstream systems.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies a domain event.
type Type string

const (
	// TypeParcelCreated is emitted when a parcel is announced to the sorter
	TypeParcelCreated Type = "parcel.created"
	// TypeMeasurementReceived is emitted when the DWS scanner reports dimensions
	TypeMeasurementReceived Type = "parcel.measurement_received"
	// TypeRuleMatchCompleted is emitted when a parcel is assigned a chute
	TypeRuleMatchCompleted Type = "parcel.rule_match_completed"
	// TypeParcelExpired is emitted when an idle parcel context is evicted
	TypeParcelExpired Type = "parcel.expired"
)

// Event is the envelope shared by all backends. Data holds one of the
// *Data payload structs below, keyed by Type.
type Event struct {
	ID         string      `json:"id"`
	Type       Type        `json:"type"`
	ParcelID   string      `json:"parcel_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data,omitempty"`
}

// ParcelCreatedData is the payload of TypeParcelCreated.
type ParcelCreatedData struct {
	CartNumber string `json:"cart_number"`
	Barcode    string `json:"barcode,omitempty"`
	Sequence   uint64 `json:"sequence"`
}

// MeasurementReceivedData is the payload of TypeMeasurementReceived. It
// carries the full scanner report; Volume is the derived volume when the
// scanner did not measure one directly.
type MeasurementReceivedData struct {
	Barcode string          `json:"barcode,omitempty"`
	Weight  decimal.Decimal `json:"weight"`
	Length  decimal.Decimal `json:"length"`
	Width   decimal.Decimal `json:"width"`
	Height  decimal.Decimal `json:"height"`
	Volume  decimal.Decimal `json:"volume"`
}

// RuleMatchCompletedData is the payload of TypeRuleMatchCompleted.
type RuleMatchCompletedData struct {
	Chute      string `json:"chute"`
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
	CartNumber string `json:"cart_number"`
	CartCount  int    `json:"cart_count"`
	Sequence   uint64 `json:"sequence"`
}

// ParcelExpiredData is the payload of TypeParcelExpired.
type ParcelExpiredData struct {
	IdleFor time.Duration `json:"idle_for"`
}

// New builds an event envelope with a fresh id and the current time.
func New(eventType Type, parcelID string, data interface{}) Event {
	return Event{
		ID:         newEventID(),
		Type:       eventType,
		ParcelID:   parcelID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func newEventID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(buf)
}

// Handler processes one event. A handler error is logged by the bus, never
// propagated to the publisher.
type Handler func(ctx context.Context, event Event) error

// Publisher delivers events to a backend.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
