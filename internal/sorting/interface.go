// Package sorting implements the decision core of the parcel sorter: the
// family of condition matchers, the static rule validation gate, and the
// priority-ordered rule engine that turns accumulated parcel data into a
// chute assignment.
//
// The sorting system consists of three layers:
//
//  1. Matchers: stateless evaluators for barcode patterns, weight and
//     volume expressions, OCR label fields, third-party API responses, and
//     a low-code combinator that composes the others with AND/OR.
//  2. Validation: a static gate that inspects candidate rule conditions for
//     disallowed constructs before they are ever persisted or evaluated.
//  3. Engine: cached retrieval of enabled rules and first-match-wins
//     evaluation in priority order.
//
// Every matcher is fail-closed: a malformed expression or a missing payload
// evaluates to false, never to an error. A broken rule must not stop the
// sort line, it must simply not match.
//
// Example usage:
//
//	engine := sorting.NewEngine(repo, sorting.SystemClock{}, 5*time.Minute)
//
//	subject := &sorting.Subject{
//		Parcel:      sorting.ParcelInfo{ParcelID: "P1", CartNumber: "C7"},
//		Measurement: &sorting.Measurement{Weight: decimal.NewFromInt(1500)},
//	}
//
//	match, err := engine.EvaluateRules(ctx, subject)
//	if err != nil {
//		log.Printf("rule evaluation failed: %v", err)
//	} else if match != nil {
//		log.Printf("parcel routed to chute %s", match.Chute)
//	}
package sorting

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchingMethod identifies the grammar a rule's condition is written in.
type MatchingMethod string

const (
	// MethodBarcode matches the parcel barcode against a pattern preset or regexp
	MethodBarcode MatchingMethod = "barcode_regex"
	// MethodWeight evaluates a numeric expression over the measured weight
	MethodWeight MatchingMethod = "weight"
	// MethodVolume evaluates a numeric expression over dimensions and volume
	MethodVolume MatchingMethod = "volume"
	// MethodOCR matches fields recognized off the parcel label
	MethodOCR MatchingMethod = "ocr"
	// MethodAPIResponse matches against a third-party lookup response
	MethodAPIResponse MatchingMethod = "api_response"
	// MethodLowCode composes the other matchers with AND/OR
	MethodLowCode MatchingMethod = "low_code"
	// MethodFreeForm is the legacy unrestricted condition form
	MethodFreeForm MatchingMethod = "free_form"
)

// Rule is a prioritized (condition, target chute) pair supplied by the rule
// repository. The engine treats rules as read-only and immutable per cache
// generation.
type Rule struct {
	ID          string         `json:"id"`           // Unique rule identifier
	Name        string         `json:"name"`         // Human-readable rule name
	Condition   string         `json:"condition"`    // Condition expression text
	TargetChute string         `json:"target_chute"` // Chute assigned when the condition matches
	Priority    int            `json:"priority"`     // Lower priority is evaluated first
	Method      MatchingMethod `json:"method"`       // Grammar of the condition text
	Enabled     bool           `json:"enabled"`      // Whether the rule participates in evaluation
}

// Measurement is the dimension/weight payload reported by the DWS scanner.
// All numeric fields are decimals, never binary floats, so rule threshold
// comparisons cannot drift.
type Measurement struct {
	Barcode string          `json:"barcode"`
	Weight  decimal.Decimal `json:"weight"`
	Length  decimal.Decimal `json:"length"`
	Width   decimal.Decimal `json:"width"`
	Height  decimal.Decimal `json:"height"`
	Volume  decimal.Decimal `json:"volume"`
}

// DerivedVolume returns the reported volume, or length*width*height when the
// scanner did not report one.
func (m *Measurement) DerivedVolume() decimal.Decimal {
	if !m.Volume.IsZero() {
		return m.Volume
	}
	return m.Length.Mul(m.Width).Mul(m.Height)
}

// OCRData holds the text fields recognized off a parcel label. All fields
// are optional; matchers look them up by case-insensitive name.
type OCRData struct {
	ThreeSegmentCode     string `json:"threeSegmentCode"`
	FirstSegmentCode     string `json:"firstSegmentCode"`
	SecondSegmentCode    string `json:"secondSegmentCode"`
	ThirdSegmentCode     string `json:"thirdSegmentCode"`
	RecipientAddress     string `json:"recipientAddress"`
	SenderAddress        string `json:"senderAddress"`
	RecipientPhoneSuffix string `json:"recipientPhoneSuffix"`
	SenderPhoneSuffix    string `json:"senderPhoneSuffix"`
}

// ocrFieldNames maps lowercased OCR field names to their accessors.
var ocrFieldNames = map[string]func(*OCRData) string{
	"threesegmentcode":     func(o *OCRData) string { return o.ThreeSegmentCode },
	"firstsegmentcode":     func(o *OCRData) string { return o.FirstSegmentCode },
	"secondsegmentcode":    func(o *OCRData) string { return o.SecondSegmentCode },
	"thirdsegmentcode":     func(o *OCRData) string { return o.ThirdSegmentCode },
	"recipientaddress":     func(o *OCRData) string { return o.RecipientAddress },
	"senderaddress":        func(o *OCRData) string { return o.SenderAddress },
	"recipientphonesuffix": func(o *OCRData) string { return o.RecipientPhoneSuffix },
	"senderphonesuffix":    func(o *OCRData) string { return o.SenderPhoneSuffix },
}

// Field returns the value of the named OCR field, looked up case-insensitively.
// The second return value is false for unknown field names.
func (o *OCRData) Field(name string) (string, bool) {
	accessor, ok := ocrFieldNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return accessor(o), true
}

// IsOCRField reports whether name is a known OCR field name.
func IsOCRField(name string) bool {
	_, ok := ocrFieldNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ParcelInfo identifies the parcel under evaluation.
type ParcelInfo struct {
	ParcelID   string `json:"parcel_id"`
	CartNumber string `json:"cart_number"`
	Barcode    string `json:"barcode,omitempty"`
}

// Subject carries whatever data has arrived for a parcel at evaluation time.
// Absent payloads cause conditions that need them to fail, never to error.
type Subject struct {
	Parcel      ParcelInfo
	Measurement *Measurement
	OCR         *OCRData
	APIResponse string
}

// EffectiveBarcode prefers the barcode reported by the scanner over the one
// announced at parcel creation.
func (s *Subject) EffectiveBarcode() string {
	if s.Measurement != nil && s.Measurement.Barcode != "" {
		return s.Measurement.Barcode
	}
	return s.Parcel.Barcode
}

// RuleRepository supplies the enabled rules, already sorted by ascending
// priority (id ascending as the tie-break). The engine does not re-sort.
type RuleRepository interface {
	GetEnabledRules(ctx context.Context) ([]Rule, error)
}

// Clock abstracts wall-clock time so cache expiry is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
