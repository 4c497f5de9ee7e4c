package sorting

import (
	"regexp"
	"strings"
)

var (
	ifWrapperPattern     = regexp.MustCompile(`(?is)^\s*if\s*\((.*)\)\s*$`)
	leadingIdentPattern  = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9_]*)`)
	barcodePrefixPattern = regexp.MustCompile(`(?i)^\s*Barcode\s*=\s*`)
)

// LowCodeMatcher evaluates composite conditions that mix weight, volume,
// OCR and barcode sub-conditions with the literal " and " / " or "
// connectors, optionally wrapped in "if(...)". Each atomic condition is
// dispatched to the specialized matcher selected by its left-hand field
// name; a condition whose required payload is absent evaluates false.
type LowCodeMatcher struct {
	weight  WeightMatcher
	volume  VolumeMatcher
	ocr     OCRMatcher
	barcode BarcodeMatcher
}

// Evaluate reports whether the subject satisfies the composite expression.
func (m LowCodeMatcher) Evaluate(expression string, subject *Subject) bool {
	if subject == nil {
		return false
	}

	expr := stripIfWrapper(expression)
	if strings.TrimSpace(expr) == "" {
		return false
	}

	for _, orPart := range splitWordOr(expr) {
		andParts := splitWordAnd(orPart)
		all := len(andParts) > 0
		for _, atom := range andParts {
			if !m.evaluateAtom(atom, subject) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// evaluateAtom dispatches one atomic condition by its left-hand field name.
func (m LowCodeMatcher) evaluateAtom(atom string, subject *Subject) bool {
	field := leadingIdentifier(atom)
	if field == "" {
		return false
	}

	switch {
	case strings.EqualFold(field, "Weight"):
		return m.weight.Evaluate(atom, subject.Measurement)

	case strings.EqualFold(field, "Volume"),
		strings.EqualFold(field, "Length"),
		strings.EqualFold(field, "Width"),
		strings.EqualFold(field, "Height"):
		return m.volume.Evaluate(atom, subject.Measurement)

	case IsOCRField(field):
		return m.ocr.Evaluate(atom, subject.OCR)

	case strings.EqualFold(field, "Barcode"):
		pattern := extractBarcodePattern(atom)
		if pattern == "" {
			return false
		}
		return m.barcode.Evaluate(pattern, subject.EffectiveBarcode())

	default:
		return false
	}
}

// stripIfWrapper removes an optional "if(...)" wrapper around the expression.
func stripIfWrapper(expression string) string {
	if match := ifWrapperPattern.FindStringSubmatch(expression); match != nil {
		return match[1]
	}
	return expression
}

// leadingIdentifier returns the first identifier in a condition, which names
// the field the condition tests.
func leadingIdentifier(condition string) string {
	match := leadingIdentPattern.FindStringSubmatch(condition)
	if match == nil {
		return ""
	}
	return match[1]
}

// extractBarcodePattern strips the "Barcode =" head from an atomic barcode
// condition, leaving the pattern expression for the barcode matcher. Single
// or double quotes around the pattern are removed.
func extractBarcodePattern(atom string) string {
	location := barcodePrefixPattern.FindStringIndex(atom)
	if location == nil {
		return ""
	}
	pattern := strings.TrimSpace(atom[location[1]:])
	pattern = strings.Trim(pattern, `'"`)
	return pattern
}
