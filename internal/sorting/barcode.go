package sorting

import (
	"regexp"
	"strconv"
	"strings"
)

// BarcodePreset is a typed barcode pattern kind.
type BarcodePreset string

const (
	// BarcodeStartsWith matches barcodes with the given prefix
	BarcodeStartsWith BarcodePreset = "STARTSWITH"
	// BarcodeContains matches barcodes containing the given substring
	BarcodeContains BarcodePreset = "CONTAINS"
	// BarcodeNotContains matches barcodes not containing the given substring
	BarcodeNotContains BarcodePreset = "NOTCONTAINS"
	// BarcodeAllDigits matches barcodes consisting only of digits
	BarcodeAllDigits BarcodePreset = "ALLDIGITS"
	// BarcodeAlphanumeric matches barcodes consisting only of letters and digits
	BarcodeAlphanumeric BarcodePreset = "ALPHANUMERIC"
	// BarcodeLength matches barcodes whose length falls in a "min-max" range
	BarcodeLength BarcodePreset = "LENGTH"
	// BarcodeRegex matches barcodes against a regular expression
	BarcodeRegex BarcodePreset = "REGEX"
)

var (
	allDigitsPattern    = regexp.MustCompile(`^[0-9]+$`)
	alphanumericPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// barcodePresetOrder lists presets in prefix-probe order. NOTCONTAINS must
// come before CONTAINS or the shorter name would shadow it.
var barcodePresetOrder = []BarcodePreset{
	BarcodeNotContains,
	BarcodeStartsWith,
	BarcodeContains,
	BarcodeAlphanumeric,
	BarcodeAllDigits,
	BarcodeLength,
	BarcodeRegex,
}

// BarcodeMatcher matches parcel barcodes against pattern presets or raw
// regular expressions. It accepts either the typed Match form or the legacy
// "PRESET:value" string form; an expression with no recognized preset prefix
// is treated as a raw regular expression.
type BarcodeMatcher struct{}

// Evaluate parses a legacy pattern expression and matches it against the
// barcode. Malformed expressions evaluate false.
func (m BarcodeMatcher) Evaluate(expression, barcode string) bool {
	preset, param := parseBarcodeExpression(expression)
	return m.Match(preset, param, barcode)
}

// Match applies a typed preset to the barcode. AllDigits and Alphanumeric
// ignore the parameter. An empty barcode never matches.
func (BarcodeMatcher) Match(preset BarcodePreset, param, barcode string) bool {
	if barcode == "" {
		return false
	}

	switch preset {
	case BarcodeStartsWith:
		return param != "" && strings.HasPrefix(barcode, param)
	case BarcodeContains:
		return param != "" && strings.Contains(barcode, param)
	case BarcodeNotContains:
		return param != "" && !strings.Contains(barcode, param)
	case BarcodeAllDigits:
		return allDigitsPattern.MatchString(barcode)
	case BarcodeAlphanumeric:
		return alphanumericPattern.MatchString(barcode)
	case BarcodeLength:
		min, max, ok := parseLengthRange(param)
		if !ok {
			return false
		}
		return len(barcode) >= min && len(barcode) <= max
	case BarcodeRegex:
		pattern, err := regexp.Compile(param)
		if err != nil {
			return false
		}
		return pattern.MatchString(barcode)
	default:
		return false
	}
}

// parseBarcodeExpression resolves the legacy string form by case-insensitive
// prefix probing against the preset names. Anything unrecognized is a raw
// regular expression.
func parseBarcodeExpression(expression string) (BarcodePreset, string) {
	expression = strings.TrimSpace(expression)
	upper := strings.ToUpper(expression)

	for _, preset := range barcodePresetOrder {
		name := string(preset)
		if upper == name {
			return preset, ""
		}
		if strings.HasPrefix(upper, name+":") {
			return preset, expression[len(name)+1:]
		}
	}
	return BarcodeRegex, expression
}

// parseLengthRange parses a "min-max" range. A malformed range reports false
// rather than matching anything.
func parseLengthRange(param string) (int, int, bool) {
	parts := strings.SplitN(param, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if min < 0 || max < min {
		return 0, 0, false
	}
	return min, max, true
}
