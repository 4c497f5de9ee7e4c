package sorting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func lowCodeSubject() *Subject {
	return &Subject{
		Parcel: ParcelInfo{ParcelID: "P1", Barcode: "6412345678"},
		Measurement: &Measurement{
			Barcode: "6412345678",
			Weight:  decimal.NewFromInt(1500),
			Length:  decimal.NewFromInt(50),
			Width:   decimal.NewFromInt(40),
			Height:  decimal.NewFromInt(30),
		},
		OCR: &OCRData{FirstSegmentCode: "644"},
	}
}

func TestLowCodeMatcher(t *testing.T) {
	subject := lowCodeSubject()

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{"weight atom", "Weight > 1000", true},
		{"volume atom", "Volume >= 60000", true},
		{"dimension atom", "Length > 45", true},
		{"ocr atom", "firstSegmentCode=644", true},
		{"barcode atom", "Barcode = 'STARTSWITH:64'", true},
		{"barcode atom raw regex", `Barcode = ^64\d+$`, true},
		{"and all true", "Weight > 1000 and firstSegmentCode=644", true},
		{"and one false", "Weight > 9000 and firstSegmentCode=644", false},
		{"or one true", "Weight > 9000 or firstSegmentCode=644", true},
		{"if wrapper", "if(Weight > 1000 and Length > 45)", true},
		{"if wrapper false", "if(Weight > 9000)", false},
		{"or of ands", "Weight > 9000 and Length > 45 or firstSegmentCode=644", true},
	}

	matcher := LowCodeMatcher{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Evaluate(tt.expression, subject))
		})
	}
}

func TestLowCodeMatcherFailsClosed(t *testing.T) {
	subject := lowCodeSubject()

	tests := []struct {
		name       string
		expression string
		subject    *Subject
	}{
		{"nil subject", "Weight > 1000", nil},
		{"empty expression", "", subject},
		{"unknown field", "Speed > 1000", subject},
		{"barcode without pattern", "Barcode = ", subject},
		{"missing measurement", "Weight > 1000", &Subject{OCR: subject.OCR}},
		{"missing ocr", "firstSegmentCode=644", &Subject{Measurement: subject.Measurement}},
	}

	matcher := LowCodeMatcher{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, matcher.Evaluate(tt.expression, tt.subject))
		})
	}
}

func TestStripIfWrapper(t *testing.T) {
	assert.Equal(t, "Weight > 1", stripIfWrapper("if(Weight > 1)"))
	assert.Equal(t, "Weight > 1", stripIfWrapper("IF (Weight > 1)"))
	assert.Equal(t, "Weight > 1", stripIfWrapper("Weight > 1"))
}

func TestExtractBarcodePattern(t *testing.T) {
	assert.Equal(t, "STARTSWITH:64", extractBarcodePattern("Barcode = 'STARTSWITH:64'"))
	assert.Equal(t, "STARTSWITH:64", extractBarcodePattern(`Barcode="STARTSWITH:64"`))
	assert.Equal(t, `^64\d+$`, extractBarcodePattern(`Barcode = ^64\d+$`))
	assert.Equal(t, "", extractBarcodePattern("Weight > 1"))
}
