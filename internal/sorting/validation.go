package sorting

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule validation limits.
const (
	// MaxConditionLength is the longest accepted condition text
	MaxConditionLength = 2000
	// MinPriority is the lowest accepted rule priority
	MinPriority = 0
	// MaxPriority is the highest accepted rule priority
	MaxPriority = 9999
)

// ValidationResult is the structured outcome of the static rule gate.
// Validation never throws: callers get (valid, reason) and decide.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func invalidRule(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// conditionDenylist holds case-insensitive substrings associated with code
// execution, reflection, dynamic compilation, file/stream I/O and SQL verbs.
// Condition text is pattern data, never code; anything that smells like code
// is rejected before it can reach a matcher.
var conditionDenylist = []string{
	"system.",
	"process.",
	"runtime.",
	"environment.",
	"reflect",
	"typeof",
	"getmethod",
	"invoke(",
	"eval(",
	"exec(",
	"compile",
	"assembly",
	"activator",
	"appdomain",
	"file.",
	"directory.",
	"stream",
	"socket",
	"select ",
	"insert ",
	"update ",
	"delete ",
	"drop ",
	"truncate ",
	"alter ",
}

// Structural allow-list grammars per matching method. Free-form and low-code
// conditions skip the structural check by design; everything else must look
// like its method's grammar before it is accepted.
var (
	weightGrammar = regexp.MustCompile(
		`(?i)^\s*weight\s*(>=|<=|==|=|>|<)\s*\d+(?:\.\d+)?` +
			`(\s*(&&|\|\||and|or)\s*weight\s*(>=|<=|==|=|>|<)\s*\d+(?:\.\d+)?)*\s*$`)

	volumeGrammar = regexp.MustCompile(
		`(?i)^\s*(volume|length|width|height)\s*(>=|<=|==|=|>|<)\s*\d+(?:\.\d+)?` +
			`(\s*(&&|\|\||and|or)\s*(volume|length|width|height)\s*(>=|<=|==|=|>|<)\s*\d+(?:\.\d+)?)*\s*$`)

	ocrGrammar = regexp.MustCompile(
		`(?i)^\s*(threesegmentcode|firstsegmentcode|secondsegmentcode|thirdsegmentcode|` +
			`recipientaddress|senderaddress|recipientphonesuffix|senderphonesuffix)\s*=\s*[^;]+` +
			`(\s+(and|or)\s+(threesegmentcode|firstsegmentcode|secondsegmentcode|thirdsegmentcode|` +
			`recipientaddress|senderaddress|recipientphonesuffix|senderphonesuffix)\s*=\s*[^;]+)*\s*$`)

	barcodeGrammar = regexp.MustCompile(
		`(?i)^\s*((STARTSWITH|CONTAINS|NOTCONTAINS|LENGTH|REGEX):\S.*|ALLDIGITS|ALPHANUMERIC)\s*$`)

	apiResponseGrammar = regexp.MustCompile(
		`(?i)^\s*(STRING|STRING_REVERSE|REGEX|JSON):.+$`)
)

// ValidateRule is the static gate a rule must pass before it is persisted.
// It checks identity fields, condition length, the construct denylist,
// character restrictions, priority bounds and the per-method grammar.
func ValidateRule(rule *Rule) ValidationResult {
	if rule == nil {
		return invalidRule("rule is required")
	}
	if strings.TrimSpace(rule.ID) == "" {
		return invalidRule("rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return invalidRule("rule name is required")
	}
	if strings.TrimSpace(rule.TargetChute) == "" {
		return invalidRule("target chute is required")
	}

	condition := rule.Condition
	if strings.TrimSpace(condition) == "" {
		return invalidRule("condition is required")
	}
	if len(condition) > MaxConditionLength {
		return invalidRule("condition exceeds %d characters", MaxConditionLength)
	}

	lower := strings.ToLower(condition)
	for _, banned := range conditionDenylist {
		if strings.Contains(lower, banned) {
			return invalidRule("condition contains disallowed construct %q", strings.TrimSpace(banned))
		}
	}

	if reason := checkConditionCharacters(condition); reason != "" {
		return invalidRule("%s", reason)
	}

	if rule.Priority < MinPriority || rule.Priority > MaxPriority {
		return invalidRule("priority must be between %d and %d", MinPriority, MaxPriority)
	}

	if reason := checkConditionGrammar(rule.Method, condition); reason != "" {
		return invalidRule("%s", reason)
	}

	return ValidationResult{Valid: true}
}

// checkConditionCharacters rejects control characters (other than CR, LF and
// TAB), statement separators and shell metacharacters. Logical operators must
// be written in their canonical doubled form: a lone '&' or '|' is rejected
// even though '&&' and '||' are legitimate, which is a deliberate tightening
// over the matcher grammar.
func checkConditionCharacters(condition string) string {
	for _, r := range condition {
		if r < 0x20 && r != '\r' && r != '\n' && r != '\t' {
			return "condition contains a control character"
		}
		switch r {
		case ';':
			return "condition contains ';'"
		case '`':
			return "condition contains '`'"
		}
	}

	for i := 0; i < len(condition); i++ {
		switch condition[i] {
		case '&':
			if i+1 < len(condition) && condition[i+1] == '&' {
				i++
				continue
			}
			return "single '&' is not allowed; use '&&'"
		case '|':
			if i+1 < len(condition) && condition[i+1] == '|' {
				i++
				continue
			}
			return "single '|' is not allowed; use '||'"
		}
	}
	return ""
}

// checkConditionGrammar enforces the per-method structural allow-list.
func checkConditionGrammar(method MatchingMethod, condition string) string {
	switch method {
	case MethodWeight:
		if !weightGrammar.MatchString(condition) {
			return "condition does not match the weight expression grammar"
		}
	case MethodVolume:
		if !volumeGrammar.MatchString(condition) {
			return "condition does not match the volume expression grammar"
		}
	case MethodOCR:
		if !ocrGrammar.MatchString(condition) {
			return "condition does not match the OCR expression grammar"
		}
	case MethodBarcode:
		if !barcodeGrammar.MatchString(condition) {
			// A raw regular expression is also accepted if it compiles
			if _, err := regexp.Compile(condition); err != nil {
				return "condition is neither a barcode preset nor a valid regular expression"
			}
		}
	case MethodAPIResponse:
		if !apiResponseGrammar.MatchString(condition) {
			return "condition does not match the API response grammar"
		}
	case MethodLowCode, MethodFreeForm:
		// No structural check by design
	}
	return ""
}
