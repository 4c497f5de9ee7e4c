package sorting

import (
	"regexp"
	"strings"
)

var (
	orSplitPattern  = regexp.MustCompile(`(?i)\s+or\s+`)
	andSplitPattern = regexp.MustCompile(`(?i)\s+and\s+`)
)

// splitWordOr splits a condition list on the literal " or " connector,
// case-insensitively. No parenthesis awareness: OR binds outermost.
func splitWordOr(expr string) []string {
	return orSplitPattern.Split(expr, -1)
}

// splitWordAnd splits a condition list on the literal " and " connector,
// case-insensitively.
func splitWordAnd(expr string) []string {
	return andSplitPattern.Split(expr, -1)
}

// OCRMatcher matches conditions of the form "field=value" against the text
// fields recognized off a parcel label. Conditions are joined with the
// literal " and " / " or " connectors; an expected value that looks like a
// regular expression is regex-matched, otherwise compared case-insensitively.
type OCRMatcher struct{}

// Evaluate reports whether the OCR payload satisfies the expression.
// A nil payload, an unknown field name or an absent field value makes the
// affected condition false; a fully malformed expression evaluates false.
func (m OCRMatcher) Evaluate(expression string, data *OCRData) bool {
	if data == nil || strings.TrimSpace(expression) == "" {
		return false
	}

	for _, orPart := range splitWordOr(expression) {
		andParts := splitWordAnd(orPart)
		all := len(andParts) > 0
		for _, cond := range andParts {
			if !m.matchCondition(cond, data) {
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

func (OCRMatcher) matchCondition(condition string, data *OCRData) bool {
	parts := strings.SplitN(condition, "=", 2)
	if len(parts) != 2 {
		return false
	}

	actual, ok := data.Field(parts[0])
	if !ok || actual == "" {
		return false
	}

	expected := strings.TrimSpace(parts[1])
	if expected == "" {
		return false
	}

	if looksLikeRegex(expected) {
		pattern, err := regexp.Compile(expected)
		if err != nil {
			return false
		}
		return pattern.MatchString(actual)
	}
	return strings.EqualFold(actual, expected)
}

// looksLikeRegex reports whether an expected value should be treated as a
// regular expression rather than a literal.
func looksLikeRegex(value string) bool {
	return strings.HasPrefix(value, "^") ||
		strings.Contains(value, `\d`) ||
		strings.ContainsAny(value, "*+")
}
