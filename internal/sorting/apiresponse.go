package sorting

import (
	"encoding/json"
	"regexp"
	"strings"
)

// APIMatchKind is a typed third-party response match variant.
type APIMatchKind string

const (
	// APIMatchString is a case-insensitive substring search
	APIMatchString APIMatchKind = "STRING"
	// APIMatchStringReverse is the same search scanning from the end of the
	// response, for cases where only the last occurrence is authoritative
	APIMatchStringReverse APIMatchKind = "STRING_REVERSE"
	// APIMatchRegex matches the response against a regular expression
	APIMatchRegex APIMatchKind = "REGEX"
	// APIMatchJSON walks a dot-separated field path in a JSON response and
	// compares the leaf value
	APIMatchJSON APIMatchKind = "JSON"
)

// apiKindOrder lists kinds in prefix-probe order. STRING_REVERSE must come
// before STRING or the shorter name would shadow it.
var apiKindOrder = []APIMatchKind{
	APIMatchStringReverse,
	APIMatchString,
	APIMatchRegex,
	APIMatchJSON,
}

// APIResponseMatcher matches third-party lookup responses. It accepts the
// typed Match form or the legacy prefixed string form ("STRING:",
// "STRING_REVERSE:", "REGEX:", "JSON:"); an expression with no recognized
// prefix evaluates false.
type APIResponseMatcher struct{}

// Evaluate parses a legacy prefixed expression and matches it against the
// response body. Malformed expressions evaluate false.
func (m APIResponseMatcher) Evaluate(expression, response string) bool {
	expression = strings.TrimSpace(expression)
	upper := strings.ToUpper(expression)

	for _, kind := range apiKindOrder {
		prefix := string(kind) + ":"
		if strings.HasPrefix(upper, prefix) {
			return m.Match(kind, expression[len(prefix):], response)
		}
	}
	return false
}

// Match applies a typed variant to the response body. An empty response
// never matches.
func (m APIResponseMatcher) Match(kind APIMatchKind, param, response string) bool {
	if response == "" || param == "" {
		return false
	}

	switch kind {
	case APIMatchString:
		return strings.Contains(strings.ToLower(response), strings.ToLower(param))
	case APIMatchStringReverse:
		return strings.LastIndex(strings.ToLower(response), strings.ToLower(param)) >= 0
	case APIMatchRegex:
		pattern, err := regexp.Compile(param)
		if err != nil {
			return false
		}
		return pattern.MatchString(response)
	case APIMatchJSON:
		return matchJSONField(param, response)
	default:
		return false
	}
}

// matchJSONField parses param as "path.to.field=expected", walks the dot
// separated path through the response JSON and compares the leaf value
// case-insensitively. Numbers keep their exact decimal form, booleans become
// "true"/"false", and null counts as not found.
func matchJSONField(param, response string) bool {
	parts := strings.SplitN(param, "=", 2)
	if len(parts) != 2 {
		return false
	}
	path := strings.TrimSpace(parts[0])
	expected := strings.TrimSpace(parts[1])
	if path == "" {
		return false
	}

	decoder := json.NewDecoder(strings.NewReader(response))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return false
	}

	current := document
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		current, ok = object[segment]
		if !ok {
			return false
		}
	}

	leaf, ok := formatJSONLeaf(current)
	if !ok {
		return false
	}
	return strings.EqualFold(leaf, expected)
}

func formatJSONLeaf(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case nil:
		// null is treated as "not found"
		return "", false
	default:
		return "", false
	}
}
