package sorting

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Numeric conditions such as "Weight > 1000 && Weight <= 5000" are parsed
// once into a small tagged AST and evaluated against decimal variables.
// The grammar is deliberately flat: the expression is split on OR first,
// then each branch on AND, so an expression mixing both operators always
// groups as an outer OR of inner ANDs. Parenthesized sub-expressions are
// not supported. Stored rules rely on this grouping; do not change it.

// varSet maps upper-cased variable names to their decimal values.
type varSet map[string]decimal.Decimal

// exprNode is a parsed boolean expression over numeric comparisons.
type exprNode interface {
	eval(vars varSet) bool
}

// orExpr is true when any term is true.
type orExpr struct {
	terms []exprNode
}

func (e orExpr) eval(vars varSet) bool {
	for _, term := range e.terms {
		if term.eval(vars) {
			return true
		}
	}
	return false
}

// andExpr is true when all terms are true.
type andExpr struct {
	terms []exprNode
}

func (e andExpr) eval(vars varSet) bool {
	for _, term := range e.terms {
		if !term.eval(vars) {
			return false
		}
	}
	return len(e.terms) > 0
}

// comparison is a single binary comparison between two operands.
type comparison struct {
	left  operand
	op    string
	right operand
}

func (c comparison) eval(vars varSet) bool {
	left, ok := c.left.resolve(vars)
	if !ok {
		return false
	}
	right, ok := c.right.resolve(vars)
	if !ok {
		return false
	}

	cmp := left.Cmp(right)
	switch c.op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case "==", "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return false
	}
}

// invalidExpr is the parse result for anything unparseable. It never matches.
type invalidExpr struct{}

func (invalidExpr) eval(varSet) bool { return false }

// operand is either a variable reference or a decimal literal.
type operand struct {
	variable string
	literal  decimal.Decimal
	isVar    bool
	valid    bool
}

func (o operand) resolve(vars varSet) (decimal.Decimal, bool) {
	if !o.valid {
		return decimal.Decimal{}, false
	}
	if o.isVar {
		value, ok := vars[o.variable]
		return value, ok
	}
	return o.literal, true
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func parseOperand(text string) operand {
	text = strings.TrimSpace(text)
	if text == "" {
		return operand{}
	}
	if value, err := decimal.NewFromString(text); err == nil {
		return operand{literal: value, valid: true}
	}
	if identifierPattern.MatchString(text) {
		return operand{variable: strings.ToUpper(text), isVar: true, valid: true}
	}
	return operand{}
}

var (
	andWordPattern = regexp.MustCompile(`(?i)\band\b`)
	orWordPattern  = regexp.MustCompile(`(?i)\bor\b`)
)

// normalizeOperators rewrites the legacy operator spellings ("and", "or",
// single "&", single "|") to the canonical "&&" and "||" forms.
func normalizeOperators(expr string) string {
	expr = andWordPattern.ReplaceAllString(expr, "&&")
	expr = orWordPattern.ReplaceAllString(expr, "||")

	var builder strings.Builder
	builder.Grow(len(expr))
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '&':
			builder.WriteString("&&")
			if i+1 < len(expr) && expr[i+1] == '&' {
				i++
			}
		case '|':
			builder.WriteString("||")
			if i+1 < len(expr) && expr[i+1] == '|' {
				i++
			}
		default:
			builder.WriteByte(expr[i])
		}
	}
	return builder.String()
}

// parseNumericExpression parses a flat boolean expression of comparisons.
// OR binds outermost, then AND; anything unparseable yields a node that
// evaluates false.
func parseNumericExpression(expr string) exprNode {
	expr = normalizeOperators(expr)

	orParts := strings.Split(expr, "||")
	if len(orParts) > 1 {
		terms := make([]exprNode, 0, len(orParts))
		for _, part := range orParts {
			terms = append(terms, parseAndExpression(part))
		}
		return orExpr{terms: terms}
	}
	return parseAndExpression(expr)
}

func parseAndExpression(expr string) exprNode {
	andParts := strings.Split(expr, "&&")
	if len(andParts) > 1 {
		terms := make([]exprNode, 0, len(andParts))
		for _, part := range andParts {
			terms = append(terms, parseComparison(part))
		}
		return andExpr{terms: terms}
	}
	return parseComparison(expr)
}

// parseComparison parses a single comparison. Operators are probed in an
// order that avoids substring collisions: ">=" and "<=" before their
// single-character forms, bare "=" only when no "<" or ">" is present.
func parseComparison(expr string) exprNode {
	expr = strings.TrimSpace(expr)

	var op string
	switch {
	case strings.Contains(expr, ">="):
		op = ">="
	case strings.Contains(expr, "<="):
		op = "<="
	case strings.Contains(expr, "=="):
		op = "=="
	case !strings.ContainsAny(expr, "<>") && strings.Contains(expr, "="):
		op = "="
	case strings.Contains(expr, ">"):
		op = ">"
	case strings.Contains(expr, "<"):
		op = "<"
	default:
		return invalidExpr{}
	}

	parts := strings.SplitN(expr, op, 2)
	if len(parts) != 2 {
		return invalidExpr{}
	}

	left := parseOperand(parts[0])
	right := parseOperand(parts[1])
	if !left.valid || !right.valid {
		return invalidExpr{}
	}
	return comparison{left: left, op: op, right: right}
}

// evalNumeric parses and evaluates expr against the given variables.
func evalNumeric(expr string, vars varSet) bool {
	if strings.TrimSpace(expr) == "" {
		return false
	}
	return parseNumericExpression(expr).eval(vars)
}

// WeightMatcher evaluates weight threshold expressions such as
// "Weight > 1000" or "Weight >= 500 && Weight < 2000" against the
// measured weight.
type WeightMatcher struct{}

// Evaluate reports whether the measurement satisfies the expression.
// A nil measurement or a malformed expression evaluates false.
func (WeightMatcher) Evaluate(expression string, m *Measurement) bool {
	if m == nil {
		return false
	}
	return evalNumeric(expression, varSet{"WEIGHT": m.Weight})
}

// VolumeMatcher evaluates dimension expressions over Length, Width, Height
// and Volume, e.g. "Length > 600 || Volume >= 120000".
type VolumeMatcher struct{}

// Evaluate reports whether the measurement satisfies the expression.
// A nil measurement or a malformed expression evaluates false.
func (VolumeMatcher) Evaluate(expression string, m *Measurement) bool {
	if m == nil {
		return false
	}
	return evalNumeric(expression, varSet{
		"LENGTH": m.Length,
		"WIDTH":  m.Width,
		"HEIGHT": m.Height,
		"VOLUME": m.DerivedVolume(),
	})
}
