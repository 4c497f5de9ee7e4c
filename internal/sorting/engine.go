package sorting

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"parcel-sorter/internal/common/logging"
)

// DefaultRuleCacheTTL is how long an enabled-rule snapshot stays fresh.
const DefaultRuleCacheTTL = 5 * time.Minute

// Match is the outcome of a successful rule evaluation.
type Match struct {
	Chute string `json:"chute"`
	Rule  Rule   `json:"rule"`
}

// ruleSnapshot is one immutable cache generation.
type ruleSnapshot struct {
	rules    []Rule
	loadedAt time.Time
}

// Engine evaluates sorting rules in priority order and returns the first
// matching target chute. It holds a time-boxed snapshot of the enabled
// rules, refreshed under a single-entry lock with a lock-free read path, so
// concurrent evaluations never block each other and at most one refresh is
// in flight.
type Engine struct {
	repo     RuleRepository
	clock    Clock
	cacheTTL time.Duration
	logger   logging.Logger

	// refreshMu serializes snapshot reloads; snapshot itself is read lock-free
	refreshMu sync.Mutex
	snapshot  atomic.Value // *ruleSnapshot

	barcode BarcodeMatcher
	weight  WeightMatcher
	volume  VolumeMatcher
	ocr     OCRMatcher
	api     APIResponseMatcher
	lowCode LowCodeMatcher
}

// NewEngine creates a rule engine backed by the given repository. A nil
// clock falls back to the system clock; a non-positive TTL falls back to
// DefaultRuleCacheTTL.
func NewEngine(repo RuleRepository, clock Clock, cacheTTL time.Duration) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultRuleCacheTTL
	}
	return &Engine{
		repo:     repo,
		clock:    clock,
		cacheTTL: cacheTTL,
		logger:   logging.WithFields(logging.String("component", "rule-engine")),
	}
}

// EvaluateRules iterates the enabled rules in the order the repository
// supplied them (ascending priority) and returns the first match. It returns
// (nil, nil) when no rule matches: an unroutable parcel is not an error, the
// caller decides how to handle it. A rule that fails to evaluate is logged
// and treated as a non-match for that rule only.
func (e *Engine) EvaluateRules(ctx context.Context, subject *Subject) (*Match, error) {
	if subject == nil {
		return nil, nil
	}

	rules, err := e.rules(ctx)
	if err != nil {
		return nil, err
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		if e.ruleMatches(rule, subject) {
			return &Match{Chute: rule.TargetChute, Rule: *rule}, nil
		}
	}
	return nil, nil
}

// Invalidate drops the cached snapshot so the next evaluation reloads rules.
func (e *Engine) Invalidate() {
	e.snapshot.Store((*ruleSnapshot)(nil))
}

// rules returns the cached snapshot, reloading it when stale. The staleness
// check is lock-free; only a reload takes the refresh lock, and the stale
// check is repeated under it so concurrent evaluators trigger one reload.
func (e *Engine) rules(ctx context.Context) ([]Rule, error) {
	if e.repo == nil {
		return nil, ErrNoRepository
	}

	if snap := e.currentSnapshot(); snap != nil && e.fresh(snap) {
		return snap.rules, nil
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	if snap := e.currentSnapshot(); snap != nil && e.fresh(snap) {
		return snap.rules, nil
	}

	rules, err := e.repo.GetEnabledRules(ctx)
	if err != nil {
		// Keep serving a stale snapshot over failing evaluation outright
		if snap := e.currentSnapshot(); snap != nil {
			e.logger.Warn("rule reload failed, serving stale snapshot",
				logging.Err(err),
				logging.Time("loaded_at", snap.loadedAt),
			)
			return snap.rules, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRuleLoadFailed, err)
	}

	snap := &ruleSnapshot{rules: rules, loadedAt: e.clock.Now()}
	e.snapshot.Store(snap)
	e.logger.Debug("rule snapshot refreshed", logging.Int("rules", len(rules)))
	return snap.rules, nil
}

func (e *Engine) currentSnapshot() *ruleSnapshot {
	snap, _ := e.snapshot.Load().(*ruleSnapshot)
	return snap
}

func (e *Engine) fresh(snap *ruleSnapshot) bool {
	return e.clock.Now().Sub(snap.loadedAt) < e.cacheTTL
}

var cartNumberPattern = regexp.MustCompile(
	`(?i)^\s*CartNumber\s*(CONTAINS|STARTSWITH|ENDSWITH|==)\s*'([^']*)'\s*$`)

// ruleMatches evaluates one rule's condition against the subject. Dispatch
// mirrors the low-code combinator: the leading field name selects the
// matcher, falling back to the rule's matching method tag. A blank or
// literal DEFAULT condition always matches, which is how catch-all
// low-priority rules are written.
func (e *Engine) ruleMatches(rule *Rule, subject *Subject) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule evaluation panicked", fmt.Errorf("%v", r),
				logging.String("rule_id", rule.ID),
				logging.String("rule_name", rule.Name),
			)
			matched = false
		}
	}()

	condition := strings.TrimSpace(rule.Condition)
	if condition == "" || strings.EqualFold(condition, "DEFAULT") {
		return true
	}

	switch field := leadingIdentifier(condition); {
	case strings.EqualFold(field, "Weight"):
		return e.weight.Evaluate(condition, subject.Measurement)
	case strings.EqualFold(field, "Volume"):
		return e.volume.Evaluate(condition, subject.Measurement)
	case strings.EqualFold(field, "Barcode"):
		pattern := extractBarcodePattern(condition)
		if pattern == "" {
			return false
		}
		return e.barcode.Evaluate(pattern, subject.EffectiveBarcode())
	case strings.EqualFold(field, "CartNumber"):
		return matchCartNumber(condition, subject.Parcel.CartNumber)
	}

	switch rule.Method {
	case MethodBarcode:
		return e.barcode.Evaluate(condition, subject.EffectiveBarcode())
	case MethodWeight:
		return e.weight.Evaluate(condition, subject.Measurement)
	case MethodVolume:
		return e.volume.Evaluate(condition, subject.Measurement)
	case MethodOCR:
		return e.ocr.Evaluate(condition, subject.OCR)
	case MethodAPIResponse:
		return e.api.Evaluate(condition, subject.APIResponse)
	default:
		// Low-code, legacy free-form, and anything untagged
		return e.lowCode.Evaluate(condition, subject)
	}
}

// matchCartNumber evaluates the cart-number string operators against a
// single-quoted literal.
func matchCartNumber(condition, cartNumber string) bool {
	if cartNumber == "" {
		return false
	}
	match := cartNumberPattern.FindStringSubmatch(condition)
	if match == nil {
		return false
	}

	operator := strings.ToUpper(match[1])
	literal := match[2]
	switch operator {
	case "CONTAINS":
		return strings.Contains(cartNumber, literal)
	case "STARTSWITH":
		return strings.HasPrefix(cartNumber, literal)
	case "ENDSWITH":
		return strings.HasSuffix(cartNumber, literal)
	case "==":
		return cartNumber == literal
	default:
		return false
	}
}
