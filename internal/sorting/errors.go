package sorting

import "errors"

var (
	// ErrNoRepository is returned when the engine has no rule repository configured
	ErrNoRepository = errors.New("rule repository is not configured")

	// ErrRuleLoadFailed is returned when the enabled-rule snapshot cannot be
	// loaded and no previous snapshot exists to fall back on
	ErrRuleLoadFailed = errors.New("failed to load sorting rules")
)
