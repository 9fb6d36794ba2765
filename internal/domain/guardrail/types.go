// Package guardrail contains governance rule types and the fixed per-type
// combinators that merge rules declared at multiple scope levels into one
// effective policy.
package guardrail

import "context"

// Type identifies what a guardrail restricts. Each type has a fixed
// combination semantic; see Aggregate.
type Type string

const (
	// TypeModelAllowlist narrows usable models; multiple allowlists intersect.
	TypeModelAllowlist Type = "model_allowlist"
	// TypeModelDenylist blocks models; multiple denylists union.
	TypeModelDenylist Type = "model_denylist"
	// TypeTierAllowlist narrows available subscription tiers; intersects.
	TypeTierAllowlist Type = "tier_allowlist"
	// TypeTokenLimit caps input/output tokens; minimum wins.
	TypeTokenLimit Type = "token_limit"
	// TypeRateLimit caps requests per period bucket; minimum per bucket.
	TypeRateLimit Type = "rate_limit"
	// TypeBudgetLimit caps spend per period bucket; minimum per bucket.
	TypeBudgetLimit Type = "budget_limit"
	// TypeContentFilter blocks prompts matching any pattern; patterns union.
	TypeContentFilter Type = "content_filter"
)

// Level is the scope a guardrail is declared at.
type Level string

const (
	LevelGlobal       Level = "global"
	LevelOrganization Level = "organization"
	LevelGroup        Level = "group"
	LevelUser         Level = "user"
)

// Action is what happens when a guardrail is violated.
type Action string

const (
	// ActionBlock denies the request. Only block guardrails contribute to
	// the enforced policy.
	ActionBlock Action = "block"
	// ActionWarn surfaces a warning but does not deny.
	ActionWarn Action = "warn"
	// ActionLog records the violation only.
	ActionLog Action = "log"
)

// Period is a rate or budget window bucket. Buckets are independent: a
// minute limit and a day limit are merged separately.
type Period string

const (
	PeriodMinute Period = "minute"
	PeriodHour   Period = "hour"
	PeriodDay    Period = "day"
)

// Periods lists every bucket in check order.
var Periods = []Period{PeriodMinute, PeriodHour, PeriodDay}

// ParsePeriod validates a period string from a guardrail config.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodMinute, PeriodHour, PeriodDay:
		return Period(s), true
	default:
		return "", false
	}
}

// Guardrail is a single governance rule. Guardrails are immutable inputs to
// a resolution call; their lifecycle is owned by the external system.
type Guardrail struct {
	ID   string
	Type Type
	// Level and ScopeID select who the rule applies to. ScopeID is empty
	// iff Level is global.
	Level   Level
	ScopeID string
	Action  Action
	// Priority is informational ordering for display; combinators do not
	// depend on it.
	Priority int
	Active   bool
	// Condition is an optional CEL expression over the resolution context.
	// A rule whose condition evaluates false is skipped; a condition that
	// fails to compile or errors keeps the rule applied (fail closed).
	Condition string
	// Config carries the type-specific payload (model lists, limits,
	// patterns). Missing or malformed keys resolve to the most restrictive
	// value for the type, never to unrestricted.
	Config map[string]any
}

// Set is an immutable guardrail snapshot for one resolution call.
type Set struct {
	// Version identifies the snapshot for cache keying.
	Version    string
	Guardrails []Guardrail
}

// Provider fetches guardrail snapshots. Implementations live in
// internal/adapter/outbound.
type Provider interface {
	// Guardrails returns the current guardrail set. The returned value
	// must be treated as immutable for the duration of the call.
	Guardrails(ctx context.Context) (*Set, error)
}

// Warning reports a structural problem found during aggregation, such as a
// malformed config or an unknown period. The paired result is always safe
// (denying); warnings exist so a single bad rule never aborts resolution.
type Warning struct {
	GuardrailID string
	Type        Type
	Message     string
}
