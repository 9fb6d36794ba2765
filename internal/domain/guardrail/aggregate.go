package guardrail

import (
	"fmt"

	"github.com/scopegate/scopegate/internal/domain/scope"
)

// Applicable filters the set down to active guardrails whose (level,
// scope_id) matches the principal: global rules always, organization rules
// for any organization the principal belongs to, group rules for any group
// membership, user rules for the principal's own ID.
func Applicable(set *Set, p *scope.Principal) []Guardrail {
	var out []Guardrail
	for _, g := range set.Guardrails {
		if !g.Active {
			continue
		}
		switch g.Level {
		case LevelGlobal:
			out = append(out, g)
		case LevelOrganization:
			if p.MembershipIn(g.ScopeID) != nil {
				out = append(out, g)
			}
		case LevelGroup:
			if p.InGroup(g.ScopeID) {
				out = append(out, g)
			}
		case LevelUser:
			if g.ScopeID == p.ID {
				out = append(out, g)
			}
		}
	}
	return out
}

// Aggregate merges same-type guardrails with the fixed combinator table:
//
//	model_allowlist  intersection (absence of any allowlist = unrestricted)
//	model_denylist   union (any single denial blocks)
//	tier_allowlist   intersection
//	token_limit      minimum per input/output
//	rate_limit       minimum per distinct period bucket
//	budget_limit     minimum per distinct period bucket
//	content_filter   union of blocked patterns
//
// Only guardrails with ActionBlock (or no action, which defaults to block)
// contribute to the enforced policy. A malformed config never widens
// access: empty or missing allowlist entries deny everything for that rule,
// malformed limits clamp to zero, and each problem is reported as a warning
// rather than a fatal error.
func Aggregate(rules []Guardrail) (ResolvedPolicy, []Warning) {
	policy := NewResolvedPolicy()
	var warnings []Warning

	warn := func(g Guardrail, format string, args ...any) {
		warnings = append(warnings, Warning{
			GuardrailID: g.ID,
			Type:        g.Type,
			Message:     fmt.Sprintf(format, args...),
		})
	}

	for _, g := range rules {
		if g.Action == ActionWarn || g.Action == ActionLog {
			continue
		}

		switch g.Type {
		case TypeModelAllowlist:
			models, ok := stringList(g.Config, "models")
			if !ok || len(models) == 0 {
				warn(g, "model_allowlist with missing or empty models; treating as deny-all")
			}
			policy.AllowedModels = intersect(policy.AllowedModels, policy.HasModelAllowlist, models)
			policy.HasModelAllowlist = true

		case TypeModelDenylist:
			models, ok := stringList(g.Config, "models")
			if !ok {
				warn(g, "model_denylist with missing models; entry ignored")
				continue
			}
			for _, m := range models {
				policy.DeniedModels[m] = struct{}{}
			}

		case TypeTierAllowlist:
			tiers, ok := stringList(g.Config, "tiers")
			if !ok || len(tiers) == 0 {
				warn(g, "tier_allowlist with missing or empty tiers; treating as deny-all")
			}
			policy.AllowedTiers = intersect(policy.AllowedTiers, policy.HasTierAllowlist, tiers)
			policy.HasTierAllowlist = true

		case TypeTokenLimit:
			if v, ok := intValue(g.Config, "max_input"); ok {
				policy.MaxInputTokens = minLimit(policy.MaxInputTokens, v)
			} else if _, present := g.Config["max_input"]; present {
				warn(g, "token_limit with malformed max_input; clamping to 0")
				policy.MaxInputTokens = 0
			}
			if v, ok := intValue(g.Config, "max_output"); ok {
				policy.MaxOutputTokens = minLimit(policy.MaxOutputTokens, v)
			} else if _, present := g.Config["max_output"]; present {
				warn(g, "token_limit with malformed max_output; clamping to 0")
				policy.MaxOutputTokens = 0
			}
			if _, inPresent := g.Config["max_input"]; !inPresent {
				if _, outPresent := g.Config["max_output"]; !outPresent {
					warn(g, "token_limit without max_input or max_output; clamping both to 0")
					policy.MaxInputTokens = 0
					policy.MaxOutputTokens = 0
				}
			}

		case TypeRateLimit:
			period, max, ok := periodLimit(g.Config, "max_requests")
			if !ok {
				warn(g, "rate_limit with malformed period or max_requests; clamping every bucket to 0")
				for _, p := range Periods {
					policy.RateLimits[p] = 0
				}
				continue
			}
			if cur, exists := policy.RateLimits[period]; !exists || max < cur {
				policy.RateLimits[period] = max
			}

		case TypeBudgetLimit:
			period, max, ok := budgetLimit(g.Config, "max_spend")
			if !ok {
				warn(g, "budget_limit with malformed period or max_spend; clamping every bucket to 0")
				for _, p := range Periods {
					policy.BudgetLimits[p] = 0
				}
				continue
			}
			if cur, exists := policy.BudgetLimits[period]; !exists || max < cur {
				policy.BudgetLimits[period] = max
			}

		case TypeContentFilter:
			patterns, ok := stringList(g.Config, "patterns")
			if !ok {
				warn(g, "content_filter with missing patterns; entry ignored")
				continue
			}
			policy.BlockedPatterns = append(policy.BlockedPatterns, patterns...)

		default:
			warn(g, "unknown guardrail type %q; entry ignored", g.Type)
		}
	}

	return policy, warnings
}

// intersect folds a new allowlist into the running intersection. The first
// allowlist seeds the set; later lists narrow it.
func intersect(current map[string]struct{}, seeded bool, items []string) map[string]struct{} {
	incoming := make(map[string]struct{}, len(items))
	for _, it := range items {
		incoming[it] = struct{}{}
	}
	if !seeded {
		return incoming
	}
	out := make(map[string]struct{})
	for it := range current {
		if _, ok := incoming[it]; ok {
			out[it] = struct{}{}
		}
	}
	return out
}

func minLimit(current, candidate int64) int64 {
	if candidate < 0 {
		candidate = 0
	}
	if current == Unlimited || candidate < current {
		return candidate
	}
	return current
}

// stringList extracts a []string from a config value that may have been
// decoded as []string or []any (JSON and YAML decoders differ here).
func stringList(config map[string]any, key string) ([]string, bool) {
	raw, ok := config[key]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// intValue extracts a non-negative integer limit from a config value.
func intValue(config map[string]any, key string) (int64, bool) {
	raw, ok := config[key]
	if !ok {
		return 0, false
	}
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		n = int64(v)
	default:
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return n, true
}

func floatValue(config map[string]any, key string) (float64, bool) {
	raw, ok := config[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func periodLimit(config map[string]any, limitKey string) (Period, int64, bool) {
	rawPeriod, ok := config["period"].(string)
	if !ok {
		return "", 0, false
	}
	period, ok := ParsePeriod(rawPeriod)
	if !ok {
		return "", 0, false
	}
	max, ok := intValue(config, limitKey)
	if !ok {
		return "", 0, false
	}
	return period, max, true
}

func budgetLimit(config map[string]any, limitKey string) (Period, float64, bool) {
	rawPeriod, ok := config["period"].(string)
	if !ok {
		return "", 0, false
	}
	period, ok := ParsePeriod(rawPeriod)
	if !ok {
		return "", 0, false
	}
	max, ok := floatValue(config, limitKey)
	if !ok || max < 0 {
		return "", 0, false
	}
	return period, max, true
}
