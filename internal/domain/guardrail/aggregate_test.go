package guardrail

import (
	"testing"

	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

func blockRule(id string, typ Type, config map[string]any) Guardrail {
	return Guardrail{ID: id, Type: typ, Level: LevelGlobal, Action: ActionBlock, Active: true, Config: config}
}

func TestApplicable(t *testing.T) {
	set := &Set{
		Guardrails: []Guardrail{
			{ID: "g-global", Type: TypeTokenLimit, Level: LevelGlobal, Action: ActionBlock, Active: true},
			{ID: "g-org", Type: TypeTokenLimit, Level: LevelOrganization, ScopeID: "org-1", Action: ActionBlock, Active: true},
			{ID: "g-other-org", Type: TypeTokenLimit, Level: LevelOrganization, ScopeID: "org-2", Action: ActionBlock, Active: true},
			{ID: "g-group", Type: TypeTokenLimit, Level: LevelGroup, ScopeID: "group-eng", Action: ActionBlock, Active: true},
			{ID: "g-user", Type: TypeTokenLimit, Level: LevelUser, ScopeID: "user-1", Action: ActionBlock, Active: true},
			{ID: "g-other-user", Type: TypeTokenLimit, Level: LevelUser, ScopeID: "user-2", Action: ActionBlock, Active: true},
			{ID: "g-inactive", Type: TypeTokenLimit, Level: LevelGlobal, Action: ActionBlock, Active: false},
		},
	}
	p := &scope.Principal{
		ID:               "user-1",
		OrgMemberships:   []scope.OrgMembership{{OrganizationID: "org-1", UserID: "user-1", Role: role.RoleMember}},
		GroupMemberships: []scope.GroupMembership{{GroupID: "group-eng", UserID: "user-1", Role: role.RoleMember}},
	}

	got := Applicable(set, p)

	want := map[string]bool{"g-global": true, "g-org": true, "g-group": true, "g-user": true}
	if len(got) != len(want) {
		t.Fatalf("Applicable() returned %d rules, want %d", len(got), len(want))
	}
	for _, g := range got {
		if !want[g.ID] {
			t.Errorf("Applicable() included unexpected rule %s", g.ID)
		}
	}
}

func TestAggregate_TokenLimitMinimumWins(t *testing.T) {
	policy, warnings := Aggregate([]Guardrail{
		blockRule("g-1", TypeTokenLimit, map[string]any{"max_input": 8000}),
		blockRule("g-2", TypeTokenLimit, map[string]any{"max_input": 4000}),
	})

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if policy.MaxInputTokens != 4000 {
		t.Errorf("MaxInputTokens = %d, want 4000", policy.MaxInputTokens)
	}
	if policy.MaxOutputTokens != Unlimited {
		t.Errorf("MaxOutputTokens = %d, want unlimited", policy.MaxOutputTokens)
	}
}

func TestAggregate_DenylistBeatsAllowlist(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-deny", TypeModelDenylist, map[string]any{"models": []string{"opus"}}),
		blockRule("g-allow", TypeModelAllowlist, map[string]any{"models": []string{"opus", "haiku"}}),
	})

	if policy.ModelAllowed("opus") {
		t.Error("opus must be denied: denylist beats allowlist")
	}
	if !policy.ModelAllowed("haiku") {
		t.Error("haiku should be allowed")
	}
	if policy.ModelAllowed("sonnet") {
		t.Error("sonnet is outside the allowlist and must be denied")
	}
}

func TestAggregate_AllowlistsIntersect(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-1", TypeModelAllowlist, map[string]any{"models": []string{"opus", "sonnet", "haiku"}}),
		blockRule("g-2", TypeModelAllowlist, map[string]any{"models": []string{"sonnet", "haiku"}}),
		blockRule("g-3", TypeModelAllowlist, map[string]any{"models": []string{"sonnet"}}),
	})

	if !policy.ModelAllowed("sonnet") {
		t.Error("sonnet is in every allowlist and should be allowed")
	}
	for _, m := range []string{"opus", "haiku"} {
		if policy.ModelAllowed(m) {
			t.Errorf("%s is not in the intersection and must be denied", m)
		}
	}
}

func TestAggregate_NoAllowlistMeansUnrestricted(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-deny", TypeModelDenylist, map[string]any{"models": []string{"opus"}}),
	})

	if policy.HasModelAllowlist {
		t.Error("HasModelAllowlist = true without any allowlist rule")
	}
	if !policy.ModelAllowed("sonnet") {
		t.Error("absence of an allowlist must not restrict models")
	}
}

func TestAggregate_EmptyAllowlistDeniesAll(t *testing.T) {
	policy, warnings := Aggregate([]Guardrail{
		blockRule("g-empty", TypeModelAllowlist, map[string]any{"models": []string{}}),
	})

	if !policy.HasModelAllowlist {
		t.Fatal("empty allowlist must still seed the allowlist")
	}
	if policy.ModelAllowed("sonnet") {
		t.Error("empty allowlist must deny every model")
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(warnings))
	}
}

func TestAggregate_TierAllowlistsIntersect(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-1", TypeTierAllowlist, map[string]any{"tiers": []string{"free", "pro", "max"}}),
		blockRule("g-2", TypeTierAllowlist, map[string]any{"tiers": []string{"pro", "max"}}),
	})

	if policy.TierAllowed("free") {
		t.Error("free is not in the intersection")
	}
	if !policy.TierAllowed("pro") || !policy.TierAllowed("max") {
		t.Error("pro and max should remain allowed")
	}
}

func TestAggregate_RateLimitBucketsAreIndependent(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-min", TypeRateLimit, map[string]any{"period": "minute", "max_requests": 10}),
		blockRule("g-min-2", TypeRateLimit, map[string]any{"period": "minute", "max_requests": 5}),
		blockRule("g-day", TypeRateLimit, map[string]any{"period": "day", "max_requests": 500}),
	})

	if got := policy.RateLimits[PeriodMinute]; got != 5 {
		t.Errorf("minute limit = %d, want 5", got)
	}
	if got := policy.RateLimits[PeriodDay]; got != 500 {
		t.Errorf("day limit = %d, want 500", got)
	}
	if _, ok := policy.RateLimits[PeriodHour]; ok {
		t.Error("hour bucket must stay unset")
	}
}

func TestAggregate_BudgetLimitMinimumPerBucket(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-1", TypeBudgetLimit, map[string]any{"period": "day", "max_spend": 100.0}),
		blockRule("g-2", TypeBudgetLimit, map[string]any{"period": "day", "max_spend": 25.5}),
	})

	if got := policy.BudgetLimits[PeriodDay]; got != 25.5 {
		t.Errorf("day budget = %v, want 25.5", got)
	}
}

func TestAggregate_ContentFiltersUnion(t *testing.T) {
	policy, _ := Aggregate([]Guardrail{
		blockRule("g-1", TypeContentFilter, map[string]any{"patterns": []string{"secret"}}),
		blockRule("g-2", TypeContentFilter, map[string]any{"patterns": []string{"password", "token"}}),
	})

	if len(policy.BlockedPatterns) != 3 {
		t.Errorf("BlockedPatterns = %v, want 3 patterns", policy.BlockedPatterns)
	}
}

func TestAggregate_WarnAndLogRulesDoNotEnforce(t *testing.T) {
	warnRule := blockRule("g-warn", TypeModelDenylist, map[string]any{"models": []string{"opus"}})
	warnRule.Action = ActionWarn
	logRule := blockRule("g-log", TypeTokenLimit, map[string]any{"max_input": 1})
	logRule.Action = ActionLog

	policy, _ := Aggregate([]Guardrail{warnRule, logRule})

	if policy.ModelDenied("opus") {
		t.Error("warn-action denylist must not enforce")
	}
	if policy.MaxInputTokens != Unlimited {
		t.Errorf("MaxInputTokens = %d, want unlimited", policy.MaxInputTokens)
	}
}

func TestAggregate_MalformedConfigsFailClosed(t *testing.T) {
	tests := []struct {
		name  string
		rule  Guardrail
		check func(t *testing.T, p ResolvedPolicy)
	}{
		{
			name: "malformed token limit clamps to zero",
			rule: blockRule("g-tok", TypeTokenLimit, map[string]any{"max_input": "lots"}),
			check: func(t *testing.T, p ResolvedPolicy) {
				if p.MaxInputTokens != 0 {
					t.Errorf("MaxInputTokens = %d, want 0", p.MaxInputTokens)
				}
			},
		},
		{
			name: "token limit without keys clamps both to zero",
			rule: blockRule("g-tok2", TypeTokenLimit, map[string]any{}),
			check: func(t *testing.T, p ResolvedPolicy) {
				if p.MaxInputTokens != 0 || p.MaxOutputTokens != 0 {
					t.Errorf("limits = %d/%d, want 0/0", p.MaxInputTokens, p.MaxOutputTokens)
				}
			},
		},
		{
			name: "negative token limit clamps to zero",
			rule: blockRule("g-neg", TypeTokenLimit, map[string]any{"max_input": -100}),
			check: func(t *testing.T, p ResolvedPolicy) {
				if p.MaxInputTokens != 0 {
					t.Errorf("MaxInputTokens = %d, want 0", p.MaxInputTokens)
				}
			},
		},
		{
			name: "rate limit with unknown period clamps every bucket",
			rule: blockRule("g-rate", TypeRateLimit, map[string]any{"period": "fortnight", "max_requests": 10}),
			check: func(t *testing.T, p ResolvedPolicy) {
				for _, period := range Periods {
					if limit, ok := p.RateLimits[period]; !ok || limit != 0 {
						t.Errorf("bucket %s = %d (present=%v), want 0", period, limit, ok)
					}
				}
			},
		},
		{
			name: "budget limit with malformed spend clamps every bucket",
			rule: blockRule("g-budget", TypeBudgetLimit, map[string]any{"period": "day", "max_spend": "ten"}),
			check: func(t *testing.T, p ResolvedPolicy) {
				for _, period := range Periods {
					if limit, ok := p.BudgetLimits[period]; !ok || limit != 0 {
						t.Errorf("bucket %s = %v (present=%v), want 0", period, limit, ok)
					}
				}
			},
		},
		{
			name: "denylist with malformed models is ignored",
			rule: blockRule("g-deny", TypeModelDenylist, map[string]any{"models": "opus"}),
			check: func(t *testing.T, p ResolvedPolicy) {
				if p.ModelDenied("opus") {
					t.Error("malformed denylist must be ignored, not partially applied")
				}
			},
		},
		{
			name: "unknown type is ignored with a warning",
			rule: blockRule("g-odd", Type("geo_fence"), map[string]any{}),
			check: func(t *testing.T, p ResolvedPolicy) {
				if !p.ModelAllowed("anything") {
					t.Error("unknown type must not restrict the policy")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, warnings := Aggregate([]Guardrail{tt.rule})
			if len(warnings) == 0 {
				t.Error("expected at least one warning for malformed config")
			}
			tt.check(t, policy)
		})
	}
}

func TestAggregate_YAMLDecodedListsAreAccepted(t *testing.T) {
	// YAML decoders hand config lists over as []any, not []string.
	policy, warnings := Aggregate([]Guardrail{
		blockRule("g-any", TypeModelAllowlist, map[string]any{"models": []any{"sonnet", "haiku"}}),
	})

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !policy.ModelAllowed("sonnet") || !policy.ModelAllowed("haiku") {
		t.Error("[]any model list should parse")
	}
}

func TestAggregate_EmptyRuleSetIsUnrestricted(t *testing.T) {
	policy, warnings := Aggregate(nil)

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !policy.ModelAllowed("anything") || !policy.TierAllowed("any-tier") {
		t.Error("empty rule set must not restrict anything")
	}
	if policy.MaxInputTokens != Unlimited || policy.MaxOutputTokens != Unlimited {
		t.Error("empty rule set must leave token limits unlimited")
	}
	if len(policy.RateLimits) != 0 || len(policy.BudgetLimits) != 0 {
		t.Error("empty rule set must leave rate and budget buckets unset")
	}
}
