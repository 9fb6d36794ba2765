package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/scopegate/scopegate/internal/domain/scope"
)

var policyCmd = &cobra.Command{
	Use:   "policy <principal-id>",
	Short: "Print the aggregated guardrail policy for a principal",
	Long: `Resolve and print the effective guardrail policy for a principal:
model allow/deny lists, tier restrictions, token caps, rate and budget
limits, and content filter patterns, after merging all applicable
guardrails with the per-type combinators.

Example:
  scopegate policy user-1 --snapshot snapshot.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, args []string) error {
	e, err := buildEngine()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	p, err := e.scopes.Principal(ctx, args[0])
	if err != nil {
		return err
	}
	if p == nil {
		p = &scope.Principal{ID: args[0]}
	}

	resolution, err := e.guardrails.Resolve(ctx, p, nil)
	if err != nil {
		return err
	}

	policy := resolution.Policy
	out := map[string]any{
		"denied_models":    sortedKeys(policy.DeniedModels),
		"max_input_tokens": policy.MaxInputTokens,
		"max_output_tokens": policy.MaxOutputTokens,
		"rate_limits":      policy.RateLimits,
		"budget_limits":    policy.BudgetLimits,
		"blocked_patterns": policy.BlockedPatterns,
	}
	if policy.HasModelAllowlist {
		out["allowed_models"] = sortedKeys(policy.AllowedModels)
	}
	if policy.HasTierAllowlist {
		out["allowed_tiers"] = sortedKeys(policy.AllowedTiers)
	}
	if len(resolution.Warnings) > 0 {
		warnings := make([]map[string]string, 0, len(resolution.Warnings))
		for _, w := range resolution.Warnings {
			warnings = append(warnings, map[string]string{
				"guardrail_id": w.GuardrailID,
				"type":         string(w.Type),
				"message":      w.Message,
			})
		}
		out["warnings"] = warnings
	}

	return printJSON(out)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
