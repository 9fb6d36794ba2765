package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/service"
)

var (
	validatePrincipal string
	validateModel     string
	validateTokens    int64
	validateContent   string
	validateRequests  map[string]int64
	validateSpend     map[string]string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a proposed request end to end",
	Long: `Run the full validation chain for one proposed request: model
availability, token cap, rate limits, budget limits, and content filter.
Usage counters are supplied on the command line; the engine never tracks
usage itself.

Examples:
  scopegate validate --principal user-1 --model claude-sonnet \
    --tokens 4096 --snapshot snapshot.yaml

  # With current usage counters
  scopegate validate --principal user-1 --model claude-sonnet \
    --tokens 4096 --requests hour=41 --snapshot snapshot.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validatePrincipal, "principal", "", "principal ID (required)")
	validateCmd.Flags().StringVar(&validateModel, "model", "", "model ID (required)")
	validateCmd.Flags().Int64Var(&validateTokens, "tokens", 0, "input token count")
	validateCmd.Flags().StringVar(&validateContent, "content", "", "request content for the content filter")
	validateCmd.Flags().StringToInt64Var(&validateRequests, "requests", nil, "request counters per period (e.g. minute=3,hour=41)")
	validateCmd.Flags().StringToStringVar(&validateSpend, "spend", nil, "spend counters per period (e.g. day=12.50)")
	_ = validateCmd.MarkFlagRequired("principal")
	_ = validateCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := buildEngine()
	if err != nil {
		return err
	}
	defer e.close()

	usage := service.Usage{
		Requests: make(map[guardrail.Period]int64),
		Spend:    make(map[guardrail.Period]float64),
	}
	for raw, count := range validateRequests {
		period, ok := guardrail.ParsePeriod(raw)
		if !ok {
			return fmt.Errorf("unknown period %q (valid: minute, hour, day)", raw)
		}
		usage.Requests[period] = count
	}
	for raw, amount := range validateSpend {
		period, ok := guardrail.ParsePeriod(raw)
		if !ok {
			return fmt.Errorf("unknown period %q (valid: minute, hour, day)", raw)
		}
		spend, err := parseSpend(amount)
		if err != nil {
			return err
		}
		usage.Spend[period] = spend
	}

	result, err := e.validator.Validate(cmd.Context(), service.Request{
		PrincipalID: validatePrincipal,
		ModelID:     validateModel,
		InputTokens: validateTokens,
		Content:     validateContent,
		Usage:       usage,
	})
	if err != nil {
		return err
	}

	out := map[string]any{"allowed": result.Allowed}
	if !result.Allowed {
		out["reason"] = string(result.Reason)
	}
	if len(result.Warnings) > 0 {
		warnings := make([]string, 0, len(result.Warnings))
		for _, w := range result.Warnings {
			warnings = append(warnings, w.Message)
		}
		out["warnings"] = warnings
	}
	return printJSON(out)
}

func parseSpend(raw string) (float64, error) {
	spend, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid spend amount %q: %w", raw, err)
	}
	return spend, nil
}
