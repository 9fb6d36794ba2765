package cmd

import (
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Check model availability and allowed tiers",
}

var modelCheckCmd = &cobra.Command{
	Use:   "check <principal-id> <model-id>",
	Short: "Check whether a principal may use a model",
	Long: `Check model availability for a principal: kill switch, tier
subscription, guardrail deny/allow lists, and the approval flag, in that
order. Prints the first denial reason when not allowed.

Example:
  scopegate model check user-1 claude-sonnet --snapshot snapshot.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		avail, err := e.models.CanUseModel(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		out := map[string]any{"allowed": avail.Allowed}
		if !avail.Allowed {
			out["reason"] = string(avail.Reason)
		}
		return printJSON(out)
	},
}

var modelTiersCmd = &cobra.Command{
	Use:   "tiers <principal-id>",
	Short: "List the subscription tiers available to a principal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		tiers, err := e.models.GetUserAllowedTiers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"tiers": sortedKeys(tiers)})
	},
}

func init() {
	modelCmd.AddCommand(modelCheckCmd)
	modelCmd.AddCommand(modelTiersCmd)
	rootCmd.AddCommand(modelCmd)
}
