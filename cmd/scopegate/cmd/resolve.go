package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scopegate/scopegate/internal/domain/access"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve space, area, or resource access for a principal",
	Long: `Resolve access decisions against the configured snapshot.

Examples:
  # What role does user-1 hold on space-1?
  scopegate resolve space user-1 space-1 --snapshot snapshot.yaml

  # Can user-1 see resource-42?
  scopegate resolve resource user-1 resource-42 --snapshot snapshot.yaml

  # Every resource user-1 can see
  scopegate resolve resources user-1 --snapshot snapshot.yaml`,
}

var resolveSpaceCmd = &cobra.Command{
	Use:   "space <principal-id> <space-id>",
	Short: "Resolve a principal's role on a space",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		decision, err := e.access.ResolveSpaceAccess(cmd.Context(), args[0], args[1])
		return printDecision(decision, err)
	},
}

var resolveAreaCmd = &cobra.Command{
	Use:   "area <principal-id> <area-id>",
	Short: "Resolve a principal's role on an area",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		decision, err := e.access.ResolveAreaAccess(cmd.Context(), args[0], args[1])
		return printDecision(decision, err)
	},
}

var resolveResourceCmd = &cobra.Command{
	Use:   "resource <principal-id> <resource-id>",
	Short: "Test whether a principal can see a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		granted, err := e.access.ResolveResourceAccess(cmd.Context(), args[0], args[1])
		if err != nil {
			if isNotFoundErr(err) {
				return printJSON(map[string]any{"found": false, "granted": false})
			}
			return err
		}
		return printJSON(map[string]any{"found": true, "granted": granted})
	},
}

var resolveResourcesCmd = &cobra.Command{
	Use:   "resources <principal-id>",
	Short: "List every resource a principal can see",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEngine()
		if err != nil {
			return err
		}
		defer e.close()

		set, err := e.access.AccessibleResources(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return printJSON(map[string]any{"resources": ids, "count": len(ids)})
	},
}

func init() {
	resolveCmd.AddCommand(resolveSpaceCmd)
	resolveCmd.AddCommand(resolveAreaCmd)
	resolveCmd.AddCommand(resolveResourceCmd)
	resolveCmd.AddCommand(resolveResourcesCmd)
	rootCmd.AddCommand(resolveCmd)
}

// printDecision renders an access decision, mapping not-found to its own
// shape so callers can distinguish 404 from 403.
func printDecision(decision access.Decision, err error) error {
	if err != nil {
		if isNotFoundErr(err) {
			return printJSON(map[string]any{"found": false, "granted": false})
		}
		return err
	}
	return printJSON(map[string]any{
		"found":   true,
		"granted": decision.Granted,
		"role":    string(decision.Role),
		"source":  string(decision.Source),
	})
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, access.ErrSpaceNotFound) ||
		errors.Is(err, access.ErrAreaNotFound) ||
		errors.Is(err, access.ErrResourceNotFound)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
