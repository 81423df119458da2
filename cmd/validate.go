// =============================================================================
// Subscription Flow Audit - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks a run before it
// is processed.
//
// COMMAND USAGE:
//   flowaudit validate
//
// CHECKS:
//   1. The configuration loads and validates (done by the root command)
//   2. Every source resolves to an existing file
//   3. Every source parses and carries the required columns
//
// Exits non-zero when any source is unusable.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/subscription-flow-audit/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the headers of every export",
	Long: `The validate command loads the configuration, resolves the sources of the
run and checks that each export can be parsed and carries the columns
Name, Lineitem name, Lineitem quantity, Lineitem price, Total and
Discount Code. Nothing is written and no source is moved.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓"), "configuration")

	sources, err := engine.ResolveSources(cfg)
	if err != nil {
		return err
	}

	failed := 0
	for _, check := range engine.New(cfg, engine.Options{Logger: logger}).Check(sources) {
		if check.Err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %v\n", warningStyle.Render("✗"), check.Path, check.Err)
			continue
		}
		fmt.Fprintf(out, "%s %s (%d rows)\n", okStyle.Render("✓"), check.Path, check.Rows)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d source(s) unusable", failed, len(sources))
	}
	return nil
}
