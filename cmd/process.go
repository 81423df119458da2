// =============================================================================
// Subscription Flow Audit - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs a full audit.
//
// COMMAND USAGE:
//   flowaudit process [flags]
//
// FLAGS:
//   --dry-run : Build the graph and print the summary without writing
//               outputs or archiving sources
//
// PROCESSING PIPELINE:
//   1. Resolve sources (config list or input_dir discovery)
//   2. Load, group, classify and build the flow graph
//   3. Write the configured outputs and the metrics textfile
//   4. Archive the sources (archive_inputs)
//   5. Print the run summary
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/engine"
	"github.com/ginjaninja78/subscription-flow-audit/internal/report"
)

// dryRun skips writing outputs and archiving.
var dryRun bool

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Audit order exports and write the flow graph",
	Long: `The process command loads every export of the run, resolves each
subscription order and builds the subscription -> bra -> panty -> leftover
flow graph.

Data problems (unknown boxes, missing bras, malformed numbers) never stop
the run; they are logged and listed in the reports. Only unreadable exports
or unwritable outputs fail the command.

On success:
  - Every configured output is written to output_dir
  - Sources are moved to input_archive_dir when archive_inputs is set

On error:
  - Sources remain in place`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Build the graph without writing outputs or archiving sources",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	sources, err := engine.ResolveSources(cfg)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.Options{Logger: logger, Progress: os.Stderr})
	res, err := eng.Run(cmd.Context(), sources)
	if err != nil {
		return err
	}

	var written, archived []string
	if !dryRun {
		written, err = eng.WriteOutputs(res)
		if err != nil {
			return err
		}
		archived, err = eng.Archive(res)
		if err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), res, written, archived)
	return nil
}

// =============================================================================
// SUMMARY
// =============================================================================

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	keyStyle     = lipgloss.NewStyle().Faint(true).Width(26)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

func printSummary(w io.Writer, res *engine.Result, written, archived []string) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Subscription Flow Audit"))
	b.WriteString("\n")

	line := func(key, value string) {
		b.WriteString(keyStyle.Render(key) + value + "\n")
	}

	s := res.Stats
	line("Run", res.RunID)
	line("Sources", fmt.Sprint(s.Sources))
	line("Rows read", fmt.Sprintf("%d (%d dropped)", s.RowsRead, s.RowsDropped))
	line("Orders", fmt.Sprint(s.OrdersGrouped))
	line("Classified", fmt.Sprintf("%d (%d skipped, %d not subscription)", s.OrdersClassified, s.OrdersSkipped, s.NotSubscription))
	line("Graph", fmt.Sprintf("%d nodes, %d edges", len(res.Graph.Nodes), len(res.Graph.Edges)))
	line("Duration", res.Duration.Round(time.Millisecond).String())

	var diags diagnostics.Collector
	diags.Merge(res.Diagnostics)
	if warnings := diags.CountBySeverity(diagnostics.SeverityWarning); warnings > 0 {
		line("Warnings", warningStyle.Render(fmt.Sprint(warnings)))
	} else {
		line("Warnings", okStyle.Render("0"))
	}

	if summaries := report.SummarizeByType(res.Audits); len(summaries) > 0 {
		b.WriteString(sectionStyle.Render("By subscription") + "\n")
		for _, t := range summaries {
			line(t.Type.String(), fmt.Sprintf("%d orders, %d complete, %d missing bra, %d missing panty",
				t.Orders, t.Complete, t.MissingBra, t.MissingPanty))
		}
	}

	if len(written) > 0 {
		b.WriteString(sectionStyle.Render("Outputs") + "\n")
		for _, p := range written {
			b.WriteString("  " + okStyle.Render("✓") + " " + p + "\n")
		}
	}
	if len(archived) > 0 {
		line("Archived", fmt.Sprintf("%d source(s)", len(archived)))
	}

	fmt.Fprint(w, b.String())
}
