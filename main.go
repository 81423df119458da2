// =============================================================================
// Subscription Flow Audit - Main Entry Point
// =============================================================================
//
// USAGE:
//   flowaudit process       - Audit every export of the run
//   flowaudit validate      - Check configuration and export headers
//   flowaudit version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parsing, classification, graph building and reports
//   - pkg/utils      : Input discovery, output naming, archival
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/subscription-flow-audit/cmd"
)

func main() {
	cmd.Execute()
}
