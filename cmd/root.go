// =============================================================================
// Subscription Flow Audit - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// is attached here.
//
// COBRA CLI STRUCTURE:
//   rootCmd (flowaudit)
//   ├── processCmd (flowaudit process)
//   ├── validateCmd (flowaudit validate)
//   └── versionCmd (flowaudit version)
//
// LIFECYCLE:
//   PersistentPreRunE loads the configuration and builds the zap logger;
//   PersistentPostRun flushes the logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/subscription-flow-audit/internal/config"
	"github.com/ginjaninja78/subscription-flow-audit/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file (--config).
var cfgFile string

// verbose forces debug logging (--verbose).
var verbose bool

// cfg and logger are set by PersistentPreRunE for every command that
// needs them.
var (
	cfg    *config.Config
	logger *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "flowaudit",
	Short: "Subscription Flow Audit - trace subscription boxes through what was shipped",
	Long: `flowaudit reads order exports (CSV, compressed CSV or XLSX), groups line
items into orders, resolves each subscription box and builds a weighted flow
graph: subscription -> primary bra -> primary panty -> remaining items.

Outputs:
  - Sankey JSON or CBOR, GraphML
  - XLSX, Markdown and HTML audit reports
  - Prometheus textfile metrics

Example Usage:
  flowaudit process                         # Audit every export in input_dir
  flowaudit process --config ./audit.yaml   # Use a custom configuration file
  flowaudit validate                        # Check configuration and export headers`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = newLogger(cfg, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"flowaudit.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// loadConfig reads --config. When the flag was not given and the default
// file does not exist, the built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if !cmd.Flags().Changed("config") && !utils.FileExists(cfgFile) {
		c := config.Default()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgFile, err)
	}
	return c, nil
}

// newLogger builds a JSON (production) or console (development) logger.
func newLogger(c *config.Config, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
