package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/rgehrsitz/lrcm/internal/calculation"
	"github.com/rgehrsitz/lrcm/internal/config"
	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/rgehrsitz/lrcm/internal/output"
	"github.com/spf13/cobra"
)

// simpleCLILogger implements calculation.Logger using the standard log package
type simpleCLILogger struct{}

func (simpleCLILogger) Debugf(format string, args ...any) { log.Printf("DEBUG: "+format, args...) }
func (simpleCLILogger) Infof(format string, args ...any)  { log.Printf("INFO: "+format, args...) }
func (simpleCLILogger) Warnf(format string, args ...any)  { log.Printf("WARN: "+format, args...) }
func (simpleCLILogger) Errorf(format string, args ...any) { log.Printf("ERROR: "+format, args...) }

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lrcm %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.String()
	}
	return ""
}

// app is the wiring shared by the run commands
type app struct {
	settings domain.Settings
	backend  *config.Backend
	measure  *calculation.MeasurementEngine
	incurred *calculation.IncurredEngine
}

// openApp loads settings, opens the configured store and loads the portfolio file into it
func openApp(cmd *cobra.Command, portfolioFile string) (*app, error) {
	parser := config.NewInputParser()
	settingsFile, _ := cmd.Flags().GetString("settings")
	settings, err := parser.LoadSettings(settingsFile)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := config.OpenBackend(ctx, settings.Store)
	if err != nil {
		return nil, err
	}

	if portfolioFile != "" {
		portfolio, err := parser.LoadPortfolio(portfolioFile)
		if err != nil {
			backend.Close()
			return nil, err
		}
		if err := backend.Load(ctx, portfolio); err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to load portfolio: %w", err)
		}
	}

	rt := &app{settings: settings, backend: backend}
	rt.measure = calculation.NewMeasurementEngineWithSettings(backend.Store, settings)
	rt.measure.Results = backend.Store
	rt.incurred = calculation.NewIncurredEngine(backend.Store)
	rt.incurred.Settings = settings
	rt.incurred.Results = backend.Store

	if debugMode, _ := cmd.Flags().GetBool("debug"); debugMode {
		rt.measure.SetLogger(simpleCLILogger{})
		rt.incurred.SetLogger(simpleCLILogger{})
	}
	return rt, nil
}

func (rt *app) Close() {
	rt.backend.Close()
}

func writeReport(cmd *cobra.Command, r output.Report) error {
	format, _ := cmd.Flags().GetString("format")
	data, err := output.GenerateReport(r, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

var rootCmd = &cobra.Command{
	Use:   "lrcm",
	Short: "Insurance liability measurement CLI",
	Long: "Measures the liability for remaining coverage of insurance contracts month by month, " +
		"runs the onerous contract test, and measures incurred claims by accident cohort",
	SilenceUsage: true,
}

var measureCmd = &cobra.Command{
	Use:   "measure [portfolio-file]",
	Short: "Measure one contract at a target month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openApp(cmd, firstArg(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		policy, _ := cmd.Flags().GetString("policy")
		endorsement, _ := cmd.Flags().GetString("endorsement")
		month, _ := cmd.Flags().GetString("month")

		key := domain.ContractKey{PolicyNo: policy, EndorsementNo: endorsement}
		result, err := rt.measure.Measure(cmd.Context(), key, month)
		if err != nil {
			return err
		}
		return writeReport(cmd, output.Report{Measurement: result})
	},
}

var incurredCmd = &cobra.Command{
	Use:   "incurred [portfolio-file]",
	Short: "Measure incurred claims for every cohort of a month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openApp(cmd, firstArg(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		month, _ := cmd.Flags().GetString("month")
		result, err := rt.incurred.Measure(cmd.Context(), month)
		if err != nil {
			return err
		}
		return writeReport(cmd, output.Report{Incurred: result})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [portfolio-file]",
	Short: "Measure every contract in the store at a target month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openApp(cmd, firstArg(args))
		if err != nil {
			return err
		}
		defer rt.Close()

		month, _ := cmd.Flags().GetString("month")
		keys, err := rt.backend.Store.ContractKeys(cmd.Context())
		if err != nil {
			return err
		}
		jobs := make([]calculation.BatchJob, len(keys))
		for i, k := range keys {
			jobs[i] = calculation.BatchJob{Key: k, TargetMonth: month}
		}

		runner := calculation.NewBatchRunner(rt.measure)
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			runner.Workers = workers
		}
		result := runner.Run(cmd.Context(), jobs)
		if err := writeReport(cmd, output.Report{Batch: result}); err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d measurement(s) failed", result.Failed, len(jobs))
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [portfolio-file]",
	Short: "Validate a portfolio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]

		parser := config.NewInputParser()
		portfolio, err := parser.LoadPortfolio(inputFile)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Portfolio file %s is valid: %d contract(s), %d cash-flow row(s), %d claim cohort(s)\n",
			inputFile, len(portfolio.Contracts), len(portfolio.CashFlows), len(portfolio.Cohorts))
		return nil
	},
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	rootCmd.PersistentFlags().String("settings", "", "Path to settings file (defaults apply when omitted)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging of engine progress and diagnostics")

	measureCmd.Flags().String("policy", "", "Policy number (required)")
	measureCmd.Flags().String("endorsement", "", "Endorsement number (empty, NA or NULL address the base policy)")
	measureCmd.Flags().String("month", "", "Target month YYYYMM (required)")
	measureCmd.Flags().StringP("format", "f", "console", "Output format (console, csv, json)")
	measureCmd.MarkFlagRequired("policy")
	measureCmd.MarkFlagRequired("month")

	incurredCmd.Flags().String("month", "", "Valuation month YYYYMM (required)")
	incurredCmd.Flags().StringP("format", "f", "console", "Output format (console, csv, json)")
	incurredCmd.MarkFlagRequired("month")

	batchCmd.Flags().String("month", "", "Target month YYYYMM (required)")
	batchCmd.Flags().Int("workers", 0, "Worker count (defaults to the settings value)")
	batchCmd.Flags().StringP("format", "f", "console", "Output format (console, csv, json)")
	batchCmd.MarkFlagRequired("month")

	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(incurredCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
