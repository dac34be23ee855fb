package main

import (
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/output"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [batch-file]",
	Short: "Run payroll for a pay period",
	Long: `Calculate every employee of a payroll batch. Per-employee input errors are
reported without stopping the run. With --store, a payable run is saved to
the SQLite database.`,
	Args: cobra.ExactArgs(1),
	RunE: runPayroll,
}

var (
	runRules   string
	runWorkers int
	runStore   string
	runFormat  string
	runOutput  string
)

func init() {
	runCmd.Flags().StringVar(&runRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Concurrent calculations (default: workers setting)")
	runCmd.Flags().StringVar(&runStore, "store", "", "SQLite database to save the run in (default: store_path setting)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "console", "Output format (console, json, csv, html, pdf)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write to file instead of stdout")
}

func runPayroll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	formatter, err := output.GetRunFormatter(pick(cmd, "format", runFormat, a.settings.OutputFormat))
	if err != nil {
		return err
	}
	catalog, _, err := a.loadCatalog(runRules)
	if err != nil {
		return err
	}
	b, err := a.parser.LoadPayrollBatch(args[0])
	if err != nil {
		return err
	}

	runner := batch.NewRunner(a.engine, catalog)
	runner.Workers = a.settings.Workers
	if runWorkers > 0 {
		runner.Workers = runWorkers
	}
	runner.SetLogger(a.logger.Sugar())
	runner.Validate = a.parser.ValidatePayrollInput

	summary, err := runner.Run(cmd.Context(), b)
	if err != nil {
		return err
	}

	storePath := pick(cmd, "store", runStore, a.settings.StorePath)
	if storePath != "" && summary.Payable() {
		store, err := sqlite.New(storePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(cmd.Context(), summary); err != nil {
			return err
		}
		a.logger.Info("payroll run saved", zap.String("run_id", summary.ID), zap.String("store", storePath))
	}

	data, err := formatter.FormatRun(summary)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, runOutput, data); err != nil {
		return err
	}
	if summary.Status == batch.StatusFailed {
		return fmt.Errorf("payroll run %s failed: %d of %d employees could not be calculated",
			summary.ID, len(summary.Failures), summary.EmployeeCount)
	}
	return nil
}
