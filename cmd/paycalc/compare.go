package main

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/compare"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare [input-file]",
	Short: "Compare one employee's payslip across rule set versions",
	Long: `Calculate one payroll input under a base rule set version and each
alternative version, and show how net pay, income tax and employer cost move.`,
	Example: `  paycalc compare employee.yaml --rules rules.yaml --base dz-2024.1 --with dz-2025.1
  paycalc compare employee.yaml --base dz-2024.1 --with dz-2025.1,acme-dz-2025.1 --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

var (
	compareRules   string
	compareBase    string
	compareWith    []string
	compareFormat  string
	compareOutput  string
	compareCompact bool
)

func init() {
	compareCmd.Flags().StringVar(&compareRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	compareCmd.Flags().StringVar(&compareBase, "base", "", "Base rule set version")
	compareCmd.Flags().StringSliceVar(&compareWith, "with", nil, "Alternative rule set versions (comma-separated)")
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "table", "Output format (table, json, csv)")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "Write to file instead of stdout")
	compareCmd.Flags().BoolVar(&compareCompact, "compact", false, "One-line summary (table format only)")
	_ = compareCmd.MarkFlagRequired("base")
	_ = compareCmd.MarkFlagRequired("with")
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	catalog, _, err := a.loadCatalog(compareRules)
	if err != nil {
		return err
	}
	in, err := a.parser.LoadPayrollInput(args[0])
	if err != nil {
		return err
	}

	set, err := compare.NewEngine(a.engine, catalog).Compare(cmd.Context(), in, compareBase, compareWith)
	if err != nil {
		return err
	}

	var text string
	switch strings.ToLower(compareFormat) {
	case "table", "console":
		tf := &compare.TableFormatter{}
		if compareCompact {
			text = tf.FormatCompact(set) + "\n"
		} else {
			text = tf.Format(set)
		}
	case "json":
		text, err = (&compare.JSONFormatter{Pretty: true}).Format(set)
	case "csv":
		text, err = (&compare.CSVFormatter{}).Format(set)
	default:
		return fmt.Errorf("unsupported format: %s (available: table, json, csv)", compareFormat)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, compareOutput, []byte(text))
}
