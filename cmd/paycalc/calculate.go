package main

import (
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var calculateCmd = &cobra.Command{
	Use:   "calculate [input-file]",
	Short: "Calculate one employee's payslip",
	Long: `Calculate the payslip of a single employee. The input file holds one
payroll input; the rule set is resolved from the catalog for the company and
jurisdiction on the given date.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalculate,
}

var (
	calculateRules        string
	calculateCompany      string
	calculateJurisdiction string
	calculateAt           string
	calculateFormat       string
	calculateOutput       string
)

func init() {
	calculateCmd.Flags().StringVar(&calculateRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	calculateCmd.Flags().StringVar(&calculateCompany, "company", "", "Company ID for rule set resolution")
	calculateCmd.Flags().StringVar(&calculateJurisdiction, "jurisdiction", "", "Rule set jurisdiction, e.g. DZ")
	calculateCmd.Flags().StringVar(&calculateAt, "at", "", "Effective date YYYY-MM-DD (default: today)")
	calculateCmd.Flags().StringVarP(&calculateFormat, "format", "f", "console", "Output format (console, json, csv, html, pdf)")
	calculateCmd.Flags().StringVarP(&calculateOutput, "output", "o", "", "Write to file instead of stdout")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	formatter, err := output.GetPayslipFormatter(pick(cmd, "format", calculateFormat, a.settings.OutputFormat))
	if err != nil {
		return err
	}
	at, err := parseDate(calculateAt)
	if err != nil {
		return err
	}
	catalog, _, err := a.loadCatalog(calculateRules)
	if err != nil {
		return err
	}
	in, err := a.parser.LoadPayrollInput(args[0])
	if err != nil {
		return err
	}

	rs, err := catalog.Resolve(calculateCompany, calculateJurisdiction, at)
	if err != nil {
		return err
	}
	result, err := a.engine.Calculate(rs, in)
	if err != nil {
		return fmt.Errorf("calculation failed for %s: %w", in.EmployeeID, err)
	}
	a.logger.Debug("payslip calculated",
		zap.String("employee_id", in.EmployeeID),
		zap.String("rule_set", rs.Version),
		zap.String("net_pay", result.NetPay.StringFixed(2)),
	)

	data, err := formatter.FormatPayslip(&output.PayslipDocument{
		CompanyID:    calculateCompany,
		EmployeeID:   in.EmployeeID,
		EmployeeName: in.EmployeeName,
		Payslip:      result,
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, calculateOutput, data)
}
