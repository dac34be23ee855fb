package main

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/grossup"
	"github.com/rgehrsitz/paycalc/internal/output"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var grossupCmd = &cobra.Command{
	Use:   "grossup [input-file]",
	Short: "Find the base salary that yields a target net pay",
	Long: `Solve net-to-gross for one employee: search the base salary, holding every
other input fixed, until the payslip's net pay reaches the target.`,
	Args: cobra.ExactArgs(1),
	RunE: runGrossUp,
}

var (
	grossupRules        string
	grossupCompany      string
	grossupJurisdiction string
	grossupAt           string
	grossupTarget       string
	grossupFormat       string
	grossupOutput       string
)

func init() {
	grossupCmd.Flags().StringVar(&grossupRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	grossupCmd.Flags().StringVar(&grossupCompany, "company", "", "Company ID for rule set resolution")
	grossupCmd.Flags().StringVar(&grossupJurisdiction, "jurisdiction", "", "Rule set jurisdiction, e.g. DZ")
	grossupCmd.Flags().StringVar(&grossupAt, "at", "", "Effective date YYYY-MM-DD (default: today)")
	grossupCmd.Flags().StringVar(&grossupTarget, "target-net", "", "Net pay to reach")
	grossupCmd.Flags().StringVarP(&grossupFormat, "format", "f", "console", "Payslip output format (console, json, csv, html, pdf)")
	grossupCmd.Flags().StringVarP(&grossupOutput, "output", "o", "", "Write to file instead of stdout")
	_ = grossupCmd.MarkFlagRequired("target-net")
}

func runGrossUp(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	target, err := decimal.NewFromString(strings.TrimSpace(grossupTarget))
	if err != nil {
		return fmt.Errorf("invalid --target-net %q: %w", grossupTarget, err)
	}
	formatter, err := output.GetPayslipFormatter(grossupFormat)
	if err != nil {
		return err
	}
	at, err := parseDate(grossupAt)
	if err != nil {
		return err
	}
	catalog, _, err := a.loadCatalog(grossupRules)
	if err != nil {
		return err
	}
	in, err := a.parser.LoadPayrollInput(args[0])
	if err != nil {
		return err
	}
	rs, err := catalog.Resolve(grossupCompany, grossupJurisdiction, at)
	if err != nil {
		return err
	}

	res, err := grossup.NewDefaultSolver(a.engine).Solve(cmd.Context(), grossup.Request{
		RuleSet:   rs,
		Input:     in,
		TargetNet: target,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("gross-up solved",
		zap.String("employee_id", in.EmployeeID),
		zap.String("base_salary", res.BaseSalary.StringFixed(2)),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
	)

	if strings.EqualFold(grossupFormat, "console") {
		fmt.Fprintf(cmd.OutOrStdout(), "Base salary for net pay %s: %s (%s, %d calculations)\n\n",
			output.FormatCurrency(target, rs.Currency),
			output.FormatCurrency(res.BaseSalary, rs.Currency),
			res.ConvergenceInfo, res.Iterations)
	}
	data, err := formatter.FormatPayslip(&output.PayslipDocument{
		CompanyID:    grossupCompany,
		EmployeeID:   in.EmployeeID,
		EmployeeName: in.EmployeeName,
		Payslip:      res.Payslip,
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, grossupOutput, data)
}
