package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rules-file]",
	Short: "Validate a rule catalog",
	Long: `Validate every rule set of a catalog file and list the versions it holds.
With --batch, also validate a payroll batch file and list the employees
whose input would fail in a run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateBatch string

func init() {
	validateCmd.Flags().StringVar(&validateBatch, "batch", "", "Payroll batch file to validate as well")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var flag string
	if len(args) == 1 {
		flag = args[0]
	}
	catalog, path, err := a.loadCatalog(flag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rule catalog %s is valid: %d rule sets\n", path, catalog.Len())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSCOPE\tJURISDICTION\tEFFECTIVE\tBRACKETS\tLEVIES")
	for _, v := range catalog.Versions() {
		scope := v.CompanyID
		if scope == "" {
			scope = "default"
		}
		effective := v.EffectiveFrom.Format("2006-01-02") + " to "
		if v.EffectiveTo != nil {
			effective += v.EffectiveTo.Format("2006-01-02")
		} else {
			effective += "open"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", v.Version, scope, v.Jurisdiction, effective, v.Brackets, v.Levies)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if validateBatch != "" {
		b, err := a.parser.LoadPayrollBatch(validateBatch)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Payroll batch %s is valid: %d employees\n", validateBatch, len(b.Employees))
		invalid := 0
		for _, in := range b.Employees {
			if err := a.parser.ValidatePayrollInput(&in); err != nil {
				fmt.Fprintf(out, "  %s: %v\n", in.EmployeeID, err)
				invalid++
			}
		}
		if invalid > 0 {
			fmt.Fprintf(out, "%d of %d employees have invalid input and will fail in a run\n", invalid, len(b.Employees))
		}
	}
	return nil
}
