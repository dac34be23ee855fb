package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/output"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the income tax bracket walk for a taxable base",
	Long: `Resolve a rule set and show how its income tax brackets apply to a
taxable base: the slice taxed in each band, the offset and the running total.`,
	Args: cobra.NoArgs,
	RunE: runExplain,
}

var (
	explainRules        string
	explainCompany      string
	explainJurisdiction string
	explainAt           string
	explainBase         string
	explainFormat       string
)

func init() {
	explainCmd.Flags().StringVar(&explainRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	explainCmd.Flags().StringVar(&explainCompany, "company", "", "Company ID for rule set resolution")
	explainCmd.Flags().StringVar(&explainJurisdiction, "jurisdiction", "", "Rule set jurisdiction, e.g. DZ")
	explainCmd.Flags().StringVar(&explainAt, "at", "", "Effective date YYYY-MM-DD (default: today)")
	explainCmd.Flags().StringVar(&explainBase, "base", "", "Taxable base amount")
	explainCmd.Flags().StringVarP(&explainFormat, "format", "f", "console", "Output format (console, json)")
	_ = explainCmd.MarkFlagRequired("base")
}

func runExplain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	base, err := decimal.NewFromString(strings.TrimSpace(explainBase))
	if err != nil {
		return fmt.Errorf("invalid --base %q: %w", explainBase, err)
	}
	at, err := parseDate(explainAt)
	if err != nil {
		return err
	}
	catalog, _, err := a.loadCatalog(explainRules)
	if err != nil {
		return err
	}
	rs, err := catalog.Resolve(explainCompany, explainJurisdiction, at)
	if err != nil {
		return err
	}
	breakdown, err := a.engine.Explain(rs, base)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(explainFormat) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(breakdown)
	case "console":
	default:
		return fmt.Errorf("unsupported format: %s (available: console, json)", explainFormat)
	}

	cur := rs.Currency
	fmt.Fprintf(out, "Rule set %s, taxable base %s\n\n", rs.Version, output.FormatCurrency(breakdown.Base, cur))
	fmt.Fprintf(out, "%-28s %8s %16s %12s %16s %16s\n", "Band", "Rate", "Taxed", "Offset", "Tax", "Cumulative")
	for _, b := range breakdown.Bands {
		band := output.FormatCurrency(b.Lower, "") + " and up"
		if b.Upper != nil {
			band = output.FormatCurrency(b.Lower, "") + " - " + output.FormatCurrency(*b.Upper, "")
		}
		fmt.Fprintf(out, "%-28s %8s %16s %12s %16s %16s\n",
			band,
			output.FormatRate(b.Rate),
			output.FormatCurrency(b.Taxed, ""),
			output.FormatCurrency(b.Offset, ""),
			output.FormatCurrency(b.Tax, ""),
			output.FormatCurrency(b.Cumulative, ""),
		)
	}
	fmt.Fprintf(out, "\nIncome tax: %s\n", output.FormatCurrency(breakdown.Tax, cur))
	return nil
}
