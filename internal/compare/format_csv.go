package compare

import (
	"encoding/csv"
	"strings"
)

// CSVFormatter formats comparison results as CSV, one row per version.
type CSVFormatter struct{}

// Format generates CSV output for comparison results
func (cf *CSVFormatter) Format(set *ComparisonSet) (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	header := []string{
		"rule_set_version",
		"type",
		"effective_from",
		"gross_pay",
		"net_pay",
		"income_tax",
		"contribution",
		"total_deductions",
		"employer_cost",
		"net_diff_from_base",
		"net_pct_from_base",
		"tax_diff_from_base",
		"employer_cost_diff_from_base",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	if set.BaseResult != nil {
		if err := writer.Write(cf.formatRow(set.BaseResult, "base")); err != nil {
			return "", err
		}
	}
	for i := range set.AlternativeResults {
		if err := writer.Write(cf.formatRow(&set.AlternativeResults[i], "alternative")); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (cf *CSVFormatter) formatRow(r *ComparisonResult, kind string) []string {
	return []string{
		r.RuleSetVersion,
		kind,
		r.EffectiveFrom,
		r.GrossPay.StringFixed(2),
		r.NetPay.StringFixed(2),
		r.IncomeTax.StringFixed(2),
		r.Contribution.StringFixed(2),
		r.TotalDeductions.StringFixed(2),
		r.EmployerCost.StringFixed(2),
		r.NetDiffFromBase.StringFixed(2),
		r.NetPctFromBase.StringFixed(2),
		r.TaxDiffFromBase.StringFixed(2),
		r.EmployerCostDiffFromBase.StringFixed(2),
	}
}
