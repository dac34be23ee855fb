package compare

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/output"
	"github.com/shopspring/decimal"
)

// TableFormatter formats comparison results as a console table
type TableFormatter struct{}

const (
	nameWidth = 22
	numWidth  = 14
	ruleWidth = nameWidth + 5*(numWidth+1)
)

// Format generates a table of every version followed by the deltas to the
// base version.
func (tf *TableFormatter) Format(set *ComparisonSet) string {
	var sb strings.Builder

	sb.WriteString("RULE SET COMPARISON\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	name := set.EmployeeID
	if set.EmployeeName != "" {
		name = set.EmployeeName + " (" + set.EmployeeID + ")"
	}
	sb.WriteString(fmt.Sprintf("Employee: %s\n", name))
	sb.WriteString(fmt.Sprintf("Base version: %s\n\n", set.BaseVersion))

	sb.WriteString(fmt.Sprintf("%-*s %*s %*s %*s %*s %*s\n",
		nameWidth, "Version",
		numWidth, "Gross",
		numWidth, "Income tax",
		numWidth, "Contribution",
		numWidth, "Net",
		numWidth, "Employer cost"))
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")

	if set.BaseResult != nil {
		sb.WriteString(tf.formatRow(set.BaseResult, true))
	}
	for i := range set.AlternativeResults {
		sb.WriteString(tf.formatRow(&set.AlternativeResults[i], false))
	}
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")

	if len(set.AlternativeResults) > 0 {
		sb.WriteString("\nCOMPARISON TO BASE\n")
		sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
		for _, alt := range set.AlternativeResults {
			sb.WriteString(fmt.Sprintf("\n%s:\n", alt.RuleSetVersion))
			sb.WriteString(fmt.Sprintf("  Net pay:        %s (%s%%)\n",
				tf.signed(alt.NetDiffFromBase, set.Currency), alt.NetPctFromBase.StringFixed(2)))
			if !alt.TaxDiffFromBase.IsZero() {
				sb.WriteString(fmt.Sprintf("  Income tax:     %s\n", tf.signed(alt.TaxDiffFromBase, set.Currency)))
			}
			if !alt.EmployerCostDiffFromBase.IsZero() {
				sb.WriteString(fmt.Sprintf("  Employer cost:  %s\n", tf.signed(alt.EmployerCostDiffFromBase, set.Currency)))
			}
		}
		sb.WriteString("\n")
	}

	if len(set.Recommendations) > 0 {
		sb.WriteString("\nHIGHLIGHTS\n")
		sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
		for _, rec := range set.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
	}
	return sb.String()
}

func (tf *TableFormatter) formatRow(r *ComparisonResult, isBase bool) string {
	name := r.RuleSetVersion
	if isBase {
		name += " (base)"
	}
	return fmt.Sprintf("%-*s %*s %*s %*s %*s %*s\n",
		nameWidth, tf.truncate(name, nameWidth),
		numWidth, output.FormatCurrency(r.GrossPay, ""),
		numWidth, output.FormatCurrency(r.IncomeTax, ""),
		numWidth, output.FormatCurrency(r.Contribution, ""),
		numWidth, output.FormatCurrency(r.NetPay, ""),
		numWidth, output.FormatCurrency(r.EmployerCost, ""))
}

func (tf *TableFormatter) signed(d decimal.Decimal, currency string) string {
	if d.IsPositive() {
		return "+" + output.FormatCurrency(d, currency)
	}
	return output.FormatCurrency(d, currency)
}

func (tf *TableFormatter) truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatCompact creates a one-line net pay summary per version.
func (tf *TableFormatter) FormatCompact(set *ComparisonSet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Base: %s", set.BaseVersion))
	for _, alt := range set.AlternativeResults {
		change := "="
		if !alt.NetDiffFromBase.IsZero() {
			change = tf.signed(alt.NetDiffFromBase, "")
		}
		sb.WriteString(fmt.Sprintf(" | %s: %s", alt.RuleSetVersion, change))
	}
	return sb.String()
}
