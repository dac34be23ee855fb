package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

const consoleWidth = 64

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	totalStyle   = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// ConsoleFormatter renders aligned, styled text for a terminal.
type ConsoleFormatter struct{}

func (ConsoleFormatter) Name() string { return "console" }

func (ConsoleFormatter) FormatPayslip(doc *PayslipDocument) ([]byte, error) {
	if doc == nil || doc.Payslip == nil {
		return nil, fmt.Errorf("payslip is required")
	}
	var buf bytes.Buffer
	writePayslip(&buf, doc)
	return buf.Bytes(), nil
}

func writePayslip(buf *bytes.Buffer, doc *PayslipDocument) {
	p := doc.Payslip
	cur := p.Currency

	fmt.Fprintln(buf, titleStyle.Render("PAYSLIP "+displayName(doc.EmployeeID, doc.EmployeeName)))
	fmt.Fprintln(buf, strings.Repeat("=", consoleWidth))
	if !doc.PeriodStart.IsZero() {
		fmt.Fprintf(buf, "Period:   %s to %s\n", formatDate(doc.PeriodStart), formatDate(doc.PeriodEnd))
	}
	if !doc.PaymentDate.IsZero() {
		fmt.Fprintf(buf, "Payment:  %s\n", formatDate(doc.PaymentDate))
	}
	fmt.Fprintf(buf, "Rules:    %s\n", p.RuleSetVersion)
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, sectionStyle.Render("EARNINGS"))
	row(buf, "Base pay", p.Earnings.BasePay, cur)
	for _, l := range linesOf(p, domain.LineAllowance) {
		row(buf, l.Label, l.Amount, cur)
	}
	if p.Earnings.MinimumWageApplied {
		fmt.Fprintf(buf, "  (raised to minimum wage from %s)\n", FormatCurrency(p.Earnings.GrossPayBeforeFloor, cur))
	}
	fmt.Fprintln(buf, totalStyle.Render(rowText("Gross pay", p.GrossPay, cur)))
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, sectionStyle.Render("DEDUCTIONS"))
	for _, l := range linesOf(p, domain.LineDeduction) {
		label := l.Label
		if l.Statutory {
			label += " *"
		}
		row(buf, label, l.Amount, cur)
	}
	row(buf, "Total statutory", p.TotalStatutory, cur)
	row(buf, "Total discretionary", p.TotalDiscretionary, cur)
	fmt.Fprintln(buf, totalStyle.Render(rowText("Total deductions", p.TotalDeductions, cur)))
	fmt.Fprintln(buf)

	fmt.Fprintln(buf, strings.Repeat("-", consoleWidth))
	fmt.Fprintln(buf, totalStyle.Render(rowText("NET PAY", p.NetPay, cur)))
	fmt.Fprintln(buf, strings.Repeat("-", consoleWidth))

	if len(p.EmployerCharges) > 0 {
		fmt.Fprintln(buf)
		fmt.Fprintln(buf, sectionStyle.Render("EMPLOYER CHARGES"))
		for _, ch := range p.EmployerCharges {
			row(buf, ch.Label, ch.Amount, cur)
		}
	}
	row(buf, "Taxable income", p.TaxableIncome, cur)

	for _, w := range p.Warnings {
		fmt.Fprintln(buf, warnStyle.Render("WARNING: "+w.Message))
	}
}

func (ConsoleFormatter) FormatRun(run *batch.RunSummary) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run summary is required")
	}
	var buf bytes.Buffer
	cur := run.Currency

	fmt.Fprintln(&buf, titleStyle.Render("PAYROLL RUN "+run.Name))
	fmt.Fprintln(&buf, strings.Repeat("=", consoleWidth))
	fmt.Fprintf(&buf, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(&buf, "Company:    %s\n", run.CompanyID)
	fmt.Fprintf(&buf, "Period:     %s to %s (paid %s)\n", formatDate(run.PeriodStart), formatDate(run.PeriodEnd), formatDate(run.PaymentDate))
	fmt.Fprintf(&buf, "Rules:      %s\n", run.RuleSetVersion)
	status := string(run.Status)
	if run.DryRun {
		status += " (dry run)"
	}
	fmt.Fprintf(&buf, "Status:     %s\n", status)
	fmt.Fprintf(&buf, "Employees:  %d calculated, %d failed\n", len(run.Payslips), len(run.Failures))
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, sectionStyle.Render(fmt.Sprintf("%-24s %18s %18s", "EMPLOYEE", "GROSS", "NET")))
	for _, p := range run.Payslips {
		line := fmt.Sprintf("%-24s %18s %18s", truncate(displayName(p.EmployeeID, p.EmployeeName), 24),
			FormatCurrency(p.Payslip.GrossPay, ""), FormatCurrency(p.Payslip.NetPay, ""))
		if len(p.Payslip.Warnings) > 0 {
			line = warnStyle.Render(line + " !")
		}
		fmt.Fprintln(&buf, line)
	}
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, sectionStyle.Render("TOTALS"))
	row(&buf, "Gross pay", run.Totals.Gross, cur)
	row(&buf, "Allowances", run.Totals.Allowances, cur)
	row(&buf, "Statutory deductions", run.Totals.Statutory, cur)
	row(&buf, "Income tax", run.Totals.IncomeTax, cur)
	row(&buf, "Discretionary deductions", run.Totals.Discretionary, cur)
	row(&buf, "Employer charges", run.Totals.EmployerCharges, cur)
	fmt.Fprintln(&buf, totalStyle.Render(rowText("NET PAY", run.Totals.Net, cur)))

	if len(run.Failures) > 0 {
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, sectionStyle.Render("FAILURES"))
		for _, f := range run.Failures {
			fmt.Fprintln(&buf, failStyle.Render(fmt.Sprintf("%s [%s] %s", f.EmployeeID, f.Kind, f.Message)))
		}
	}
	return buf.Bytes(), nil
}

func row(buf *bytes.Buffer, label string, amount decimal.Decimal, currency string) {
	fmt.Fprintln(buf, rowText(label, amount, currency))
}

func rowText(label string, amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("  %-36s %24s", truncate(label, 36), FormatCurrency(amount, currency))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
