package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// PayslipDocument is one payslip with the context printed around it.
type PayslipDocument struct {
	RunName      string                `json:"run_name,omitempty"`
	CompanyID    string                `json:"company_id,omitempty"`
	EmployeeID   string                `json:"employee_id"`
	EmployeeName string                `json:"employee_name,omitempty"`
	PeriodStart  time.Time             `json:"period_start,omitempty"`
	PeriodEnd    time.Time             `json:"period_end,omitempty"`
	PaymentDate  time.Time             `json:"payment_date,omitempty"`
	Payslip      *domain.PayslipResult `json:"payslip"`
}

// PayslipFormatter renders a single payslip.
type PayslipFormatter interface {
	Name() string
	FormatPayslip(doc *PayslipDocument) ([]byte, error)
}

// RunFormatter renders a payroll run summary.
type RunFormatter interface {
	Name() string
	FormatRun(run *batch.RunSummary) ([]byte, error)
}

var payslipFormatters = map[string]PayslipFormatter{}
var runFormatters = map[string]RunFormatter{}

func init() {
	for _, f := range []PayslipFormatter{ConsoleFormatter{}, JSONFormatter{}, CSVFormatter{}, HTMLFormatter{}, PDFFormatter{}} {
		payslipFormatters[f.Name()] = f
	}
	for _, f := range []RunFormatter{ConsoleFormatter{}, JSONFormatter{}, CSVFormatter{}, HTMLFormatter{}, PDFFormatter{}} {
		runFormatters[f.Name()] = f
	}
}

// GetPayslipFormatter returns the payslip formatter registered under name.
func GetPayslipFormatter(name string) (PayslipFormatter, error) {
	f, ok := payslipFormatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s (available: %s)", name, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// GetRunFormatter returns the run formatter registered under name.
func GetRunFormatter(name string) (RunFormatter, error) {
	f, ok := runFormatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s (available: %s)", name, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Formats lists the registered format names.
func Formats() []string {
	names := make([]string, 0, len(runFormatters))
	for name := range runFormatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PayslipsOf returns a document for every payslip of a run, in run order.
func PayslipsOf(run *batch.RunSummary) []PayslipDocument {
	docs := make([]PayslipDocument, 0, len(run.Payslips))
	for _, p := range run.Payslips {
		docs = append(docs, PayslipDocument{
			RunName:      run.Name,
			CompanyID:    run.CompanyID,
			EmployeeID:   p.EmployeeID,
			EmployeeName: p.EmployeeName,
			PeriodStart:  run.PeriodStart,
			PeriodEnd:    run.PeriodEnd,
			PaymentDate:  run.PaymentDate,
			Payslip:      p.Payslip,
		})
	}
	return docs
}

// FormatCurrency formats an amount with two decimals, thousands separators
// and an optional currency code suffix.
func FormatCurrency(amount decimal.Decimal, currency string) string {
	s := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String() + "." + frac
	if currency != "" {
		out += " " + currency
	}
	return out
}

// FormatRate formats a fractional rate as a percentage.
func FormatRate(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func displayName(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func linesOf(p *domain.PayslipResult, kind domain.LineKind) []domain.Line {
	var lines []domain.Line
	for _, l := range p.Lines {
		if l.Kind == kind {
			lines = append(lines, l)
		}
	}
	return lines
}
