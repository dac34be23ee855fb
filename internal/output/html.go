package output

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
)

// HTMLFormatter renders a standalone HTML page.
type HTMLFormatter struct{}

func (HTMLFormatter) Name() string { return "html" }

//go:embed templates/payslip.html.tmpl
var payslipTemplateSource string

//go:embed templates/run.html.tmpl
var runTemplateSource string

var templateFuncs = template.FuncMap{
	"curr":   FormatCurrency,
	"date":   formatDate,
	"person": displayName,
	"earnings": func(p *domain.PayslipResult) []domain.Line {
		return linesOf(p, domain.LineAllowance)
	},
	"deductions": func(p *domain.PayslipResult) []domain.Line {
		return linesOf(p, domain.LineDeduction)
	},
}

var (
	payslipTemplate = template.Must(template.New("payslip").Funcs(templateFuncs).Parse(payslipTemplateSource))
	runTemplate     = template.Must(template.New("run").Funcs(templateFuncs).Parse(runTemplateSource))
)

func (HTMLFormatter) FormatPayslip(doc *PayslipDocument) ([]byte, error) {
	if doc == nil || doc.Payslip == nil {
		return nil, fmt.Errorf("payslip is required")
	}
	var buf bytes.Buffer
	if err := payslipTemplate.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (HTMLFormatter) FormatRun(run *batch.RunSummary) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run summary is required")
	}
	var buf bytes.Buffer
	if err := runTemplate.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
