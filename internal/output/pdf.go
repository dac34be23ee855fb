package output

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// PDFFormatter renders A4 payslips. A run renders a summary page followed by
// one page per payslip. Text is set in the core Helvetica font, so names and
// labels are translated from UTF-8 to cp1252.
type PDFFormatter struct{}

// pdfDoc pairs a document with its UTF-8 translator.
type pdfDoc struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func (PDFFormatter) Name() string { return "pdf" }

func (PDFFormatter) FormatPayslip(doc *PayslipDocument) ([]byte, error) {
	if doc == nil || doc.Payslip == nil {
		return nil, fmt.Errorf("payslip is required")
	}
	pdf := newPDF()
	pdf.payslipPage(doc)
	return pdf.output()
}

func (PDFFormatter) FormatRun(run *batch.RunSummary) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run summary is required")
	}
	pdf := newPDF()
	cur := run.Currency

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, pdf.tr("Payroll run: "+run.Name))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, pdf.tr(fmt.Sprintf("Company: %s   Run: %s", run.CompanyID, run.ID)))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s   Paid: %s", formatDate(run.PeriodStart), formatDate(run.PeriodEnd), formatDate(run.PaymentDate)))
	pdf.Ln(7)
	pdf.Cell(0, 7, pdf.tr(fmt.Sprintf("Rules: %s   Status: %s", run.RuleSetVersion, run.Status)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 7, "Employee", "B", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, "Gross", "B", 0, "R", false, 0, "")
	pdf.CellFormat(50, 7, "Net", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, p := range run.Payslips {
		pdf.CellFormat(90, 7, pdf.tr(displayName(p.EmployeeID, p.EmployeeName)), "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, FormatCurrency(p.Payslip.GrossPay, ""), "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, FormatCurrency(p.Payslip.NetPay, ""), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 7, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, FormatCurrency(run.Totals.Gross, cur), "T", 0, "R", false, 0, "")
	pdf.CellFormat(50, 7, FormatCurrency(run.Totals.Net, cur), "T", 1, "R", false, 0, "")

	if len(run.Failures) > 0 {
		pdf.Ln(6)
		pdf.Cell(0, 7, "Failures")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 10)
		for _, f := range run.Failures {
			pdf.MultiCell(0, 6, pdf.tr(fmt.Sprintf("%s [%s] %s", f.EmployeeID, f.Kind, f.Message)), "", "L", false)
		}
	}

	for _, doc := range PayslipsOf(run) {
		pdf.payslipPage(&doc)
	}
	return pdf.output()
}

func newPDF() *pdfDoc {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	return &pdfDoc{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (pdf *pdfDoc) payslipPage(doc *PayslipDocument) {
	p := doc.Payslip
	cur := p.Currency

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, pdf.tr("Employee: "+displayName(doc.EmployeeID, doc.EmployeeName)))
	pdf.Ln(7)
	if !doc.PeriodStart.IsZero() {
		pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", formatDate(doc.PeriodStart), formatDate(doc.PeriodEnd)))
		pdf.Ln(7)
	}
	pdf.Cell(0, 7, pdf.tr("Rules: "+p.RuleSetVersion))
	pdf.Ln(10)

	pdf.section("Earnings")
	pdf.amountRow("Base pay", p.Earnings.BasePay, cur, false)
	for _, l := range linesOf(p, domain.LineAllowance) {
		pdf.amountRow(l.Label, l.Amount, cur, false)
	}
	pdf.amountRow("Gross pay", p.GrossPay, cur, true)
	pdf.Ln(4)

	pdf.section("Deductions")
	for _, l := range linesOf(p, domain.LineDeduction) {
		pdf.amountRow(l.Label, l.Amount, cur, false)
	}
	pdf.amountRow("Total deductions", p.TotalDeductions, cur, true)
	pdf.Ln(4)

	pdf.amountRow("Net pay", p.NetPay, cur, true)

	if len(p.EmployerCharges) > 0 {
		pdf.Ln(4)
		pdf.section("Employer charges")
		for _, ch := range p.EmployerCharges {
			pdf.amountRow(ch.Label, ch.Amount, cur, false)
		}
	}
	for _, w := range p.Warnings {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, pdf.tr("Warning: "+w.Message), "", "L", false)
	}
}

func (pdf *pdfDoc) section(title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, pdf.tr(title), "B", 1, "L", false, 0, "")
}

func (pdf *pdfDoc) amountRow(label string, amount decimal.Decimal, currency string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 11)
	pdf.CellFormat(120, 7, pdf.tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 7, pdf.tr(FormatCurrency(amount, currency)), "", 1, "R", false, 0, "")
}

func (pdf *pdfDoc) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
