package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rgehrsitz/paycalc/internal/batch"
)

// CSVFormatter renders one row per line item for a payslip and one row per
// employee for a run.
type CSVFormatter struct{}

func (CSVFormatter) Name() string { return "csv" }

func (CSVFormatter) FormatPayslip(doc *PayslipDocument) ([]byte, error) {
	if doc == nil || doc.Payslip == nil {
		return nil, fmt.Errorf("payslip is required")
	}
	p := doc.Payslip
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"employee_id", "kind", "key", "label", "amount", "statutory"}); err != nil {
		return nil, err
	}
	for _, l := range p.Lines {
		row := []string{doc.EmployeeID, string(l.Kind), l.Key, l.Label, l.Amount.StringFixed(2), strconv.FormatBool(l.Statutory)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	for _, ch := range p.EmployerCharges {
		row := []string{doc.EmployeeID, "employer_charge", ch.Key, ch.Label, ch.Amount.StringFixed(2), "true"}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	for _, total := range []struct {
		key, label string
		amount     string
	}{
		{"gross_pay", "Gross pay", p.GrossPay.StringFixed(2)},
		{"total_deductions", "Total deductions", p.TotalDeductions.StringFixed(2)},
		{"net_pay", "Net pay", p.NetPay.StringFixed(2)},
	} {
		if err := w.Write([]string{doc.EmployeeID, "total", total.key, total.label, total.amount, "false"}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (CSVFormatter) FormatRun(run *batch.RunSummary) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run summary is required")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"run_id", "employee_id", "employee_name", "status", "gross_pay", "total_allowances",
		"total_statutory", "total_discretionary", "total_deductions", "net_pay", "employer_charges", "warnings", "failure"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, e := range run.Payslips {
		p := e.Payslip
		row := []string{
			run.ID,
			e.EmployeeID,
			e.EmployeeName,
			"ok",
			p.GrossPay.StringFixed(2),
			p.TotalAllowances.StringFixed(2),
			p.TotalStatutory.StringFixed(2),
			p.TotalDiscretionary.StringFixed(2),
			p.TotalDeductions.StringFixed(2),
			p.NetPay.StringFixed(2),
			p.TotalEmployerCharges().StringFixed(2),
			strconv.Itoa(len(p.Warnings)),
			"",
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	for _, f := range run.Failures {
		row := []string{run.ID, f.EmployeeID, "", "failed", "", "", "", "", "", "", "", "", string(f.Kind) + ": " + f.Message}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
