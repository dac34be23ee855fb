package output

import (
	"encoding/json"
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/batch"
)

// JSONFormatter renders indented JSON.
type JSONFormatter struct{}

func (JSONFormatter) Name() string { return "json" }

func (JSONFormatter) FormatPayslip(doc *PayslipDocument) ([]byte, error) {
	if doc == nil || doc.Payslip == nil {
		return nil, fmt.Errorf("payslip is required")
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (JSONFormatter) FormatRun(run *batch.RunSummary) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run summary is required")
	}
	return json.MarshalIndent(run, "", "  ")
}
