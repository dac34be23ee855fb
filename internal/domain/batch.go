package domain

import "time"

// PayrollBatch is one pay period's run request: the company, period dates
// and the inputs of every employee paid in it.
type PayrollBatch struct {
	RunName   string `yaml:"run_name" json:"run_name"`
	CompanyID string `yaml:"company_id" json:"company_id"`
	// Jurisdiction selects the rule set; it may be empty when the company
	// has a single effective rule set.
	Jurisdiction string         `yaml:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	PeriodStart  time.Time      `yaml:"period_start" json:"period_start"`
	PeriodEnd    time.Time      `yaml:"period_end" json:"period_end"`
	PaymentDate  time.Time      `yaml:"payment_date" json:"payment_date"`
	IsDryRun     bool           `yaml:"is_dry_run" json:"is_dry_run"`
	Employees    []PayrollInput `yaml:"employees" json:"employees"`
}

// EffectiveDate is the date used to resolve rule sets for the batch.
func (b *PayrollBatch) EffectiveDate() time.Time {
	return b.PeriodEnd
}
