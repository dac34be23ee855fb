package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FilingStatus selects the standard deduction of the income tax.
type FilingStatus string

const (
	FilingSingle          FilingStatus = "single"
	FilingMarried         FilingStatus = "married"
	FilingHeadOfHousehold FilingStatus = "head_of_household"
)

// OrDefault maps the empty status to single.
func (s FilingStatus) OrDefault() FilingStatus {
	if s == "" {
		return FilingSingle
	}
	return s
}

// Valid reports whether s is a known status. The empty status is valid.
func (s FilingStatus) Valid() bool {
	switch s {
	case "", FilingSingle, FilingMarried, FilingHeadOfHousehold:
		return true
	}
	return false
}

// Item is an itemized earning component.
type Item struct {
	Key    string          `yaml:"key" json:"key"`
	Label  string          `yaml:"label" json:"label"`
	Amount decimal.Decimal `yaml:"amount" json:"amount"`
}

// Deduction is a discretionary deduction: a fixed amount or a percentage of
// gross pay (e.g. 5 for a 5% retirement contribution).
type Deduction struct {
	Key            string           `yaml:"key" json:"key"`
	Label          string           `yaml:"label" json:"label"`
	Amount         *decimal.Decimal `yaml:"amount,omitempty" json:"amount,omitempty"`
	PercentOfGross *decimal.Decimal `yaml:"percent_of_gross,omitempty" json:"percent_of_gross,omitempty"`
}

// PayrollInput holds one employee's compensation facts for one pay period.
type PayrollInput struct {
	EmployeeID   string `yaml:"employee_id" json:"employee_id"`
	EmployeeName string `yaml:"employee_name,omitempty" json:"employee_name,omitempty"`

	BaseSalary    decimal.Decimal  `yaml:"base_salary" json:"base_salary"`
	OvertimeHours *decimal.Decimal `yaml:"overtime_hours,omitempty" json:"overtime_hours,omitempty"`
	OvertimeRate  *decimal.Decimal `yaml:"overtime_rate,omitempty" json:"overtime_rate,omitempty"`

	Bonus      *decimal.Decimal `yaml:"bonus,omitempty" json:"bonus,omitempty"`
	Commission *decimal.Decimal `yaml:"commission,omitempty" json:"commission,omitempty"`
	Allowances *decimal.Decimal `yaml:"allowances,omitempty" json:"allowances,omitempty"`

	BonusItems      []Item `yaml:"bonus_items,omitempty" json:"bonus_items,omitempty"`
	CommissionItems []Item `yaml:"commission_items,omitempty" json:"commission_items,omitempty"`
	AllowanceItems  []Item `yaml:"allowance_items,omitempty" json:"allowance_items,omitempty"`

	TaxFilingStatus   FilingStatus `yaml:"tax_filing_status,omitempty" json:"tax_filing_status,omitempty"`
	TaxAllowanceCount int          `yaml:"tax_allowance_count" json:"tax_allowance_count"`
	JurisdictionCode  string       `yaml:"jurisdiction_code,omitempty" json:"jurisdiction_code,omitempty"`

	StatutoryContributionEligible bool `yaml:"statutory_contribution_eligible" json:"statutory_contribution_eligible"`

	DiscretionaryDeductions []Deduction `yaml:"discretionary_deductions,omitempty" json:"discretionary_deductions,omitempty"`
}

// Validate rejects negative amounts and malformed deductions.
func (in *PayrollInput) Validate() error {
	if in == nil {
		return invalidInput("", "input is required")
	}
	if in.BaseSalary.IsNegative() {
		return invalidInput("base_salary", "cannot be negative")
	}
	optional := []struct {
		field string
		value *decimal.Decimal
	}{
		{"overtime_hours", in.OvertimeHours},
		{"overtime_rate", in.OvertimeRate},
		{"bonus", in.Bonus},
		{"commission", in.Commission},
		{"allowances", in.Allowances},
	}
	for _, o := range optional {
		if o.value != nil && o.value.IsNegative() {
			return invalidInput(o.field, "cannot be negative")
		}
	}
	groups := []struct {
		field string
		items []Item
	}{
		{"bonus_items", in.BonusItems},
		{"commission_items", in.CommissionItems},
		{"allowance_items", in.AllowanceItems},
	}
	for _, g := range groups {
		for i, item := range g.items {
			if item.Amount.IsNegative() {
				return invalidInput(fmt.Sprintf("%s[%d].amount", g.field, i), "cannot be negative")
			}
		}
	}
	if !in.TaxFilingStatus.Valid() {
		return invalidInput("tax_filing_status", "must be 'single', 'married', or 'head_of_household'")
	}
	if in.TaxAllowanceCount < 0 {
		return invalidInput("tax_allowance_count", "cannot be negative")
	}
	for i, d := range in.DiscretionaryDeductions {
		field := fmt.Sprintf("discretionary_deductions[%d]", i)
		if d.Key == "" {
			return invalidInput(field+".key", "is required")
		}
		if (d.Amount == nil) == (d.PercentOfGross == nil) {
			return invalidInput(field, "must set exactly one of amount or percent_of_gross")
		}
		if d.Amount != nil && d.Amount.IsNegative() {
			return invalidInput(field+".amount", "cannot be negative")
		}
		if d.PercentOfGross != nil && (d.PercentOfGross.IsNegative() || d.PercentOfGross.GreaterThan(decimal.NewFromInt(100))) {
			return invalidInput(field+".percent_of_gross", "must be between 0 and 100")
		}
	}
	return nil
}

// LineKind tags a payslip line.
type LineKind string

const (
	LineAllowance LineKind = "allowance"
	LineDeduction LineKind = "deduction"
)

// Line is one itemized payslip entry, used for display and audit.
type Line struct {
	Kind      LineKind        `json:"kind"`
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Statutory bool            `json:"statutory,omitempty"`
}

// EmployerCharge is an employer-side cost not deducted from the employee.
type EmployerCharge struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Warning codes.
const (
	WarningNegativeNetPay = "negative_net_pay"
)

// Warning flags a non-fatal condition on a successful result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Earnings is the output of the earnings aggregator.
type Earnings struct {
	BasePay             decimal.Decimal `json:"base_pay"`
	Overtime            decimal.Decimal `json:"overtime"`
	Bonus               decimal.Decimal `json:"bonus"`
	Commission          decimal.Decimal `json:"commission"`
	Allowances          decimal.Decimal `json:"allowances"`
	GrossPayBeforeFloor decimal.Decimal `json:"gross_pay_before_floor"`
	GrossPay            decimal.Decimal `json:"gross_pay"`
	MinimumWageApplied  bool            `json:"minimum_wage_applied"`
}

// PayslipResult is the value produced by one calculation.
type PayslipResult struct {
	EmployeeID     string `json:"employee_id,omitempty"`
	RuleSetVersion string `json:"rule_set_version"`
	Currency       string `json:"currency,omitempty"`

	Earnings Earnings `json:"earnings"`

	GrossPay           decimal.Decimal `json:"gross_pay"`
	NetPay             decimal.Decimal `json:"net_pay"`
	TotalAllowances    decimal.Decimal `json:"total_allowances"`
	TotalDeductions    decimal.Decimal `json:"total_deductions"`
	TotalStatutory     decimal.Decimal `json:"total_statutory"`
	TotalDiscretionary decimal.Decimal `json:"total_discretionary"`
	TaxableIncome      decimal.Decimal `json:"taxable_income"`

	Lines           []Line           `json:"lines"`
	EmployerCharges []EmployerCharge `json:"employer_charges"`
	Warnings        []Warning        `json:"warnings,omitempty"`
}

// HasWarning reports whether the result carries a warning code.
func (r *PayslipResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// StatutoryAmount returns the amount of the statutory line with key, or zero.
func (r *PayslipResult) StatutoryAmount(key string) decimal.Decimal {
	for _, l := range r.Lines {
		if l.Statutory && l.Key == key {
			return l.Amount
		}
	}
	return decimal.Zero
}

// TotalEmployerCharges sums the employer charges.
func (r *PayslipResult) TotalEmployerCharges() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.EmployerCharges {
		total = total.Add(c.Amount)
	}
	return total
}
