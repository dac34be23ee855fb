package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// RuleSet is an immutable snapshot of the payroll rules of one jurisdiction
// over an effective window. It is loaded once, validated, and only read by
// the engine.
//
// Bracket semantics: every TaxBracket is a marginal band. The slice of the
// taxable base that falls inside a band is taxed at the band's Rate, and the
// band's FixedOffset is charged once when the base strictly exceeds the
// previous band's upper bound (the band is entered). A base equal to an upper
// bound does not enter the next band. With all offsets at zero this is the
// plain marginal model.
type RuleSet struct {
	Version       string     `yaml:"version" json:"version"`
	Jurisdiction  string     `yaml:"jurisdiction" json:"jurisdiction"`
	CompanyID     *string    `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	EffectiveFrom time.Time  `yaml:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time `yaml:"effective_to,omitempty" json:"effective_to,omitempty"`
	Currency      string     `yaml:"currency" json:"currency"`

	Contribution ContributionRules `yaml:"contribution" json:"contribution"`
	MinimumWage  *decimal.Decimal  `yaml:"minimum_wage,omitempty" json:"minimum_wage,omitempty"`
	IncomeTax    IncomeTaxRules    `yaml:"income_tax" json:"income_tax"`
	Levies       []Levy            `yaml:"levies,omitempty" json:"levies,omitempty"`
}

// ContributionRules describes the statutory social contribution.
type ContributionRules struct {
	Key           string           `yaml:"key" json:"key"`
	Label         string           `yaml:"label" json:"label"`
	EmployerKey   string           `yaml:"employer_key" json:"employer_key"`
	EmployerLabel string           `yaml:"employer_label" json:"employer_label"`
	EmployeeRate  decimal.Decimal  `yaml:"employee_rate" json:"employee_rate"`
	EmployerRate  decimal.Decimal  `yaml:"employer_rate" json:"employer_rate"`
	Ceiling       *decimal.Decimal `yaml:"ceiling,omitempty" json:"ceiling,omitempty"`
}

// Default line keys and labels used when a rule set leaves them empty.
const (
	KeyContributionEmployee = "contribution_employee"
	KeyContributionEmployer = "contribution_employer"
	KeyIncomeTax            = "income_tax"
)

// LineKey returns the payslip key of the employee contribution.
func (c ContributionRules) LineKey() string {
	return orDefault(c.Key, KeyContributionEmployee)
}

// LineLabel returns the payslip label of the employee contribution.
func (c ContributionRules) LineLabel() string {
	return orDefault(c.Label, "Social contribution (employee)")
}

// EmployerLineKey returns the key of the employer charge.
func (c ContributionRules) EmployerLineKey() string {
	return orDefault(c.EmployerKey, KeyContributionEmployer)
}

// EmployerLineLabel returns the label of the employer charge.
func (c ContributionRules) EmployerLineLabel() string {
	return orDefault(c.EmployerLabel, "Social contribution (employer)")
}

// IncomeTaxRules configures the progressive income tax and its base.
type IncomeTaxRules struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`

	Brackets []TaxBracket `yaml:"brackets" json:"brackets"`

	// PeriodsPerYear annualizes the period base before the bracket walk; the
	// resulting tax is divided back. Zero is treated as one.
	PeriodsPerYear int `yaml:"periods_per_year" json:"periods_per_year"`

	// StandardDeductions are annual amounts by filing status.
	StandardDeductions map[FilingStatus]decimal.Decimal `yaml:"standard_deductions,omitempty" json:"standard_deductions,omitempty"`

	// AllowanceDeduction is the annual amount removed per claimed allowance.
	AllowanceDeduction decimal.Decimal `yaml:"allowance_deduction" json:"allowance_deduction"`

	// DeductContribution removes the employee contribution from the base.
	DeductContribution bool `yaml:"deduct_contribution" json:"deduct_contribution"`
}

// LineKey returns the payslip key of the income tax.
func (r IncomeTaxRules) LineKey() string {
	return orDefault(r.Key, KeyIncomeTax)
}

// LineLabel returns the payslip label of the income tax.
func (r IncomeTaxRules) LineLabel() string {
	return orDefault(r.Label, "Income tax")
}

// Periods returns the annualization factor, at least one.
func (r IncomeTaxRules) Periods() int {
	if r.PeriodsPerYear < 1 {
		return 1
	}
	return r.PeriodsPerYear
}

// StandardDeduction returns the annual standard deduction for a status.
func (r IncomeTaxRules) StandardDeduction(status FilingStatus) decimal.Decimal {
	if d, ok := r.StandardDeductions[status.OrDefault()]; ok {
		return d
	}
	return decimal.Zero
}

// TaxBracket is one band of a progressive table. A nil UpperBound marks the
// terminal, unbounded band.
type TaxBracket struct {
	UpperBound  *decimal.Decimal `yaml:"upper_bound" json:"upper_bound"`
	Rate        decimal.Decimal  `yaml:"rate" json:"rate"`
	FixedOffset decimal.Decimal  `yaml:"fixed_offset" json:"fixed_offset"`
}

// Unbounded reports whether b is the terminal band.
func (b TaxBracket) Unbounded() bool {
	return b.UpperBound == nil
}

// Levy is an additional flat-rate statutory deduction on gross pay, such as
// a state income tax or a hospital insurance tax. Its base is
// min(gross, Ceiling) - Threshold, floored at zero.
type Levy struct {
	Key       string           `yaml:"key" json:"key"`
	Label     string           `yaml:"label" json:"label"`
	Rate      decimal.Decimal  `yaml:"rate" json:"rate"`
	Threshold *decimal.Decimal `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Ceiling   *decimal.Decimal `yaml:"ceiling,omitempty" json:"ceiling,omitempty"`

	// Jurisdictions restricts the levy to inputs with one of these codes.
	Jurisdictions []string `yaml:"jurisdictions,omitempty" json:"jurisdictions,omitempty"`

	// ExcludedJurisdictions skips the levy for these codes. A fallback rate
	// for every code without its own levy lists those codes here.
	ExcludedJurisdictions []string `yaml:"excluded_jurisdictions,omitempty" json:"excluded_jurisdictions,omitempty"`

	// RequiresContributionEligibility skips the levy for ineligible employees.
	RequiresContributionEligibility bool `yaml:"requires_contribution_eligibility" json:"requires_contribution_eligibility"`
}

// LineLabel returns the label, falling back to the key.
func (l Levy) LineLabel() string {
	return orDefault(l.Label, l.Key)
}

// AppliesTo reports whether the levy applies to a jurisdiction code.
func (l Levy) AppliesTo(code string) bool {
	if slices.Contains(l.ExcludedJurisdictions, code) {
		return false
	}
	return len(l.Jurisdictions) == 0 || slices.Contains(l.Jurisdictions, code)
}

// Global reports whether the rule set is the global default.
func (rs *RuleSet) Global() bool {
	return rs.CompanyID == nil || *rs.CompanyID == ""
}

// Company returns the company scope, empty for global sets.
func (rs *RuleSet) Company() string {
	if rs.Global() {
		return ""
	}
	return *rs.CompanyID
}

// EffectiveOn reports whether at falls inside the validity window. Both ends
// are inclusive and compared by calendar day.
func (rs *RuleSet) EffectiveOn(at time.Time) bool {
	day := truncateDay(at)
	if day.Before(truncateDay(rs.EffectiveFrom)) {
		return false
	}
	if rs.EffectiveTo != nil && day.After(truncateDay(*rs.EffectiveTo)) {
		return false
	}
	return true
}

// Overlaps reports whether the validity windows of rs and other intersect.
func (rs *RuleSet) Overlaps(other *RuleSet) bool {
	if rs.EffectiveTo != nil && truncateDay(*rs.EffectiveTo).Before(truncateDay(other.EffectiveFrom)) {
		return false
	}
	if other.EffectiveTo != nil && truncateDay(*other.EffectiveTo).Before(truncateDay(rs.EffectiveFrom)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var one = decimal.NewFromInt(1)

// Validate checks the effective window, rates and brackets.
func (rs *RuleSet) Validate() error {
	if rs == nil {
		return invalidRuleSet("", "rule set is required")
	}
	v := rs.Version
	if v == "" {
		return invalidRuleSet("", "version is required")
	}
	if rs.EffectiveFrom.IsZero() {
		return invalidRuleSet(v, "effective_from is required")
	}
	if rs.EffectiveTo != nil && truncateDay(*rs.EffectiveTo).Before(truncateDay(rs.EffectiveFrom)) {
		return invalidRuleSet(v, "effective_to cannot be before effective_from")
	}

	c := rs.Contribution
	if !rateInRange(c.EmployeeRate) {
		return invalidRuleSet(v, "contribution employee rate must be between 0 and 1")
	}
	if !rateInRange(c.EmployerRate) {
		return invalidRuleSet(v, "contribution employer rate must be between 0 and 1")
	}
	if c.Ceiling != nil && c.Ceiling.IsNegative() {
		return invalidRuleSet(v, "contribution ceiling cannot be negative")
	}
	if rs.MinimumWage != nil && rs.MinimumWage.IsNegative() {
		return invalidRuleSet(v, "minimum wage cannot be negative")
	}

	if err := ValidateBrackets(rs.IncomeTax.Brackets); err != nil {
		return invalidRuleSet(v, "income tax: %s", err.(*InvalidRuleSetError).Reason)
	}
	if rs.IncomeTax.PeriodsPerYear < 0 {
		return invalidRuleSet(v, "income tax periods per year cannot be negative")
	}
	if rs.IncomeTax.AllowanceDeduction.IsNegative() {
		return invalidRuleSet(v, "income tax allowance deduction cannot be negative")
	}
	for status, d := range rs.IncomeTax.StandardDeductions {
		if !status.Valid() {
			return invalidRuleSet(v, "unknown filing status %q in standard deductions", status)
		}
		if d.IsNegative() {
			return invalidRuleSet(v, "standard deduction for %s cannot be negative", status)
		}
	}

	keys := map[string]bool{
		rs.Contribution.LineKey():         true,
		rs.Contribution.EmployerLineKey(): true,
		rs.IncomeTax.LineKey():            true,
	}
	for i, l := range rs.Levies {
		if l.Key == "" {
			return invalidRuleSet(v, "levy %d: key is required", i)
		}
		if keys[l.Key] {
			return invalidRuleSet(v, "levy %d: duplicate key %q", i, l.Key)
		}
		keys[l.Key] = true
		if !rateInRange(l.Rate) {
			return invalidRuleSet(v, "levy %s: rate must be between 0 and 1", l.Key)
		}
		if l.Threshold != nil && l.Threshold.IsNegative() {
			return invalidRuleSet(v, "levy %s: threshold cannot be negative", l.Key)
		}
		if l.Ceiling != nil && l.Ceiling.IsNegative() {
			return invalidRuleSet(v, "levy %s: ceiling cannot be negative", l.Key)
		}
		if l.Threshold != nil && l.Ceiling != nil && l.Threshold.GreaterThan(*l.Ceiling) {
			return invalidRuleSet(v, "levy %s: threshold cannot exceed ceiling", l.Key)
		}
		if len(l.Jurisdictions) > 0 && len(l.ExcludedJurisdictions) > 0 {
			return invalidRuleSet(v, "levy %s: set jurisdictions or excluded_jurisdictions, not both", l.Key)
		}
	}
	return nil
}

// ValidateBrackets checks that a bracket table is non-empty, strictly
// ascending, non-overlapping and terminated by exactly one unbounded band.
func ValidateBrackets(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return invalidRuleSet("", "at least one tax bracket is required")
	}
	prev := decimal.Zero
	for i, b := range brackets {
		if !rateInRange(b.Rate) {
			return invalidRuleSet("", "bracket %d: rate must be between 0 and 1", i)
		}
		if b.FixedOffset.IsNegative() {
			return invalidRuleSet("", "bracket %d: fixed offset cannot be negative", i)
		}
		last := i == len(brackets)-1
		if b.Unbounded() {
			if !last {
				return invalidRuleSet("", "bracket %d: only the last bracket may be unbounded", i)
			}
			continue
		}
		if last {
			return invalidRuleSet("", "last bracket must be unbounded")
		}
		if !b.UpperBound.GreaterThan(prev) {
			return invalidRuleSet("", "bracket %d: upper bound %s must be greater than %s", i, b.UpperBound, prev)
		}
		prev = *b.UpperBound
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func rateInRange(r decimal.Decimal) bool {
	return !r.IsNegative() && !r.GreaterThan(one)
}
