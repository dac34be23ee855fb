package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validRuleSet() *RuleSet {
	return &RuleSet{
		Version:       "dz-2025.1",
		Jurisdiction:  "DZ",
		EffectiveFrom: day(2025, 1, 1),
		Currency:      "DZD",
		Contribution:  ContributionRules{EmployeeRate: dec("0.09"), EmployerRate: dec("0.26")},
		MinimumWage:   decPtr("20000"),
		IncomeTax: IncomeTaxRules{
			Brackets: []TaxBracket{
				{UpperBound: decPtr("10000"), Rate: dec("0")},
				{UpperBound: decPtr("30000"), Rate: dec("0.07")},
				{Rate: dec("0.17")},
			},
		},
	}
}

func TestPayrollInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *PayrollInput)
		field  string
	}{
		{"valid", func(in *PayrollInput) {}, ""},
		{"negative base", func(in *PayrollInput) { in.BaseSalary = dec("-1") }, "base_salary"},
		{"negative bonus", func(in *PayrollInput) { in.Bonus = decPtr("-0.01") }, "bonus"},
		{"negative overtime hours", func(in *PayrollInput) { in.OvertimeHours = decPtr("-2") }, "overtime_hours"},
		{"negative allowance item", func(in *PayrollInput) {
			in.AllowanceItems = []Item{{Key: "a", Amount: dec("1")}, {Key: "b", Amount: dec("-1")}}
		}, "allowance_items[1].amount"},
		{"unknown filing status", func(in *PayrollInput) { in.TaxFilingStatus = "widowed" }, "tax_filing_status"},
		{"negative allowance count", func(in *PayrollInput) { in.TaxAllowanceCount = -1 }, "tax_allowance_count"},
		{"deduction without key", func(in *PayrollInput) {
			in.DiscretionaryDeductions = []Deduction{{Amount: decPtr("10")}}
		}, "discretionary_deductions[0].key"},
		{"deduction with both forms", func(in *PayrollInput) {
			in.DiscretionaryDeductions = []Deduction{{Key: "x", Amount: decPtr("10"), PercentOfGross: decPtr("5")}}
		}, "discretionary_deductions[0]"},
		{"deduction percent above 100", func(in *PayrollInput) {
			in.DiscretionaryDeductions = []Deduction{{Key: "x", PercentOfGross: decPtr("101")}}
		}, "discretionary_deductions[0].percent_of_gross"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &PayrollInput{EmployeeID: "E-1", BaseSalary: dec("1000")}
			tt.mutate(in)
			err := in.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err))
			var ie *InvalidInputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.field, ie.Field)
		})
	}

	var nilInput *PayrollInput
	assert.True(t, IsInvalidInput(nilInput.Validate()))
}

func TestFilingStatus(t *testing.T) {
	assert.Equal(t, FilingSingle, FilingStatus("").OrDefault())
	assert.Equal(t, FilingMarried, FilingMarried.OrDefault())
	assert.True(t, FilingStatus("").Valid())
	assert.False(t, FilingStatus("other").Valid())
}

func TestRuleSet_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rs *RuleSet)
		reason string
	}{
		{"valid", func(rs *RuleSet) {}, ""},
		{"missing version", func(rs *RuleSet) { rs.Version = "" }, "version is required"},
		{"missing effective date", func(rs *RuleSet) { rs.EffectiveFrom = time.Time{} }, "effective_from is required"},
		{"window reversed", func(rs *RuleSet) {
			to := day(2024, 12, 31)
			rs.EffectiveTo = &to
		}, "effective_to cannot be before effective_from"},
		{"employee rate above one", func(rs *RuleSet) { rs.Contribution.EmployeeRate = dec("1.5") }, "employee rate"},
		{"negative minimum wage", func(rs *RuleSet) { rs.MinimumWage = decPtr("-1") }, "minimum wage"},
		{"no brackets", func(rs *RuleSet) { rs.IncomeTax.Brackets = nil }, "at least one tax bracket"},
		{"bounded last bracket", func(rs *RuleSet) {
			rs.IncomeTax.Brackets = rs.IncomeTax.Brackets[:2]
		}, "last bracket must be unbounded"},
		{"unbounded middle bracket", func(rs *RuleSet) {
			rs.IncomeTax.Brackets[1].UpperBound = nil
		}, "only the last bracket may be unbounded"},
		{"descending bounds", func(rs *RuleSet) {
			rs.IncomeTax.Brackets[1].UpperBound = decPtr("5000")
		}, "must be greater than"},
		{"negative offset", func(rs *RuleSet) { rs.IncomeTax.Brackets[2].FixedOffset = dec("-1") }, "fixed offset"},
		{"unknown filing status", func(rs *RuleSet) {
			rs.IncomeTax.StandardDeductions = map[FilingStatus]decimal.Decimal{"other": dec("1")}
		}, "unknown filing status"},
		{"levy without key", func(rs *RuleSet) { rs.Levies = []Levy{{Rate: dec("0.01")}} }, "key is required"},
		{"levy key clashes", func(rs *RuleSet) {
			rs.Levies = []Levy{{Key: KeyIncomeTax, Rate: dec("0.01")}}
		}, "duplicate key"},
		{"levy threshold above ceiling", func(rs *RuleSet) {
			rs.Levies = []Levy{{Key: "x", Rate: dec("0.01"), Threshold: decPtr("10"), Ceiling: decPtr("5")}}
		}, "threshold cannot exceed ceiling"},
		{"levy both included and excluded", func(rs *RuleSet) {
			rs.Levies = []Levy{{Key: "x", Rate: dec("0.01"), Jurisdictions: []string{"CA"}, ExcludedJurisdictions: []string{"NY"}}}
		}, "not both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := validRuleSet()
			tt.mutate(rs)
			err := rs.Validate()
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsInvalidRuleSet(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestRuleSet_EffectiveOnAndOverlaps(t *testing.T) {
	rs := validRuleSet()
	to := day(2025, 6, 30)
	rs.EffectiveTo = &to

	assert.False(t, rs.EffectiveOn(day(2024, 12, 31)))
	assert.True(t, rs.EffectiveOn(day(2025, 1, 1)))
	assert.True(t, rs.EffectiveOn(time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)), "Both ends are inclusive by day")
	assert.False(t, rs.EffectiveOn(day(2025, 7, 1)))

	next := validRuleSet()
	next.EffectiveFrom = day(2025, 7, 1)
	assert.False(t, rs.Overlaps(next))
	assert.False(t, next.Overlaps(rs))

	next.EffectiveFrom = day(2025, 6, 30)
	assert.True(t, rs.Overlaps(next))
}

func TestRuleSet_Scope(t *testing.T) {
	rs := validRuleSet()
	assert.True(t, rs.Global())
	assert.Equal(t, "", rs.Company())

	acme := "acme"
	rs.CompanyID = &acme
	assert.False(t, rs.Global())
	assert.Equal(t, "acme", rs.Company())
}

func TestLineDefaults(t *testing.T) {
	rs := validRuleSet()
	assert.Equal(t, KeyContributionEmployee, rs.Contribution.LineKey())
	assert.Equal(t, KeyContributionEmployer, rs.Contribution.EmployerLineKey())
	assert.Equal(t, KeyIncomeTax, rs.IncomeTax.LineKey())
	assert.Equal(t, 1, rs.IncomeTax.Periods())

	rs.IncomeTax.Key = "irg"
	assert.Equal(t, "irg", rs.IncomeTax.LineKey())

	levy := Levy{Key: "state_income_tax", Jurisdictions: []string{"CA", "NY"}}
	assert.Equal(t, "state_income_tax", levy.LineLabel())
	assert.True(t, levy.AppliesTo("NY"))
	assert.False(t, levy.AppliesTo("TX"))
	assert.True(t, Levy{Key: "x"}.AppliesTo(""))

	fallback := Levy{Key: "state_income_tax", ExcludedJurisdictions: []string{"CA", "NY", "TX"}}
	assert.True(t, fallback.AppliesTo("OH"))
	assert.True(t, fallback.AppliesTo(""), "An input without a code pays the fallback")
	assert.False(t, fallback.AppliesTo("CA"))
	assert.False(t, fallback.AppliesTo("TX"))
}

func TestErrors(t *testing.T) {
	notFound := &RuleSetNotFoundError{CompanyID: "acme", Jurisdiction: "DZ", At: day(2025, 3, 31)}
	assert.Equal(t, "no rule set effective on 2025-03-31 for company acme, jurisdiction DZ", notFound.Error())
	assert.True(t, IsNotFound(notFound))
	assert.True(t, errors.Is(notFound, ErrRuleSetNotFound))

	assert.Equal(t, "invalid payroll input: bonus cannot be negative",
		(&InvalidInputError{Field: "bonus", Reason: "cannot be negative"}).Error())
	assert.Equal(t, `invalid rule set "v1": bad`, (&InvalidRuleSetError{Version: "v1", Reason: "bad"}).Error())
	assert.False(t, IsInvalidInput(ErrInvalidRuleSet))
}

func TestPayrollBatch_EffectiveDate(t *testing.T) {
	b := &PayrollBatch{PeriodStart: day(2025, 3, 1), PeriodEnd: day(2025, 3, 31)}
	assert.Equal(t, day(2025, 3, 31), b.EffectiveDate())
}
