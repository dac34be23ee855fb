package calculation

import (
	"time"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func decPtr(s string) *decimal.Decimal {
	return decimalPtr(dec(s))
}

// referenceBrackets is [(10000, 0%), (30000, 7%), (unbounded, 17%)].
func referenceBrackets() []domain.TaxBracket {
	return []domain.TaxBracket{
		{UpperBound: decPtr("10000"), Rate: dec("0")},
		{UpperBound: decPtr("30000"), Rate: dec("0.07")},
		{Rate: dec("0.17")},
	}
}

func offsetBrackets() []domain.TaxBracket {
	return []domain.TaxBracket{
		{UpperBound: decPtr("10000"), Rate: dec("0")},
		{UpperBound: decPtr("30000"), Rate: dec("0.07"), FixedOffset: dec("100")},
		{Rate: dec("0.17"), FixedOffset: dec("200")},
	}
}

// flatRuleSet is an annual, contribution-deductible rule set in the style of
// a CNAS/IRG payroll.
func flatRuleSet() *domain.RuleSet {
	return &domain.RuleSet{
		Version:       "dz-2025.1",
		Jurisdiction:  "DZ",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Currency:      "DZD",
		Contribution: domain.ContributionRules{
			Key:           "cnas_employee",
			Label:         "CNAS (employee)",
			EmployerKey:   "cnas_employer",
			EmployerLabel: "CNAS (employer)",
			EmployeeRate:  dec("0.09"),
			EmployerRate:  dec("0.26"),
		},
		MinimumWage: decPtr("20000"),
		IncomeTax: domain.IncomeTaxRules{
			Key:                "irg",
			Label:              "IRG",
			Brackets:           referenceBrackets(),
			PeriodsPerYear:     1,
			DeductContribution: true,
		},
	}
}

// monthlyRuleSet annualizes a monthly base and applies filing-status
// deductions, in the style of a US federal withholding table.
func monthlyRuleSet() *domain.RuleSet {
	return &domain.RuleSet{
		Version:       "us-2025.1",
		Jurisdiction:  "US",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Currency:      "USD",
		Contribution: domain.ContributionRules{
			Key:          "social_security",
			Label:        "Social Security",
			EmployerKey:  "social_security_employer",
			EmployeeRate: dec("0.062"),
			EmployerRate: dec("0.062"),
			Ceiling:      decPtr("14050"),
		},
		IncomeTax: domain.IncomeTaxRules{
			Key:   "federal_income_tax",
			Label: "Federal income tax",
			Brackets: []domain.TaxBracket{
				{UpperBound: decPtr("10000"), Rate: dec("0.10")},
				{UpperBound: decPtr("40000"), Rate: dec("0.12")},
				{Rate: dec("0.22")},
			},
			PeriodsPerYear: 12,
			StandardDeductions: map[domain.FilingStatus]decimal.Decimal{
				domain.FilingSingle:          dec("12000"),
				domain.FilingMarried:         dec("24000"),
				domain.FilingHeadOfHousehold: dec("18000"),
			},
			AllowanceDeduction: dec("4000"),
		},
		Levies: []domain.Levy{
			{Key: "medicare", Label: "Medicare", Rate: dec("0.0145")},
			{Key: "additional_medicare", Label: "Additional Medicare", Rate: dec("0.009"), Threshold: decPtr("200000")},
			{Key: "state_income_tax", Label: "State income tax", Rate: dec("0.05"), Jurisdictions: []string{"CA"}},
		},
	}
}
