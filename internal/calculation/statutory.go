package calculation

import (
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/shopspring/decimal"
)

// StatutoryAmount is one computed statutory deduction.
type StatutoryAmount struct {
	Key    string
	Label  string
	Amount decimal.Decimal
}

// Contribution holds the employee and employer social contribution.
type Contribution struct {
	Base     decimal.Decimal
	Employee decimal.Decimal
	Employer decimal.Decimal
}

// SocialContribution computes the statutory social contribution on gross pay.
// Ineligible employees contribute nothing and carry no employer charge.
func SocialContribution(ctx money.Context, rules domain.ContributionRules, gross decimal.Decimal, eligible bool) Contribution {
	if !eligible {
		return Contribution{Base: decimal.Zero, Employee: decimal.Zero, Employer: decimal.Zero}
	}
	return Contribution{
		Base:     contributionBase(gross, rules.Ceiling),
		Employee: FlatContribution(ctx, gross, rules.EmployeeRate, rules.Ceiling),
		Employer: FlatContribution(ctx, gross, rules.EmployerRate, rules.Ceiling),
	}
}

// IncomeTaxResult is the outcome of the income-tax step.
type IncomeTaxResult struct {
	// PeriodBase is gross pay less the employee contribution when deductible.
	PeriodBase decimal.Decimal
	// AnnualBase is the annualized base after standard and allowance
	// deductions, floored at zero. It is the value walked through brackets.
	AnnualBase decimal.Decimal
	// TaxableIncome is AnnualBase expressed per period, rounded.
	TaxableIncome decimal.Decimal
	// Tax is the period income tax, rounded.
	Tax decimal.Decimal
}

// IncomeTax computes the period income tax of an employee.
func IncomeTax(ctx money.Context, rules domain.IncomeTaxRules, gross, employeeContribution decimal.Decimal, status domain.FilingStatus, allowanceCount int) (IncomeTaxResult, error) {
	if err := domain.ValidateBrackets(rules.Brackets); err != nil {
		return IncomeTaxResult{}, err
	}

	periodBase := gross
	if rules.DeductContribution {
		periodBase = periodBase.Sub(employeeContribution)
	}
	periodBase = money.NonNegative(periodBase)

	periods := decimal.NewFromInt(int64(rules.Periods()))
	annual := periodBase.Mul(periods).
		Sub(rules.StandardDeduction(status)).
		Sub(rules.AllowanceDeduction.Mul(decimal.NewFromInt(int64(allowanceCount))))
	annual = money.NonNegative(annual)

	raw, _ := walkBrackets(ctx, annual, rules.Brackets)
	return IncomeTaxResult{
		PeriodBase:    periodBase,
		AnnualBase:    annual,
		TaxableIncome: ctx.Round(ctx.Div(annual, periods)),
		Tax:           money.NonNegative(ctx.Round(ctx.Div(raw, periods))),
	}, nil
}

// LevyBase is min(gross, ceiling) - threshold, floored at zero.
func LevyBase(levy domain.Levy, gross decimal.Decimal) decimal.Decimal {
	base := contributionBase(gross, levy.Ceiling)
	if levy.Threshold != nil {
		base = base.Sub(*levy.Threshold)
	}
	return money.NonNegative(base)
}

// Levies computes the additional statutory levies that apply to an input, in
// rule order.
func Levies(ctx money.Context, levies []domain.Levy, gross decimal.Decimal, in *domain.PayrollInput) []StatutoryAmount {
	var out []StatutoryAmount
	for _, l := range levies {
		if !l.AppliesTo(in.JurisdictionCode) {
			continue
		}
		if l.RequiresContributionEligibility && !in.StatutoryContributionEligible {
			continue
		}
		out = append(out, StatutoryAmount{
			Key:    l.Key,
			Label:  l.LineLabel(),
			Amount: ctx.Round(ctx.MulRate(LevyBase(l, gross), l.Rate)),
		})
	}
	return out
}
