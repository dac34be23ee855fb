package calculation

import (
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
)

// Assembly gathers the intermediate results of one calculation.
type Assembly struct {
	RuleSet      *domain.RuleSet
	Input        *domain.PayrollInput
	Earnings     domain.Earnings
	Contribution Contribution
	IncomeTax    IncomeTaxResult
	Deductions   DeductionSummary
}

// Assemble packages the intermediate results into a payslip. Allowance lines
// come first, followed by the statutory and discretionary deduction lines in
// the order the aggregator produced them.
func Assemble(ctx money.Context, a Assembly) *domain.PayslipResult {
	e := a.Earnings
	lines := allowanceLines(ctx, a.Input, e)
	lines = append(lines, a.Deductions.Lines...)

	charges := []domain.EmployerCharge{}
	if a.Input.StatutoryContributionEligible && a.RuleSet.Contribution.EmployerRate.IsPositive() {
		charges = append(charges, domain.EmployerCharge{
			Key:    a.RuleSet.Contribution.EmployerLineKey(),
			Label:  a.RuleSet.Contribution.EmployerLineLabel(),
			Amount: a.Contribution.Employer,
		})
	}

	if lines == nil {
		lines = []domain.Line{}
	}
	gross := ctx.Round(e.GrossPay)
	return &domain.PayslipResult{
		EmployeeID:         a.Input.EmployeeID,
		RuleSetVersion:     a.RuleSet.Version,
		Currency:           a.RuleSet.Currency,
		Earnings:           e,
		GrossPay:           gross,
		NetPay:             ctx.Round(a.Deductions.NetPay),
		TotalAllowances:    ctx.Round(money.Sum(e.Overtime, e.Bonus, e.Commission, e.Allowances)),
		TotalDeductions:    ctx.Round(a.Deductions.TotalDeductions),
		TotalStatutory:     ctx.Round(a.Deductions.TotalStatutory),
		TotalDiscretionary: ctx.Round(a.Deductions.TotalDiscretionary),
		TaxableIncome:      ctx.Round(a.IncomeTax.TaxableIncome),
		Lines:              lines,
		EmployerCharges:    charges,
		Warnings:           a.Deductions.Warnings,
	}
}

// statutoryAmounts orders the statutory deductions: contribution, income tax,
// then levies in rule order.
func statutoryAmounts(rs *domain.RuleSet, c Contribution, tax IncomeTaxResult, levies []StatutoryAmount) []StatutoryAmount {
	out := make([]StatutoryAmount, 0, 2+len(levies))
	out = append(out,
		StatutoryAmount{Key: rs.Contribution.LineKey(), Label: rs.Contribution.LineLabel(), Amount: c.Employee},
		StatutoryAmount{Key: rs.IncomeTax.LineKey(), Label: rs.IncomeTax.LineLabel(), Amount: tax.Tax},
	)
	return append(out, levies...)
}
