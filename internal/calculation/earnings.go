package calculation

import (
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/shopspring/decimal"
)

// AggregateEarnings combines the pay components of an input into gross pay.
// Each component is rounded to the output places before summing, so gross pay
// is the exact sum of the reported components. When minimumWage is set, gross
// pay is floored to it.
func AggregateEarnings(ctx money.Context, in *domain.PayrollInput, minimumWage *decimal.Decimal) (domain.Earnings, error) {
	if err := in.Validate(); err != nil {
		return domain.Earnings{}, err
	}

	overtime := decimal.Zero
	if in.OvertimeHours != nil && in.OvertimeRate != nil {
		overtime = in.OvertimeHours.Mul(*in.OvertimeRate)
	}

	e := domain.Earnings{
		BasePay:    ctx.Round(in.BaseSalary),
		Overtime:   ctx.Round(overtime),
		Bonus:      ctx.Round(money.OrZero(in.Bonus).Add(sumItems(in.BonusItems))),
		Commission: ctx.Round(money.OrZero(in.Commission).Add(sumItems(in.CommissionItems))),
		Allowances: ctx.Round(money.OrZero(in.Allowances).Add(sumItems(in.AllowanceItems))),
	}
	e.GrossPayBeforeFloor = money.Sum(e.BasePay, e.Overtime, e.Bonus, e.Commission, e.Allowances)
	e.GrossPay = e.GrossPayBeforeFloor

	if minimumWage != nil {
		floor := ctx.Round(*minimumWage)
		if e.GrossPay.LessThan(floor) {
			e.GrossPay = floor
			e.MinimumWageApplied = true
		}
	}
	return e, nil
}

func sumItems(items []domain.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// allowanceLines itemizes the earnings above base pay. Flat amounts with no
// value are omitted.
func allowanceLines(ctx money.Context, in *domain.PayrollInput, e domain.Earnings) []domain.Line {
	var lines []domain.Line
	add := func(key, label string, amount decimal.Decimal) {
		amount = ctx.Round(amount)
		if amount.IsZero() {
			return
		}
		lines = append(lines, domain.Line{Kind: domain.LineAllowance, Key: key, Label: label, Amount: amount})
	}
	addItems := func(items []domain.Item) {
		for _, it := range items {
			label := it.Label
			if label == "" {
				label = it.Key
			}
			lines = append(lines, domain.Line{Kind: domain.LineAllowance, Key: it.Key, Label: label, Amount: ctx.Round(it.Amount)})
		}
	}

	add("bonus", "Bonus", money.OrZero(in.Bonus))
	addItems(in.BonusItems)
	add("commission", "Commission", money.OrZero(in.Commission))
	addItems(in.CommissionItems)
	add("overtime", "Overtime", e.Overtime)
	addItems(in.AllowanceItems)
	add("allowances", "Allowances", money.OrZero(in.Allowances))
	return lines
}
