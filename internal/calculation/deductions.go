package calculation

import (
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/shopspring/decimal"
)

// DeductionSummary is the output of the deduction aggregator.
type DeductionSummary struct {
	Lines              []domain.Line
	TotalStatutory     decimal.Decimal
	TotalDiscretionary decimal.Decimal
	TotalDeductions    decimal.Decimal
	NetPay             decimal.Decimal
	Warnings           []domain.Warning
}

// AggregateDeductions sums statutory and discretionary deductions against
// gross pay. Percentage deductions resolve against gross. Net pay is reported
// as computed; when deductions exceed gross a negative_net_pay warning is
// attached instead of clamping.
func AggregateDeductions(ctx money.Context, gross decimal.Decimal, statutory []StatutoryAmount, discretionary []domain.Deduction) (DeductionSummary, error) {
	var s DeductionSummary
	s.TotalStatutory = decimal.Zero
	s.TotalDiscretionary = decimal.Zero

	for _, st := range statutory {
		if st.Amount.IsNegative() {
			return DeductionSummary{}, fmt.Errorf("statutory deduction %s is negative: %s", st.Key, st.Amount)
		}
		amount := ctx.Round(st.Amount)
		s.TotalStatutory = s.TotalStatutory.Add(amount)
		if amount.IsZero() {
			continue
		}
		s.Lines = append(s.Lines, domain.Line{
			Kind:      domain.LineDeduction,
			Key:       st.Key,
			Label:     st.Label,
			Amount:    amount,
			Statutory: true,
		})
	}

	for i, d := range discretionary {
		amount, err := resolveDeduction(ctx, gross, d)
		if err != nil {
			return DeductionSummary{}, &domain.InvalidInputError{
				Field:  fmt.Sprintf("discretionary_deductions[%d]", i),
				Reason: err.Error(),
			}
		}
		s.TotalDiscretionary = s.TotalDiscretionary.Add(amount)
		label := d.Label
		if label == "" {
			label = d.Key
		}
		s.Lines = append(s.Lines, domain.Line{
			Kind:   domain.LineDeduction,
			Key:    d.Key,
			Label:  label,
			Amount: amount,
		})
	}

	s.TotalDeductions = s.TotalStatutory.Add(s.TotalDiscretionary)
	s.NetPay = gross.Sub(s.TotalDeductions)
	if s.NetPay.IsNegative() {
		s.Warnings = append(s.Warnings, domain.Warning{
			Code: domain.WarningNegativeNetPay,
			Message: fmt.Sprintf("total deductions %s exceed gross pay %s",
				s.TotalDeductions.StringFixed(ctx.Places), gross.StringFixed(ctx.Places)),
		})
	}
	return s, nil
}

func resolveDeduction(ctx money.Context, gross decimal.Decimal, d domain.Deduction) (decimal.Decimal, error) {
	switch {
	case d.Amount != nil && d.PercentOfGross != nil:
		return decimal.Zero, fmt.Errorf("must set exactly one of amount or percent_of_gross")
	case d.Amount != nil:
		if d.Amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("amount cannot be negative")
		}
		return ctx.Round(*d.Amount), nil
	case d.PercentOfGross != nil:
		if d.PercentOfGross.IsNegative() {
			return decimal.Zero, fmt.Errorf("percent_of_gross cannot be negative")
		}
		return ctx.Round(ctx.MulRate(gross, ctx.Percent(*d.PercentOfGross))), nil
	default:
		return decimal.Zero, fmt.Errorf("must set exactly one of amount or percent_of_gross")
	}
}
