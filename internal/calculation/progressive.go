package calculation

import (
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/shopspring/decimal"
)

// BandTax is the contribution of one bracket to a progressive tax.
type BandTax struct {
	Lower      decimal.Decimal  `json:"lower"`
	Upper      *decimal.Decimal `json:"upper,omitempty"`
	Rate       decimal.Decimal  `json:"rate"`
	Taxed      decimal.Decimal  `json:"taxed"`
	Offset     decimal.Decimal  `json:"offset"`
	Tax        decimal.Decimal  `json:"tax"`
	Cumulative decimal.Decimal  `json:"cumulative"`
}

// TaxBreakdown details a bracket walk. Bands lists only the entered brackets.
type TaxBreakdown struct {
	Base  decimal.Decimal `json:"base"`
	Bands []BandTax       `json:"bands"`
	Tax   decimal.Decimal `json:"tax"`
}

// ProgressiveTax applies a bracket table to a taxable base.
//
// Each bracket taxes the slice of the base inside its band at its rate. The
// bracket's fixed offset is added once when the base strictly exceeds the
// previous upper bound. The result is rounded and never negative; a
// non-positive base yields zero.
func ProgressiveTax(ctx money.Context, base decimal.Decimal, brackets []domain.TaxBracket) (decimal.Decimal, error) {
	b, err := ProgressiveTaxBreakdown(ctx, base, brackets)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Tax, nil
}

// ProgressiveTaxBreakdown is ProgressiveTax with the per-band detail.
func ProgressiveTaxBreakdown(ctx money.Context, base decimal.Decimal, brackets []domain.TaxBracket) (*TaxBreakdown, error) {
	if err := domain.ValidateBrackets(brackets); err != nil {
		return nil, err
	}
	raw, bands := walkBrackets(ctx, base, brackets)
	return &TaxBreakdown{
		Base:  base,
		Bands: bands,
		Tax:   money.NonNegative(ctx.Round(raw)),
	}, nil
}

// walkBrackets returns the unrounded tax. Brackets must already be valid.
func walkBrackets(ctx money.Context, base decimal.Decimal, brackets []domain.TaxBracket) (decimal.Decimal, []BandTax) {
	var bands []BandTax
	tax := decimal.Zero
	remaining := base
	prev := decimal.Zero

	for _, b := range brackets {
		if !remaining.IsPositive() {
			break
		}
		band := remaining
		if !b.Unbounded() {
			band = decimal.Min(remaining, b.UpperBound.Sub(prev))
		}
		if !band.IsPositive() {
			break
		}
		bandTax := ctx.MulRate(band, b.Rate).Add(b.FixedOffset)
		tax = tax.Add(bandTax)
		bands = append(bands, BandTax{
			Lower:      prev,
			Upper:      b.UpperBound,
			Rate:       b.Rate,
			Taxed:      band,
			Offset:     b.FixedOffset,
			Tax:        bandTax,
			Cumulative: tax,
		})
		remaining = remaining.Sub(band)
		if !b.Unbounded() {
			prev = *b.UpperBound
		}
	}
	return money.NonNegative(tax), bands
}

// FlatContribution applies a flat rate to gross pay capped at ceiling.
func FlatContribution(ctx money.Context, gross, rate decimal.Decimal, ceiling *decimal.Decimal) decimal.Decimal {
	return ctx.Round(ctx.MulRate(contributionBase(gross, ceiling), rate))
}

func contributionBase(gross decimal.Decimal, ceiling *decimal.Decimal) decimal.Decimal {
	base := money.NonNegative(gross)
	if ceiling != nil && base.GreaterThan(*ceiling) {
		return *ceiling
	}
	return base
}
