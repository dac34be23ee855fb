// Package money provides the fixed-precision decimal arithmetic used for
// every currency amount in the payroll engine.
//
// Addition, subtraction and multiplication of decimal.Decimal values are
// exact. Division is the only inexact operation and is carried out at the
// Context's DivisionScale. Output values are rounded half away from zero
// (half-up on magnitude) to the Context's Places.
//
// The package never reads or writes decimal.DivisionPrecision; callers build
// a Context and pass it to whatever needs it.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinDivisionScale is the smallest working scale accepted for division.
const MinDivisionScale int32 = 20

// Context carries the precision settings for one engine instance.
type Context struct {
	// DivisionScale is the number of decimal places kept by Div.
	DivisionScale int32 `yaml:"division_scale" json:"division_scale" mapstructure:"division_scale"`
	// Places is the number of decimal places of reported amounts.
	Places int32 `yaml:"places" json:"places" mapstructure:"places"`
}

// DefaultContext returns 20 places of working precision and 2 output places.
func DefaultContext() Context {
	return Context{DivisionScale: MinDivisionScale, Places: 2}
}

// Validate checks that the context is usable.
func (c Context) Validate() error {
	if c.Places < 0 {
		return fmt.Errorf("output places cannot be negative")
	}
	if c.DivisionScale < MinDivisionScale {
		return fmt.Errorf("division scale must be at least %d, got %d", MinDivisionScale, c.DivisionScale)
	}
	if c.DivisionScale < c.Places {
		return fmt.Errorf("division scale %d cannot be below output places %d", c.DivisionScale, c.Places)
	}
	return nil
}

// Round rounds d half away from zero to the output places.
func (c Context) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Places)
}

// Div divides a by b at the working scale. A zero divisor is a programming
// error and panics.
func (c Context) Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		panic("money: division by zero")
	}
	return a.DivRound(b, c.DivisionScale)
}

// MulRate multiplies an amount by a rate. Negative rates panic; rule sets are
// validated before they reach arithmetic.
func (c Context) MulRate(amount, rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		panic(fmt.Sprintf("money: negative rate %s", rate))
	}
	return amount.Mul(rate)
}

// Percent converts a percentage (e.g. 5 for 5%) into a rate.
func (c Context) Percent(pct decimal.Decimal) decimal.Decimal {
	return c.Div(pct, hundred)
}

// IsRounded reports whether d carries no more than the output places.
func (c Context) IsRounded(d decimal.Decimal) bool {
	return d.Equal(d.Round(c.Places))
}

var hundred = decimal.NewFromInt(100)

// Sum adds all values exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// OrZero dereferences p, treating nil as zero.
func OrZero(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}

// Ptr returns a pointer to d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
