// Package calculation implements the payroll calculation engine: a pure,
// deterministic function from a rule set and one employee's pay-period facts
// to a payslip.
package calculation

import (
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/shopspring/decimal"
)

// Engine calculates payslips. It holds only its money context and is safe
// for concurrent use.
type Engine struct {
	Money money.Context
}

// NewEngine creates an engine with the given precision settings.
func NewEngine(ctx money.Context) (*Engine, error) {
	if err := ctx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid money context: %w", err)
	}
	return &Engine{Money: ctx}, nil
}

// NewDefaultEngine creates an engine with money.DefaultContext.
func NewDefaultEngine() *Engine {
	return &Engine{Money: money.DefaultContext()}
}

// Calculate computes the payslip of one employee for one period.
//
// The rule set is validated again before use; a malformed set yields an
// *domain.InvalidRuleSetError and a malformed input an
// *domain.InvalidInputError. Deductions exceeding gross pay are reported as
// a warning on a successful result.
func (e *Engine) Calculate(rs *domain.RuleSet, in *domain.PayrollInput) (*domain.PayslipResult, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx := e.Money

	earnings, err := AggregateEarnings(ctx, in, rs.MinimumWage)
	if err != nil {
		return nil, err
	}
	gross := earnings.GrossPay

	contribution := SocialContribution(ctx, rs.Contribution, gross, in.StatutoryContributionEligible)

	tax, err := IncomeTax(ctx, rs.IncomeTax, gross, contribution.Employee, in.TaxFilingStatus, in.TaxAllowanceCount)
	if err != nil {
		return nil, err
	}

	levies := Levies(ctx, rs.Levies, gross, in)

	deductions, err := AggregateDeductions(ctx, gross, statutoryAmounts(rs, contribution, tax, levies), in.DiscretionaryDeductions)
	if err != nil {
		return nil, err
	}

	return Assemble(ctx, Assembly{
		RuleSet:      rs,
		Input:        in,
		Earnings:     earnings,
		Contribution: contribution,
		IncomeTax:    tax,
		Deductions:   deductions,
	}), nil
}

// Explain returns the bracket walk of the income tax for an annual taxable
// base under rs.
func (e *Engine) Explain(rs *domain.RuleSet, annualBase decimal.Decimal) (*TaxBreakdown, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return ProgressiveTaxBreakdown(e.Money, annualBase, rs.IncomeTax.Brackets)
}
