// Package compare calculates one payroll input under several rule set
// versions and reports how net pay, tax and employer cost move.
package compare

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/domain"
)

// RuleSets looks rule sets up by version.
type RuleSets interface {
	Get(version string) (*domain.RuleSet, bool)
}

// Engine orchestrates comparisons.
type Engine struct {
	Calc    *calculation.Engine
	Rules   RuleSets
	Metrics *MetricsCalculator
}

// NewEngine creates a comparison engine over a rule set lookup.
func NewEngine(calc *calculation.Engine, rules RuleSets) *Engine {
	return &Engine{
		Calc:    calc,
		Rules:   rules,
		Metrics: NewMetricsCalculator(calc.Money.Places),
	}
}

// Compare calculates in under the base version and every alternative. The
// base version and repeated alternatives are compared once.
func (e *Engine) Compare(ctx context.Context, in *domain.PayrollInput, baseVersion string, alternatives []string) (*ComparisonSet, error) {
	if in == nil {
		return nil, fmt.Errorf("payroll input is required")
	}

	base, err := e.calculate(ctx, in, baseVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate base version: %w", err)
	}

	set := &ComparisonSet{
		EmployeeID:         in.EmployeeID,
		EmployeeName:       in.EmployeeName,
		Currency:           base.Payslip.Currency,
		BaseVersion:        baseVersion,
		BaseResult:         &base,
		AlternativeResults: []ComparisonResult{},
	}
	seen := map[string]bool{baseVersion: true}
	for _, version := range alternatives {
		if seen[version] {
			continue
		}
		seen[version] = true
		alt, err := e.calculate(ctx, in, version)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate version %s: %w", version, err)
		}
		set.AlternativeResults = append(set.AlternativeResults, e.Metrics.CalculateComparison(alt, base))
	}

	set.Recommendations = GenerateRecommendations(set)
	return set, nil
}

func (e *Engine) calculate(ctx context.Context, in *domain.PayrollInput, version string) (ComparisonResult, error) {
	if err := ctx.Err(); err != nil {
		return ComparisonResult{}, err
	}
	rs, ok := e.Rules.Get(version)
	if !ok {
		return ComparisonResult{}, fmt.Errorf("rule set %s not found in catalog: %w", version, domain.ErrRuleSetNotFound)
	}
	p, err := e.Calc.Calculate(rs, in)
	if err != nil {
		return ComparisonResult{}, err
	}
	return e.Metrics.CalculateMetrics(rs, p), nil
}
