// Package grossup solves net-to-gross: the base salary an employee must be
// paid for the payslip to show a given net pay.
package grossup

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// Solver runs a bisection over the base salary using the payslip engine.
type Solver struct {
	Engine  *calculation.Engine
	Options Options
}

// NewSolver creates a solver.
func NewSolver(engine *calculation.Engine, options Options) *Solver {
	return &Solver{Engine: engine, Options: options}
}

// NewDefaultSolver creates a solver with DefaultOptions.
func NewDefaultSolver(engine *calculation.Engine) *Solver {
	return NewSolver(engine, DefaultOptions())
}

// Solve finds the smallest base salary, to the tolerance, whose net pay is at
// least req.TargetNet. Net pay is not strictly monotonic when brackets carry
// fixed offsets; the returned salary always reaches the target.
func (s *Solver) Solve(ctx context.Context, req Request) (*Result, error) {
	if req.RuleSet == nil || req.Input == nil {
		return nil, &Error{Operation: "solve", Message: "rule set and input are required"}
	}
	if !req.TargetNet.IsPositive() {
		return nil, &Error{Operation: "solve", Message: "target net pay must be positive"}
	}

	opts := s.Options
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if !opts.Tolerance.IsPositive() {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	m := s.Engine.Money
	places := m.Places

	iterations := 0
	eval := func(base decimal.Decimal) (*domain.PayslipResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		iterations++
		in := *req.Input
		in.BaseSalary = base
		p, err := s.Engine.Calculate(req.RuleSet, &in)
		if err != nil {
			return nil, &Error{Operation: "solve", Message: fmt.Sprintf("calculation failed at base %s", base.StringFixed(places)), Cause: err}
		}
		return p, nil
	}

	// A zero base can already reach the target through allowances or the
	// minimum-wage floor.
	lo := decimal.Zero
	p, err := eval(lo)
	if err != nil {
		return nil, err
	}
	if p.NetPay.GreaterThanOrEqual(req.TargetNet) {
		return s.result(req, lo, p, iterations, true, "target reached at zero base salary"), nil
	}

	// Bracket the target by doubling.
	hi := decimal.Max(req.TargetNet, req.Input.BaseSalary, decimal.NewFromInt(1))
	var best *domain.PayslipResult
	for {
		if iterations >= opts.MaxIterations {
			return nil, &Error{Operation: "bracket", Message: fmt.Sprintf("no base salary up to %s reaches %s", hi.StringFixed(places), req.TargetNet.StringFixed(places)), Cause: ErrUnreachable}
		}
		p, err := eval(hi)
		if err != nil {
			return nil, err
		}
		if p.NetPay.GreaterThanOrEqual(req.TargetNet) {
			best = p
			break
		}
		lo = hi
		hi = hi.Mul(decimal.NewFromInt(2))
	}

	for hi.Sub(lo).GreaterThan(opts.Tolerance) {
		if iterations >= opts.MaxIterations {
			return s.result(req, hi, best, iterations, false, fmt.Sprintf("max iterations (%d) reached", opts.MaxIterations)), nil
		}
		mid := m.Round(m.Div(lo.Add(hi), decimal.NewFromInt(2)))
		if mid.Equal(lo) || mid.Equal(hi) {
			break
		}
		p, err := eval(mid)
		if err != nil {
			return nil, err
		}
		if p.NetPay.GreaterThanOrEqual(req.TargetNet) {
			hi, best = mid, p
		} else {
			lo = mid
		}
	}

	return s.result(req, hi, best, iterations, true,
		fmt.Sprintf("converged within %s", opts.Tolerance.StringFixed(places))), nil
}

func (s *Solver) result(req Request, base decimal.Decimal, p *domain.PayslipResult, iterations int, converged bool, info string) *Result {
	return &Result{
		TargetNet:       req.TargetNet,
		BaseSalary:      base,
		Payslip:         p,
		Iterations:      iterations,
		Converged:       converged,
		ConvergenceInfo: info,
	}
}
