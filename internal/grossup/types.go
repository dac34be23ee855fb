package grossup

import (
	"errors"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrUnreachable is returned when no base salary within the search range
// yields the target net pay, e.g. when percentage deductions consume all of
// gross pay.
var ErrUnreachable = errors.New("target net pay is unreachable")

// Request asks for the base salary that produces TargetNet for Input under
// RuleSet. Every other input field is held fixed.
type Request struct {
	RuleSet   *domain.RuleSet
	Input     *domain.PayrollInput
	TargetNet decimal.Decimal
}

// Result is the smallest base salary found whose net pay reaches the target,
// with the payslip calculated at that salary.
type Result struct {
	TargetNet       decimal.Decimal       `json:"target_net"`
	BaseSalary      decimal.Decimal       `json:"base_salary"`
	Payslip         *domain.PayslipResult `json:"payslip"`
	Iterations      int                   `json:"iterations"`
	Converged       bool                  `json:"converged"`
	ConvergenceInfo string                `json:"convergence_info"`
}

// Options configures the search.
type Options struct {
	Tolerance     decimal.Decimal // width of the final salary interval
	MaxIterations int             // calculations per solve, bracketing included
}

// DefaultOptions searches to the cent with up to 100 calculations.
func DefaultOptions() Options {
	return Options{
		Tolerance:     decimal.New(1, -2),
		MaxIterations: 100,
	}
}

// Error reports a failed solve. Cause is the underlying engine error or
// ErrUnreachable.
type Error struct {
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Operation + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Operation + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
