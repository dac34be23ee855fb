package batch

import (
	"errors"
	"time"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// RunStatus is the outcome of a payroll run.
type RunStatus string

const (
	// StatusPendingApproval means every employee was calculated.
	StatusPendingApproval RunStatus = "pending_approval"
	// StatusPartial means some employees failed on their own input.
	StatusPartial RunStatus = "partial"
	// StatusFailed means the rules could not be applied or nothing was paid.
	StatusFailed RunStatus = "failed"
	// StatusApproved means a pending run was released for payment.
	StatusApproved RunStatus = "approved"
	// StatusRejected means a pending run was sent back with a reason.
	StatusRejected RunStatus = "rejected"
)

// ErrStatusTransition is returned for a review step the status does not allow.
var ErrStatusTransition = errors.New("invalid run status transition")

// CanTransition reports whether a stored run may move from s to next. Only
// runs pending approval are reviewed; approved and rejected runs are final.
func (s RunStatus) CanTransition(next RunStatus) bool {
	return s == StatusPendingApproval && (next == StatusApproved || next == StatusRejected)
}

// Reviewed reports whether the status is the outcome of a review.
func (s RunStatus) Reviewed() bool {
	return s == StatusApproved || s == StatusRejected
}

// FailureKind classifies a per-employee failure.
type FailureKind string

const (
	FailureInvalidInput     FailureKind = "invalid_input"
	FailureInvalidRuleSet   FailureKind = "invalid_rule_set"
	FailureRuleSetNotFound  FailureKind = "rule_set_not_found"
	FailureCalculationError FailureKind = "calculation_error"
)

// Fatal reports whether the failure kind fails the whole run.
func (k FailureKind) Fatal() bool {
	return k != FailureInvalidInput
}

// Failure records why one employee has no payslip.
type Failure struct {
	EmployeeID string      `json:"employee_id"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
}

// EmployeePayslip is a successful calculation within a run.
type EmployeePayslip struct {
	EmployeeID   string                `json:"employee_id"`
	EmployeeName string                `json:"employee_name,omitempty"`
	Payslip      *domain.PayslipResult `json:"payslip"`
}

// Totals are the run-level sums of the rounded per-employee outputs.
type Totals struct {
	Gross           decimal.Decimal `json:"gross"`
	Allowances      decimal.Decimal `json:"allowances"`
	Deductions      decimal.Decimal `json:"deductions"`
	Statutory       decimal.Decimal `json:"statutory"`
	Discretionary   decimal.Decimal `json:"discretionary"`
	IncomeTax       decimal.Decimal `json:"income_tax"`
	Net             decimal.Decimal `json:"net"`
	EmployerCharges decimal.Decimal `json:"employer_charges"`
}

func zeroTotals() Totals {
	return Totals{
		Gross:           decimal.Zero,
		Allowances:      decimal.Zero,
		Deductions:      decimal.Zero,
		Statutory:       decimal.Zero,
		Discretionary:   decimal.Zero,
		IncomeTax:       decimal.Zero,
		Net:             decimal.Zero,
		EmployerCharges: decimal.Zero,
	}
}

func (t *Totals) add(p *domain.PayslipResult, incomeTaxKey string) {
	t.Gross = t.Gross.Add(p.GrossPay)
	t.Allowances = t.Allowances.Add(p.TotalAllowances)
	t.Deductions = t.Deductions.Add(p.TotalDeductions)
	t.Statutory = t.Statutory.Add(p.TotalStatutory)
	t.Discretionary = t.Discretionary.Add(p.TotalDiscretionary)
	t.IncomeTax = t.IncomeTax.Add(p.StatutoryAmount(incomeTaxKey))
	t.Net = t.Net.Add(p.NetPay)
	t.EmployerCharges = t.EmployerCharges.Add(p.TotalEmployerCharges())
}

// RunSummary is the result of one payroll run.
type RunSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CompanyID      string    `json:"company_id"`
	Jurisdiction   string    `json:"jurisdiction,omitempty"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	PaymentDate    time.Time `json:"payment_date"`
	DryRun         bool      `json:"dry_run"`
	RuleSetVersion string    `json:"rule_set_version,omitempty"`
	Currency       string    `json:"currency,omitempty"`

	Status        RunStatus         `json:"status"`
	Payslips      []EmployeePayslip `json:"payslips"`
	Failures      []Failure         `json:"failures"`
	Totals        Totals            `json:"totals"`
	EmployeeCount int               `json:"employee_count"`
	WarningCount  int               `json:"warning_count"`
	ProcessedAt   time.Time         `json:"processed_at"`

	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// Payable reports whether the run may be persisted for payment.
func (s *RunSummary) Payable() bool {
	return s.Status != StatusFailed && !s.DryRun
}

// FailedEmployees lists the IDs of employees without a payslip.
func (s *RunSummary) FailedEmployees() []string {
	ids := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		ids = append(ids, f.EmployeeID)
	}
	return ids
}
