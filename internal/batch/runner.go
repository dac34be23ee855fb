// Package batch runs the payroll engine over every employee of a pay period.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is used when Runner.Workers is not positive.
const DefaultWorkers = 4

// Resolver finds the rule set effective for a company on a date.
type Resolver interface {
	Resolve(companyID, jurisdiction string, at time.Time) (*domain.RuleSet, error)
}

// Recorder receives run instrumentation.
type Recorder interface {
	ObserveCalculation(outcome string, duration time.Duration)
	ObserveNegativeNet()
	ObserveRun(status RunStatus)
}

// Calculation outcomes passed to Recorder.ObserveCalculation.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type nopRecorder struct{}

func (nopRecorder) ObserveCalculation(string, time.Duration) {}
func (nopRecorder) ObserveNegativeNet()                      {}
func (nopRecorder) ObserveRun(RunStatus)                     {}

// Runner calculates a payroll batch with a bounded pool of workers.
type Runner struct {
	Engine   *calculation.Engine
	Catalog  Resolver
	Workers  int
	Logger   logging.Logger
	Recorder Recorder

	// Validate, when set, checks each employee input before it is
	// calculated. A rejected input becomes that employee's failure.
	Validate func(in *domain.PayrollInput) error

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewRunner creates a runner with the default worker count and no-op
// logging and instrumentation.
func NewRunner(engine *calculation.Engine, catalog Resolver) *Runner {
	return &Runner{
		Engine:   engine,
		Catalog:  catalog,
		Workers:  DefaultWorkers,
		Logger:   logging.NopLogger{},
		Recorder: nopRecorder{},
	}
}

// SetLogger sets the logger, falling back to a no-op logger on nil.
func (r *Runner) SetLogger(logger logging.Logger) {
	r.Logger = logging.OrNop(logger)
}

type outcome struct {
	result *domain.PayslipResult
	err    error
}

// Run calculates every employee of the batch. A failed employee is recorded
// and does not stop the others; the returned error is non-nil only when the
// batch is unusable or ctx is cancelled. Payslips and failures keep the
// input order.
func (r *Runner) Run(ctx context.Context, b *domain.PayrollBatch) (*RunSummary, error) {
	if b == nil {
		return nil, fmt.Errorf("payroll batch is required")
	}
	if r.Engine == nil || r.Catalog == nil {
		return nil, fmt.Errorf("runner requires an engine and a rule catalog")
	}
	logger := logging.OrNop(r.Logger)
	rec := r.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	summary := &RunSummary{
		ID:            r.newID(),
		Name:          b.RunName,
		CompanyID:     b.CompanyID,
		Jurisdiction:  b.Jurisdiction,
		PeriodStart:   b.PeriodStart,
		PeriodEnd:     b.PeriodEnd,
		PaymentDate:   b.PaymentDate,
		DryRun:        b.IsDryRun,
		Payslips:      []EmployeePayslip{},
		Failures:      []Failure{},
		Totals:        zeroTotals(),
		EmployeeCount: len(b.Employees),
	}
	logger.Infof("payroll run %s (%s) started: company=%s employees=%d", summary.ID, b.RunName, b.CompanyID, len(b.Employees))

	rs, resolveErr := r.Catalog.Resolve(b.CompanyID, b.Jurisdiction, b.EffectiveDate())
	if resolveErr != nil {
		logger.Errorf("payroll run %s: %v", summary.ID, resolveErr)
	} else {
		summary.RuleSetVersion = rs.Version
		summary.Currency = rs.Currency
	}

	results := make([]outcome, len(b.Employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())

	for i := range b.Employees {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if resolveErr != nil {
				results[i] = outcome{err: resolveErr}
				return nil
			}
			start := time.Now()
			if err := r.validate(&b.Employees[i]); err != nil {
				rec.ObserveCalculation(OutcomeFailure, time.Since(start))
				results[i] = outcome{err: err}
				return nil
			}
			res, err := r.Engine.Calculate(rs, &b.Employees[i])
			label := OutcomeSuccess
			if err != nil {
				label = OutcomeFailure
			}
			rec.ObserveCalculation(label, time.Since(start))
			results[i] = outcome{result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fatal := false
	for i, o := range results {
		in := &b.Employees[i]
		if o.err != nil {
			kind := classify(o.err)
			fatal = fatal || kind.Fatal()
			summary.Failures = append(summary.Failures, Failure{
				EmployeeID: in.EmployeeID,
				Kind:       kind,
				Message:    o.err.Error(),
			})
			logger.Warnf("payroll run %s: employee %s failed (%s): %v", summary.ID, in.EmployeeID, kind, o.err)
			continue
		}

		summary.Payslips = append(summary.Payslips, EmployeePayslip{
			EmployeeID:   in.EmployeeID,
			EmployeeName: in.EmployeeName,
			Payslip:      o.result,
		})
		summary.Totals.add(o.result, rs.IncomeTax.LineKey())
		summary.WarningCount += len(o.result.Warnings)
		if o.result.HasWarning(domain.WarningNegativeNetPay) {
			rec.ObserveNegativeNet()
			logger.Warnf("payroll run %s: employee %s has negative net pay %s", summary.ID, in.EmployeeID, o.result.NetPay.StringFixed(2))
		}
		logger.Debugf("payroll run %s: calculated employee=%s rule_set=%s net=%s",
			summary.ID, in.EmployeeID, o.result.RuleSetVersion, o.result.NetPay.StringFixed(2))
	}

	switch {
	case fatal || len(summary.Payslips) == 0:
		summary.Status = StatusFailed
	case len(summary.Failures) > 0:
		summary.Status = StatusPartial
	default:
		summary.Status = StatusPendingApproval
	}
	summary.ProcessedAt = r.now()
	rec.ObserveRun(summary.Status)

	logger.Infof("payroll run %s finished: status=%s payslips=%d failures=%d net=%s",
		summary.ID, summary.Status, len(summary.Payslips), len(summary.Failures), summary.Totals.Net.StringFixed(2))
	return summary, nil
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, domain.ErrInvalidRuleSet):
		return FailureInvalidRuleSet
	case errors.Is(err, domain.ErrRuleSetNotFound):
		return FailureRuleSetNotFound
	default:
		return FailureCalculationError
	}
}

// validate runs the Validate hook. Its errors are reported as invalid input
// so a rejected employee never fails the whole run.
func (r *Runner) validate(in *domain.PayrollInput) error {
	if r.Validate == nil {
		return nil
	}
	err := r.Validate(in)
	if err == nil || errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return DefaultWorkers
	}
	return r.Workers
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}
