/*
Package sqlite persists payroll runs and their payslips in SQLite.

TABLES:

	payroll_runs: one row per run, totals and failures as JSON
	payslips:     one row per calculated employee, full result as JSON

Money columns are stored as TEXT so decimals never pass through a float.
Saving a run with an existing ID replaces the run row and all of its
payslips in one transaction, unless the run was already approved or
rejected. UpdateStatus moves a pending run to approved or rejected.

USAGE:

	store, err := sqlite.New("./data/paycalc.db")
	if err != nil {
	    return err
	}
	defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrRunNotPayable is returned when saving a failed or dry run.
	ErrRunNotPayable = errors.New("payroll run is not payable")
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("payroll run not found")
	// ErrStatusConflict is returned when a run is not in the expected status.
	ErrStatusConflict = errors.New("payroll run status conflict")
)

const dateLayout = "2006-01-02"

// Store implements run persistence on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// RunRecord is the stored header of a run, without payslips.
type RunRecord struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CompanyID      string          `json:"company_id"`
	Jurisdiction   string          `json:"jurisdiction,omitempty"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	PaymentDate    time.Time       `json:"payment_date"`
	RuleSetVersion string          `json:"rule_set_version"`
	Currency       string          `json:"currency"`
	Status         batch.RunStatus `json:"status"`
	EmployeeCount  int             `json:"employee_count"`
	PayslipCount   int             `json:"payslip_count"`
	TotalGross     decimal.Decimal `json:"total_gross"`
	TotalNet       decimal.Decimal `json:"total_net"`
	ProcessedAt    time.Time       `json:"processed_at"`
	SavedAt        time.Time       `json:"saved_at"`
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		company_id TEXT NOT NULL,
		jurisdiction TEXT,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		rule_set_version TEXT NOT NULL,
		currency TEXT,
		status TEXT NOT NULL,
		employee_count INTEGER NOT NULL,
		payslip_count INTEGER NOT NULL,
		total_gross TEXT NOT NULL,
		total_net TEXT NOT NULL,
		totals_json TEXT NOT NULL,
		failures_json TEXT NOT NULL,
		warning_count INTEGER NOT NULL DEFAULT 0,
		processed_at TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TEXT,
		rejection_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_runs_company_period
		ON payroll_runs(company_id, period_end DESC);

	CREATE TABLE IF NOT EXISTS payslips (
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		gross_pay TEXT NOT NULL,
		net_pay TEXT NOT NULL,
		payslip_json TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_id)
	);

	CREATE INDEX IF NOT EXISTS idx_payslips_employee
		ON payslips(employee_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases created before runs were reviewed lack these columns.
	for _, column := range []string{"reviewed_by", "reviewed_at", "rejection_reason"} {
		_, err := s.db.Exec("ALTER TABLE payroll_runs ADD COLUMN " + column + " TEXT")
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("failed to add column %s: %w", column, err)
		}
	}
	return nil
}

// SaveRun stores a payable run and its payslips atomically.
func (s *Store) SaveRun(ctx context.Context, run *batch.RunSummary) error {
	if run == nil {
		return fmt.Errorf("payroll run is required")
	}
	if !run.Payable() {
		return fmt.Errorf("%w: run %s has status %s (dry run: %t)", ErrRunNotPayable, run.ID, run.Status, run.DryRun)
	}

	totalsJSON, err := json.Marshal(run.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode totals: %w", err)
	}
	failuresJSON, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("failed to encode failures: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM payroll_runs WHERE id = ?", run.ID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to look up run %s: %w", run.ID, err)
	case batch.RunStatus(current).Reviewed():
		return fmt.Errorf("%w: run %s is already %s", ErrStatusConflict, run.ID, current)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM payslips WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to clear payslips: %w", err)
	}

	query := `
		INSERT INTO payroll_runs
		(id, name, company_id, jurisdiction, period_start, period_end, payment_date,
		 rule_set_version, currency, status, employee_count, payslip_count,
		 total_gross, total_net, totals_json, failures_json, warning_count, processed_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			company_id = excluded.company_id,
			jurisdiction = excluded.jurisdiction,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			payment_date = excluded.payment_date,
			rule_set_version = excluded.rule_set_version,
			currency = excluded.currency,
			status = excluded.status,
			employee_count = excluded.employee_count,
			payslip_count = excluded.payslip_count,
			total_gross = excluded.total_gross,
			total_net = excluded.total_net,
			totals_json = excluded.totals_json,
			failures_json = excluded.failures_json,
			warning_count = excluded.warning_count,
			processed_at = excluded.processed_at,
			saved_at = excluded.saved_at
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Name,
		run.CompanyID,
		run.Jurisdiction,
		run.PeriodStart.Format(dateLayout),
		run.PeriodEnd.Format(dateLayout),
		run.PaymentDate.Format(dateLayout),
		run.RuleSetVersion,
		run.Currency,
		string(run.Status),
		run.EmployeeCount,
		len(run.Payslips),
		run.Totals.Gross.String(),
		run.Totals.Net.String(),
		string(totalsJSON),
		string(failuresJSON),
		run.WarningCount,
		run.ProcessedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, p := range run.Payslips {
		payslipJSON, err := json.Marshal(p.Payslip)
		if err != nil {
			return fmt.Errorf("failed to encode payslip for %s: %w", p.EmployeeID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payslips (run_id, position, employee_id, employee_name, gross_pay, net_pay, payslip_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, p.EmployeeID, nullString(p.EmployeeName),
			p.Payslip.GrossPay.String(), p.Payslip.NetPay.String(), string(payslipJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to save payslip for %s: %w", p.EmployeeID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its payslips.
func (s *Store) GetRun(ctx context.Context, id string) (*batch.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run                      batch.RunSummary
		start, end, payment      string
		status, processed        string
		totalsJSON, failuresJSON string
		jurisdiction, currency   sql.NullString
		reviewedBy, reviewedAt   sql.NullString
		rejectionReason          sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company_id, jurisdiction, period_start, period_end, payment_date,
		       rule_set_version, currency, status, employee_count, totals_json, failures_json,
		       warning_count, processed_at, reviewed_by, reviewed_at, rejection_reason
		FROM payroll_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Name, &run.CompanyID, &jurisdiction, &start, &end, &payment,
		&run.RuleSetVersion, &currency, &status, &run.EmployeeCount, &totalsJSON, &failuresJSON,
		&run.WarningCount, &processed, &reviewedBy, &reviewedAt, &rejectionReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	run.Jurisdiction = jurisdiction.String
	run.Currency = currency.String
	run.Status = batch.RunStatus(status)
	run.PeriodStart, _ = time.Parse(dateLayout, start)
	run.PeriodEnd, _ = time.Parse(dateLayout, end)
	run.PaymentDate, _ = time.Parse(dateLayout, payment)
	run.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processed)
	run.ReviewedBy = reviewedBy.String
	run.RejectionReason = rejectionReason.String
	if reviewedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, reviewedAt.String); err == nil {
			run.ReviewedAt = &t
		}
	}
	if err := json.Unmarshal([]byte(totalsJSON), &run.Totals); err != nil {
		return nil, fmt.Errorf("failed to decode totals of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &run.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode failures of run %s: %w", id, err)
	}

	run.Payslips, err = s.queryPayslips(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateStatus moves run id from one status to another in a transaction
// and records who reviewed it. A rejection needs a reason. The run must
// still be in status from, otherwise ErrStatusConflict is returned.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to batch.RunStatus, actor, reason string) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", batch.ErrStatusTransition, from, to)
	}
	reason = strings.TrimSpace(reason)
	if to == batch.StatusRejected && reason == "" {
		return fmt.Errorf("%w: a rejection reason is required", batch.ErrStatusTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM payroll_runs WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", id, err)
	}
	if batch.RunStatus(current) != from {
		return fmt.Errorf("%w: run %s is %s, not %s", ErrStatusConflict, id, current, from)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payroll_runs
		SET status = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?
		WHERE id = ? AND status = ?`,
		string(to), nullString(actor), time.Now().UTC().Format(time.RFC3339Nano), nullString(reason),
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	return tx.Commit()
}

// ListRuns returns run headers, most recent period first. An empty companyID
// lists every company.
func (s *Store) ListRuns(ctx context.Context, companyID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, company_id, jurisdiction, period_start, period_end, payment_date,
		       rule_set_version, currency, status, employee_count, payslip_count,
		       total_gross, total_net, processed_at, saved_at
		FROM payroll_runs
		WHERE (? = '' OR company_id = ?)
		ORDER BY period_end DESC, processed_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, companyID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var (
			r                      RunRecord
			start, end, payment    string
			status, gross, net     string
			processed, saved       string
			jurisdiction, currency sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.CompanyID, &jurisdiction, &start, &end, &payment,
			&r.RuleSetVersion, &currency, &status, &r.EmployeeCount, &r.PayslipCount,
			&gross, &net, &processed, &saved); err != nil {
			return nil, err
		}
		r.Jurisdiction = jurisdiction.String
		r.Currency = currency.String
		r.Status = batch.RunStatus(status)
		r.PeriodStart, _ = time.Parse(dateLayout, start)
		r.PeriodEnd, _ = time.Parse(dateLayout, end)
		r.PaymentDate, _ = time.Parse(dateLayout, payment)
		r.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processed)
		r.SavedAt, _ = time.Parse(time.RFC3339Nano, saved)
		if r.TotalGross, err = decimal.NewFromString(gross); err != nil {
			return nil, fmt.Errorf("run %s has invalid total gross %q: %w", r.ID, gross, err)
		}
		if r.TotalNet, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("run %s has invalid total net %q: %w", r.ID, net, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListPayslips returns the payslips of a run in calculation order.
func (s *Store) ListPayslips(ctx context.Context, runID string) ([]batch.EmployeePayslip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM payroll_runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return s.queryPayslips(ctx, runID)
}

func (s *Store) queryPayslips(ctx context.Context, runID string) ([]batch.EmployeePayslip, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT employee_id, employee_name, payslip_json FROM payslips WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load payslips of run %s: %w", runID, err)
	}
	defer rows.Close()

	payslips := []batch.EmployeePayslip{}
	for rows.Next() {
		var (
			p           batch.EmployeePayslip
			name        sql.NullString
			payslipJSON string
		)
		if err := rows.Scan(&p.EmployeeID, &name, &payslipJSON); err != nil {
			return nil, err
		}
		p.EmployeeName = name.String
		p.Payslip = &domain.PayslipResult{}
		if err := json.Unmarshal([]byte(payslipJSON), p.Payslip); err != nil {
			return nil, fmt.Errorf("failed to decode payslip %s/%s: %w", runID, p.EmployeeID, err)
		}
		payslips = append(payslips, p)
	}
	return payslips, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
