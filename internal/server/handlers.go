package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/grossup"
	"github.com/rgehrsitz/paycalc/internal/rules"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// Health reports liveness and the loaded catalog size.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ruleSets := 0
	if c := s.currentCatalog(); c != nil {
		ruleSets = c.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"rule_sets": ruleSets,
	})
}

// ListRuleSets returns the versions of the current catalog.
func (s *Server) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	c := s.currentCatalog()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, CodeCatalogMissing, "no rule catalog loaded")
		return
	}
	writeJSON(w, http.StatusOK, c.Versions())
}

// CalculatePayslip calculates one employee.
func (s *Server) CalculatePayslip(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "input is required")
		return
	}
	rs, ok := s.resolveRuleSet(w, &req)
	if !ok {
		return
	}
	if err := s.parser.ValidatePayrollInput(req.Input); err != nil {
		s.writeDomainError(w, err)
		return
	}
	start := time.Now()
	result, err := s.engine.Calculate(rs, req.Input)
	if s.metrics != nil {
		outcome := batch.OutcomeSuccess
		if err != nil {
			outcome = batch.OutcomeFailure
		}
		s.metrics.ObserveCalculation(outcome, time.Since(start))
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.metrics != nil && result.HasWarning(domain.WarningNegativeNetPay) {
		s.metrics.ObserveNegativeNet()
	}
	writeJSON(w, http.StatusOK, CalculateResponse{Payslip: result})
}

// GrossUpPayslip solves for the base salary that yields a target net pay.
func (s *Server) GrossUpPayslip(w http.ResponseWriter, r *http.Request) {
	var req GrossUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "input is required")
		return
	}
	if !req.TargetNet.IsPositive() {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "target_net must be positive")
		return
	}
	rs, ok := s.resolveRuleSet(w, &req.CalculateRequest)
	if !ok {
		return
	}
	if err := s.parser.ValidatePayrollInput(req.Input); err != nil {
		s.writeDomainError(w, err)
		return
	}

	res, err := grossup.NewDefaultSolver(s.engine).Solve(r.Context(), grossup.Request{
		RuleSet:   rs,
		Input:     req.Input,
		TargetNet: req.TargetNet,
	})
	if errors.Is(err, grossup.ErrUnreachable) {
		writeError(w, http.StatusUnprocessableEntity, CodeTargetUnreachable, err.Error())
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resolveRuleSet returns the inline rule set of req or resolves one from the
// catalog. It writes the error response and reports false on failure.
func (s *Server) resolveRuleSet(w http.ResponseWriter, req *CalculateRequest) (*domain.RuleSet, bool) {
	at, err := parseDate(req.At, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return nil, false
	}
	if req.RuleSet != nil {
		return req.RuleSet, true
	}
	c := s.currentCatalog()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, CodeCatalogMissing, "no rule catalog loaded")
		return nil, false
	}
	rs, err := c.Resolve(req.CompanyID, req.Jurisdiction, at)
	if err != nil {
		s.writeDomainError(w, err)
		return nil, false
	}
	return rs, true
}

// CreateRun calculates a payroll batch and stores it when payable.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var b domain.PayrollBatch
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if err := s.parser.ValidatePayrollBatch(&b); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
		return
	}
	c := s.currentCatalog()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, CodeCatalogMissing, "no rule catalog loaded")
		return
	}

	runner := batch.NewRunner(s.engine, c)
	if s.workers > 0 {
		runner.Workers = s.workers
	}
	runner.SetLogger(s.logger.Sugar())
	runner.Validate = s.parser.ValidatePayrollInput
	if s.metrics != nil {
		runner.Recorder = s.metrics
	}

	summary, err := runner.Run(r.Context(), &b)
	if err != nil {
		s.logger.Error("payroll run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	resp := RunResponse{RunSummary: summary}
	if s.store != nil && summary.Payable() {
		if err := s.store.SaveRun(r.Context(), summary); err != nil {
			s.logger.Error("failed to persist payroll run", zap.String("run_id", summary.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, "failed to persist run")
			return
		}
		resp.Persisted = true
	}

	status := http.StatusCreated
	if summary.Status == batch.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// ListRuns lists stored runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one stored run.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRunPayslips returns the payslips of a stored run.
func (s *Server) ListRunPayslips(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	payslips, err := s.store.ListPayslips(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payslips)
}

// ApproveRun releases a run pending approval for payment.
func (s *Server) ApproveRun(w http.ResponseWriter, r *http.Request) {
	s.reviewRun(w, r, batch.StatusApproved)
}

// RejectRun sends a run pending approval back with a reason.
func (s *Server) RejectRun(w http.ResponseWriter, r *http.Request) {
	s.reviewRun(w, r, batch.StatusRejected)
}

func (s *Server) reviewRun(w http.ResponseWriter, r *http.Request, to batch.RunStatus) {
	if !s.requireStore(w) {
		return
	}
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if to == batch.StatusRejected && strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "a rejection reason is required")
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = r.Header.Get("X-User-Id")
	}

	id := chi.URLParam(r, "id")
	err := s.store.UpdateStatus(r.Context(), id, batch.StatusPendingApproval, to, actor, req.Reason)
	if errors.Is(err, sqlite.ErrStatusConflict) {
		writeError(w, http.StatusConflict, CodeStatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("payroll run reviewed",
		zap.String("run_id", id),
		zap.String("status", string(to)),
		zap.String("actor", actor),
	)

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) currentCatalog() *rules.Catalog {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Get()
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "no run store configured")
		return false
	}
	return true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidInput, err.Error())
	case errors.Is(err, domain.ErrInvalidRuleSet):
		writeError(w, http.StatusUnprocessableEntity, CodeInvalidRuleSet, err.Error())
	case errors.Is(err, domain.ErrRuleSetNotFound):
		writeError(w, http.StatusNotFound, CodeRuleSetNotFound, err.Error())
	default:
		s.logger.Error("calculation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	s.logger.Error("store query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "store query failed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
