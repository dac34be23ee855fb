package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// CalculateRequest is the body of POST /api/payslips/calculate. When
// RuleSet is set it is used as is; otherwise the catalog resolves one for
// the company and jurisdiction on At.
type CalculateRequest struct {
	CompanyID    string               `json:"company_id"`
	Jurisdiction string               `json:"jurisdiction"`
	At           string               `json:"at"`
	RuleSet      *domain.RuleSet      `json:"rule_set,omitempty"`
	Input        *domain.PayrollInput `json:"input"`
}

// GrossUpRequest is the body of POST /api/payslips/grossup: a calculation
// request plus the net pay to reach. The input's base salary is the starting
// guess and is replaced by the solved one.
type GrossUpRequest struct {
	CalculateRequest
	TargetNet decimal.Decimal `json:"target_net"`
}

// CalculateResponse is the body returned for a calculated payslip.
type CalculateResponse struct {
	Payslip *domain.PayslipResult `json:"payslip"`
}

// RunResponse is the body returned by POST /api/runs.
type RunResponse struct {
	*batch.RunSummary
	Persisted bool `json:"persisted"`
}

// ReviewRequest is the body of POST /api/runs/{id}/approve and
// /api/runs/{id}/reject. Actor falls back to the X-User-Id header; Reason is
// required to reject.
type ReviewRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidInput      = "invalid_input"
	CodeInvalidRuleSet    = "invalid_rule_set"
	CodeRuleSetNotFound   = "rule_set_not_found"
	CodeNotFound          = "not_found"
	CodeStoreUnavailable  = "store_unavailable"
	CodeCatalogMissing    = "catalog_unavailable"
	CodeTargetUnreachable = "target_unreachable"
	CodeStatusConflict    = "status_conflict"
	CodeInternal          = "internal"
)

// parseDate accepts a calendar date or an RFC 3339 timestamp. An empty
// value means today in UTC.
func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", value)
	}
	return t, nil
}
