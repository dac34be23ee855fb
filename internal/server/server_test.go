package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rgehrsitz/paycalc/internal/batch"
	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/config"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/grossup"
	"github.com/rgehrsitz/paycalc/internal/metrics"
	"github.com/rgehrsitz/paycalc/internal/rules"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func dzRuleSet() domain.RuleSet {
	return domain.RuleSet{
		Version:       "dz-2025.1",
		Jurisdiction:  "DZ",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Currency:      "DZD",
		Contribution: domain.ContributionRules{
			EmployeeRate: dec("0.09"),
			EmployerRate: dec("0.26"),
		},
		MinimumWage: decPtr("20000"),
		IncomeTax: domain.IncomeTaxRules{
			Brackets: []domain.TaxBracket{
				{UpperBound: decPtr("10000"), Rate: dec("0")},
				{UpperBound: decPtr("30000"), Rate: dec("0.07")},
				{Rate: dec("0.17")},
			},
			DeductContribution: true,
		},
	}
}

type testEnv struct {
	handler  http.Handler
	store    *sqlite.Store
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	catalog, err := rules.NewCatalog(dzRuleSet())
	require.NoError(t, err)

	env := &testEnv{registry: prometheus.NewRegistry()}
	cfg := Config{
		Engine:   calculation.NewDefaultEngine(),
		Catalog:  config.NewCatalogHolder(catalog),
		Metrics:  metrics.New(env.registry),
		Gatherer: env.registry,
	}
	if withStore {
		env.store, err = sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { env.store.Close() })
		cfg.Store = env.store
	}
	env.handler = New(cfg).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","rule_sets":1}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestListRuleSets(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/rulesets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var versions []rules.Version
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, "dz-2025.1", versions[0].Version)
	assert.Equal(t, 3, versions[0].Brackets)
}

func TestCalculatePayslip(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/payslips/calculate", CalculateRequest{
		CompanyID:    "acme",
		Jurisdiction: "DZ",
		At:           "2025-03-31",
		Input: &domain.PayrollInput{
			EmployeeID:                    "E-1",
			BaseSalary:                    dec("80000"),
			StatutoryContributionEligible: true,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CalculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dz-2025.1", resp.Payslip.RuleSetVersion)
	assert.True(t, resp.Payslip.GrossPay.Equal(dec("80000")))
	assert.True(t, resp.Payslip.NetPay.Equal(dec("64124")), "Got %s", resp.Payslip.NetPay)
}

func TestCalculatePayslip_InlineRuleSet(t *testing.T) {
	env := newTestEnv(t, false)
	rs := dzRuleSet()
	rs.Version = "inline-1"

	rec := env.do(t, http.MethodPost, "/api/payslips/calculate", CalculateRequest{
		At:      "2023-01-01",
		RuleSet: &rs,
		Input:   &domain.PayrollInput{EmployeeID: "E-1", BaseSalary: dec("30000")},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CalculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inline-1", resp.Payslip.RuleSetVersion, "An inline rule set skips catalog resolution")
}

func TestGrossUpPayslip(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/payslips/grossup", GrossUpRequest{
		CalculateRequest: CalculateRequest{
			Jurisdiction: "DZ",
			At:           "2025-03-31",
			Input: &domain.PayrollInput{
				EmployeeID:                    "E-1",
				BaseSalary:                    dec("50000"),
				StatutoryContributionEligible: true,
			},
		},
		TargetNet: dec("64124"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp grossup.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Converged)
	assert.True(t, resp.BaseSalary.Equal(dec("80000")), "Got %s", resp.BaseSalary)
	assert.True(t, resp.Payslip.NetPay.Equal(dec("64124")))
}

func TestGrossUpPayslip_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	input := func() *domain.PayrollInput {
		return &domain.PayrollInput{EmployeeID: "E-1", BaseSalary: dec("1000"), StatutoryContributionEligible: true}
	}

	rec := env.do(t, http.MethodPost, "/api/payslips/grossup", GrossUpRequest{
		CalculateRequest: CalculateRequest{At: "2025-03-31", Input: input()},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, rec).Code)

	unreachable := input()
	unreachable.DiscretionaryDeductions = []domain.Deduction{{Key: "all", Label: "All", PercentOfGross: decPtr("100")}}
	rec = env.do(t, http.MethodPost, "/api/payslips/grossup", GrossUpRequest{
		CalculateRequest: CalculateRequest{At: "2025-03-31", Input: unreachable},
		TargetNet:        dec("500"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeTargetUnreachable, decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/payslips/grossup", GrossUpRequest{
		CalculateRequest: CalculateRequest{At: "2020-01-01", Input: input()},
		TargetNet:        dec("500"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeRuleSetNotFound, decodeError(t, rec).Code)
}

func TestCalculatePayslip_Errors(t *testing.T) {
	broken := dzRuleSet()
	broken.IncomeTax.Brackets = broken.IncomeTax.Brackets[:2]

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed JSON",
			body:   `{"input":`,
			status: http.StatusBadRequest,
			code:   CodeInvalidRequest,
		},
		{
			name:   "missing input",
			body:   CalculateRequest{At: "2025-03-31"},
			status: http.StatusBadRequest,
			code:   CodeInvalidRequest,
		},
		{
			name:   "bad date",
			body:   CalculateRequest{At: "31/03/2025", Input: &domain.PayrollInput{BaseSalary: dec("100")}},
			status: http.StatusBadRequest,
			code:   CodeInvalidRequest,
		},
		{
			name:   "negative salary",
			body:   CalculateRequest{At: "2025-03-31", Input: &domain.PayrollInput{BaseSalary: dec("-1")}},
			status: http.StatusUnprocessableEntity,
			code:   CodeInvalidInput,
		},
		{
			name:   "invalid inline rule set",
			body:   CalculateRequest{RuleSet: &broken, Input: &domain.PayrollInput{BaseSalary: dec("100")}},
			status: http.StatusUnprocessableEntity,
			code:   CodeInvalidRuleSet,
		},
		{
			name:   "no rule set for date",
			body:   CalculateRequest{At: "2020-01-01", Input: &domain.PayrollInput{BaseSalary: dec("100")}},
			status: http.StatusNotFound,
			code:   CodeRuleSetNotFound,
		},
	}

	env := newTestEnv(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/payslips/calculate", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func runBody() string {
	return `{
		"run_name": "March 2025",
		"company_id": "acme",
		"jurisdiction": "DZ",
		"period_start": "2025-03-01T00:00:00Z",
		"period_end": "2025-03-31T00:00:00Z",
		"employees": [
			{"employee_id": "E-1", "base_salary": "80000", "statutory_contribution_eligible": true},
			{"employee_id": "E-2", "base_salary": "10000"}
		]
	}`
}

func TestRuns_CreateAndFetch(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/runs", runBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.RunSummary)
	assert.True(t, created.Persisted)
	assert.Equal(t, batch.StatusPendingApproval, created.Status)
	assert.True(t, created.Totals.Net.Equal(dec("83424")), "Got %s", created.Totals.Net)

	rec = env.do(t, http.MethodGet, "/api/runs?company_id=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []sqlite.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, created.ID, runs[0].ID)

	rec = env.do(t, http.MethodGet, "/api/runs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run batch.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Len(t, run.Payslips, 2)

	rec = env.do(t, http.MethodGet, "/api/runs/"+created.ID+"/payslips", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payslips []batch.EmployeePayslip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payslips))
	require.Len(t, payslips, 2)
	assert.Equal(t, "E-1", payslips[0].EmployeeID)
}

func TestRuns_DryRunNotPersisted(t *testing.T) {
	env := newTestEnv(t, true)

	body := strings.Replace(runBody(), `"jurisdiction": "DZ",`, `"jurisdiction": "DZ", "is_dry_run": true,`, 1)
	rec := env.do(t, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Persisted)

	rec = env.do(t, http.MethodGet, "/api/runs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)
}

func TestRuns_FailedRun(t *testing.T) {
	env := newTestEnv(t, true)

	body := strings.NewReplacer("2025-03-01", "2024-03-01", "2025-03-31", "2024-03-31").Replace(runBody())
	rec := env.do(t, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, batch.StatusFailed, created.Status)
	assert.False(t, created.Persisted)
	assert.Len(t, created.Failures, 2)
}

func TestRuns_InvalidEmployeeIsPartial(t *testing.T) {
	env := newTestEnv(t, true)

	body := strings.Replace(runBody(), `{"employee_id": "E-2", "base_salary": "10000"}`,
		`{"employee_id": "E-2", "base_salary": "-5"}, {"employee_id": "E-3", "base_salary": "900.001"}`, 1)
	rec := env.do(t, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, batch.StatusPartial, created.Status)
	assert.True(t, created.Persisted)
	require.Len(t, created.Payslips, 1)
	assert.Equal(t, "E-1", created.Payslips[0].EmployeeID)

	require.Len(t, created.Failures, 2)
	assert.Equal(t, "E-2", created.Failures[0].EmployeeID)
	assert.Equal(t, batch.FailureInvalidInput, created.Failures[0].Kind)
	assert.Contains(t, created.Failures[0].Message, "base_salary cannot be negative")
	assert.Equal(t, "E-3", created.Failures[1].EmployeeID)
	assert.Contains(t, created.Failures[1].Message, "2 decimal places")
}

func TestRuns_InvalidBatch(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodPost, "/api/runs", `{"run_name": "x", "employees": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeInvalidInput, decodeError(t, rec).Code)
}

func TestRuns_NoStore(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/runs", runBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Persisted)

	rec = env.do(t, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeStoreUnavailable, decodeError(t, rec).Code)
}

func createRun(t *testing.T, env *testEnv, body string) *RunResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Persisted)
	return &created
}

func TestRuns_Approve(t *testing.T) {
	env := newTestEnv(t, true)
	created := createRun(t, env, runBody())

	req := httptest.NewRequest(http.MethodPost, "/api/runs/"+created.ID+"/approve", nil)
	req.Header.Set("X-User-Id", "finance-lead")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run batch.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, batch.StatusApproved, run.Status)
	assert.Equal(t, "finance-lead", run.ReviewedBy)
	assert.NotNil(t, run.ReviewedAt)
	assert.Len(t, run.Payslips, 2)

	rec = env.do(t, http.MethodPost, "/api/runs/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeStatusConflict, decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/runs/"+created.ID+"/reject", ReviewRequest{Reason: "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code, "An approved run cannot be rejected")
}

func TestRuns_Reject(t *testing.T) {
	env := newTestEnv(t, true)
	created := createRun(t, env, runBody())
	path := "/api/runs/" + created.ID + "/reject"

	rec := env.do(t, http.MethodPost, path, ReviewRequest{Actor: "auditor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "Reject without a body has no reason")

	rec = env.do(t, http.MethodPost, path, ReviewRequest{Actor: "auditor", Reason: "bonus figures unconfirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run batch.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, batch.StatusRejected, run.Status)
	assert.Equal(t, "auditor", run.ReviewedBy)
	assert.Equal(t, "bonus figures unconfirmed", run.RejectionReason)

	rec = env.do(t, http.MethodPost, "/api/runs/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRuns_ReviewErrors(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/runs/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)

	body := strings.Replace(runBody(), `"base_salary": "10000"`, `"base_salary": "-1"`, 1)
	partial := createRun(t, env, body)
	require.Equal(t, batch.StatusPartial, partial.Status)
	rec = env.do(t, http.MethodPost, "/api/runs/"+partial.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "Only runs pending approval are reviewed")

	rec = env.do(t, http.MethodPost, "/api/runs/"+partial.ID+"/approve", `{"actor": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noStore := newTestEnv(t, false)
	rec = noStore.do(t, http.MethodPost, "/api/runs/any/approve", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/runs", runBody())

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `paycalc_runs_total{status="pending_approval"} 1`)
	assert.Contains(t, body, `paycalc_calculations_total{outcome="success"} 2`)
	assert.Contains(t, body, `paycalc_http_requests_total{code="201"`)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)

	got, err := parseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2025-03-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("2025-03-31T10:00:00Z", now)
	assert.NoError(t, err)

	_, err = parseDate("March", now)
	assert.Error(t, err)
}
