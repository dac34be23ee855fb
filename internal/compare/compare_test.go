package compare

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rgehrsitz/paycalc/internal/calculation"
	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/rules"
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

func dateOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ruleSet(version string, topRate, employerRate string) domain.RuleSet {
	return domain.RuleSet{
		Version:       version,
		Jurisdiction:  "DZ",
		EffectiveFrom: dateOf(2025, 1, 1),
		Currency:      "DZD",
		Contribution: domain.ContributionRules{
			EmployeeRate: dec("0.09"),
			EmployerRate: dec(employerRate),
		},
		MinimumWage: decPtr("20000"),
		IncomeTax: domain.IncomeTaxRules{
			Brackets: []domain.TaxBracket{
				{UpperBound: decPtr("10000"), Rate: dec("0")},
				{UpperBound: decPtr("30000"), Rate: dec("0.07")},
				{Rate: dec(topRate)},
			},
			DeductContribution: true,
		},
	}
}

func testCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	base := ruleSet("dz-2025.1", "0.17", "0.26")
	to := dateOf(2025, 6, 30)
	base.EffectiveTo = &to

	raised := ruleSet("dz-2025.2", "0.20", "0.26")
	raised.EffectiveFrom = dateOf(2025, 7, 1)

	acme := "acme"
	company := ruleSet("acme-dz-2025.1", "0.17", "0.25")
	company.CompanyID = &acme

	catalog, err := rules.NewCatalog(base, raised, company)
	require.NoError(t, err)
	return catalog
}

func testInput() *domain.PayrollInput {
	return &domain.PayrollInput{
		EmployeeID:                    "E-1",
		EmployeeName:                  "Amina Benali",
		BaseSalary:                    dec("80000"),
		StatutoryContributionEligible: true,
	}
}

func TestEngine_Compare(t *testing.T) {
	engine := NewEngine(calculation.NewDefaultEngine(), testCatalog(t))

	set, err := engine.Compare(context.Background(), testInput(), "dz-2025.1", []string{"dz-2025.2", "acme-dz-2025.1"})
	require.NoError(t, err)

	assert.Equal(t, "E-1", set.EmployeeID)
	assert.Equal(t, "DZD", set.Currency)
	require.NotNil(t, set.BaseResult)
	assert.True(t, set.BaseResult.NetPay.Equal(dec("64124")))
	assert.True(t, set.BaseResult.IncomeTax.Equal(dec("8676")))
	assert.True(t, set.BaseResult.Contribution.Equal(dec("7200")))
	assert.True(t, set.BaseResult.EmployerCost.Equal(dec("100800")))
	assert.True(t, set.BaseResult.NetDiffFromBase.IsZero())

	require.Len(t, set.AlternativeResults, 2)

	raised := set.AlternativeResults[0]
	assert.Equal(t, "dz-2025.2", raised.RuleSetVersion)
	assert.Equal(t, "2025-07-01", raised.EffectiveFrom)
	assert.True(t, raised.IncomeTax.Equal(dec("9960")), "tax %s", raised.IncomeTax)
	assert.True(t, raised.NetDiffFromBase.Equal(dec("-1284")))
	assert.True(t, raised.NetPctFromBase.Equal(dec("-2")), "pct %s", raised.NetPctFromBase)
	assert.True(t, raised.TaxDiffFromBase.Equal(dec("1284")))
	assert.True(t, raised.EmployerCostDiffFromBase.IsZero())

	company := set.AlternativeResults[1]
	assert.True(t, company.NetDiffFromBase.IsZero())
	assert.True(t, company.EmployerCostDiffFromBase.Equal(dec("-800")))

	assert.Equal(t, []string{"Lowest employer cost: acme-dz-2025.1 costs 800.00 less than dz-2025.1"}, set.Recommendations)
}

func TestEngine_Compare_SkipsBaseInAlternatives(t *testing.T) {
	engine := NewEngine(calculation.NewDefaultEngine(), testCatalog(t))

	set, err := engine.Compare(context.Background(), testInput(), "dz-2025.1", []string{"dz-2025.1"})
	require.NoError(t, err)
	assert.Empty(t, set.AlternativeResults)
	assert.Empty(t, set.Recommendations)
}

func TestEngine_Compare_RepeatedAlternatives(t *testing.T) {
	engine := NewEngine(calculation.NewDefaultEngine(), testCatalog(t))

	set, err := engine.Compare(context.Background(), testInput(), "dz-2025.1",
		[]string{"dz-2025.2", "acme-dz-2025.1", "dz-2025.2", "dz-2025.1", "acme-dz-2025.1"})
	require.NoError(t, err)
	require.Len(t, set.AlternativeResults, 2, "Each version is compared once")
	assert.Equal(t, "dz-2025.2", set.AlternativeResults[0].RuleSetVersion)
	assert.Equal(t, "acme-dz-2025.1", set.AlternativeResults[1].RuleSetVersion)
}

func TestEngine_Compare_Errors(t *testing.T) {
	engine := NewEngine(calculation.NewDefaultEngine(), testCatalog(t))

	_, err := engine.Compare(context.Background(), testInput(), "dz-1999.1", nil)
	assert.True(t, errors.Is(err, domain.ErrRuleSetNotFound))

	_, err = engine.Compare(context.Background(), testInput(), "dz-2025.1", []string{"missing"})
	assert.True(t, errors.Is(err, domain.ErrRuleSetNotFound))

	_, err = engine.Compare(context.Background(), nil, "dz-2025.1", nil)
	assert.Error(t, err)

	bad := testInput()
	bad.BaseSalary = dec("-1")
	_, err = engine.Compare(context.Background(), bad, "dz-2025.1", nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Compare(ctx, testInput(), "dz-2025.1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRecommendations_HighestNet(t *testing.T) {
	base := ComparisonResult{RuleSetVersion: "a", NetPay: dec("100"), EmployerCost: dec("150")}
	set := &ComparisonSet{
		BaseVersion: "a",
		BaseResult:  &base,
		AlternativeResults: []ComparisonResult{
			{RuleSetVersion: "b", NetPay: dec("120"), NetDiffFromBase: dec("20"), EmployerCost: dec("150")},
			{RuleSetVersion: "c", NetPay: dec("110"), NetDiffFromBase: dec("10"), EmployerCost: dec("160")},
		},
	}
	assert.Equal(t, []string{"Highest net pay: b pays 20.00 more than a"}, GenerateRecommendations(set))
	assert.Empty(t, GenerateRecommendations(&ComparisonSet{}))
}

func compareSet(t *testing.T) *ComparisonSet {
	t.Helper()
	engine := NewEngine(calculation.NewDefaultEngine(), testCatalog(t))
	set, err := engine.Compare(context.Background(), testInput(), "dz-2025.1", []string{"dz-2025.2", "acme-dz-2025.1"})
	require.NoError(t, err)
	return set
}

func TestTableFormatter_Format(t *testing.T) {
	out := (&TableFormatter{}).Format(compareSet(t))

	assert.Contains(t, out, "RULE SET COMPARISON")
	assert.Contains(t, out, "Employee: Amina Benali (E-1)")
	assert.Contains(t, out, "dz-2025.1 (base)")
	assert.Contains(t, out, "64,124.00")
	assert.Contains(t, out, "COMPARISON TO BASE")
	assert.Contains(t, out, "-1,284.00 DZD (-2.00%)")
	assert.Contains(t, out, "+1,284.00 DZD")
	assert.Contains(t, out, "HIGHLIGHTS")
}

func TestTableFormatter_FormatCompact(t *testing.T) {
	out := (&TableFormatter{}).FormatCompact(compareSet(t))
	assert.Equal(t, "Base: dz-2025.1 | dz-2025.2: -1,284.00 | acme-dz-2025.1: =", out)
}

func TestTableFormatter_Truncate(t *testing.T) {
	tf := &TableFormatter{}
	assert.Equal(t, "short", tf.truncate("short", 10))
	assert.Equal(t, "a-very...", tf.truncate("a-very-long-name", 9))
}

func TestJSONFormatter_Format(t *testing.T) {
	set := compareSet(t)
	for _, pretty := range []bool{false, true} {
		out, err := (&JSONFormatter{Pretty: pretty}).Format(set)
		require.NoError(t, err)

		var decoded ComparisonSet
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "dz-2025.1", decoded.BaseVersion)
		assert.Len(t, decoded.AlternativeResults, 2)
		assert.True(t, decoded.AlternativeResults[0].NetDiffFromBase.Equal(dec("-1284")))
	}
}

func TestCSVFormatter_Format(t *testing.T) {
	out, err := (&CSVFormatter{}).Format(compareSet(t))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader([]byte(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "rule_set_version", records[0][0])
	assert.Equal(t, []string{"dz-2025.1", "base"}, records[1][:2])
	assert.Equal(t, "64124.00", records[1][4])
	assert.Equal(t, "alternative", records[2][1])
	assert.Equal(t, "-1284.00", records[2][9])
	assert.Equal(t, "-800.00", records[3][12])
}
