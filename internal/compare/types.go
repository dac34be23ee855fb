package compare

import (
	"fmt"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
)

// ComparisonResult holds the key figures of one payslip calculated under one
// rule set version.
type ComparisonResult struct {
	RuleSetVersion string                `json:"rule_set_version"`
	EffectiveFrom  string                `json:"effective_from"`
	Payslip        *domain.PayslipResult `json:"payslip"`

	GrossPay        decimal.Decimal `json:"gross_pay"`
	NetPay          decimal.Decimal `json:"net_pay"`
	IncomeTax       decimal.Decimal `json:"income_tax"`
	Contribution    decimal.Decimal `json:"contribution"`
	TotalStatutory  decimal.Decimal `json:"total_statutory"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	EmployerCost    decimal.Decimal `json:"employer_cost"`

	// Differences to the base version; zero on the base itself.
	NetDiffFromBase          decimal.Decimal `json:"net_diff_from_base"`
	NetPctFromBase           decimal.Decimal `json:"net_pct_from_base"`
	TaxDiffFromBase          decimal.Decimal `json:"tax_diff_from_base"`
	EmployerCostDiffFromBase decimal.Decimal `json:"employer_cost_diff_from_base"`
}

// ComparisonSet is one employee's payslip compared across rule set versions.
type ComparisonSet struct {
	EmployeeID         string             `json:"employee_id"`
	EmployeeName       string             `json:"employee_name,omitempty"`
	Currency           string             `json:"currency,omitempty"`
	BaseVersion        string             `json:"base_version"`
	BaseResult         *ComparisonResult  `json:"base_result"`
	AlternativeResults []ComparisonResult `json:"alternative_results"`
	Recommendations    []string           `json:"recommendations"`
}

// MetricsCalculator extracts comparison figures from payslips.
type MetricsCalculator struct {
	Places int32
}

// NewMetricsCalculator creates a calculator rounding percentages to places.
func NewMetricsCalculator(places int32) *MetricsCalculator {
	return &MetricsCalculator{Places: places}
}

// CalculateMetrics summarizes a payslip calculated under rs.
func (mc *MetricsCalculator) CalculateMetrics(rs *domain.RuleSet, p *domain.PayslipResult) ComparisonResult {
	return ComparisonResult{
		RuleSetVersion:  rs.Version,
		EffectiveFrom:   rs.EffectiveFrom.Format("2006-01-02"),
		Payslip:         p,
		GrossPay:        p.GrossPay,
		NetPay:          p.NetPay,
		IncomeTax:       p.StatutoryAmount(rs.IncomeTax.LineKey()),
		Contribution:    p.StatutoryAmount(rs.Contribution.LineKey()),
		TotalStatutory:  p.TotalStatutory,
		TotalDeductions: p.TotalDeductions,
		EmployerCost:    p.GrossPay.Add(p.TotalEmployerCharges()),
	}
}

// CalculateComparison fills the differences of alt against base.
func (mc *MetricsCalculator) CalculateComparison(alt, base ComparisonResult) ComparisonResult {
	alt.NetDiffFromBase = alt.NetPay.Sub(base.NetPay)
	if !base.NetPay.IsZero() {
		alt.NetPctFromBase = alt.NetDiffFromBase.
			Mul(decimal.NewFromInt(100)).
			DivRound(base.NetPay.Abs(), mc.Places)
	}
	alt.TaxDiffFromBase = alt.IncomeTax.Sub(base.IncomeTax)
	alt.EmployerCostDiffFromBase = alt.EmployerCost.Sub(base.EmployerCost)
	return alt
}

// GenerateRecommendations names the versions that pay the employee most and
// cost the employer least, when they differ from the base.
func GenerateRecommendations(set *ComparisonSet) []string {
	recommendations := []string{}
	if set.BaseResult == nil || len(set.AlternativeResults) == 0 {
		return recommendations
	}

	bestNet := set.BaseResult
	lowestCost := set.BaseResult
	for i := range set.AlternativeResults {
		alt := &set.AlternativeResults[i]
		if alt.NetPay.GreaterThan(bestNet.NetPay) {
			bestNet = alt
		}
		if alt.EmployerCost.LessThan(lowestCost.EmployerCost) {
			lowestCost = alt
		}
	}

	if bestNet != set.BaseResult {
		recommendations = append(recommendations,
			fmt.Sprintf("Highest net pay: %s pays %s more than %s",
				bestNet.RuleSetVersion, bestNet.NetDiffFromBase.StringFixed(2), set.BaseVersion))
	}
	if lowestCost != set.BaseResult {
		recommendations = append(recommendations,
			fmt.Sprintf("Lowest employer cost: %s costs %s less than %s",
				lowestCost.RuleSetVersion, lowestCost.EmployerCostDiffFromBase.Neg().StringFixed(2), set.BaseVersion))
	}
	return recommendations
}
