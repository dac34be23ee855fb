package rules

import (
	"testing"
	"time"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ruleSet(version, jurisdiction, company string, from time.Time, to *time.Time) domain.RuleSet {
	rs := domain.RuleSet{
		Version:       version,
		Jurisdiction:  jurisdiction,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Contribution: domain.ContributionRules{
			EmployeeRate: decimal.RequireFromString("0.09"),
			EmployerRate: decimal.RequireFromString("0.26"),
		},
		IncomeTax: domain.IncomeTaxRules{
			Brackets: []domain.TaxBracket{{Rate: decimal.RequireFromString("0.1")}},
		},
	}
	if company != "" {
		rs.CompanyID = &company
	}
	return rs
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNewCatalog(t *testing.T) {
	t.Run("valid catalog", func(t *testing.T) {
		c, err := NewCatalog(
			ruleSet("dz-2024", "DZ", "", date(2024, 1, 1), timePtr(date(2024, 12, 31))),
			ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil),
			ruleSet("acme-2025", "DZ", "acme", date(2025, 1, 1), nil),
		)
		require.NoError(t, err)
		assert.Equal(t, 3, c.Len())
	})

	t.Run("overlapping windows in same scope", func(t *testing.T) {
		_, err := NewCatalog(
			ruleSet("dz-2024", "DZ", "", date(2024, 1, 1), timePtr(date(2025, 1, 1))),
			ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil),
		)
		require.Error(t, err)
		assert.True(t, domain.IsInvalidRuleSet(err))
		assert.Contains(t, err.Error(), "overlaps")
	})

	t.Run("same window different jurisdictions", func(t *testing.T) {
		_, err := NewCatalog(
			ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil),
			ruleSet("us-2025", "US", "", date(2025, 1, 1), nil),
		)
		assert.NoError(t, err)
	})

	t.Run("duplicate version", func(t *testing.T) {
		_, err := NewCatalog(
			ruleSet("v1", "DZ", "", date(2024, 1, 1), timePtr(date(2024, 6, 30))),
			ruleSet("v1", "DZ", "", date(2024, 7, 1), nil),
		)
		assert.True(t, domain.IsInvalidRuleSet(err))
	})

	t.Run("invalid set", func(t *testing.T) {
		bad := ruleSet("bad", "DZ", "", date(2025, 1, 1), nil)
		bad.IncomeTax.Brackets = nil
		_, err := NewCatalog(bad)
		assert.True(t, domain.IsInvalidRuleSet(err))
	})

	t.Run("periods per year normalized", func(t *testing.T) {
		c, err := NewCatalog(ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil))
		require.NoError(t, err)
		rs, ok := c.Get("dz-2025")
		require.True(t, ok)
		assert.Equal(t, 1, rs.IncomeTax.PeriodsPerYear)
	})
}

func TestCatalog_Resolve(t *testing.T) {
	c, err := NewCatalog(
		ruleSet("dz-2024", "DZ", "", date(2024, 1, 1), timePtr(date(2024, 12, 31))),
		ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil),
		ruleSet("acme-2025", "DZ", "acme", date(2025, 3, 1), nil),
		ruleSet("us-2025", "US", "", date(2025, 1, 1), nil),
	)
	require.NoError(t, err)

	tests := []struct {
		name         string
		company      string
		jurisdiction string
		at           time.Time
		version      string
	}{
		{"global by date", "", "DZ", date(2024, 6, 15), "dz-2024"},
		{"inclusive end", "", "DZ", date(2024, 12, 31), "dz-2024"},
		{"inclusive start", "", "DZ", date(2025, 1, 1), "dz-2025"},
		{"company override", "acme", "DZ", date(2025, 3, 1), "acme-2025"},
		{"company falls back before its window", "acme", "DZ", date(2025, 2, 28), "dz-2025"},
		{"unknown company uses global", "other", "DZ", date(2025, 5, 1), "dz-2025"},
		{"other jurisdiction", "acme", "US", date(2025, 5, 1), "us-2025"},
		{"empty jurisdiction single company match", "acme", "", date(2025, 5, 1), "acme-2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := c.Resolve(tt.company, tt.jurisdiction, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.version, rs.Version)
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := c.Resolve("acme", "DZ", date(2023, 1, 1))
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))

		var nf *domain.RuleSetNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "acme", nf.CompanyID)
	})

	t.Run("ambiguous without jurisdiction", func(t *testing.T) {
		_, err := c.Resolve("", "", date(2025, 5, 1))
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
		assert.Contains(t, err.Error(), "specify a jurisdiction")
	})
}

func TestCatalog_Versions(t *testing.T) {
	c, err := NewCatalog(
		ruleSet("dz-2025", "DZ", "", date(2025, 1, 1), nil),
		ruleSet("acme-2025", "DZ", "acme", date(2025, 3, 1), nil),
		ruleSet("dz-2024", "DZ", "", date(2024, 1, 1), timePtr(date(2024, 12, 31))),
	)
	require.NoError(t, err)

	got := []string{}
	for _, v := range c.Versions() {
		got = append(got, v.Version)
	}
	assert.Equal(t, []string{"dz-2024", "dz-2025", "acme-2025"}, got, "Global first, then by date")
}
