// Package rules holds the versioned rule sets of every jurisdiction and
// resolves the one that governs a company on a given date.
package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/rgehrsitz/paycalc/internal/domain"
)

// Catalog is an immutable collection of validated rule sets.
type Catalog struct {
	sets []*domain.RuleSet
}

// NewCatalog validates every set and rejects overlapping effective windows
// within the same scope and jurisdiction.
func NewCatalog(sets ...domain.RuleSet) (*Catalog, error) {
	c := &Catalog{sets: make([]*domain.RuleSet, 0, len(sets))}
	versions := make(map[string]bool, len(sets))

	for i := range sets {
		rs := sets[i]
		if rs.IncomeTax.PeriodsPerYear == 0 {
			rs.IncomeTax.PeriodsPerYear = 1
		}
		if err := rs.Validate(); err != nil {
			return nil, err
		}
		if versions[rs.Version] {
			return nil, &domain.InvalidRuleSetError{Version: rs.Version, Reason: "duplicate version"}
		}
		versions[rs.Version] = true

		for _, other := range c.sets {
			if sameScope(&rs, other) && rs.Overlaps(other) {
				return nil, &domain.InvalidRuleSetError{
					Version: rs.Version,
					Reason:  fmt.Sprintf("effective window overlaps %q", other.Version),
				}
			}
		}
		c.sets = append(c.sets, &rs)
	}

	sort.SliceStable(c.sets, func(i, j int) bool {
		a, b := c.sets[i], c.sets[j]
		if a.Company() != b.Company() {
			return a.Company() < b.Company()
		}
		if a.Jurisdiction != b.Jurisdiction {
			return a.Jurisdiction < b.Jurisdiction
		}
		return a.EffectiveFrom.Before(b.EffectiveFrom)
	})
	return c, nil
}

func sameScope(a, b *domain.RuleSet) bool {
	return a.Company() == b.Company() && a.Jurisdiction == b.Jurisdiction
}

// Resolve returns the rule set effective for a company on a date. A set
// scoped to the company wins over the global default. An empty jurisdiction
// matches any jurisdiction but must resolve to exactly one set.
func (c *Catalog) Resolve(companyID, jurisdiction string, at time.Time) (*domain.RuleSet, error) {
	if companyID != "" {
		rs, err := c.resolveScope(companyID, jurisdiction, at)
		if err != nil || rs != nil {
			return rs, err
		}
	}
	rs, err := c.resolveScope("", jurisdiction, at)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, &domain.RuleSetNotFoundError{CompanyID: companyID, Jurisdiction: jurisdiction, At: at}
	}
	return rs, nil
}

func (c *Catalog) resolveScope(companyID, jurisdiction string, at time.Time) (*domain.RuleSet, error) {
	var matches []*domain.RuleSet
	for _, rs := range c.sets {
		if rs.Company() != companyID || !rs.EffectiveOn(at) {
			continue
		}
		if jurisdiction != "" && rs.Jurisdiction != jurisdiction {
			continue
		}
		matches = append(matches, rs)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d rule sets match %s on %s, specify a jurisdiction: %w",
			len(matches), scopeName(companyID), at.Format("2006-01-02"), domain.ErrRuleSetNotFound)
	}
}

func scopeName(companyID string) string {
	if companyID == "" {
		return "global scope"
	}
	return "company " + companyID
}

// Get returns the rule set with a version.
func (c *Catalog) Get(version string) (*domain.RuleSet, bool) {
	for _, rs := range c.sets {
		if rs.Version == version {
			return rs, true
		}
	}
	return nil, false
}

// Len returns the number of rule sets.
func (c *Catalog) Len() int {
	return len(c.sets)
}

// Version summarizes one rule set for listings.
type Version struct {
	Version       string     `json:"version"`
	Jurisdiction  string     `json:"jurisdiction"`
	CompanyID     string     `json:"company_id,omitempty"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Brackets      int        `json:"brackets"`
	Levies        int        `json:"levies"`
}

// Versions lists the rule sets ordered by scope, jurisdiction and date.
func (c *Catalog) Versions() []Version {
	out := make([]Version, 0, len(c.sets))
	for _, rs := range c.sets {
		out = append(out, Version{
			Version:       rs.Version,
			Jurisdiction:  rs.Jurisdiction,
			CompanyID:     rs.Company(),
			EffectiveFrom: rs.EffectiveFrom,
			EffectiveTo:   rs.EffectiveTo,
			Currency:      rs.Currency,
			Brackets:      len(rs.IncomeTax.Brackets),
			Levies:        len(rs.Levies),
		})
	}
	return out
}
