package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/domain"
	"github.com/rgehrsitz/paycalc/internal/rules"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MaxTaxAllowances is the largest allowance count accepted in a batch.
const MaxTaxAllowances = 20

// InputParser handles parsing of rule catalogs and payroll input files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// RuleCatalogFile is the YAML layout of a rule catalog.
type RuleCatalogFile struct {
	RuleSets []domain.RuleSet `yaml:"rule_sets" json:"rule_sets"`
}

// LoadRuleCatalog loads and validates a rule catalog from a YAML file
func (ip *InputParser) LoadRuleCatalog(filename string) (*rules.Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.ParseRuleCatalog(data)
}

// ParseRuleCatalog builds a catalog from YAML (or JSON) bytes
func (ip *InputParser) ParseRuleCatalog(data []byte) (*rules.Catalog, error) {
	var file RuleCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.RuleSets) == 0 {
		return nil, fmt.Errorf("rule catalog validation failed: no rule sets provided")
	}
	catalog, err := rules.NewCatalog(file.RuleSets...)
	if err != nil {
		return nil, fmt.Errorf("rule catalog validation failed: %w", err)
	}
	return catalog, nil
}

// LoadPayrollBatch loads and validates a payroll batch from a YAML file
func (ip *InputParser) LoadPayrollBatch(filename string) (*domain.PayrollBatch, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	var batch domain.PayrollBatch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ip.ValidatePayrollBatch(&batch); err != nil {
		return nil, fmt.Errorf("payroll batch validation failed: %w", err)
	}
	return &batch, nil
}

// LoadPayrollInput loads a single employee input from a YAML file
func (ip *InputParser) LoadPayrollInput(filename string) (*domain.PayrollInput, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	var in domain.PayrollInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ip.ValidatePayrollInput(&in); err != nil {
		return nil, fmt.Errorf("payroll input validation failed: %w", err)
	}
	return &in, nil
}

// ValidatePayrollBatch validates the run header and employee identities.
// Employee inputs are left to the runner, which fails them one by one; see
// ValidatePayrollInput.
func (ip *InputParser) ValidatePayrollBatch(batch *domain.PayrollBatch) error {
	if len(strings.TrimSpace(batch.RunName)) < 3 {
		return fmt.Errorf("run name must be at least 3 characters")
	}
	if batch.PeriodStart.IsZero() || batch.PeriodEnd.IsZero() {
		return fmt.Errorf("period start and end are required")
	}
	if batch.PeriodEnd.Before(batch.PeriodStart) {
		return fmt.Errorf("period end (%s) cannot be before period start (%s)",
			batch.PeriodEnd.Format("2006-01-02"), batch.PeriodStart.Format("2006-01-02"))
	}
	if batch.PaymentDate.IsZero() {
		batch.PaymentDate = batch.PeriodEnd
	}
	if len(batch.Employees) == 0 {
		return fmt.Errorf("no employees provided")
	}

	seen := make(map[string]bool, len(batch.Employees))
	for i := range batch.Employees {
		in := &batch.Employees[i]
		if in.EmployeeID == "" {
			return fmt.Errorf("employee %d: employee id is required", i)
		}
		if seen[in.EmployeeID] {
			return fmt.Errorf("employee %d: duplicate employee id %s", i, in.EmployeeID)
		}
		seen[in.EmployeeID] = true
	}
	return nil
}

// ValidatePayrollInput applies the input-format rules on top of the engine's
// own checks: money with at most two decimal places, a bounded allowance
// count and a two-letter jurisdiction code. It matches the batch.Runner
// Validate hook.
func (ip *InputParser) ValidatePayrollInput(in *domain.PayrollInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"base_salary", &in.BaseSalary},
		{"overtime_hours", in.OvertimeHours},
		{"overtime_rate", in.OvertimeRate},
		{"bonus", in.Bonus},
		{"commission", in.Commission},
		{"allowances", in.Allowances},
	}
	for _, a := range amounts {
		if a.value != nil && !hasCents(*a.value) {
			return &domain.InvalidInputError{Field: a.field, Reason: "must have at most 2 decimal places"}
		}
	}
	for i, d := range in.DiscretionaryDeductions {
		if d.Amount != nil && !hasCents(*d.Amount) {
			return &domain.InvalidInputError{
				Field:  fmt.Sprintf("discretionary_deductions[%d].amount", i),
				Reason: "must have at most 2 decimal places",
			}
		}
	}

	if in.TaxAllowanceCount > MaxTaxAllowances {
		return &domain.InvalidInputError{
			Field:  "tax_allowance_count",
			Reason: fmt.Sprintf("cannot exceed %d", MaxTaxAllowances),
		}
	}
	if in.JurisdictionCode != "" && len(in.JurisdictionCode) != 2 {
		return &domain.InvalidInputError{Field: "jurisdiction_code", Reason: "must be a two-letter code"}
	}
	return nil
}

func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}
