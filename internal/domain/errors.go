package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrInvalidInput marks a malformed or negative payroll input field.
	ErrInvalidInput = errors.New("invalid payroll input")

	// ErrInvalidRuleSet marks a rule set that fails structural validation.
	ErrInvalidRuleSet = errors.New("invalid rule set")

	// ErrRuleSetNotFound is returned when no rule set covers a company and date.
	ErrRuleSetNotFound = errors.New("rule set not found")
)

// InvalidInputError names the offending input field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid payroll input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid payroll input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidRuleSetError carries the version of the rejected rule set.
type InvalidRuleSetError struct {
	Version string
	Reason  string
}

func (e *InvalidRuleSetError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("invalid rule set: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rule set %q: %s", e.Version, e.Reason)
}

func (e *InvalidRuleSetError) Unwrap() error {
	return ErrInvalidRuleSet
}

// RuleSetNotFoundError describes a failed catalog lookup.
type RuleSetNotFoundError struct {
	CompanyID    string
	Jurisdiction string
	At           time.Time
}

func (e *RuleSetNotFoundError) Error() string {
	scope := "global"
	if e.CompanyID != "" {
		scope = "company " + e.CompanyID
	}
	if e.Jurisdiction != "" {
		scope += ", jurisdiction " + e.Jurisdiction
	}
	return fmt.Sprintf("no rule set effective on %s for %s", e.At.Format("2006-01-02"), scope)
}

func (e *RuleSetNotFoundError) Unwrap() error {
	return ErrRuleSetNotFound
}

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidRuleSet reports whether err is a rule set validation failure.
func IsInvalidRuleSet(err error) bool {
	return errors.Is(err, ErrInvalidRuleSet)
}

// IsNotFound reports whether err is a missing rule set.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleSetNotFound)
}

func invalidRuleSet(version, format string, args ...any) error {
	return &InvalidRuleSetError{Version: version, Reason: fmt.Sprintf(format, args...)}
}

func invalidInput(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
