package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) errOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// inRange reports whether v is a finite number within [lo, hi].
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// ValidateSector checks a Sector for constraint violations.
func ValidateSector(s *Sector) error {
	var ve ValidationError

	if strings.TrimSpace(s.Name) == "" {
		ve.add("name", "is required")
	}
	if strings.TrimSpace(s.Symbol) == "" {
		ve.add("symbol", "is required")
	} else if len(s.Symbol) > 12 {
		ve.add("symbol", "must be 12 characters or fewer")
	}
	if s.Balance < 0 || math.IsNaN(s.Balance) {
		ve.add("balance", "must be non-negative, got %v", s.Balance)
	}
	if !inRange(s.BaseRisk, 0, 100) {
		ve.add("base_risk", "must be between 0 and 100, got %v", s.BaseRisk)
	}
	if !inRange(s.RiskAppetite, 0, 100) {
		ve.add("risk_appetite", "must be between 0 and 100, got %v", s.RiskAppetite)
	}
	if s.MaxTradeAmount < 0 {
		ve.add("max_trade_amount", "must be non-negative, got %v", s.MaxTradeAmount)
	}

	return ve.errOrNil()
}

// ValidateAgent checks an Agent for constraint violations.
func ValidateAgent(a *Agent) error {
	var ve ValidationError

	if strings.TrimSpace(a.Name) == "" {
		ve.add("name", "is required")
	}
	if strings.TrimSpace(a.SectorID) == "" {
		ve.add("sector_id", "is required")
	}
	if !a.Role.IsValid() {
		ve.add("role", "invalid value %q", a.Role)
	}
	if !a.Status.IsValid() {
		ve.add("status", "invalid value %q", a.Status)
	}
	if !inRange(a.Confidence, 0, 100) {
		ve.add("confidence", "must be between 0 and 100, got %v", a.Confidence)
	}
	if a.Personality.RiskTolerance != "" && !a.Personality.RiskTolerance.IsValid() {
		ve.add("personality.risk_tolerance", "invalid value %q", a.Personality.RiskTolerance)
	}

	return ve.errOrNil()
}

// ValidateChecklistItem checks a manually submitted item against its sector.
func ValidateChecklistItem(it *ChecklistItem, sector *Sector) error {
	var ve ValidationError

	if strings.TrimSpace(it.AgentID) == "" {
		ve.add("agent_id", "is required")
	}
	if !it.Action.IsValid() {
		ve.add("action", "invalid value %q", it.Action)
	}
	if it.Symbol == "" {
		ve.add("symbol", "is required")
	} else if sector != nil && !sector.AllowsSymbol(it.Symbol) {
		ve.add("symbol", "%q is not traded in sector %s", it.Symbol, sector.ID)
	}
	if it.Amount < 0 || math.IsNaN(it.Amount) || math.IsInf(it.Amount, 0) {
		ve.add("amount", "must be a non-negative number, got %v", it.Amount)
	}
	if !inRange(it.AllocationPercent, 0, 100) {
		ve.add("allocation_percent", "must be between 0 and 100, got %v", it.AllocationPercent)
	}
	if !inRange(it.Confidence, 0, 100) {
		ve.add("confidence", "must be between 0 and 100, got %v", it.Confidence)
	}

	return ve.errOrNil()
}
