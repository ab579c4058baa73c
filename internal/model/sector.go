package model

import (
	"strings"
	"time"
)

// Sector is a tradeable market segment with its own capital and risk profile.
type Sector struct {
	ID               string     `json:"id" yaml:"id"`
	Name             string     `json:"name" yaml:"name"`
	Symbol           string     `json:"symbol" yaml:"symbol"`
	Description      string     `json:"description,omitempty" yaml:"description"`
	AllowedSymbols   []string   `json:"allowed_symbols,omitempty" yaml:"allowed_symbols"`
	Balance          float64    `json:"balance" yaml:"balance"`
	BaseRisk         float64    `json:"base_risk" yaml:"base_risk"`
	RiskAppetite     float64    `json:"risk_appetite,omitempty" yaml:"risk_appetite"`
	MaxTradeAmount   float64    `json:"max_trade_amount,omitempty" yaml:"max_trade_amount"`
	CurrentPrice     float64    `json:"current_price" yaml:"current_price"`
	Change           float64    `json:"change" yaml:"change"`
	ChangePercent    float64    `json:"change_percent" yaml:"change_percent"`
	Volume           int64      `json:"volume" yaml:"volume"`
	LastDiscussionAt *time.Time `json:"last_discussion_at,omitempty" yaml:"-"`
	CreatedAt        time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time  `json:"updated_at" yaml:"-"`
}

// Symbols returns the allowed trading symbols, defaulting to the sector's own symbol.
func (s *Sector) Symbols() []string {
	if len(s.AllowedSymbols) > 0 {
		return s.AllowedSymbols
	}
	if s.Symbol == "" {
		return nil
	}
	return []string{s.Symbol}
}

// AllowsSymbol reports whether sym may be traded in this sector.
func (s *Sector) AllowsSymbol(sym string) bool {
	for _, allowed := range s.Symbols() {
		if strings.EqualFold(allowed, sym) {
			return true
		}
	}
	return false
}

// AgentRole describes what an agent does in its sector.
type AgentRole string

const (
	RoleTrader    AgentRole = "trader"
	RoleAnalyst   AgentRole = "analyst"
	RoleManager   AgentRole = "manager"
	RoleAdvisor   AgentRole = "advisor"
	RoleArbitrage AgentRole = "arbitrage"
	RoleGeneral   AgentRole = "general"
)

// String returns the string representation of the role.
func (r AgentRole) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r AgentRole) IsValid() bool {
	switch r {
	case RoleTrader, RoleAnalyst, RoleManager, RoleAdvisor, RoleArbitrage, RoleGeneral:
		return true
	}
	return false
}

// AgentStatus is an agent's current activity state.
type AgentStatus string

const (
	AgentActive     AgentStatus = "active"
	AgentIdle       AgentStatus = "idle"
	AgentProcessing AgentStatus = "processing"
	AgentOffline    AgentStatus = "offline"
)

// String returns the string representation of the status.
func (s AgentStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentActive, AgentIdle, AgentProcessing, AgentOffline:
		return true
	}
	return false
}

// RiskTolerance is an agent personality trait.
type RiskTolerance string

const (
	RiskLow        RiskTolerance = "low"
	RiskMedium     RiskTolerance = "medium"
	RiskHigh       RiskTolerance = "high"
	RiskAggressive RiskTolerance = "aggressive"
)

// IsValid checks whether the tolerance is a known value.
func (r RiskTolerance) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskAggressive:
		return true
	}
	return false
}

// Personality shapes how an agent proposes trades.
type Personality struct {
	RiskTolerance      RiskTolerance `json:"risk_tolerance" yaml:"risk_tolerance"`
	DecisionStyle      string        `json:"decision_style,omitempty" yaml:"decision_style"`
	CommunicationStyle string        `json:"communication_style,omitempty" yaml:"communication_style"`
}

// Agent is an autonomous participant in a sector's discussions.
type Agent struct {
	ID          string      `json:"id" yaml:"id"`
	SectorID    string      `json:"sector_id" yaml:"sector_id"`
	Name        string      `json:"name" yaml:"name"`
	Role        AgentRole   `json:"role" yaml:"role"`
	Status      AgentStatus `json:"status" yaml:"status"`
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	Performance float64     `json:"performance" yaml:"performance"`
	Trades      int         `json:"trades" yaml:"trades"`
	Personality Personality `json:"personality" yaml:"personality"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

// IsManager reports whether the agent evaluates rather than proposes.
func (a *Agent) IsManager() bool {
	return a.Role == RoleManager
}
