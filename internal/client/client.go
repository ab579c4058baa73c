// Package client provides a transport-agnostic interface for the MAX service
// and an HTTP/JSON implementation that talks to the MAX REST API.
package client

import (
	"context"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/presence"
)

// MaxClient is the interface that all max CLI commands use to communicate
// with the server. It is implemented by HTTPClient.
type MaxClient interface {
	// Sectors
	ListSectors(ctx context.Context) ([]*model.Sector, error)
	GetSector(ctx context.Context, id string) (*model.Sector, error)
	CreateSector(ctx context.Context, req *SectorRequest) (*model.Sector, error)
	UpdateSector(ctx context.Context, id string, req *SectorRequest) (*model.Sector, error)
	StartDiscussion(ctx context.Context, sectorID string) (*StartResult, error)

	// Agents
	ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error)
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	CreateAgent(ctx context.Context, req *CreateAgentRequest) (*model.Agent, error)
	Roster(ctx context.Context, sectorID string) ([]RosterEntry, error)

	// Discussions
	ListDiscussions(ctx context.Context, req *ListDiscussionsRequest) (*ListDiscussionsResponse, error)
	GetDiscussion(ctx context.Context, id string) (*model.Discussion, error)
	RunRound(ctx context.Context, id string) (*model.Discussion, error)
	Evaluate(ctx context.Context, id string) (*PassReport, error)
	Advance(ctx context.Context, id string) (*model.Discussion, error)
	Run(ctx context.Context, id string) (*model.Discussion, error)
	CloseDiscussion(ctx context.Context, id string) (*model.Discussion, error)
	AddMessage(ctx context.Context, id, agentID, content string) (*model.Message, error)
	SubmitItem(ctx context.Context, id string, req *SubmitItemRequest) (*model.ChecklistItem, error)
	GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error)

	// Executions
	ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error)

	// Market
	Candles(ctx context.Context, sectorID string, req *CandlesRequest) ([]*model.Candle, error)

	// Stream calls fn for each server-sent event until ctx ends, the stream
	// closes, or fn returns an error.
	Stream(ctx context.Context, topics []string, lastEventID string, fn func(StreamEvent) error) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// SectorRequest holds sector fields for create and update. Nil pointer
// fields mean "don't change".
type SectorRequest struct {
	Name           *string  `json:"name,omitempty"`
	Symbol         *string  `json:"symbol,omitempty"`
	Description    *string  `json:"description,omitempty"`
	AllowedSymbols []string `json:"allowed_symbols,omitempty"`
	Balance        *float64 `json:"balance,omitempty"`
	BaseRisk       *float64 `json:"base_risk,omitempty"`
	RiskAppetite   *float64 `json:"risk_appetite,omitempty"`
	MaxTradeAmount *float64 `json:"max_trade_amount,omitempty"`
	CurrentPrice   *float64 `json:"current_price,omitempty"`
}

// StartResult is the admission decision for a new discussion.
type StartResult struct {
	Started      bool   `json:"started"`
	DiscussionID string `json:"discussion_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// CreateAgentRequest holds parameters for creating an agent.
type CreateAgentRequest struct {
	SectorID    string            `json:"sector_id"`
	Name        string            `json:"name"`
	Role        string            `json:"role,omitempty"`
	Status      string            `json:"status,omitempty"`
	Confidence  float64           `json:"confidence"`
	Personality model.Personality `json:"personality"`
}

// RosterEntry is an agent's live presence.
type RosterEntry struct {
	presence.Entry
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ListDiscussionsRequest holds parameters for listing discussions.
type ListDiscussionsRequest struct {
	SectorID string   `json:"sector_id,omitempty"`
	Status   []string `json:"status,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// ListDiscussionsResponse is the response from ListDiscussions.
type ListDiscussionsResponse struct {
	Discussions []model.DiscussionSummary `json:"discussions"`
	Total       int                       `json:"total"`
}

// PassReport summarises one evaluation pass.
type PassReport struct {
	Discussion *model.Discussion `json:"discussion"`
	Evaluated  int               `json:"evaluated"`
	Approved   int               `json:"approved"`
	Rejected   int               `json:"rejected"`
	Revised    int               `json:"revised"`
	GaveUp     int               `json:"gave_up"`
	TimedOut   int               `json:"timed_out"`
	Skipped    int               `json:"skipped"`
	Closed     bool              `json:"closed"`
}

// SubmitItemRequest holds a manually proposed checklist item.
type SubmitItemRequest struct {
	AgentID           string  `json:"agent_id"`
	Action            string  `json:"action"`
	Symbol            string  `json:"symbol,omitempty"`
	AllocationPercent float64  `json:"allocation_percent"`
	Confidence        *float64 `json:"confidence,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
}

// CandlesRequest narrows a candle listing. Zero fields are not sent.
type CandlesRequest struct {
	Since time.Time
	Limit int
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
