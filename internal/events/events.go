package events

import (
	"context"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
)

// Event topic constants
const (
	TopicDiscussionCreated   = "max.discussion.created"
	TopicRoundCompleted      = "max.round.completed"
	TopicDiscussionEvaluated = "max.discussion.evaluated"
	TopicDiscussionAdvanced  = "max.discussion.advanced"
	TopicDiscussionClosed    = "max.discussion.closed"
	TopicDiscussionMessage   = "max.discussion.message"

	TopicItemDecided = "max.item.decided"

	TopicExecutionQueued  = "max.execution.queued"
	TopicExecutionUpdated = "max.execution.updated"

	// Agent presence transitions (emitted by the presence reaper and the engine).
	TopicAgentStatus = "max.agent.status"

	// Simulated market data.
	TopicMarketUpdate = "max.market.update"
	TopicMarketCandle = "max.market.candle"
)

// AllTopics is the NATS wildcard that matches every engine event.
const AllTopics = "max.>"

// Event types

type DiscussionCreated struct {
	DiscussionID string   `json:"discussion_id"`
	SectorID     string   `json:"sector_id"`
	Participants []string `json:"participants"`
}

type RoundCompleted struct {
	DiscussionID string `json:"discussion_id"`
	SectorID     string `json:"sector_id"`
	Round        int    `json:"round"`
	Items        int    `json:"items"`
	Fallbacks    int    `json:"fallbacks"` // proposals that degraded to the conservative default
}

type DiscussionEvaluated struct {
	DiscussionID string `json:"discussion_id"`
	SectorID     string `json:"sector_id"`
	Round        int    `json:"round"`
	Evaluated    int    `json:"evaluated"`
	Approved     int    `json:"approved"`
	Revised      int    `json:"revised"`
	Rejected     int    `json:"rejected"`
	TimedOut     int    `json:"timed_out"`
	Closed       bool   `json:"closed"`
}

type DiscussionAdvanced struct {
	DiscussionID string `json:"discussion_id"`
	SectorID     string `json:"sector_id"`
	FromRound    int    `json:"from_round"`
	ToRound      int    `json:"to_round"`
	Carried      int    `json:"carried"`
}

type DiscussionClosed struct {
	DiscussionID string                      `json:"discussion_id"`
	SectorID     string                      `json:"sector_id"`
	Rounds       int                         `json:"rounds"`
	Approved     []model.ApprovedItemSummary `json:"approved"`
	Forced       int                         `json:"forced,omitempty"`
}

type MessagePosted struct {
	SectorID string        `json:"sector_id"`
	Message  model.Message `json:"message"`
}

type ItemDecided struct {
	DiscussionID string                `json:"discussion_id"`
	SectorID     string                `json:"sector_id"`
	Decision     model.ManagerDecision `json:"decision"`
	Status       model.ItemStatus      `json:"status"`
}

type ExecutionQueued struct {
	Entry *model.ExecutionEntry `json:"entry"`
}

type ExecutionUpdated struct {
	ExecutionID string                `json:"execution_id"`
	SectorID    string                `json:"sector_id"`
	Status      model.ExecutionStatus `json:"status"`
	Output      string                `json:"output,omitempty"`
}

type AgentStatus struct {
	AgentID  string            `json:"agent_id"`
	SectorID string            `json:"sector_id,omitempty"`
	Status   model.AgentStatus `json:"status"`
	LastSeen time.Time         `json:"last_seen"`
}

type MarketUpdate struct {
	SectorID  string      `json:"sector_id"`
	Quote     model.Quote `json:"quote"`
	Timestamp time.Time   `json:"timestamp"`
}

type MarketCandle struct {
	SectorID string       `json:"sector_id"`
	Candle   model.Candle `json:"candle"`
}

// SectorOf returns the sector an event belongs to, or "" for events not
// tied to one.
func SectorOf(event any) string {
	switch e := event.(type) {
	case DiscussionCreated:
		return e.SectorID
	case RoundCompleted:
		return e.SectorID
	case DiscussionEvaluated:
		return e.SectorID
	case DiscussionAdvanced:
		return e.SectorID
	case DiscussionClosed:
		return e.SectorID
	case MessagePosted:
		return e.SectorID
	case ItemDecided:
		return e.SectorID
	case ExecutionQueued:
		if e.Entry != nil {
			return e.Entry.SectorID
		}
	case ExecutionUpdated:
		return e.SectorID
	case AgentStatus:
		return e.SectorID
	case MarketUpdate:
		return e.SectorID
	case MarketCandle:
		return e.SectorID
	}
	return ""
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
