// Package export writes the store's contents as JSONL and ships the dump to
// S3 or a git repository on a schedule.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	SectorCount     int       `json:"sector_count"`
	AgentCount      int       `json:"agent_count"`
	DiscussionCount int       `json:"discussion_count"`
	ExecutionCount  int       `json:"execution_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every sector, agent, discussion and execution entry in
// the store to w, one JSON record per line, each kind sorted by ID.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	sectors, err := s.ListSectors(ctx)
	if err != nil {
		return fmt.Errorf("list sectors: %w", err)
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].ID < sectors[j].ID })

	agents, err := s.ListAgents(ctx, "")
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	discussions, _, err := s.ListDiscussions(ctx, model.DiscussionFilter{})
	if err != nil {
		return fmt.Errorf("list discussions: %w", err)
	}
	sort.Slice(discussions, func(i, j int) bool { return discussions[i].ID < discussions[j].ID })

	executions, err := s.ListExecutions(ctx, "")
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	sort.Slice(executions, func(i, j int) bool { return executions[i].ID < executions[j].ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		SectorCount:     len(sectors),
		AgentCount:      len(agents),
		DiscussionCount: len(discussions),
		ExecutionCount:  len(executions),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, sec := range sectors {
		if err := enc.Encode(record{Type: "sector", Data: sec}); err != nil {
			return fmt.Errorf("encode sector %s: %w", sec.ID, err)
		}
	}
	for _, a := range agents {
		if err := enc.Encode(record{Type: "agent", Data: a}); err != nil {
			return fmt.Errorf("encode agent %s: %w", a.ID, err)
		}
	}
	for _, d := range discussions {
		if err := enc.Encode(record{Type: "discussion", Data: d}); err != nil {
			return fmt.Errorf("encode discussion %s: %w", d.ID, err)
		}
	}
	for _, e := range executions {
		if err := enc.Encode(record{Type: "execution", Data: e}); err != nil {
			return fmt.Errorf("encode execution %s: %w", e.ID, err)
		}
	}

	return nil
}
