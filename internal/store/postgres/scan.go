package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// discussionJSON holds the marshalled JSONB columns of a discussion.
type discussionJSON struct {
	participants []byte
	messages     []byte
	checklist    []byte
	decisions    []byte
	history      []byte
	finalized    []byte
}

func marshalDiscussionJSON(d *model.Discussion) (discussionJSON, error) {
	var (
		j   discussionJSON
		err error
	)
	for _, f := range []struct {
		name string
		v    any
		dst  *[]byte
	}{
		{"participants", d.Participants, &j.participants},
		{"messages", d.Messages, &j.messages},
		{"checklist", d.Checklist, &j.checklist},
		{"manager_decisions", d.ManagerDecisions, &j.decisions},
		{"round_history", d.RoundHistory, &j.history},
		{"finalized_checklist", d.FinalizedChecklist, &j.finalized},
	} {
		if *f.dst, err = jsonbValue(f.v); err != nil {
			return discussionJSON{}, fmt.Errorf("marshal %s: %w", f.name, err)
		}
	}
	return j, nil
}

// scanDiscussion scans a single row into a model.Discussion.
// The row must contain columns in the order defined by discussionColumns.
func scanDiscussion(row scannable) (*model.Discussion, error) {
	d, _, err := scanDiscussionRow(row, false)
	return d, err
}

// scanDiscussionWithTotal scans a row that has a leading total_count column
// followed by the standard discussion columns.
func scanDiscussionWithTotal(row scannable) (*model.Discussion, int, error) {
	return scanDiscussionRow(row, true)
}

func scanDiscussionRow(row scannable, withTotal bool) (*model.Discussion, int, error) {
	var (
		d        model.Discussion
		total    int
		title    sql.NullString
		status   string
		closedAt sql.NullTime
		j        discussionJSON
	)

	dest := []any{
		&d.ID,
		&d.SectorID,
		&title,
		&status,
		&d.CurrentRound,
		&d.RoundsRun,
		&j.participants,
		&j.messages,
		&j.checklist,
		&j.decisions,
		&j.history,
		&j.finalized,
		&d.CreatedAt,
		&d.UpdatedAt,
		&closedAt,
	}
	if withTotal {
		dest = append([]any{&total}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	st, ok := model.ParseDiscussionStatus(status)
	if !ok {
		return nil, 0, fmt.Errorf("discussion %s: unknown status %q", d.ID, status)
	}
	d.Status = st
	d.Title = title.String
	if closedAt.Valid {
		t := closedAt.Time
		d.ClosedAt = &t
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"participants", j.participants, &d.Participants},
		{"messages", j.messages, &d.Messages},
		{"checklist", j.checklist, &d.Checklist},
		{"manager_decisions", j.decisions, &d.ManagerDecisions},
		{"round_history", j.history, &d.RoundHistory},
		{"finalized_checklist", j.finalized, &d.FinalizedChecklist},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, 0, fmt.Errorf("discussion %s: decode %s: %w", d.ID, f.name, err)
		}
	}
	return &d, total, nil
}

// scanSector scans a single row into a model.Sector.
func scanSector(row scannable) (*model.Sector, error) {
	var (
		s           model.Sector
		description sql.NullString
		allowed     []byte
		lastDisc    sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Symbol,
		&description,
		&allowed,
		&s.Balance,
		&s.BaseRisk,
		&s.RiskAppetite,
		&s.MaxTradeAmount,
		&s.CurrentPrice,
		&s.Change,
		&s.ChangePercent,
		&s.Volume,
		&lastDisc,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Description = description.String
	if lastDisc.Valid {
		t := lastDisc.Time
		s.LastDiscussionAt = &t
	}
	if len(allowed) > 0 {
		if err := json.Unmarshal(allowed, &s.AllowedSymbols); err != nil {
			return nil, fmt.Errorf("sector %s: decode allowed_symbols: %w", s.ID, err)
		}
	}
	return &s, nil
}

// scanSectors scans multiple rows into a slice of model.Sector pointers.
func scanSectors(rows *sql.Rows) ([]*model.Sector, error) {
	var sectors []*model.Sector
	for rows.Next() {
		s, err := scanSector(rows)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sectors, nil
}

// scanAgent scans a single row into a model.Agent.
func scanAgent(row scannable) (*model.Agent, error) {
	var (
		a           model.Agent
		role        string
		status      string
		personality []byte
	)
	err := row.Scan(
		&a.ID,
		&a.SectorID,
		&a.Name,
		&role,
		&status,
		&a.Confidence,
		&a.Performance,
		&a.Trades,
		&personality,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = model.AgentRole(role)
	a.Status = model.AgentStatus(status)
	if len(personality) > 0 {
		if err := json.Unmarshal(personality, &a.Personality); err != nil {
			return nil, fmt.Errorf("agent %s: decode personality: %w", a.ID, err)
		}
	}
	return &a, nil
}

// scanAgents scans multiple rows into a slice of model.Agent pointers.
func scanAgents(rows *sql.Rows) ([]*model.Agent, error) {
	var agents []*model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var (
		e            model.Event
		discussionID sql.NullString
		sectorID     sql.NullString
		payload      []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &discussionID, &sectorID, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.DiscussionID = discussionID.String
	e.SectorID = sectorID.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanExecution scans a single row into a model.ExecutionEntry.
func scanExecution(row scannable) (*model.ExecutionEntry, error) {
	var (
		e      model.ExecutionEntry
		action string
		status string
	)
	err := row.Scan(
		&e.ID,
		&e.DiscussionID,
		&e.SectorID,
		&e.ItemID,
		&e.AgentID,
		&action,
		&e.Symbol,
		&e.Amount,
		&e.AllocationPercent,
		&e.Confidence,
		&e.Score,
		&status,
		&e.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Action = model.ActionType(action)
	e.Status = model.ExecutionStatus(status)
	return &e, nil
}

// scanExecutions scans multiple rows into a slice of model.ExecutionEntry pointers.
func scanExecutions(rows *sql.Rows) ([]*model.ExecutionEntry, error) {
	var entries []*model.ExecutionEntry
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanCandle(row scannable) (*model.Candle, error) {
	var c model.Candle
	if err := row.Scan(&c.SectorID, &c.Timestamp, &c.Value); err != nil {
		return nil, err
	}
	c.Timestamp = c.Timestamp.UTC()
	return &c, nil
}

func scanCandles(rows *sql.Rows) ([]*model.Candle, error) {
	var candles []*model.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candles, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// jsonbValue marshals v for a JSONB column.
func jsonbValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

// jsonbStrings marshals a string slice; nil stays NULL.
func jsonbStrings(ss []string) []byte {
	if ss == nil {
		return nil
	}
	b, _ := json.Marshal(ss)
	return b
}
