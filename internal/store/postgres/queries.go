package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/store"
)

// discussionColumns is the column list used for SELECT statements on the discussions table.
const discussionColumns = `id, sector_id, title, status, current_round, rounds_run,
	participants, messages, checklist, manager_decisions, round_history, finalized_checklist,
	created_at, updated_at, closed_at`

const sectorColumns = `id, name, symbol, description, allowed_symbols, balance, base_risk,
	risk_appetite, max_trade_amount, current_price, price_change, change_percent, volume,
	last_discussion_at, created_at, updated_at`

const agentColumns = `id, sector_id, name, role, status, confidence, performance, trades,
	personality, created_at, updated_at`

const executionColumns = `id, discussion_id, sector_id, item_id, agent_id, action, symbol,
	amount, allocation_percent, confidence, score, status, submitted_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound maps sql.ErrNoRows onto store.ErrNotFound.
func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

// requireRow turns a zero-row UPDATE into store.ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func queryCreateDiscussion(ctx context.Context, db executor, d *model.Discussion) error {
	j, err := marshalDiscussionJSON(d)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO discussions (`+discussionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID,
		d.SectorID,
		nullString(d.Title),
		string(d.Status),
		d.CurrentRound,
		d.RoundsRun,
		j.participants,
		j.messages,
		j.checklist,
		j.decisions,
		j.history,
		j.finalized,
		d.CreatedAt,
		d.UpdatedAt,
		nullTimePtr(d.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("create discussion: %w", err)
	}
	return nil
}

func queryGetDiscussion(ctx context.Context, db executor, id string) (*model.Discussion, error) {
	row := db.QueryRowContext(ctx, `SELECT `+discussionColumns+` FROM discussions WHERE id = $1`, id)
	d, err := scanDiscussion(row)
	if err != nil {
		return nil, notFound("discussion", id, err)
	}
	return d, nil
}

func querySaveDiscussion(ctx context.Context, db executor, d *model.Discussion) error {
	j, err := marshalDiscussionJSON(d)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE discussions SET
			title = $2,
			status = $3,
			current_round = $4,
			rounds_run = $5,
			participants = $6,
			messages = $7,
			checklist = $8,
			manager_decisions = $9,
			round_history = $10,
			finalized_checklist = $11,
			updated_at = $12,
			closed_at = $13
		WHERE id = $1`,
		d.ID,
		nullString(d.Title),
		string(d.Status),
		d.CurrentRound,
		d.RoundsRun,
		j.participants,
		j.messages,
		j.checklist,
		j.decisions,
		j.history,
		j.finalized,
		d.UpdatedAt,
		nullTimePtr(d.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("save discussion: %w", err)
	}
	return requireRow(res, "discussion", d.ID)
}

func queryListDiscussions(ctx context.Context, db executor, filter model.DiscussionFilter) ([]*model.Discussion, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.SectorID != "" {
		whereClauses = append(whereClauses, "sector_id = "+nextArg())
		args = append(args, filter.SectorID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + discussionColumns + " FROM discussions" + whereSQL + " ORDER BY updated_at DESC, id ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list discussions: %w", err)
	}
	defer rows.Close()

	var out []*model.Discussion
	var total int
	for rows.Next() {
		d, t, err := scanDiscussionWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan discussions: %w", err)
		}
		total = t
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan discussions: %w", err)
	}

	return out, total, nil
}

func queryCreateSector(ctx context.Context, db executor, s *model.Sector) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sectors (`+sectorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.ID,
		s.Name,
		s.Symbol,
		nullString(s.Description),
		jsonbStrings(s.AllowedSymbols),
		s.Balance,
		s.BaseRisk,
		s.RiskAppetite,
		s.MaxTradeAmount,
		s.CurrentPrice,
		s.Change,
		s.ChangePercent,
		s.Volume,
		nullTimePtr(s.LastDiscussionAt),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sector: %w", err)
	}
	return nil
}

func queryGetSector(ctx context.Context, db executor, id string) (*model.Sector, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sectorColumns+` FROM sectors WHERE id = $1`, id)
	s, err := scanSector(row)
	if err != nil {
		return nil, notFound("sector", id, err)
	}
	return s, nil
}

func queryListSectors(ctx context.Context, db executor) ([]*model.Sector, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+sectorColumns+` FROM sectors ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	defer rows.Close()
	return scanSectors(rows)
}

func queryUpdateSector(ctx context.Context, db executor, s *model.Sector) error {
	res, err := db.ExecContext(ctx, `
		UPDATE sectors SET
			name = $2,
			symbol = $3,
			description = $4,
			allowed_symbols = $5,
			balance = $6,
			base_risk = $7,
			risk_appetite = $8,
			max_trade_amount = $9,
			current_price = $10,
			price_change = $11,
			change_percent = $12,
			volume = $13,
			last_discussion_at = $14,
			updated_at = $15
		WHERE id = $1`,
		s.ID,
		s.Name,
		s.Symbol,
		nullString(s.Description),
		jsonbStrings(s.AllowedSymbols),
		s.Balance,
		s.BaseRisk,
		s.RiskAppetite,
		s.MaxTradeAmount,
		s.CurrentPrice,
		s.Change,
		s.ChangePercent,
		s.Volume,
		nullTimePtr(s.LastDiscussionAt),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sector: %w", err)
	}
	return requireRow(res, "sector", s.ID)
}

func queryCreateAgent(ctx context.Context, db executor, a *model.Agent) error {
	personality, err := jsonbValue(a.Personality)
	if err != nil {
		return fmt.Errorf("marshal personality: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID,
		a.SectorID,
		a.Name,
		string(a.Role),
		string(a.Status),
		a.Confidence,
		a.Performance,
		a.Trades,
		personality,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func queryGetAgent(ctx context.Context, db executor, id string) (*model.Agent, error) {
	row := db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		return nil, notFound("agent", id, err)
	}
	return a, nil
}

func queryListAgents(ctx context.Context, db executor, sectorID string) ([]*model.Agent, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sectorID == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC, id ASC`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE sector_id = $1 ORDER BY created_at ASC, id ASC`, sectorID)
	}
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func queryUpdateAgent(ctx context.Context, db executor, a *model.Agent) error {
	personality, err := jsonbValue(a.Personality)
	if err != nil {
		return fmt.Errorf("marshal personality: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE agents SET
			name = $2,
			role = $3,
			status = $4,
			confidence = $5,
			performance = $6,
			trades = $7,
			personality = $8,
			updated_at = $9
		WHERE id = $1`,
		a.ID,
		a.Name,
		string(a.Role),
		string(a.Status),
		a.Confidence,
		a.Performance,
		a.Trades,
		personality,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return requireRow(res, "agent", a.ID)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, topic, discussion_id, sector_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Topic, nullString(e.DiscussionID), nullString(e.SectorID), jsonbBytes(e.Payload), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func queryGetEvents(ctx context.Context, db executor, discussionID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, discussion_id, sector_id, payload, created_at
		FROM events
		WHERE discussion_id = $1
		ORDER BY created_at ASC`,
		discussionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryAddExecution(ctx context.Context, db executor, e *model.ExecutionEntry) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (item_id) DO NOTHING`,
		e.ID,
		e.DiscussionID,
		e.SectorID,
		e.ItemID,
		e.AgentID,
		string(e.Action),
		e.Symbol,
		e.Amount,
		e.AllocationPercent,
		e.Confidence,
		e.Score,
		string(e.Status),
		e.SubmittedAt,
	)
	if err != nil {
		return false, fmt.Errorf("add execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func queryListExecutions(ctx context.Context, db executor, sectorID string) ([]*model.ExecutionEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sectorID == "" {
		rows, err = db.QueryContext(ctx, `SELECT `+executionColumns+` FROM executions ORDER BY submitted_at ASC`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE sector_id = $1 ORDER BY submitted_at ASC`, sectorID)
	}
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

func querySetExecutionStatus(ctx context.Context, db executor, id string, status model.ExecutionStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE executions SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("set execution status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("execution %s: %w", id, store.ErrNotFound)
	}
	return nil
}

const candleColumns = `sector_id, ts, value`

func queryUpsertCandle(ctx context.Context, db executor, c *model.Candle) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sector_candles (`+candleColumns+`)
		VALUES ($1, $2, $3)
		ON CONFLICT (sector_id, ts) DO UPDATE SET value = EXCLUDED.value`,
		c.SectorID, c.Timestamp, c.Value)
	if err != nil {
		return fmt.Errorf("upsert candle: %w", err)
	}
	return nil
}

func queryLastCandle(ctx context.Context, db executor, sectorID string) (*model.Candle, error) {
	row := db.QueryRowContext(ctx, `SELECT `+candleColumns+` FROM sector_candles
		WHERE sector_id = $1 ORDER BY ts DESC LIMIT 1`, sectorID)
	c, err := scanCandle(row)
	if err != nil {
		return nil, notFound("candle for sector", sectorID, err)
	}
	return c, nil
}

// queryListCandles returns the most recent filter.Limit candles, oldest first.
func queryListCandles(ctx context.Context, db executor, sectorID string, filter model.CandleFilter) ([]*model.Candle, error) {
	query := `SELECT ` + candleColumns + ` FROM sector_candles WHERE sector_id = $1`
	args := []any{sectorID}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candles: %w", err)
	}
	defer rows.Close()
	candles, err := scanCandles(rows)
	if err != nil {
		return nil, fmt.Errorf("list candles: %w", err)
	}
	slices.Reverse(candles)
	return candles, nil
}

func queryCountCandles(ctx context.Context, db executor) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sector_candles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return n, nil
}

func querySetSectorQuote(ctx context.Context, db executor, sectorID string, q model.Quote) error {
	res, err := db.ExecContext(ctx, `
		UPDATE sectors SET current_price = $1, price_change = $2, change_percent = $3, volume = $4, updated_at = NOW()
		WHERE id = $5`,
		q.Price, q.Change, q.ChangePercent, q.Volume, sectorID)
	if err != nil {
		return fmt.Errorf("set sector quote: %w", err)
	}
	return requireRow(res, "sector", sectorID)
}
