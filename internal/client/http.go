package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ayushsreejith06/max/internal/model"
)

// HTTPClient implements MaxClient using the MAX HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ MaxClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Sectors ---

func (c *HTTPClient) ListSectors(ctx context.Context) ([]*model.Sector, error) {
	var resp struct {
		Sectors []*model.Sector `json:"sectors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sectors", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sectors, nil
}

func (c *HTTPClient) GetSector(ctx context.Context, id string) (*model.Sector, error) {
	var sec model.Sector
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sectors/"+url.PathEscape(id), nil, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (c *HTTPClient) CreateSector(ctx context.Context, req *SectorRequest) (*model.Sector, error) {
	var sec model.Sector
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sectors", req, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (c *HTTPClient) UpdateSector(ctx context.Context, id string, req *SectorRequest) (*model.Sector, error) {
	var sec model.Sector
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/sectors/"+url.PathEscape(id), req, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

// StartDiscussion asks the gate to open a discussion. A declined start is
// not an error; the result carries the reason.
func (c *HTTPClient) StartDiscussion(ctx context.Context, sectorID string) (*StartResult, error) {
	var res StartResult
	err := c.doJSON(ctx, http.MethodPost, "/v1/sectors/"+url.PathEscape(sectorID)+"/discussions", nil, &res)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		if json.Unmarshal(apiErr.Body, &res) == nil && res.Reason != "" {
			return &res, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Agents ---

func (c *HTTPClient) ListAgents(ctx context.Context, sectorID string) ([]*model.Agent, error) {
	path := "/v1/agents"
	if sectorID != "" {
		path += "?" + url.Values{"sector_id": {sectorID}}.Encode()
	}
	var resp struct {
		Agents []*model.Agent `json:"agents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

func (c *HTTPClient) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var a model.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) CreateAgent(ctx context.Context, req *CreateAgentRequest) (*model.Agent, error) {
	var a model.Agent
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agents", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) Roster(ctx context.Context, sectorID string) ([]RosterEntry, error) {
	path := "/v1/agents/roster"
	if sectorID != "" {
		path += "?" + url.Values{"sector_id": {sectorID}}.Encode()
	}
	var resp struct {
		Agents []RosterEntry `json:"agents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// --- Discussions ---

func (c *HTTPClient) ListDiscussions(ctx context.Context, req *ListDiscussionsRequest) (*ListDiscussionsResponse, error) {
	q := url.Values{}
	if req.SectorID != "" {
		q.Set("sector_id", req.SectorID)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/discussions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListDiscussionsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetDiscussion(ctx context.Context, id string) (*model.Discussion, error) {
	return c.discussion(ctx, http.MethodGet, id, "")
}

func (c *HTTPClient) RunRound(ctx context.Context, id string) (*model.Discussion, error) {
	return c.discussion(ctx, http.MethodPost, id, "/rounds")
}

func (c *HTTPClient) Evaluate(ctx context.Context, id string) (*PassReport, error) {
	var report PassReport
	if err := c.doJSON(ctx, http.MethodPost, "/v1/discussions/"+url.PathEscape(id)+"/evaluate", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) Advance(ctx context.Context, id string) (*model.Discussion, error) {
	return c.discussion(ctx, http.MethodPost, id, "/advance")
}

func (c *HTTPClient) Run(ctx context.Context, id string) (*model.Discussion, error) {
	return c.discussion(ctx, http.MethodPost, id, "/run")
}

func (c *HTTPClient) CloseDiscussion(ctx context.Context, id string) (*model.Discussion, error) {
	return c.discussion(ctx, http.MethodPost, id, "/close")
}

func (c *HTTPClient) discussion(ctx context.Context, method, id, suffix string) (*model.Discussion, error) {
	var d model.Discussion
	if err := c.doJSON(ctx, method, "/v1/discussions/"+url.PathEscape(id)+suffix, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) AddMessage(ctx context.Context, id, agentID, content string) (*model.Message, error) {
	body := map[string]string{"agent_id": agentID, "content": content}
	var msg model.Message
	if err := c.doJSON(ctx, http.MethodPost, "/v1/discussions/"+url.PathEscape(id)+"/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) SubmitItem(ctx context.Context, id string, req *SubmitItemRequest) (*model.ChecklistItem, error) {
	var it model.ChecklistItem
	if err := c.doJSON(ctx, http.MethodPost, "/v1/discussions/"+url.PathEscape(id)+"/items", req, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, discussionID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/discussions/"+url.PathEscape(discussionID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Executions ---

func (c *HTTPClient) ListExecutions(ctx context.Context, sectorID string) ([]*model.ExecutionEntry, error) {
	path := "/v1/executions"
	if sectorID != "" {
		path += "?" + url.Values{"sector_id": {sectorID}}.Encode()
	}
	var resp struct {
		Executions []*model.ExecutionEntry `json:"executions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Executions, nil
}

// --- Market ---

func (c *HTTPClient) Candles(ctx context.Context, sectorID string, req *CandlesRequest) ([]*model.Candle, error) {
	path := "/v1/sectors/" + url.PathEscape(sectorID) + "/candles"
	q := url.Values{}
	if req != nil {
		if !req.Since.IsZero() {
			q.Set("since", req.Since.UTC().Format(time.RFC3339))
		}
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var candles []*model.Candle
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// --- Events ---

// Stream implements MaxClient.
func (c *HTTPClient) Stream(ctx context.Context, topics []string, lastEventID string, fn func(StreamEvent) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, body)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var evt StreamEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if evt.Topic != "" || len(evt.Data) > 0 {
				if err := fn(evt); err != nil {
					return err
				}
			}
			evt = StreamEvent{}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			evt.Data = append(evt.Data, strings.TrimPrefix(line, "data:")...)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return ctx.Err()
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	return &APIError{StatusCode: status, Message: msg, Body: body}
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
