package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayushsreejith06/max/internal/events"
)

func (e *testEnv) hubEvents(t *testing.T, since uint64) []*sseEvent {
	t.Helper()
	return e.hub.eventsSince(since)
}

func TestHub_PublishAndReceive(t *testing.T) {
	hub := NewHub()
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	if err := hub.Publish(context.Background(), events.TopicDiscussionCreated, events.DiscussionCreated{DiscussionID: "disc-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicDiscussionCreated || evt.ID != 1 {
			t.Errorf("event = %d %s", evt.ID, evt.Topic)
		}
		if !strings.Contains(string(evt.Data), `"discussion_id":"disc-1"`) {
			t.Errorf("data = %s", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_Subscribe(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe("max.execution.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_ = hub.Publish(context.Background(), events.TopicDiscussionCreated, events.DiscussionCreated{})
	_ = hub.Publish(context.Background(), events.TopicExecutionQueued, events.ExecutionQueued{})

	select {
	case m := <-ch:
		if m.Topic != events.TopicExecutionQueued {
			t.Errorf("topic = %s", m.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel delivered after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if hub.clientCount() != 0 {
		t.Errorf("clientCount = %d after cancel", hub.clientCount())
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub()
	client := hub.subscribe([]string{"max.item.*"})
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicRoundCompleted, []byte(`{}`))
	hub.broadcast(events.TopicItemDecided, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicItemDecided {
			t.Fatalf("topic = %q", evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event %q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sseClientBuffer*3; i++ {
			hub.broadcast(events.TopicAgentStatus, []byte(`{}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if len(client.ch) != sseClientBuffer {
		t.Errorf("buffered = %d, want %d", len(client.ch), sseClientBuffer)
	}
}

func TestHub_EventsSinceWraps(t *testing.T) {
	hub := NewHub()
	for i := 0; i < sseRingBufferSize+10; i++ {
		hub.broadcast(events.TopicAgentStatus, []byte(`{}`))
	}
	evts := hub.eventsSince(0)
	if len(evts) != sseRingBufferSize {
		t.Fatalf("buffered = %d, want %d", len(evts), sseRingBufferSize)
	}
	if evts[0].ID != 11 || evts[len(evts)-1].ID != sseRingBufferSize+10 {
		t.Errorf("range = %d..%d", evts[0].ID, evts[len(evts)-1].ID)
	}
	if got := hub.eventsSince(sseRingBufferSize + 5); len(got) != 5 {
		t.Errorf("since tail = %d, want 5", len(got))
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"max.item.decided", "max.item.decided", true},
		{"max.discussion.*", "max.discussion.closed", true},
		{"max.discussion.*", "max.item.decided", false},
		{"max.>", "max.round.completed", true},
		{"max.>", "max", false},
		{"max.*", "max.discussion.closed", false},
		{"*.item.decided", "max.item.decided", true},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("match(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

// readSSE streams "field:value" lines from an SSE response.
func readSSE(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

func waitForLine(t *testing.T, lines <-chan string, prefix string) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream ended before %q", prefix)
			}
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", prefix)
		}
	}
}

func openStream(t *testing.T, env *testEnv, query, lastEventID string) <-chan string {
	t.Helper()
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream"+query, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	return readSSE(t, resp)
}

func TestEventStream_EngineEvents(t *testing.T) {
	env := newTestEnv(t, "")
	lines := openStream(t, env, "?topics=max.discussion.*", "")

	deadline := time.Now().Add(5 * time.Second)
	for env.hub.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.startDiscussion(t)
	if got := waitForLine(t, lines, "event:"); got != "event:"+events.TopicDiscussionCreated {
		t.Errorf("first event = %q", got)
	}
	if data := waitForLine(t, lines, "data:"); !strings.Contains(data, `"sector_id":"sec-1"`) {
		t.Errorf("data = %q", data)
	}
}

func TestEventStream_Replay(t *testing.T) {
	env := newTestEnv(t, "")
	for i := 0; i < 3; i++ {
		env.hub.broadcast(events.TopicAgentStatus, []byte(`{"n":1}`))
	}

	lines := openStream(t, env, "", "1")
	if got := waitForLine(t, lines, "id:"); got != "id:2" {
		t.Errorf("first replayed id = %q, want id:2", got)
	}
	if got := waitForLine(t, lines, "id:"); got != "id:3" {
		t.Errorf("second replayed id = %q, want id:3", got)
	}
}
