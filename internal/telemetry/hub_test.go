package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncRecorder is a ResponseWriter safe to read while the hub writes.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   bytes.Buffer
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: make(http.Header)}
}

func (r *syncRecorder) Header() http.Header { return r.header }

func (r *syncRecorder) WriteHeader(int) {}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func subscribe(t *testing.T, hub *Hub, lastEventID string) (*syncRecorder, context.CancelFunc, <-chan error) {
	t.Helper()
	rec := newSyncRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry", nil)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Subscribe(ctx, rec, req) }()
	return rec, cancel, errCh
}

func TestSubscribeReceivesReadyAndEvents(t *testing.T) {
	hub := NewHub(Options{
		BufferSize:        10,
		HeartbeatInterval: time.Hour,
		Snapshot:          func() interface{} { return map[string]string{"state": "engaged"} },
	})
	defer hub.Stop()

	rec, cancel, errCh := subscribe(t, hub, "")
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })
	waitFor(t, "ready event", func() bool { return strings.Contains(rec.String(), "event: ready") })

	if !strings.Contains(rec.String(), `"state":"engaged"`) {
		t.Errorf("Expected snapshot in ready event, got %q", rec.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Expected SSE content type, got %s", ct)
	}

	if err := hub.Publish(Event{Type: EventActuation, Data: map[string]interface{}{"state": "engaged"}}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	waitFor(t, "actuation event", func() bool { return strings.Contains(rec.String(), "event: actuation") })
	if !strings.Contains(rec.String(), "id: 1\n") {
		t.Errorf("Expected first event id 1, got %q", rec.String())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Subscribe returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
	waitFor(t, "client removal", func() bool { return hub.ClientCount() == 0 })
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	hub := NewHub(Options{BufferSize: 10, HeartbeatInterval: time.Hour})
	defer hub.Stop()

	for i := 0; i < 3; i++ {
		_ = hub.Publish(Event{Type: EventFrame})
	}

	rec, cancel, _ := subscribe(t, hub, "1")
	defer cancel()
	waitFor(t, "replay", func() bool { return strings.Contains(rec.String(), "id: 3\n") })

	body := rec.String()
	if strings.Contains(body, "id: 1\n") {
		t.Error("Event 1 should not be replayed")
	}
	if !strings.Contains(body, "id: 2\n") {
		t.Error("Expected event 2 to be replayed")
	}
}

func TestHeartbeat(t *testing.T) {
	hub := NewHub(Options{BufferSize: 10, HeartbeatInterval: 20 * time.Millisecond})
	defer hub.Stop()

	rec, cancel, _ := subscribe(t, hub, "")
	defer cancel()
	waitFor(t, "heartbeat", func() bool { return strings.Contains(rec.String(), "event: heartbeat") })

	if hub.buffer.GetSize() != 0 {
		t.Errorf("Heartbeats must not be buffered, buffer size %d", hub.buffer.GetSize())
	}
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(Options{BufferSize: 2})
	defer hub.Stop()

	for i := 0; i < 5; i++ {
		if err := hub.Publish(Event{Type: EventRejected}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if hub.buffer.GetSize() != 2 {
		t.Errorf("Expected buffer capped at 2, got %d", hub.buffer.GetSize())
	}
	events := hub.buffer.GetEventsAfter(0)
	if events[0].ID != 4 || events[1].ID != 5 {
		t.Errorf("Expected ids 4 and 5, got %d and %d", events[0].ID, events[1].ID)
	}
	if _, ok := events[0].Data["ts"]; !ok {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	hub := NewHub(Options{})
	hub.Stop()
	hub.Stop()
	if err := hub.Publish(Event{Type: EventHelp}); err != nil {
		t.Errorf("Publish after Stop should be a no-op, got %v", err)
	}
}

func TestEventBuffer(t *testing.T) {
	b := NewEventBuffer(3)
	if b.GetCapacity() != 3 {
		t.Errorf("Expected capacity 3, got %d", b.GetCapacity())
	}
	for i := int64(1); i <= 4; i++ {
		b.AddEvent(Event{ID: i, Type: EventFrame})
	}
	if b.GetSize() != 3 {
		t.Errorf("Expected size 3, got %d", b.GetSize())
	}
	if got := b.GetEventsAfter(2); len(got) != 2 {
		t.Errorf("Expected 2 events after id 2, got %d", len(got))
	}
}
