package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radio-control/lorabridge/internal/auth"
	"github.com/radio-control/lorabridge/internal/telemetry"
)

const testSecret = "status-secret"

type stubTelemetry struct {
	called bool
}

func (s *stubTelemetry) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	s.called = true
	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	return nil
}

func snapshotState() StatePort {
	return StateFunc(func() interface{} {
		return map[string]interface{}{"node": "receiver", "state": "engaged"}
	})
}

func token(t *testing.T, scopes ...interface{}) string {
	t.Helper()
	return roleToken(t, auth.RoleViewer, scopes...)
}

func roleToken(t *testing.T, role string, scopes ...interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "dashboard",
		"roles":  []interface{}{role},
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func authMiddleware(t *testing.T) *auth.Middleware {
	t.Helper()
	v, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: "HS256", SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return auth.NewMiddleware(v)
}

func do(t *testing.T, h http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := NewServer(Options{Node: "controller", State: snapshotState(), Telemetry: &stubTelemetry{}, Auth: authMiddleware(t)})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Result != "ok" || resp.CorrelationID == "" {
		t.Errorf("Unexpected envelope %+v", resp)
	}
	data := resp.Data.(map[string]interface{})
	if data["node"] != "controller" || data["status"] != "ok" {
		t.Errorf("Unexpected health data %v", data)
	}
}

func TestHealthDegraded(t *testing.T) {
	s := NewServer(Options{Node: "receiver"})
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Code != "SERVICE_DEGRADED" {
		t.Errorf("Expected SERVICE_DEGRADED, got %s", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := NewServer(Options{State: snapshotState(), Telemetry: &stubTelemetry{}})
	for _, path := range []string{"/api/v1/health", "/api/v1/state", "/api/v1/telemetry"} {
		rec := do(t, s.Handler(), http.MethodPost, path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}

func TestStateWithoutAuth(t *testing.T) {
	s := NewServer(Options{State: snapshotState()})
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	data := decode(t, rec).Data.(map[string]interface{})
	if data["state"] != "engaged" {
		t.Errorf("Expected snapshot state, got %v", data)
	}
}

func TestStateUnavailable(t *testing.T) {
	s := NewServer(Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestScopes(t *testing.T) {
	tel := &stubTelemetry{}
	s := NewServer(Options{State: snapshotState(), Telemetry: tel, Auth: authMiddleware(t)})
	h := s.Handler()

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"state no token", "/api/v1/state", "", http.StatusUnauthorized},
		{"state bad token", "/api/v1/state", "garbage", http.StatusUnauthorized},
		{"state telemetry only", "/api/v1/state", token(t, "telemetry"), http.StatusForbidden},
		{"state read", "/api/v1/state", token(t, "read"), http.StatusOK},
		{"state operator", "/api/v1/state", roleToken(t, auth.RoleOperator, "read"), http.StatusOK},
		{"state unknown role", "/api/v1/state", roleToken(t, "admin", "read"), http.StatusUnauthorized},
		{"telemetry read only", "/api/v1/telemetry", token(t, "read"), http.StatusForbidden},
		{"telemetry", "/api/v1/telemetry", token(t, "telemetry"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, tt.bearer)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
	if !tel.called {
		t.Error("Expected telemetry subscription")
	}
}

func TestTelemetryStreamsFromHub(t *testing.T) {
	hub := telemetry.NewHub(telemetry.Options{
		HeartbeatInterval: time.Hour,
		Snapshot:          func() interface{} { return map[string]string{"node": "receiver"} },
	})
	defer hub.Stop()

	s := NewServer(Options{Telemetry: hub, State: snapshotState()})
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/telemetry", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Errorf("Expected SSE, got %s", resp.Header.Get("Content-Type"))
	}
	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "event: ready") {
		t.Errorf("Expected ready event, got %q", buf[:n])
	}
}

func TestServeAndStop(t *testing.T) {
	s := NewServer(Options{State: snapshotState()})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}
}
