package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/raoulx24/snapkeeper/internal/config"
	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/protocol"
	"github.com/raoulx24/snapkeeper/internal/session"
	"github.com/raoulx24/snapkeeper/internal/snapshot"
)

type fakeStore struct{}

func (fakeStore) Dump() []snapshot.Snapshot {
	return []snapshot.Snapshot{{Timestamp: 1, SizeBytes: 4}, {Timestamp: 2, SizeBytes: 6}}
}

func (fakeStore) Stats() (int, uint64) { return 2, 10 }

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Address:         "127.0.0.1:0",
		Path:            "/ws",
		CORSOrigins:     []string{"https://ok.example.org"},
		ShutdownTimeout: 5 * time.Second,
	}
}

func newTestServer(t *testing.T) (*Server, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(0, logging.Nop())
	h := protocol.NewHandler(protocol.Options{
		Secret:      "s3cr3t",
		URLTemplate: "/week/%d",
		Store:       fakeStore{},
	})
	return New(testConfig(), reg, h, fakeStore{}, logging.Nop()), reg
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Snapshots != 2 || got.Bytes != 10 {
		t.Errorf("health = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "snapkeeper_sessions_active") {
		t.Error("metrics output lacks snapkeeper collectors")
	}
}

func TestWebsocketCommand(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("s3cr3t URL 3")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/week/3" {
		t.Errorf("reply = %q", data)
	}
}

func TestCheckOrigin(t *testing.T) {
	s, _ := newTestServer(t)
	tests := map[string]bool{
		"":                        true,
		"https://ok.example.org":  true,
		"https://bad.example.org": false,
	}
	for origin, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := s.checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestServeShutsDownSessions(t *testing.T) {
	s, reg := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	for reg.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}

	if reg.Len() != 0 {
		t.Errorf("%d sessions left open", reg.Len())
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still readable after shutdown")
	}
}
