package server

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"letter-rush/internal/config"

	"github.com/jonboulle/clockwork"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

// newFakeClockServer returns a server whose round timers and
// timestamps run off a fake clock the test controls.
func newFakeClockServer(cfg config.Config) (*Server, *clockwork.FakeClock) {
	srv := New(nil, cfg)
	fake := clockwork.NewFakeClock()
	srv.clock = fake
	return srv, fake
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSession(t *testing.T, ts *httptest.Server, host string, categories []string, duration int) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions", map[string]any{
		"host_username":  host,
		"categories":     categories,
		"round_duration": duration,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["code"] == "" {
		t.Fatalf("expected session code in response")
	}
	return body["code"]
}

func joinPlayer(t *testing.T, ts *httptest.Server, code, name string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/sessions/"+code+"/join", map[string]any{
		"username": name,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d joining, got %d", http.StatusOK, resp.StatusCode)
	}
}

func sessionStatus(srv *Server, code string) string {
	status := ""
	_, _ = srv.store.Update(code, func(session *GameSession) error {
		status = session.Status
		return nil
	})
	return status
}

func waitForStatus(t *testing.T, srv *Server, code, status string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sessionStatus(srv, code) == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s (currently %q)", code, status, sessionStatus(srv, code))
}
