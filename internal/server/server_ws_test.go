package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"letter-rush/internal/config"

	"github.com/gorilla/websocket"
)

type wsEnvelope struct {
	Type           string           `json:"type"`
	SessionID      string           `json:"sessionId"`
	PlayerName     string           `json:"playerName"`
	Message        string           `json:"message"`
	Letter         string           `json:"letter"`
	CurrentRound   int              `json:"currentRound"`
	TotalRounds    int              `json:"totalRounds"`
	Results        []PlayerResult   `json:"results"`
	Leaderboard    []PlayerResult   `json:"leaderboard"`
	IsGameFinished bool             `json:"isGameFinished"`
	Session        *sessionSnapshot `json:"session"`
}

func dialSession(t *testing.T, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws/sessions/" + code
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event inboundEvent) {
	t.Helper()
	if err := conn.WriteJSON(event); err != nil {
		t.Fatalf("write %s: %v", event.Type, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode event %s: %v", data, err)
	}
	return env
}

func expectEvent(t *testing.T, conn *websocket.Conn, eventType string) wsEnvelope {
	t.Helper()
	env := readEvent(t, conn)
	if env.Type != eventType {
		t.Fatalf("expected %s, got %s (%+v)", eventType, env.Type, env)
	}
	return env
}

func joinOverWS(t *testing.T, conn *websocket.Conn, code, name string) wsEnvelope {
	t.Helper()
	sendEvent(t, conn, inboundEvent{Type: evtJoinSession, SessionID: code, PlayerName: name})
	return expectEvent(t, conn, evtSessionJoined)
}

func TestWebsocketRejectsUnknownSession(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ws/sessions/ZZZZZ9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
}

func TestWebsocketJoinAndBroadcast(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	defer ts.Close()

	code := createSession(t, ts, "Ana", []string{"Animal", "Fruit"}, 30)

	host := dialSession(t, ts, code)
	hello := joinOverWS(t, host, code, "Ana")
	if hello.SessionID != code || hello.Session == nil {
		t.Fatalf("unexpected hello: %+v", hello)
	}
	if len(hello.Session.Participants) != 1 {
		t.Fatalf("host hello should show only the host: %+v", hello.Session.Participants)
	}

	guest := dialSession(t, ts, code)
	guestHello := joinOverWS(t, guest, code, "Ben")
	if len(guestHello.Session.Participants) != 2 {
		t.Fatalf("guest hello should show both players: %+v", guestHello.Session.Participants)
	}

	// Only the host hears about the new player, not the joiner.
	joined := expectEvent(t, host, evtPlayerJoined)
	if joined.PlayerName != "Ben" {
		t.Fatalf("expected Ben in PLAYER_JOINED, got %q", joined.PlayerName)
	}
}

func TestWebsocketGameFlow(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	defer ts.Close()

	code := createSession(t, ts, "Ana", []string{"Animal", "Fruit"}, 30)

	host := dialSession(t, ts, code)
	joinOverWS(t, host, code, "Ana")
	guest := dialSession(t, ts, code)
	joinOverWS(t, guest, code, "Ben")
	expectEvent(t, host, evtPlayerJoined)

	sendEvent(t, host, inboundEvent{
		Type:   evtStartGame,
		Config: &startGamePayload{NumberOfRounds: 1},
	})
	hostStart := expectEvent(t, host, evtGameStarted)
	guestStart := expectEvent(t, guest, evtGameStarted)
	if hostStart.Letter == "" || hostStart.Letter != guestStart.Letter {
		t.Fatalf("players saw different letters: %q vs %q", hostStart.Letter, guestStart.Letter)
	}

	answers := map[string]string{"Animal": hostStart.Letter + "nt", "Fruit": hostStart.Letter + "anana"}
	sendEvent(t, guest, inboundEvent{Type: evtSubmitAnswers, Answers: answers})
	sendEvent(t, host, inboundEvent{Type: evtSubmitAnswers, Answers: answers})

	hostEnd := expectEvent(t, host, evtRoundEnded)
	guestEnd := expectEvent(t, guest, evtRoundEnded)
	if len(hostEnd.Results) != 2 || len(guestEnd.Results) != 2 {
		t.Fatalf("round end should rank both players: %+v", hostEnd.Results)
	}
	if !hostEnd.IsGameFinished {
		t.Fatalf("single-round game should finish after round 1")
	}

	sendEvent(t, host, inboundEvent{Type: evtEndGame})
	ended := expectEvent(t, host, evtGameEnded)
	if len(ended.Leaderboard) != 2 {
		t.Fatalf("expected full leaderboard, got %+v", ended.Leaderboard)
	}
	expectEvent(t, guest, evtGameEnded)
}

func TestWebsocketHostOnlyCommands(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	defer ts.Close()

	code := createSession(t, ts, "Ana", []string{"Animal"}, 30)

	host := dialSession(t, ts, code)
	joinOverWS(t, host, code, "Ana")
	guest := dialSession(t, ts, code)
	joinOverWS(t, guest, code, "Ben")
	expectEvent(t, host, evtPlayerJoined)

	sendEvent(t, guest, inboundEvent{Type: evtStartGame})
	errEvt := expectEvent(t, guest, evtError)
	if errEvt.Message == "" {
		t.Fatalf("expected error message for non-host start")
	}
	if got := sessionStatus(srv, code); got != statusWaiting {
		t.Fatalf("non-host start must not change state, got %s", got)
	}

	// Commands before JOIN_SESSION are rejected per connection.
	stranger := dialSession(t, ts, code)
	sendEvent(t, stranger, inboundEvent{Type: evtStartGame})
	expectEvent(t, stranger, evtError)
}
