package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsHub tracks live connections and their (session, player) bindings.
// It only ever fans out post-transition payloads; game state is never
// mutated from here.
type wsHub struct {
	mu       sync.Mutex
	bindings map[*websocket.Conn]*connBinding
	sessions map[string]map[*websocket.Conn]struct{}
}

type connBinding struct {
	id         string
	code       string
	playerName string
}

func newWSHub() *wsHub {
	return &wsHub{
		bindings: make(map[*websocket.Conn]*connBinding),
		sessions: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Bind attaches a connection to a session/player pair. An unbound
// connection can only send JOIN_SESSION.
func (h *wsHub) Bind(conn *websocket.Conn, code, playerName string) *connBinding {
	h.mu.Lock()
	defer h.mu.Unlock()
	binding := &connBinding{
		id:         uuid.NewString(),
		code:       code,
		playerName: playerName,
	}
	h.bindings[conn] = binding
	group := h.sessions[code]
	if group == nil {
		group = make(map[*websocket.Conn]struct{})
		h.sessions[code] = group
	}
	group[conn] = struct{}{}
	return binding
}

func (h *wsHub) Binding(conn *websocket.Conn) *connBinding {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bindings[conn]
}

// Unbind removes a connection and reports the binding it had, if any.
func (h *wsHub) Unbind(conn *websocket.Conn) *connBinding {
	h.mu.Lock()
	defer h.mu.Unlock()
	binding := h.bindings[conn]
	delete(h.bindings, conn)
	_ = conn.Close()
	if binding == nil {
		return nil
	}
	group := h.sessions[binding.code]
	if group != nil {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.sessions, binding.code)
		}
	}
	return binding
}

func (h *wsHub) CountConnections(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[code])
}

func (h *wsHub) Send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast fans a payload out to every connection of a session,
// optionally excluding one (the actor who triggered the event).
// Writes happen outside the hub lock so a slow socket cannot stall
// state transitions.
func (h *wsHub) Broadcast(code string, payload any, exclude *websocket.Conn) {
	h.mu.Lock()
	group := h.sessions[code]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn := range group {
		if conn != exclude {
			conns = append(conns, conn)
		}
	}
	h.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Unbind(conn)
		}
	}
}

func (h *wsHub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.bindings))
	for conn := range h.bindings {
		conns = append(conns, conn)
	}
	h.bindings = make(map[*websocket.Conn]*connBinding)
	h.sessions = make(map[string]map[*websocket.Conn]struct{})
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	code, ok := parseWebsocketPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	code = normalizeCode(code)
	if code == "" || !s.store.ExistsByCode(code) {
		http.NotFound(w, r)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Info().Str("code", code).Str("remote", r.RemoteAddr).Msg("ws connected")
	go s.readWS(code, conn)
}

func (s *Server) readWS(code string, conn *websocket.Conn) {
	defer s.teardownConn(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Str("code", code).Err(err).Msg("ws disconnected")
			return
		}
		var event inboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.ws.Send(conn, errorEvent{Type: evtError, Message: "malformed message"})
			continue
		}
		s.handleClientEvent(conn, code, event)
	}
}

func (s *Server) teardownConn(conn *websocket.Conn) {
	binding := s.ws.Unbind(conn)
	if binding == nil {
		return
	}
	s.ws.Broadcast(binding.code, playerLeftEvent{
		Type:       evtPlayerLeft,
		PlayerName: binding.playerName,
	}, nil)
}

func (s *Server) handleClientEvent(conn *websocket.Conn, code string, event inboundEvent) {
	if event.Type == evtJoinSession {
		s.handleJoinEvent(conn, code, event)
		return
	}

	binding := s.ws.Binding(conn)
	if binding == nil {
		s.ws.Send(conn, errorEvent{Type: evtError, Message: "join the session first"})
		return
	}

	switch event.Type {
	case evtStartGame:
		s.handleStartEvent(conn, binding, event)
	case evtSubmitAnswers:
		s.handleSubmitEvent(conn, binding, event)
	case evtNextRound:
		s.handleNextRoundEvent(conn, binding)
	case evtEndGame:
		s.handleEndGameEvent(conn, binding)
	default:
		s.ws.Send(conn, errorEvent{Type: evtError, Message: "unknown message type"})
	}
}

// handleJoinEvent attaches the connection to the session, admitting
// the player first if the synchronous API has not already. The joiner
// gets a direct confirmation; everyone else gets the join notice.
func (s *Server) handleJoinEvent(conn *websocket.Conn, code string, event inboundEvent) {
	if event.SessionID != "" && normalizeCode(event.SessionID) != code {
		s.ws.Send(conn, errorEvent{Type: evtError, Message: "session mismatch"})
		return
	}
	playerName := event.PlayerName
	isMember := false
	if _, err := s.store.Update(code, func(session *GameSession) error {
		isMember = session.findParticipant(playerName) != nil
		return nil
	}); err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	if !isMember {
		if _, _, err := s.JoinSession(code, playerName); err != nil && !errors.Is(err, errDuplicatePlayer) {
			s.ws.Send(conn, newErrorEvent(err))
			return
		}
	}

	snap, err := s.snapshotSession(code)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	s.ws.Bind(conn, code, playerName)
	s.ws.Send(conn, sessionJoinedEvent{
		Type:       evtSessionJoined,
		SessionID:  code,
		PlayerName: playerName,
		Session:    snap,
	})
	s.ws.Broadcast(code, playerJoinedEvent{
		Type:       evtPlayerJoined,
		PlayerName: playerName,
	}, conn)
}

func (s *Server) handleStartEvent(conn *websocket.Conn, binding *connBinding, event inboundEvent) {
	if err := s.requireHost(binding.code, binding.playerName); err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	cfg := StartConfig{}
	if event.Config != nil {
		cfg.NumberOfRounds = event.Config.NumberOfRounds
		cfg.RoundDuration = event.Config.RoundDuration
		cfg.Categories = event.Config.Categories
	}
	session, err := s.StartRound(binding.code, cfg)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	snap, err := s.snapshotSession(session.Code)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	s.ws.Broadcast(binding.code, gameStartedEvent{
		Type:          evtGameStarted,
		Letter:        snap.Letter,
		RoundDuration: snap.RoundDuration,
		CurrentRound:  snap.CurrentRound,
		TotalRounds:   snap.TotalRounds,
		Categories:    snap.Categories,
	}, nil)
}

func (s *Server) handleSubmitEvent(conn *websocket.Conn, binding *connBinding, event inboundEvent) {
	outcome, err := s.SubmitAnswers(binding.code, binding.playerName, event.Answers, s.clock.Now().UTC())
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	if outcome.RoundCompleted {
		s.broadcastRoundEnded(binding.code, outcome.Result)
	}
}

func (s *Server) handleNextRoundEvent(conn *websocket.Conn, binding *connBinding) {
	if err := s.requireHost(binding.code, binding.playerName); err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	outcome, err := s.AdvanceOrFinish(binding.code)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	if outcome.Finished {
		s.ws.Broadcast(binding.code, gameEndedEvent{
			Type:        evtGameEnded,
			Leaderboard: outcome.Leaderboard,
		}, nil)
		return
	}
	snap, err := s.snapshotSession(binding.code)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	s.ws.Broadcast(binding.code, roundStartedEvent{
		Type:          evtRoundStarted,
		Letter:        snap.Letter,
		CurrentRound:  snap.CurrentRound,
		TotalRounds:   snap.TotalRounds,
		RoundDuration: snap.RoundDuration,
	}, nil)
}

func (s *Server) handleEndGameEvent(conn *websocket.Conn, binding *connBinding) {
	if err := s.requireHost(binding.code, binding.playerName); err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	leaderboard, err := s.ProcessResults(binding.code)
	if err != nil {
		s.ws.Send(conn, newErrorEvent(err))
		return
	}
	s.ws.Broadcast(binding.code, gameEndedEvent{
		Type:        evtGameEnded,
		Leaderboard: leaderboard,
	}, nil)
}

func (s *Server) broadcastRoundEnded(code string, result *RoundResult) {
	if result == nil {
		return
	}
	s.ws.Broadcast(code, roundEndedEvent{
		Type:           evtRoundEnded,
		CurrentRound:   result.Round,
		TotalRounds:    result.TotalRounds,
		Results:        result.Rankings,
		IsGameFinished: result.GameFinished,
	}, nil)
}

func (s *Server) requireHost(code, playerName string) error {
	_, err := s.store.Update(code, func(session *GameSession) error {
		participant := session.findParticipant(playerName)
		if participant == nil {
			return errPlayerNotFound
		}
		if !participant.IsHost {
			return errNotHost
		}
		return nil
	})
	return err
}
