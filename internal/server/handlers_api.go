package server

import (
	"net/http"
	"time"
)

type createSessionRequest struct {
	HostUsername  string   `json:"host_username"`
	Categories    []string `json:"categories"`
	RoundDuration int      `json:"round_duration"`
}

type joinSessionRequest struct {
	Username string `json:"username"`
}

type startRoundRequest struct {
	NumberOfRounds int      `json:"number_of_rounds"`
	RoundDuration  int      `json:"round_duration"`
	Categories     []string `json:"categories"`
}

type submitResultsRequest struct {
	Username       string            `json:"username"`
	Answers        map[string]string `json:"answers"`
	SubmissionTime *time.Time        `json:"submission_time"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := s.CreateSession(req.HostUsername, req.Categories, req.RoundDuration)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"code":          session.Code,
		"host_username": session.Participants[0].Name,
	})
}

func (s *Server) handleSessionSubroutes(w http.ResponseWriter, r *http.Request) {
	code, action, ok := parseSessionPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	code = normalizeCode(code)
	if code == "" {
		writeGameError(w, errSessionNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		switch action {
		case "":
			s.handleGetSession(w, r, code)
		case "results":
			s.handleGetResults(w, r, code)
		default:
			http.NotFound(w, r)
		}
	case http.MethodPost:
		switch action {
		case "join":
			s.handleJoinSession(w, r, code)
		case "start":
			s.handleStartRound(w, r, code)
		case "submissions":
			s.handleSubmitResults(w, r, code)
		default:
			http.NotFound(w, r)
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, code string) {
	snap, err := s.snapshotSession(code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request, code string) {
	var req joinSessionRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, joined, err := s.JoinSession(code, req.Username)
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap, err := s.snapshotSession(session.Code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	s.ws.Broadcast(session.Code, playerJoinedEvent{
		Type:       evtPlayerJoined,
		PlayerName: joined.Name,
	}, nil)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request, code string) {
	var req startRoundRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := s.StartRound(code, StartConfig{
		NumberOfRounds: req.NumberOfRounds,
		RoundDuration:  req.RoundDuration,
		Categories:     req.Categories,
	})
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap, err := s.snapshotSession(session.Code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	s.ws.Broadcast(session.Code, gameStartedEvent{
		Type:          evtGameStarted,
		Letter:        snap.Letter,
		RoundDuration: snap.RoundDuration,
		CurrentRound:  snap.CurrentRound,
		TotalRounds:   snap.TotalRounds,
		Categories:    snap.Categories,
	}, nil)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSubmitResults(w http.ResponseWriter, r *http.Request, code string) {
	var req submitResultsRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	submittedAt := s.clock.Now().UTC()
	if req.SubmissionTime != nil {
		submittedAt = req.SubmissionTime.UTC()
	}
	outcome, err := s.SubmitAnswers(code, req.Username, req.Answers, submittedAt)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if outcome.RoundCompleted {
		s.broadcastRoundEnded(code, outcome.Result)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":        outcome.Accepted,
		"round_score":     outcome.RoundScore,
		"round_completed": outcome.RoundCompleted,
	})
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request, code string) {
	view, err := s.Results(code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
