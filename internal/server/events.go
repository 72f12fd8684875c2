package server

// eventPayload is the stored shape for the append-only event log.
type eventPayload struct {
	Code       string `json:"code,omitempty"`
	PlayerName string `json:"player,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	Round      int    `json:"round,omitempty"`
	Letter     string `json:"letter,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Realtime protocol message types. Client commands first, then the
// server events fanned out to a session's connections.
const (
	evtJoinSession   = "JOIN_SESSION"
	evtStartGame     = "START_GAME"
	evtSubmitAnswers = "SUBMIT_ANSWERS"
	evtNextRound     = "NEXT_ROUND"
	evtEndGame       = "END_GAME"

	evtSessionJoined = "SESSION_JOINED"
	evtPlayerJoined  = "PLAYER_JOINED"
	evtPlayerLeft    = "PLAYER_LEFT"
	evtGameStarted   = "GAME_STARTED"
	evtRoundStarted  = "ROUND_STARTED"
	evtRoundEnded    = "ROUND_ENDED"
	evtGameEnded     = "GAME_ENDED"
	evtServerNotice  = "SERVER_NOTICE"
	evtError         = "ERROR"
)

type inboundEvent struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"sessionId,omitempty"`
	PlayerName string            `json:"playerName,omitempty"`
	Config     *startGamePayload `json:"config,omitempty"`
	Answers    map[string]string `json:"answers,omitempty"`
}

type startGamePayload struct {
	NumberOfRounds int      `json:"numberOfRounds"`
	RoundDuration  int      `json:"roundDuration"`
	Categories     []string `json:"categories"`
}

type sessionJoinedEvent struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"sessionId"`
	PlayerName string           `json:"playerName"`
	Session    *sessionSnapshot `json:"session"`
}

type playerJoinedEvent struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName"`
}

type playerLeftEvent struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName"`
}

type gameStartedEvent struct {
	Type          string   `json:"type"`
	Letter        string   `json:"letter"`
	RoundDuration int      `json:"roundDuration"`
	CurrentRound  int      `json:"currentRound"`
	TotalRounds   int      `json:"totalRounds"`
	Categories    []string `json:"categories"`
}

type roundStartedEvent struct {
	Type          string `json:"type"`
	Letter        string `json:"letter"`
	CurrentRound  int    `json:"currentRound"`
	TotalRounds   int    `json:"totalRounds"`
	RoundDuration int    `json:"roundDuration"`
}

type roundEndedEvent struct {
	Type           string         `json:"type"`
	CurrentRound   int            `json:"currentRound"`
	TotalRounds    int            `json:"totalRounds"`
	Results        []PlayerResult `json:"results"`
	IsGameFinished bool           `json:"isGameFinished"`
}

type gameEndedEvent struct {
	Type        string         `json:"type"`
	Leaderboard []PlayerResult `json:"leaderboard"`
}

type serverNoticeEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorEvent(err error) errorEvent {
	return errorEvent{Type: evtError, Message: errorMessage(err)}
}
