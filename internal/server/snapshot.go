package server

import "time"

// sessionSnapshot is the one canonical view of session state. The
// join response, the websocket hello and the admin inspect endpoint
// all serve this same shape, so every client sees the same letter,
// categories and round counters.
type sessionSnapshot struct {
	Code           string                `json:"code"`
	Status         string                `json:"status"`
	Letter         string                `json:"letter,omitempty"`
	Categories     []string              `json:"categories"`
	RoundDuration  int                   `json:"round_duration"`
	CurrentRound   int                   `json:"current_round"`
	TotalRounds    int                   `json:"total_rounds"`
	RoundStartedAt *time.Time            `json:"round_started_at,omitempty"`
	RoundDeadline  *time.Time            `json:"round_deadline,omitempty"`
	Participants   []participantSnapshot `json:"participants"`
}

type participantSnapshot struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	IsHost       bool   `json:"is_host"`
	HasSubmitted bool   `json:"has_submitted"`
	RoundScore   int    `json:"round_score"`
	TotalScore   int    `json:"total_score"`
}

// snapshotSession reads a consistent copy under the store lock.
func (s *Server) snapshotSession(code string) (*sessionSnapshot, error) {
	var snap *sessionSnapshot
	_, err := s.store.Update(code, func(session *GameSession) error {
		snap = buildSnapshot(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func buildSnapshot(session *GameSession) *sessionSnapshot {
	snap := &sessionSnapshot{
		Code:          session.Code,
		Status:        session.Status,
		Letter:        session.CurrentLetter,
		Categories:    append([]string(nil), session.Categories...),
		RoundDuration: session.RoundDuration,
		CurrentRound:  session.CurrentRound,
		TotalRounds:   session.TotalRounds,
		Participants:  make([]participantSnapshot, 0, len(session.Participants)),
	}
	if !session.RoundStartedAt.IsZero() {
		startedAt := session.RoundStartedAt
		deadline := session.RoundDeadline
		snap.RoundStartedAt = &startedAt
		snap.RoundDeadline = &deadline
	}
	for i := range session.Participants {
		participant := &session.Participants[i]
		snap.Participants = append(snap.Participants, participantSnapshot{
			PlayerID:     participant.PlayerID,
			Name:         participant.Name,
			IsHost:       participant.IsHost,
			HasSubmitted: participant.HasSubmitted,
			RoundScore:   participant.RoundScore,
			TotalScore:   participant.TotalScore,
		})
	}
	return snap
}

// resultsView backs the synchronous GetResults endpoint.
type resultsView struct {
	Code          string         `json:"code"`
	Letter        string         `json:"letter,omitempty"`
	PlayerResults []PlayerResult `json:"player_results"`
	RoundComplete bool           `json:"round_complete"`
	Winner        string         `json:"winner,omitempty"`
}

func (s *Server) Results(code string) (*resultsView, error) {
	var view *resultsView
	_, err := s.store.Update(code, func(session *GameSession) error {
		view = &resultsView{
			Code:          session.Code,
			Letter:        session.CurrentLetter,
			RoundComplete: session.Status == statusResultsPending || session.Status == statusFinished,
		}
		for i := range session.Participants {
			participant := &session.Participants[i]
			view.PlayerResults = append(view.PlayerResults, PlayerResult{
				PlayerID:   participant.PlayerID,
				Name:       participant.Name,
				Answers:    copyAnswers(participant.Answers),
				RoundScore: participant.RoundScore,
				TotalScore: participant.TotalScore,
			})
		}
		if session.Status == statusFinished {
			board := buildLeaderboard(session)
			if len(board) > 0 {
				view.Winner = board[0].Name
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
