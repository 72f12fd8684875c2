package server

import "time"

const (
	statusWaiting        = "waiting"
	statusInProgress     = "in-progress"
	statusResultsPending = "results-pending"
	statusFinished       = "finished"
)

type GameSession struct {
	Code           string
	DBID           uint
	Status         string
	Categories     []string
	RoundDuration  int
	TotalRounds    int
	CurrentRound   int
	CurrentLetter  string
	RoundStartedAt time.Time
	RoundDeadline  time.Time
	LastActivity   time.Time
	Participants   []Participant
}

type Participant struct {
	PlayerID     string
	Name         string
	DBID         uint
	IsHost       bool
	HasSubmitted bool
	Answers      map[string]string
	RoundScore   int
	TotalScore   int
	JoinedAt     time.Time
}

type SessionSummary struct {
	Code         string
	Status       string
	Participants int
	CurrentRound int
	TotalRounds  int
}

// PlayerResult is one participant's row in a ranked round result or
// final leaderboard.
type PlayerResult struct {
	PlayerID   string            `json:"player_id"`
	Name       string            `json:"name"`
	Answers    map[string]string `json:"answers,omitempty"`
	RoundScore int               `json:"round_score"`
	TotalScore int               `json:"total_score"`
}

// RoundResult is the outcome of a completed round, built under the
// session lock and broadcast as-is to every connection.
type RoundResult struct {
	Code         string         `json:"code"`
	Round        int            `json:"round"`
	TotalRounds  int            `json:"total_rounds"`
	Letter       string         `json:"letter"`
	Rankings     []PlayerResult `json:"rankings"`
	GameFinished bool           `json:"game_finished"`
}

// StartConfig carries the host's overrides for (re)starting a session
// while it is still waiting. Zero values leave session settings as-is.
type StartConfig struct {
	NumberOfRounds int
	RoundDuration  int
	Categories     []string
}

// SubmitOutcome reports what a submission did. A duplicate submit is
// accepted=false with no error so client retries stay harmless.
type SubmitOutcome struct {
	Accepted       bool
	RoundScore     int
	RoundCompleted bool
	Result         *RoundResult
}

// AdvanceOutcome is the result of advancing past a results-pending
// round: either the next round's state or the final leaderboard.
type AdvanceOutcome struct {
	Finished    bool
	Session     *GameSession
	Leaderboard []PlayerResult
}

func (g *GameSession) findParticipant(name string) *Participant {
	for i := range g.Participants {
		if equalNames(g.Participants[i].Name, name) {
			return &g.Participants[i]
		}
	}
	return nil
}

func (g *GameSession) submittedCount() int {
	count := 0
	for i := range g.Participants {
		if g.Participants[i].HasSubmitted {
			count++
		}
	}
	return count
}
