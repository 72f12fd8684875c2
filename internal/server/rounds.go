package server

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CreateSession validates the host's config, allocates a unique join
// code and registers the host as the first participant.
func (s *Server) CreateSession(hostName string, categories []string, roundDuration int) (*GameSession, error) {
	playerID, cleanedName, err := s.directory.Resolve(hostName)
	if err != nil {
		return nil, err
	}
	cleanedCategories, err := validateCategories(categories)
	if err != nil {
		return nil, invalidArgument("%s", err.Error())
	}
	if roundDuration == 0 {
		roundDuration = s.cfg.RoundDurationSeconds
	}
	if err := validateRoundDuration(roundDuration); err != nil {
		return nil, invalidArgument("%s", err.Error())
	}

	now := s.clock.Now().UTC()
	session := &GameSession{
		Status:        statusWaiting,
		Categories:    cleanedCategories,
		RoundDuration: roundDuration,
		TotalRounds:   s.cfg.DefaultTotalRounds,
		CurrentRound:  1,
		LastActivity:  now,
		Participants: []Participant{{
			PlayerID: playerID,
			Name:     cleanedName,
			IsHost:   true,
			JoinedAt: now,
		}},
	}

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		session.Code = newSessionCode()
		if err := s.store.Create(session); err == nil {
			break
		}
		session.Code = ""
	}
	if session.Code == "" {
		return nil, errCodeSpaceExhausted
	}

	if err := s.persistSessionCreated(session); err != nil {
		s.store.Remove(session.Code)
		return nil, infrastructureError("persist session", err)
	}
	log.Info().Str("code", session.Code).Str("host", cleanedName).Msg("session created")
	return session, nil
}

// JoinSession admits a new participant while the session is waiting.
func (s *Server) JoinSession(code, playerName string) (*GameSession, *Participant, error) {
	normalized := normalizeCode(code)
	if normalized == "" {
		return nil, nil, errSessionNotFound
	}
	playerID, cleanedName, err := s.directory.Resolve(playerName)
	if err != nil {
		return nil, nil, err
	}

	var joined *Participant
	session, err := s.store.Update(normalized, func(session *GameSession) error {
		if session.Status != statusWaiting {
			return errSessionNotJoinable
		}
		if session.findParticipant(cleanedName) != nil {
			return errDuplicatePlayer
		}
		session.Participants = append(session.Participants, Participant{
			PlayerID: playerID,
			Name:     cleanedName,
			JoinedAt: s.clock.Now().UTC(),
		})
		session.LastActivity = s.clock.Now().UTC()
		joined = &session.Participants[len(session.Participants)-1]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.persistParticipant(session, joined); err != nil {
		_, _ = s.store.Update(normalized, func(session *GameSession) error {
			for i := range session.Participants {
				if session.Participants[i].PlayerID == playerID {
					session.Participants = append(session.Participants[:i], session.Participants[i+1:]...)
					break
				}
			}
			return nil
		})
		return nil, nil, infrastructureError("persist participant", err)
	}
	log.Info().Str("code", session.Code).Str("player", cleanedName).Msg("player joined")
	return session, joined, nil
}

// StartRound moves a waiting session into its first round. This is
// the only place a round letter is ever decided.
func (s *Server) StartRound(code string, cfg StartConfig) (*GameSession, error) {
	session, err := s.store.Update(code, func(session *GameSession) error {
		switch session.Status {
		case statusWaiting:
		case statusFinished:
			return errSessionFinished
		default:
			return errRoundInProgress
		}
		if len(cfg.Categories) > 0 {
			cleaned, err := validateCategories(cfg.Categories)
			if err != nil {
				return invalidArgument("%s", err.Error())
			}
			session.Categories = cleaned
		}
		if cfg.RoundDuration != 0 {
			if err := validateRoundDuration(cfg.RoundDuration); err != nil {
				return invalidArgument("%s", err.Error())
			}
			session.RoundDuration = cfg.RoundDuration
		}
		if cfg.NumberOfRounds != 0 {
			if err := validateTotalRounds(cfg.NumberOfRounds); err != nil {
				return invalidArgument("%s", err.Error())
			}
			session.TotalRounds = cfg.NumberOfRounds
		}

		now := s.clock.Now().UTC()
		session.CurrentRound = 1
		session.CurrentLetter = randomLetter(s.letters)
		session.RoundStartedAt = now
		session.RoundDeadline = now.Add(time.Duration(session.RoundDuration) * time.Second)
		session.LastActivity = now
		session.Status = statusInProgress
		for i := range session.Participants {
			resetParticipantRound(&session.Participants[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.armRoundTimer(session.Code, session.CurrentRound, time.Duration(session.RoundDuration)*time.Second)
	if err := s.persistRoundStarted(session); err != nil {
		return session, infrastructureError("persist round start", err)
	}
	log.Info().
		Str("code", session.Code).
		Str("letter", session.CurrentLetter).
		Int("round", session.CurrentRound).
		Int("total_rounds", session.TotalRounds).
		Msg("round started")
	return session, nil
}

// SubmitAnswers records one participant's answers for the current
// round. A repeat submission is a soft no-op, not an error, so client
// retries cannot double-score.
func (s *Server) SubmitAnswers(code, playerName string, answers map[string]string, submittedAt time.Time) (SubmitOutcome, error) {
	var outcome SubmitOutcome
	session, err := s.store.Update(code, func(session *GameSession) error {
		participant := session.findParticipant(playerName)
		if participant == nil {
			return errPlayerNotFound
		}
		switch session.Status {
		case statusInProgress:
		case statusFinished:
			return errSessionFinished
		default:
			return errRoundNotActive
		}
		if participant.HasSubmitted {
			return nil
		}

		stored := make(map[string]string, len(session.Categories))
		roundScore := 0
		for _, category := range session.Categories {
			answer := strings.TrimSpace(lookupAnswer(answers, category))
			if len(answer) > maxAnswerLength {
				return invalidArgument("answer must be %d characters or fewer", maxAnswerLength)
			}
			stored[category] = answer
			roundScore += s.oracle.ScoreAnswer(answer, session.CurrentLetter)
		}

		if err := s.persistSubmission(session, participant, stored, roundScore, submittedAt); err != nil {
			return infrastructureError("persist submission", err)
		}

		participant.Answers = stored
		participant.RoundScore = roundScore
		participant.TotalScore += roundScore
		participant.HasSubmitted = true
		session.LastActivity = s.clock.Now().UTC()
		outcome.Accepted = true
		outcome.RoundScore = roundScore

		if session.submittedCount() == len(session.Participants) {
			outcome.Result = s.applyRoundCompletion(session)
			outcome.RoundCompleted = true
		}
		return nil
	})
	if err != nil {
		return SubmitOutcome{}, err
	}

	if outcome.Accepted {
		log.Info().
			Str("code", session.Code).
			Str("player", playerName).
			Int("round_score", outcome.RoundScore).
			Msg("answers submitted")
	}
	if outcome.RoundCompleted {
		if err := s.persistRoundCompleted(session, outcome.Result, "all-submitted"); err != nil {
			return outcome, infrastructureError("persist round completion", err)
		}
		log.Info().Str("code", session.Code).Int("round", outcome.Result.Round).Msg("round completed")
	}
	return outcome, nil
}

// applyRoundCompletion ranks the round, cancels the round timer and
// moves the session to results-pending. Callers must hold the store
// lock with the session in-progress; the status transition here is
// what makes the submission path and the timer path mutually
// exclusive.
func (s *Server) applyRoundCompletion(session *GameSession) *RoundResult {
	s.cancelRoundTimer(session.Code)
	rankings := make([]PlayerResult, 0, len(session.Participants))
	for i := range session.Participants {
		participant := &session.Participants[i]
		rankings = append(rankings, PlayerResult{
			PlayerID:   participant.PlayerID,
			Name:       participant.Name,
			Answers:    copyAnswers(participant.Answers),
			RoundScore: participant.RoundScore,
			TotalScore: participant.TotalScore,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].RoundScore > rankings[j].RoundScore
	})
	session.Status = statusResultsPending
	session.LastActivity = s.clock.Now().UTC()
	return &RoundResult{
		Code:         session.Code,
		Round:        session.CurrentRound,
		TotalRounds:  session.TotalRounds,
		Letter:       session.CurrentLetter,
		Rankings:     rankings,
		GameFinished: session.CurrentRound >= session.TotalRounds,
	}
}

// CompleteRound forces the current round to results-pending. It is a
// conflict if the round already completed, which is how a stale timer
// expiry becomes a no-op.
func (s *Server) CompleteRound(code string) (*RoundResult, error) {
	return s.completeRoundAt(code, -1)
}

func (s *Server) completeRoundAt(code string, expectedRound int) (*RoundResult, error) {
	var result *RoundResult
	session, err := s.store.Update(code, func(session *GameSession) error {
		if session.Status != statusInProgress {
			return errRoundNotActive
		}
		if expectedRound > 0 && session.CurrentRound != expectedRound {
			return errRoundNotActive
		}
		result = s.applyRoundCompletion(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.persistRoundCompleted(session, result, "timeout"); err != nil {
		return result, infrastructureError("persist round completion", err)
	}
	log.Info().Str("code", session.Code).Int("round", result.Round).Msg("round completed")
	return result, nil
}

// AdvanceOrFinish moves a results-pending session into its next round
// or, when all rounds are played, to finished.
func (s *Server) AdvanceOrFinish(code string) (AdvanceOutcome, error) {
	var outcome AdvanceOutcome
	session, err := s.store.Update(code, func(session *GameSession) error {
		if session.Status != statusResultsPending {
			return errRoundNotPending
		}
		if session.CurrentRound >= session.TotalRounds {
			outcome.Finished = true
			outcome.Leaderboard = buildLeaderboard(session)
			session.Status = statusFinished
			session.LastActivity = s.clock.Now().UTC()
			return nil
		}

		now := s.clock.Now().UTC()
		session.CurrentRound++
		session.CurrentLetter = randomLetter(s.letters)
		session.RoundStartedAt = now
		session.RoundDeadline = now.Add(time.Duration(session.RoundDuration) * time.Second)
		session.LastActivity = now
		session.Status = statusInProgress
		for i := range session.Participants {
			resetParticipantRound(&session.Participants[i])
		}
		return nil
	})
	if err != nil {
		return AdvanceOutcome{}, err
	}
	outcome.Session = session

	if outcome.Finished {
		if err := s.persistSessionFinished(session, outcome.Leaderboard); err != nil {
			return outcome, infrastructureError("persist finish", err)
		}
		log.Info().Str("code", session.Code).Msg("game finished")
		return outcome, nil
	}

	s.armRoundTimer(session.Code, session.CurrentRound, time.Duration(session.RoundDuration)*time.Second)
	if err := s.persistRoundStarted(session); err != nil {
		return outcome, infrastructureError("persist round start", err)
	}
	log.Info().
		Str("code", session.Code).
		Str("letter", session.CurrentLetter).
		Int("round", session.CurrentRound).
		Msg("round started")
	return outcome, nil
}

// ProcessResults finishes a results-pending session. Calling it again
// on a finished session returns the leaderboard with no state change.
func (s *Server) ProcessResults(code string) ([]PlayerResult, error) {
	alreadyFinished := false
	var leaderboard []PlayerResult
	session, err := s.store.Update(code, func(session *GameSession) error {
		if session.Status == statusFinished {
			alreadyFinished = true
			leaderboard = buildLeaderboard(session)
			return nil
		}
		if session.Status != statusResultsPending {
			return errRoundNotPending
		}
		leaderboard = buildLeaderboard(session)
		session.Status = statusFinished
		session.LastActivity = s.clock.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyFinished {
		return leaderboard, nil
	}
	if err := s.persistSessionFinished(session, leaderboard); err != nil {
		return leaderboard, infrastructureError("persist finish", err)
	}
	log.Info().Str("code", session.Code).Msg("game finished")
	return leaderboard, nil
}

// buildLeaderboard ranks participants by accumulated score, stable on
// ties so join order breaks them.
func buildLeaderboard(session *GameSession) []PlayerResult {
	board := make([]PlayerResult, 0, len(session.Participants))
	for i := range session.Participants {
		participant := &session.Participants[i]
		board = append(board, PlayerResult{
			PlayerID:   participant.PlayerID,
			Name:       participant.Name,
			RoundScore: participant.RoundScore,
			TotalScore: participant.TotalScore,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].TotalScore > board[j].TotalScore
	})
	return board
}

func resetParticipantRound(participant *Participant) {
	participant.HasSubmitted = false
	participant.Answers = nil
	participant.RoundScore = 0
}

func lookupAnswer(answers map[string]string, category string) string {
	if answer, ok := answers[category]; ok {
		return answer
	}
	for key, answer := range answers {
		if equalNames(key, category) {
			return answer
		}
	}
	return ""
}

func copyAnswers(answers map[string]string) map[string]string {
	if answers == nil {
		return nil
	}
	copied := make(map[string]string, len(answers))
	for category, answer := range answers {
		copied[category] = answer
	}
	return copied
}
