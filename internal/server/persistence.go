package server

import (
	"encoding/json"
	"errors"
	"time"

	"letter-rush/internal/db"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// The in-memory store is authoritative; these writers keep the
// database trailing it at every transition. A nil db (tests, local
// play) turns them into no-ops.

func (s *Server) persistSessionCreated(session *GameSession) error {
	if s.db == nil {
		return nil
	}
	categories, err := json.Marshal(session.Categories)
	if err != nil {
		return err
	}
	record := db.Session{
		Code:          session.Code,
		Status:        session.Status,
		Categories:    datatypes.JSON(categories),
		RoundDuration: session.RoundDuration,
		TotalRounds:   session.TotalRounds,
		CurrentRound:  session.CurrentRound,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	session.DBID = record.ID
	host := &session.Participants[0]
	if err := s.persistParticipant(session, host); err != nil {
		return err
	}
	return s.persistEvent(session, "session_created", eventPayload{
		Code:       session.Code,
		PlayerName: host.Name,
	})
}

func (s *Server) persistParticipant(session *GameSession, participant *Participant) error {
	if s.db == nil {
		return nil
	}
	if participant.DBID != 0 {
		return nil
	}
	if session.DBID == 0 {
		if err := s.ensureSessionDBID(session); err != nil {
			return err
		}
	}
	record := db.Participant{
		SessionID: session.DBID,
		PlayerID:  participant.PlayerID,
		Name:      participant.Name,
		IsHost:    participant.IsHost,
		JoinedAt:  participant.JoinedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.findParticipantDBID(session.DBID, participant.Name)
			if lookupErr == nil && existing != 0 {
				participant.DBID = existing
				return nil
			}
		}
		return err
	}
	participant.DBID = record.ID
	if participant.IsHost {
		return nil
	}
	return s.persistEvent(session, "player_joined", eventPayload{
		PlayerName: participant.Name,
		PlayerID:   participant.PlayerID,
	})
}

func (s *Server) persistRoundStarted(session *GameSession) error {
	if s.db == nil {
		return nil
	}
	if err := s.saveSessionState(session); err != nil {
		return err
	}
	return s.persistEvent(session, "round_started", eventPayload{
		Round:  session.CurrentRound,
		Letter: session.CurrentLetter,
	})
}

func (s *Server) persistSubmission(session *GameSession, participant *Participant, answers map[string]string, score int, submittedAt time.Time) error {
	if s.db == nil {
		return nil
	}
	if participant.DBID == 0 {
		if err := s.persistParticipant(session, participant); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	if submittedAt.IsZero() {
		submittedAt = timeNowUTC()
	}
	record := db.Submission{
		SessionID:     session.DBID,
		ParticipantID: participant.DBID,
		Round:         session.CurrentRound,
		Letter:        session.CurrentLetter,
		Answers:       datatypes.JSON(payload),
		Score:         score,
		SubmittedAt:   submittedAt,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	return s.db.Model(&db.Participant{}).
		Where("id = ?", participant.DBID).
		Update("total_score", participant.TotalScore+score).Error
}

func (s *Server) persistRoundCompleted(session *GameSession, result *RoundResult, reason string) error {
	if s.db == nil {
		return nil
	}
	if err := s.saveSessionState(session); err != nil {
		return err
	}
	return s.persistEvent(session, "round_completed", eventPayload{
		Round:  result.Round,
		Letter: result.Letter,
		Reason: reason,
	})
}

func (s *Server) persistSessionFinished(session *GameSession, leaderboard []PlayerResult) error {
	if s.db == nil {
		return nil
	}
	if err := s.saveSessionState(session); err != nil {
		return err
	}
	winner := ""
	if len(leaderboard) > 0 {
		winner = leaderboard[0].Name
	}
	return s.persistEvent(session, "game_finished", eventPayload{
		Round:      session.CurrentRound,
		PlayerName: winner,
	})
}

func (s *Server) saveSessionState(session *GameSession) error {
	if session.DBID == 0 {
		if err := s.ensureSessionDBID(session); err != nil {
			return err
		}
	}
	categories, err := json.Marshal(session.Categories)
	if err != nil {
		return err
	}
	return s.db.Model(&db.Session{}).
		Where("id = ?", session.DBID).
		Updates(map[string]any{
			"status":         session.Status,
			"categories":     datatypes.JSON(categories),
			"round_duration": session.RoundDuration,
			"total_rounds":   session.TotalRounds,
			"current_round":  session.CurrentRound,
			"current_letter": session.CurrentLetter,
		}).Error
}

func (s *Server) persistEvent(session *GameSession, eventType string, payload eventPayload) error {
	if s.db == nil {
		return nil
	}
	if session.DBID == 0 {
		if err := s.ensureSessionDBID(session); err != nil {
			return err
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := db.Event{
		SessionID: session.DBID,
		Type:      eventType,
		Payload:   datatypes.JSON(data),
	}
	return s.db.Create(&record).Error
}

func (s *Server) ensureSessionDBID(session *GameSession) error {
	var record db.Session
	if err := s.db.Where("code = ?", session.Code).First(&record).Error; err != nil {
		return err
	}
	session.DBID = record.ID
	return nil
}

func (s *Server) findParticipantDBID(sessionDBID uint, name string) (uint, error) {
	var record db.Participant
	if err := s.db.Where("session_id = ? AND name = ?", sessionDBID, name).First(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
