package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// runReaper sweeps idle sessions on an interval until ctx is done.
// A session is reaped when nothing has touched it for the idle TTL,
// or shortly after it finishes once no connections remain.
func (s *Server) runReaper(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Duration(s.cfg.ReapIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.reapIdleSessions()
		}
	}
}

func (s *Server) reapIdleSessions() {
	now := s.clock.Now().UTC()
	idleTTL := time.Duration(s.cfg.SessionIdleTTLSeconds) * time.Second
	finishedTTL := time.Duration(s.cfg.FinishedLingerSeconds) * time.Second

	removed := s.store.RemoveWhere(func(session *GameSession) bool {
		if s.ws.CountConnections(session.Code) > 0 {
			return false
		}
		if session.Status == statusFinished {
			return now.Sub(session.LastActivity) >= finishedTTL
		}
		return now.Sub(session.LastActivity) >= idleTTL
	})
	for _, code := range removed {
		s.cancelRoundTimer(code)
		log.Info().Str("code", code).Msg("idle session reaped")
	}
}
