package server

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type timerHandle struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// armRoundTimer starts the deadline countdown for one round. Any
// existing timer for the session is cancelled first, so at most one
// timer per session is ever live.
func (s *Server) armRoundTimer(code string, round int, duration time.Duration) {
	handle := &timerHandle{
		timer:  s.clock.NewTimer(duration),
		cancel: make(chan struct{}),
	}
	s.timersMu.Lock()
	if existing, ok := s.timers[code]; ok {
		close(existing.cancel)
		stopAndDrainTimer(existing.timer)
	}
	s.timers[code] = handle
	s.timersMu.Unlock()

	go func() {
		select {
		case <-handle.timer.Chan():
			s.removeTimerHandle(code, handle)
			s.onRoundDeadline(code, round)
		case <-handle.cancel:
			stopAndDrainTimer(handle.timer)
		}
	}()
}

// cancelRoundTimer stops the outstanding timer for a session, if any.
// Safe to call from inside a store update closure; a timer that has
// already fired observes the advanced session status and no-ops.
func (s *Server) cancelRoundTimer(code string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if handle, ok := s.timers[code]; ok {
		close(handle.cancel)
		stopAndDrainTimer(handle.timer)
		delete(s.timers, code)
	}
}

func (s *Server) removeTimerHandle(code string, handle *timerHandle) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if current, ok := s.timers[code]; ok && current == handle {
		delete(s.timers, code)
	}
}

func (s *Server) cancelAllTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for code, handle := range s.timers {
		close(handle.cancel)
		stopAndDrainTimer(handle.timer)
		delete(s.timers, code)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so the
// goroutine that owns it cannot leak a stale tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// onRoundDeadline is the timer expiry path. It completes the round
// exactly as the all-submitted path does; if the round already
// completed the status check inside CompleteRound makes this a no-op.
func (s *Server) onRoundDeadline(code string, round int) {
	result, err := s.completeRoundAt(code, round)
	if err != nil {
		if result == nil {
			log.Debug().Str("code", code).Int("round", round).Msg("round deadline after completion, skipping")
			return
		}
		log.Error().Err(err).Str("code", code).Int("round", round).Msg("round completion bookkeeping failed")
	}
	log.Info().Str("code", code).Int("round", round).Msg("round auto-completed on deadline")
	s.broadcastRoundEnded(code, result)
}
