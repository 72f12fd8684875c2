package server

import (
	"errors"
	"strings"
	"testing"
	"time"

	"letter-rush/internal/config"
)

func sessionField(t *testing.T, srv *Server, code string, read func(session *GameSession)) {
	t.Helper()
	if _, err := srv.store.Update(code, func(session *GameSession) error {
		read(session)
		return nil
	}); err != nil {
		t.Fatalf("read session %s: %v", code, err)
	}
}

func mustCreate(t *testing.T, srv *Server, host string) string {
	t.Helper()
	session, err := srv.CreateSession(host, []string{"Animal", "Fruit"}, 30)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session.Code
}

func answersFor(letter string) map[string]string {
	return map[string]string{
		"Animal": letter + "nt",
		"Fruit":  letter + "anana",
	}
}

func TestCreateSessionShape(t *testing.T) {
	srv := New(nil, config.Default())
	session, err := srv.CreateSession("Ana", []string{"Animal", "Fruit"}, 30)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(session.Code) != sessionCodeLength {
		t.Fatalf("expected %d-char code, got %q", sessionCodeLength, session.Code)
	}
	for _, r := range session.Code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains invalid character %q", session.Code, r)
		}
	}
	if session.Status != statusWaiting {
		t.Fatalf("expected waiting status, got %s", session.Status)
	}
	if len(session.Participants) != 1 || !session.Participants[0].IsHost {
		t.Fatalf("expected host as sole participant, got %+v", session.Participants)
	}
	if session.CurrentLetter != "" {
		t.Fatalf("expected no letter before first round, got %q", session.CurrentLetter)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv := New(nil, config.Default())
	if _, err := srv.CreateSession("Ana", nil, 30); err == nil {
		t.Fatalf("expected empty categories to be rejected")
	}
	if _, err := srv.CreateSession("Ana", []string{"Animal"}, -5); err == nil {
		t.Fatalf("expected negative duration to be rejected")
	}
	if _, err := srv.CreateSession("", []string{"Animal"}, 30); err == nil {
		t.Fatalf("expected blank host name to be rejected")
	}
}

func TestJoinSessionRules(t *testing.T) {
	srv := New(nil, config.Default())
	code := mustCreate(t, srv, "Ana")

	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := srv.JoinSession(code, "ben"); !errors.Is(err, errDuplicatePlayer) {
		t.Fatalf("expected duplicate join rejection, got %v", err)
	}
	if _, _, err := srv.JoinSession("ZZZZZ9", "Cleo"); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := srv.StartRound(code, StartConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := srv.JoinSession(code, "Cleo"); !errors.Is(err, errSessionNotJoinable) {
		t.Fatalf("expected not joinable after start, got %v", err)
	}
}

func TestStartRoundGeneratesLetterAndDeadline(t *testing.T) {
	srv, fake := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")

	session, err := srv.StartRound(code, StartConfig{NumberOfRounds: 2})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	valid := make(map[string]struct{})
	for _, r := range srv.letters {
		valid[string(r)] = struct{}{}
	}
	if _, ok := valid[session.CurrentLetter]; !ok {
		t.Fatalf("letter %q outside valid set", session.CurrentLetter)
	}
	wantDeadline := fake.Now().UTC().Add(30 * time.Second)
	if !session.RoundDeadline.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", session.RoundDeadline, wantDeadline)
	}
	if session.Status != statusInProgress || session.CurrentRound != 1 || session.TotalRounds != 2 {
		t.Fatalf("unexpected round state: %+v", session)
	}

	if _, err := srv.StartRound(code, StartConfig{}); !errors.Is(err, errRoundInProgress) {
		t.Fatalf("expected conflict starting twice, got %v", err)
	}
}

func TestSubmitAnswersScoresAndCompletes(t *testing.T) {
	srv, _ := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := srv.StartRound(code, StartConfig{NumberOfRounds: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	var letter string
	sessionField(t, srv, code, func(session *GameSession) { letter = session.CurrentLetter })

	outcome, err := srv.SubmitAnswers(code, "Ana", answersFor(letter), time.Time{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Accepted || outcome.RoundCompleted {
		t.Fatalf("first submission should be accepted without completing: %+v", outcome)
	}
	if outcome.RoundScore != 2*srv.cfg.ScoreFullCredit {
		t.Fatalf("round score = %d, want %d", outcome.RoundScore, 2*srv.cfg.ScoreFullCredit)
	}

	outcome, err = srv.SubmitAnswers(code, "Ben", map[string]string{"Animal": "zzz", "Fruit": ""}, time.Time{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.RoundCompleted || outcome.Result == nil {
		t.Fatalf("last submission should complete the round: %+v", outcome)
	}
	if len(outcome.Result.Rankings) != 2 {
		t.Fatalf("expected 2 ranked results, got %d", len(outcome.Result.Rankings))
	}
	if outcome.Result.Rankings[0].Name != "Ana" || outcome.Result.Rankings[1].Name != "Ben" {
		t.Fatalf("expected Ana ranked first, got %+v", outcome.Result.Rankings)
	}
	if outcome.Result.Rankings[1].RoundScore != 0 {
		t.Fatalf("mismatched and blank answers must score 0, got %d", outcome.Result.Rankings[1].RoundScore)
	}
	if !outcome.Result.GameFinished {
		t.Fatalf("single-round game should report finished after round 1")
	}
	if got := sessionStatus(srv, code); got != statusResultsPending {
		t.Fatalf("expected results-pending, got %s", got)
	}
}

func TestSubmitAnswersIsIdempotent(t *testing.T) {
	srv, _ := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := srv.StartRound(code, StartConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	var letter string
	sessionField(t, srv, code, func(session *GameSession) { letter = session.CurrentLetter })

	if _, err := srv.SubmitAnswers(code, "Ana", answersFor(letter), time.Time{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	var before int
	sessionField(t, srv, code, func(session *GameSession) { before = session.findParticipant("Ana").TotalScore })

	outcome, err := srv.SubmitAnswers(code, "Ana", answersFor(letter), time.Time{})
	if err != nil {
		t.Fatalf("duplicate submit must not error: %v", err)
	}
	if outcome.Accepted {
		t.Fatalf("duplicate submit must be a soft no-op")
	}
	var after int
	sessionField(t, srv, code, func(session *GameSession) { after = session.findParticipant("Ana").TotalScore })
	if before != after {
		t.Fatalf("duplicate submit changed total score: %d -> %d", before, after)
	}
}

func TestSubmitAnswersUnknownPlayerAndSession(t *testing.T) {
	srv := New(nil, config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, err := srv.StartRound(code, StartConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := srv.SubmitAnswers(code, "Ghost", nil, time.Time{}); !errors.Is(err, errPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	if _, err := srv.SubmitAnswers("ZZZZZ9", "Ana", nil, time.Time{}); !errors.Is(err, errSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestRoundTimerCompletesEmptyRound(t *testing.T) {
	srv, fake := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := srv.StartRound(code, StartConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	fake.Advance(31 * time.Second)
	waitForStatus(t, srv, code, statusResultsPending)

	sessionField(t, srv, code, func(session *GameSession) {
		for i := range session.Participants {
			if session.Participants[i].RoundScore != 0 {
				t.Fatalf("expected all-zero round with no submissions")
			}
		}
	})
}

func TestEarlyCompletionCancelsTimer(t *testing.T) {
	srv, fake := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, err := srv.StartRound(code, StartConfig{NumberOfRounds: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}
	var letter string
	sessionField(t, srv, code, func(session *GameSession) { letter = session.CurrentLetter })

	outcome, err := srv.SubmitAnswers(code, "Ana", answersFor(letter), time.Time{})
	if err != nil || !outcome.RoundCompleted {
		t.Fatalf("sole participant's submission should complete the round: %+v err=%v", outcome, err)
	}

	// The stale deadline must not complete anything a second time.
	fake.Advance(31 * time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := sessionStatus(srv, code); got != statusResultsPending {
		t.Fatalf("stale timer disturbed session state: %s", got)
	}
	if _, err := srv.CompleteRound(code); !errors.Is(err, errRoundNotActive) {
		t.Fatalf("expected completion conflict on completed round, got %v", err)
	}
}

func TestAdvanceOrFinishProgression(t *testing.T) {
	srv, _ := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := srv.StartRound(code, StartConfig{NumberOfRounds: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := srv.CompleteRound(code); err != nil {
		t.Fatalf("complete: %v", err)
	}
	outcome, err := srv.AdvanceOrFinish(code)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if outcome.Finished {
		t.Fatalf("game finished one round early")
	}
	sessionField(t, srv, code, func(session *GameSession) {
		if session.CurrentRound != 2 || session.Status != statusInProgress {
			t.Fatalf("expected round 2 in progress, got round %d status %s", session.CurrentRound, session.Status)
		}
		if session.CurrentLetter == "" {
			t.Fatalf("expected fresh letter for round 2")
		}
		for i := range session.Participants {
			participant := &session.Participants[i]
			if participant.HasSubmitted || participant.RoundScore != 0 || participant.Answers != nil {
				t.Fatalf("participant round state not reset: %+v", participant)
			}
		}
	})

	if _, err := srv.CompleteRound(code); err != nil {
		t.Fatalf("complete round 2: %v", err)
	}
	outcome, err = srv.AdvanceOrFinish(code)
	if err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if !outcome.Finished {
		t.Fatalf("expected game to finish after last round")
	}
	if len(outcome.Leaderboard) != 2 {
		t.Fatalf("expected full leaderboard, got %+v", outcome.Leaderboard)
	}
	// All-zero scores tie; stable sort keeps join order.
	if outcome.Leaderboard[0].Name != "Ana" || outcome.Leaderboard[1].Name != "Ben" {
		t.Fatalf("tie must preserve join order, got %+v", outcome.Leaderboard)
	}
	if got := sessionStatus(srv, code); got != statusFinished {
		t.Fatalf("expected finished status, got %s", got)
	}
	if _, err := srv.StartRound(code, StartConfig{}); !errors.Is(err, errSessionFinished) {
		t.Fatalf("finished session must reject StartRound, got %v", err)
	}
}

func TestLeaderboardOrdersByTotalScore(t *testing.T) {
	srv, _ := newFakeClockServer(config.Default())
	code := mustCreate(t, srv, "Ana")
	if _, _, err := srv.JoinSession(code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := srv.StartRound(code, StartConfig{NumberOfRounds: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	var letter string
	sessionField(t, srv, code, func(session *GameSession) { letter = session.CurrentLetter })

	if _, err := srv.SubmitAnswers(code, "Ana", map[string]string{"Animal": "zzz"}, time.Time{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := srv.SubmitAnswers(code, "Ben", answersFor(letter), time.Time{}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	leaderboard, err := srv.ProcessResults(code)
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	if leaderboard[0].Name != "Ben" || leaderboard[0].TotalScore <= leaderboard[1].TotalScore {
		t.Fatalf("expected Ben on top, got %+v", leaderboard)
	}
}

func TestProcessResultsIsIdempotent(t *testing.T) {
	srv := New(nil, config.Default())
	code := mustCreate(t, srv, "Ana")

	if _, err := srv.ProcessResults(code); !errors.Is(err, errRoundNotPending) {
		t.Fatalf("expected conflict on waiting session, got %v", err)
	}

	if _, err := srv.StartRound(code, StartConfig{NumberOfRounds: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := srv.CompleteRound(code); err != nil {
		t.Fatalf("complete: %v", err)
	}
	first, err := srv.ProcessResults(code)
	if err != nil {
		t.Fatalf("process results: %v", err)
	}
	second, err := srv.ProcessResults(code)
	if err != nil {
		t.Fatalf("second process results must be a no-op: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("idempotent call changed the leaderboard: %+v vs %+v", first, second)
	}
	if got := sessionStatus(srv, code); got != statusFinished {
		t.Fatalf("expected finished, got %s", got)
	}
}
