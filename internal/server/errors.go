package server

import (
	"errors"
	"fmt"
	"net/http"
)

type errorKind int

const (
	kindNotFound errorKind = iota
	kindConflict
	kindInvalidArgument
	kindExhausted
	kindInfrastructure
)

// GameError is a typed failure from the coordinator. The kind drives
// the HTTP status on the synchronous API and the ERROR event wording
// on the realtime path.
type GameError struct {
	kind errorKind
	msg  string
	err  error
}

func (e *GameError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *GameError) Unwrap() error {
	return e.err
}

var (
	errSessionNotFound    = &GameError{kind: kindNotFound, msg: "session not found"}
	errPlayerNotFound     = &GameError{kind: kindNotFound, msg: "player not found"}
	errSessionNotJoinable = &GameError{kind: kindConflict, msg: "session already started"}
	errDuplicatePlayer    = &GameError{kind: kindConflict, msg: "player already joined"}
	errCodeCollision      = &GameError{kind: kindConflict, msg: "session code already in use"}
	errRoundInProgress    = &GameError{kind: kindConflict, msg: "round already in progress"}
	errRoundNotActive     = &GameError{kind: kindConflict, msg: "no round in progress"}
	errRoundNotPending    = &GameError{kind: kindConflict, msg: "round results not pending"}
	errNotHost            = &GameError{kind: kindConflict, msg: "only the host can do that"}
	errSessionFinished    = &GameError{kind: kindConflict, msg: "session already finished"}
	errCodeSpaceExhausted = &GameError{kind: kindExhausted, msg: "could not allocate a unique session code"}
)

func invalidArgument(format string, args ...any) error {
	return &GameError{kind: kindInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

func infrastructureError(op string, err error) error {
	return &GameError{kind: kindInfrastructure, msg: op + " failed", err: err}
}

func errorStatus(err error) int {
	var gameErr *GameError
	if !errors.As(err, &gameErr) {
		return http.StatusInternalServerError
	}
	switch gameErr.kind {
	case kindNotFound:
		return http.StatusNotFound
	case kindConflict:
		return http.StatusConflict
	case kindInvalidArgument:
		return http.StatusBadRequest
	case kindExhausted:
		return http.StatusServiceUnavailable
	case kindInfrastructure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr.msg
	}
	return "internal error"
}
