package server

import (
	"strings"
	"unicode"
)

// ScoreOracle judges a single answer against the round's letter. Both
// the realtime path and the synchronous path route every submission
// through the one oracle wired into the server.
type ScoreOracle interface {
	ScoreAnswer(answer, letter string) int
}

// prefixOracle is the default policy: blank answers score zero, an
// answer whose first rune matches the round letter case-insensitively
// earns full credit, anything else scores zero.
type prefixOracle struct {
	credit int
}

func NewPrefixOracle(credit int) ScoreOracle {
	if credit <= 0 {
		credit = 10
	}
	return prefixOracle{credit: credit}
}

func (o prefixOracle) ScoreAnswer(answer, letter string) int {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" || letter == "" {
		return 0
	}
	first := []rune(trimmed)[0]
	want := []rune(letter)[0]
	if unicode.ToUpper(first) == unicode.ToUpper(want) {
		return o.credit
	}
	return 0
}
