package server

import (
	"crypto/rand"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const sessionCodeLength = 6

func newSessionCode() string {
	buf := make([]byte, sessionCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("A", sessionCodeLength)
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}

// validLetters is A-Z minus the configured exclusions. Falls back to
// the full alphabet if the exclusions swallow everything.
func validLetters(exclusions string) []rune {
	excluded := make(map[rune]struct{}, len(exclusions))
	for _, r := range strings.ToUpper(exclusions) {
		excluded[r] = struct{}{}
	}
	letters := make([]rune, 0, 26)
	for r := 'A'; r <= 'Z'; r++ {
		if _, skip := excluded[r]; skip {
			continue
		}
		letters = append(letters, r)
	}
	if len(letters) == 0 {
		for r := 'A'; r <= 'Z'; r++ {
			letters = append(letters, r)
		}
	}
	return letters
}

func randomLetter(letters []rune) string {
	buf := make([]byte, 1)
	if _, err := rand.Read(buf); err != nil {
		return string(letters[0])
	}
	return string(letters[int(buf[0])%len(letters)])
}

func equalNames(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
