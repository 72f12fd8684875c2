package server

import (
	"strings"
	"testing"
)

func TestDirectoryResolveIsStable(t *testing.T) {
	dir := newPlayerDirectory()
	first, name, err := dir.Resolve("Ada")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != "Ada" {
		t.Fatalf("expected cleaned name Ada, got %q", name)
	}
	second, _, err := dir.Resolve("  ada ")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first != second {
		t.Fatalf("same name resolved to different identities: %s vs %s", first, second)
	}
	other, _, err := dir.Resolve("Ben")
	if err != nil {
		t.Fatalf("resolve other: %v", err)
	}
	if other == first {
		t.Fatalf("distinct names share an identity")
	}
}

func TestDirectoryRejectsBadNames(t *testing.T) {
	dir := newPlayerDirectory()
	for _, bad := range []string{"", "   ", strings.Repeat("a", maxNameLength+1), "bad\x00name"} {
		if _, _, err := dir.Resolve(bad); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := normalizeCode(" abc123 "); got != "ABC123" {
		t.Fatalf("expected normalized code ABC123, got %q", got)
	}
	for _, bad := range []string{"", "ABC12", "ABC1234", "ABC-12"} {
		if got := normalizeCode(bad); got != "" {
			t.Fatalf("expected %q to be invalid, got %q", bad, got)
		}
	}
}
