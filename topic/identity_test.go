package topic

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "General Chat", want: "general-chat"},
		{in: "DEV/ops", want: "dev-ops"},
		{in: "  release_1.2  ", want: "release_1.2"},
		{in: "héllo wörld", want: "h-llo-w-rld"},
		{in: "---", want: "general"},
		{in: "", want: "general"},
		{in: strings.Repeat("a", 100), want: strings.Repeat("a", 64)},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIdentityKeyAndDir(t *testing.T) {
	t.Parallel()

	id := NewIdentity("Team Chat", "Daily Standup")
	if id.Key() != "team-chat/daily-standup" {
		t.Fatalf("Key() = %q, want team-chat/daily-standup", id.Key())
	}
	want := filepath.Join("/state/topics", "team-chat", "daily-standup")
	if got := id.Dir("/state/topics"); got != want {
		t.Fatalf("Dir() = %q, want %q", got, want)
	}
}

func TestIdentityStable(t *testing.T) {
	t.Parallel()

	a := NewIdentity("Dev", "Bug Triage")
	b := NewIdentity("dev", "bug triage")
	if a.Key() != b.Key() {
		t.Fatalf("identity not case-normalized: %q vs %q", a.Key(), b.Key())
	}
}
