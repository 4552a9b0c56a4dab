package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

func TestNoticeContainsMessage(t *testing.T) {
	for _, kind := range []NoticeKind{NoticeInfo, NoticeSuccess, NoticeWarning, NoticeError} {
		got := Notice(kind, "Login successful!")
		if !strings.Contains(got, "Login successful!") {
			t.Errorf("Notice(%d) = %q, want message", kind, got)
		}
	}
}

func TestErrorNotice(t *testing.T) {
	if got := ErrorNotice(nil); got != "" {
		t.Errorf("ErrorNotice(nil) = %q, want empty", got)
	}
	got := ErrorNotice(&client.HTTPError{StatusCode: 404, Message: "Referral code not found"})
	if !strings.Contains(got, "Referral code not found") {
		t.Errorf("ErrorNotice() = %q, want backend message", got)
	}
	got = ErrorNotice(errors.Join(client.ErrNetwork, errors.New("dial tcp")))
	if !strings.Contains(got, "Network error") {
		t.Errorf("ErrorNotice() = %q, want network message", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		count, goal, width int
		filled             int
	}{
		{0, 3, 9, 0},
		{1, 3, 9, 3},
		{3, 3, 9, 9},
		{7, 3, 9, 9},
		{-1, 3, 9, 0},
		{2, 0, 9, 0},
	}
	for _, tc := range tests {
		got := ProgressBar(tc.count, tc.goal, tc.width)
		if n := strings.Count(got, "█"); n != tc.filled {
			t.Errorf("ProgressBar(%d, %d, %d) filled = %d, want %d", tc.count, tc.goal, tc.width, n, tc.filled)
		}
		if n := strings.Count(got, "░"); n != tc.width-tc.filled {
			t.Errorf("ProgressBar(%d, %d, %d) empty = %d, want %d", tc.count, tc.goal, tc.width, n, tc.width-tc.filled)
		}
	}
}

func TestBadges(t *testing.T) {
	got := Badges(domain.Badges(3))
	for _, b := range []string{"Plug", "Hype Squad", "Odogwu"} {
		if !strings.Contains(got, b) {
			t.Errorf("Badges() = %q, want to contain %q", got, b)
		}
	}
	if got := Badges(nil); !strings.Contains(got, "none yet") {
		t.Errorf("Badges(nil) = %q", got)
	}
}

func TestLeaderboard(t *testing.T) {
	got := Leaderboard([]domain.LeaderboardEntry{{Username: "ada", Count: 5}, {Username: "tunde", Count: 2}})
	if !strings.Contains(got, "#1") || !strings.Contains(got, "ada") || !strings.Contains(got, "5 referrals") {
		t.Errorf("Leaderboard() = %q", got)
	}
	if strings.Index(got, "ada") > strings.Index(got, "tunde") {
		t.Error("Leaderboard() lost ordering")
	}
	if got := Leaderboard(nil); !strings.Contains(got, "No referrals yet") {
		t.Errorf("Leaderboard(nil) = %q", got)
	}
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := Countdown(now.Add(90*time.Second+300*time.Millisecond), now); got != "1m30s" {
		t.Errorf("Countdown() = %q, want %q", got, "1m30s")
	}
	if got := Countdown(now.Add(-time.Second), now); !strings.Contains(got, "expired") {
		t.Errorf("Countdown(past) = %q, want expired", got)
	}
}

func TestRenderShimmerLogo(t *testing.T) {
	got := renderShimmerLogo(7)
	for _, r := range "NEXAHEALTH" {
		if !strings.ContainsRune(got, r) {
			t.Fatalf("renderShimmerLogo() missing %q", r)
		}
	}
}
