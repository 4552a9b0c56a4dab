package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

// Shimmer animation for the NEXAHEALTH wordmark.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders the wordmark as a wave of teal light moving left
// to right. Deep teal (#0f3d3a) -> bright aqua (#5eead4).
func renderShimmerLogo(frame int) string {
	const text = "NEXAHEALTH"
	n := len(text)
	t := float64(frame)

	var out strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		b := math.Sin(t*0.1-x*3.0)*0.5 + 0.5
		b = b*0.8 + 0.15
		b = math.Max(0.05, math.Min(1, b))

		r := clampByte(15 + b*(94-15))
		g := clampByte(61 + b*(234-61))
		bl := clampByte(58 + b*(212-58))

		s := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))
		if i < n-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}

func clampByte(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int(v)
}

var (
	brandColor = lipgloss.Color("#14b8a6")
	okColor    = lipgloss.Color("#4ade80")
	warnColor  = lipgloss.Color("#facc15")
	errColor   = lipgloss.Color("#f87171")
	mutedColor = lipgloss.Color("#8891a5")

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#606878"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(brandColor).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	accentStyle = lipgloss.NewStyle().
			Foreground(brandColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e5e7eb"))

	errorTextStyle = lipgloss.NewStyle().
			Foreground(errColor)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0b1f1d")).
			Background(brandColor).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// NoticeKind selects the color of a notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

func (k NoticeKind) color() lipgloss.Color {
	switch k {
	case NoticeSuccess:
		return okColor
	case NoticeWarning:
		return warnColor
	case NoticeError:
		return errColor
	default:
		return brandColor
	}
}

// Notice renders a boxed one-line message, the terminal's toast.
func Notice(kind NoticeKind, msg string) string {
	c := kind.color()
	return noticeStyle.BorderForeground(c).Foreground(c).Render(msg)
}

// ErrorNotice renders err as the user should see it. Connectivity problems
// are warnings; everything else is an error.
func ErrorNotice(err error) string {
	if err == nil {
		return ""
	}
	kind := NoticeError
	switch client.Classify(err) {
	case client.KindNetwork, client.KindTimeout, client.KindCanceled:
		kind = NoticeWarning
	}
	return Notice(kind, client.UserMessage(err))
}

// KeyValue renders aligned label/value rows.
func KeyValue(rows [][2]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(valueStyle.Render(r[1]))
		b.WriteString("\n")
	}
	return b.String()
}

// ProgressBar renders count out of goal as a bar of width cells.
func ProgressBar(count, goal, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if goal > 0 {
		filled = count * width / goal
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return accentStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// Badges renders earned badges as chips.
func Badges(badges []string) string {
	if len(badges) == 0 {
		return dimStyle.Render("none yet")
	}
	parts := make([]string, len(badges))
	for i, b := range badges {
		parts[i] = badgeStyle.Render(b)
	}
	return strings.Join(parts, " ")
}

// StateStyle colors a session state.
func StateStyle(s domain.State) lipgloss.Style {
	switch s {
	case domain.Authenticated:
		return lipgloss.NewStyle().Foreground(okColor).Bold(true)
	case domain.Refreshing, domain.Authenticating:
		return lipgloss.NewStyle().Foreground(warnColor)
	case domain.Expired:
		return lipgloss.NewStyle().Foreground(errColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

// rankStyle returns a colored style based on leaderboard position.
func rankStyle(rank int) lipgloss.Style {
	switch rank {
	case 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15")).Bold(true) // gold
	case 2:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#cbd5e1")) // silver
	case 3:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706")) // bronze
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

// Leaderboard renders ranked referrers.
func Leaderboard(entries []domain.LeaderboardEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("No referrals yet. Be the first!") + "\n"
	}
	var b strings.Builder
	for i, e := range entries {
		rank := i + 1
		fmt.Fprintf(&b, "%s %-24s %s\n",
			rankStyle(rank).Render(fmt.Sprintf("#%-2d", rank)),
			e.Username,
			metaStyle.Render(fmt.Sprintf("%d referrals", e.Count)))
	}
	return b.String()
}

// Countdown renders the time left until t, or "expired".
func Countdown(t, now time.Time) string {
	d := t.Sub(now).Truncate(time.Second)
	if d <= 0 {
		return errorTextStyle.Render("expired")
	}
	return d.String()
}
