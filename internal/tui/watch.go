package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

// SessionView is the read side of the session manager shown by WatchModel.
type SessionView interface {
	State() domain.State
	Persistence() (domain.Persistence, bool)
	TokenExpiry() (time.Time, bool)
	RefreshTimerRunning() bool
}

// ExpiredMsg tells the watch screen the session was expired by a failed refresh.
type ExpiredMsg struct {
	Err error
}

type watchTickMsg time.Time

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// WatchModel renders a live view of the session: its state, where the token
// is kept, how long until it expires and whether background refresh runs.
type WatchModel struct {
	src     SessionView
	now     time.Time
	expired error
}

func NewWatchModel(src SessionView) WatchModel {
	return WatchModel{src: src, now: time.Now()}
}

func (m WatchModel) Init() tea.Cmd {
	return watchTickCmd()
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchTickMsg:
		m.now = time.Time(msg)
		return m, watchTickCmd()
	case ExpiredMsg:
		m.expired = msg.Err
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(SessionSummary(m.src, m.now))
	if m.expired != nil {
		b.WriteString("\n")
		b.WriteString(Notice(NoticeError, client.UserMessage(client.ErrSessionExpired)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// SessionSummary renders the session rows used by `status` and `watch`.
func SessionSummary(src SessionView, now time.Time) string {
	state := src.State()
	rows := [][2]string{{"state", StateStyle(state).Render(state.String())}}

	if p, ok := src.Persistence(); ok {
		rows = append(rows, [2]string{"token", p.String()})
	} else {
		rows = append(rows, [2]string{"token", dimStyle.Render("none")})
	}
	if exp, ok := src.TokenExpiry(); ok {
		rows = append(rows, [2]string{"expires in", Countdown(exp, now)})
	}
	refresh := dimStyle.Render("off")
	if src.RefreshTimerRunning() {
		refresh = accentStyle.Render("on")
	}
	rows = append(rows, [2]string{"auto-refresh", refresh})
	return KeyValue(rows)
}
