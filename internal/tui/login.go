package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexahealth/nexa/pkg/domain"
)

type loginField int

const (
	fieldEmail loginField = iota
	fieldPassword
	fieldRemember
	numLoginFields
)

// SubmitFunc performs the login. It runs off the UI goroutine.
type SubmitFunc func(ctx context.Context, creds domain.Credentials, remember bool) error

// LoginForm is the interactive sign-in screen: email, masked password and a
// "remember me" toggle.
type LoginForm struct {
	ctx      context.Context
	submit   SubmitFunc
	email    string
	password string
	remember bool
	focus    loginField
	busy     bool
	err      error
	status   string
	done     bool
	canceled bool
	frame    int
}

type loginResultMsg struct {
	err error
}

// NewLoginForm returns a form prefilled with email. Focus starts on the
// password when an email is given.
func NewLoginForm(ctx context.Context, email string, remember bool, submit SubmitFunc) LoginForm {
	m := LoginForm{ctx: ctx, submit: submit, email: email, remember: remember}
	if email != "" {
		m.focus = fieldPassword
	}
	return m
}

func (m LoginForm) Init() tea.Cmd {
	return shimmerTickCmd()
}

func (m LoginForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shimmerTickMsg:
		m.frame++
		return m, shimmerTickCmd()

	case loginResultMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.password = ""
			m.focus = fieldPassword
			return m, nil
		}
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m LoginForm) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	m.status = ""
	m.err = nil

	switch msg.String() {
	case "ctrl+s":
		return m.doSubmit()
	case "tab", "down":
		m.focus = (m.focus + 1) % numLoginFields
	case "shift+tab", "up":
		m.focus = (m.focus - 1 + numLoginFields) % numLoginFields
	case "enter":
		if m.focus == fieldEmail {
			m.focus = fieldPassword
			return m, nil
		}
		return m.doSubmit()
	case " ":
		if m.focus == fieldRemember {
			m.remember = !m.remember
			return m, nil
		}
		m.edit(" ")
	default:
		m.edit(msg.String())
	}
	return m, nil
}

func (m *LoginForm) edit(key string) {
	switch m.focus {
	case fieldEmail:
		m.email = editRune(m.email, key)
	case fieldPassword:
		m.password = editRune(m.password, key)
	}
}

func (m LoginForm) doSubmit() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.email)
	if email == "" || m.password == "" {
		m.status = "Please fill in all fields"
		return m, nil
	}
	if !strings.Contains(email, "@") {
		m.status = "Invalid email format"
		m.focus = fieldEmail
		return m, nil
	}

	m.busy = true
	ctx, submit := m.ctx, m.submit
	creds := domain.Credentials{Username: email, Password: m.password}
	remember := m.remember
	return m, func() tea.Msg {
		return loginResultMsg{err: submit(ctx, creds, remember)}
	}
}

// Done reports whether the login succeeded.
func (m LoginForm) Done() bool { return m.done }

// Canceled reports whether the user left the form without logging in.
func (m LoginForm) Canceled() bool { return m.canceled }

// Err is the last login failure shown on the form.
func (m LoginForm) Err() error { return m.err }

// Remember is the final state of the toggle.
func (m LoginForm) Remember() bool { return m.remember }

func (m LoginForm) View() string {
	var b strings.Builder
	b.WriteString(renderShimmerLogo(m.frame))
	b.WriteString("\n\n")

	row := func(f loginField, label, value string) {
		cursor := " "
		style := metaStyle
		if f == m.focus {
			cursor = ">"
			style = selectedStyle
			if f != fieldRemember {
				value += "█"
			}
		}
		fmt.Fprintf(&b, "%s %s %s\n", cursor, style.Width(10).Render(label), value)
	}
	row(fieldEmail, "email", m.email)
	row(fieldPassword, "password", mask(m.password))
	check := "[ ]"
	if m.remember {
		check = "[x]"
	}
	row(fieldRemember, "remember", check+dimStyle.Render("  keep me signed in on this machine"))

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString(dimStyle.Render("signing in..."))
	case m.err != nil:
		b.WriteString(ErrorNotice(m.err))
	case m.status != "":
		b.WriteString(Notice(NoticeError, m.status))
	default:
		b.WriteString(dimStyle.Render("tab: next  space: toggle  enter: sign in  esc: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// RunLoginForm runs the form until the user signs in or cancels.
func RunLoginForm(ctx context.Context, in io.Reader, out io.Writer, email string, remember bool, submit SubmitFunc) (LoginForm, error) {
	p := tea.NewProgram(NewLoginForm(ctx, email, remember, submit),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return LoginForm{}, fmt.Errorf("login form: %w", err)
	}
	return final.(LoginForm), nil
}
