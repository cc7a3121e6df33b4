// Package ui renders the interactive chat client. A fixed tick drives the
// mediator drain so the transcript never lags by more than one render pass;
// the Update loop itself performs no I/O.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/streamtalk/streamtalk-go/internal/control"
)

const tickInterval = 50 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	noticeStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("214")).Padding(0, 2)
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// State is the mutable surface the mediator dispatches into. It is only
// touched from the bubbletea Update goroutine.
type State struct {
	title   string
	lines   []string
	notices []string
	input   textinput.Model
	stopped bool
}

// NewState builds the surface with a focused input field.
func NewState(title string) *State {
	ti := textinput.New()
	ti.Placeholder = "Type a message"
	ti.Prompt = "> "
	ti.Focus()
	return &State{title: title, input: ti}
}

// AppendMessage implements control.View.
func (s *State) AppendMessage(from, text string) {
	s.lines = append(s.lines, fmt.Sprintf("%s -> %s", from, text))
}

// PresentInfo implements control.View.
func (s *State) PresentInfo(text string) {
	s.notices = append(s.notices, text)
}

// TakeInput implements control.View: returns the pending buffer and clears it.
func (s *State) TakeInput() string {
	v := s.input.Value()
	s.input.SetValue("")
	return v
}

// SetConnected implements control.View.
func (s *State) SetConnected(username, chatID string) {
	s.title = username + " @ " + chatID
}

// Stop implements control.View.
func (s *State) Stop() {
	s.stopped = true
}

type tickMsg time.Time

// Model is the bubbletea program for the chat client.
type Model struct {
	st       *State
	med      *control.Mediator
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	fatal    error
	log      *zap.Logger
}

// New assembles the program around a state already registered as the
// mediator's view.
func New(st *State, med *control.Mediator, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	return Model{st: st, med: med, log: log}
}

// Err returns the fatal condition that ended the loop, if any.
func (m Model) Err() error {
	return m.fatal
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - 5
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.st.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if len(m.st.notices) > 0 {
			switch msg.String() {
			case "enter", "esc":
				m.st.notices = m.st.notices[1:]
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			m.send(control.Quit{})
			return m, nil
		case "enter":
			m.send(control.Submit{})
			return m, nil
		}
		var cmd tea.Cmd
		m.st.input, cmd = m.st.input.Update(msg)
		return m, cmd

	case tickMsg:
		if err := m.med.Drain(); err != nil {
			if errors.Is(err, control.ErrClosed) {
				m.log.Error("all signal producers gone")
				m.fatal = err
				return m, tea.Quit
			}
		}
		if m.st.stopped {
			return m, tea.Quit
		}
		if m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(strings.Join(m.st.lines, "\n"))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, tick()
	}

	var cmd tea.Cmd
	m.st.input, cmd = m.st.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.st.title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(inputStyle.Width(m.width).Render(m.st.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: send · ctrl+q: quit"))

	if len(m.st.notices) > 0 {
		notice := noticeStyle.Render(m.st.notices[0] + "\n\n(enter to dismiss)")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, notice)
	}
	return b.String()
}

// send pushes a self-directed signal. The interactive loop may block
// briefly when the channel is saturated; slow producers beat dropped
// signals.
func (m Model) send(s control.Signal) {
	if err := m.med.Send(context.Background(), s); err != nil {
		m.log.Warn("signal send failed", zap.Error(err))
	}
}
