// Package tui implements the terminal chat client.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cognichat/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Conversation is one chat session seen from the terminal.
type Conversation interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
	Clear(ctx context.Context) error
}

type answerMsg struct {
	answer *models.Answer
	err    error
}

type clearedMsg struct{ err error }

type line struct {
	role    models.Role
	text    string
	sources []models.Chunk
	failed  bool
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	conv   Conversation
	ctx    context.Context
	styles *Styles

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	lines       []line
	waiting     bool
	showSources bool
	lastElapsed time.Duration
	err         error

	width, height int
	ready         bool
}

// New returns a chat model bound to conv.
func New(ctx context.Context, conv Conversation) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about the documentation..."
	ti.CharLimit = 2000
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		conv:     conv,
		ctx:      ctx,
		styles:   DefaultStyles(),
		viewport: viewport.New(80, 18),
		input:    ti,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			m.lines = append(m.lines, line{role: models.RoleAssistant, text: errorText(msg.err), failed: true})
		} else {
			m.err = nil
			m.lastElapsed = msg.answer.Duration
			m.lines = append(m.lines, line{
				role:    models.RoleAssistant,
				text:    msg.answer.Text,
				sources: msg.answer.SupportingChunks,
			})
		}
		m.refresh()
		return m, nil

	case clearedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.lines = nil
			m.lastElapsed = 0
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+l":
		if m.waiting {
			return m, nil
		}
		return m, m.clear()
	case "ctrl+s":
		m.showSources = !m.showSources
		m.refresh()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if msg.Type == tea.KeyEnter {
		question := strings.TrimSpace(m.input.Value())
		if question == "" || m.waiting {
			return m, nil
		}
		m.input.SetValue("")
		m.waiting = true
		m.err = nil
		m.lines = append(m.lines, line{role: models.RoleUser, text: question})
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.ask(question))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		answer, err := conv.Ask(ctx, question)
		return answerMsg{answer: answer, err: err}
	}
}

func (m Model) clear() tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		return clearedMsg{err: conv.Clear(ctx)}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	// title, input box and footer
	chrome := 1 + 3 + 1
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 3)
	m.input.Width = max(width-6, 10)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.lines) == 0 {
		return m.styles.Muted.Render("Ask a question to get started.")
	}

	wrap := lipgloss.NewStyle().Width(max(m.width-2, 20))
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case l.role == models.RoleUser:
			b.WriteString(m.styles.User.Render("You"))
		case l.failed:
			b.WriteString(m.styles.Error.Render("Error"))
		default:
			b.WriteString(m.styles.Assistant.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(l.text))

		if m.showSources && len(l.sources) > 0 && i == m.lastAnswerIndex() {
			b.WriteString("\n")
			for j, c := range l.sources {
				b.WriteString("\n")
				b.WriteString(m.styles.Source.Render(fmt.Sprintf("[%d] %s", j+1, sourceLabel(c))))
				b.WriteString("\n")
				b.WriteString(m.styles.Source.Render(snippet(c.Text, 240)))
			}
		}
	}
	return b.String()
}

func (m Model) lastAnswerIndex() int {
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].role == models.RoleAssistant && !m.lines[i].failed {
			return i
		}
	}
	return -1
}

func (m Model) View() string {
	title := m.styles.Title.Render("cognichat")
	input := m.styles.Input.Width(max(m.width-2, 10)).Render(m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View(), input, m.footer())
}

func (m Model) footer() string {
	var status string
	switch {
	case m.waiting:
		status = m.spinner.View() + " thinking..."
	case m.err != nil:
		status = m.styles.Error.Render(errorText(m.err))
	case m.lastElapsed > 0:
		status = fmt.Sprintf("answered in %.2fs", m.lastElapsed.Seconds())
	}

	sources := "off"
	if m.showSources {
		sources = "on"
	}
	help := fmt.Sprintf("enter send · ctrl+s sources (%s) · ctrl+l clear · esc quit", sources)
	if status == "" {
		return m.styles.Footer.Render(help)
	}
	return m.styles.Footer.Render(status + "  |  " + help)
}

func errorText(err error) string {
	if models.IsRecoverable(err) {
		return "The model could not answer right now. Please try again."
	}
	return err.Error()
}

func sourceLabel(c models.Chunk) string {
	if src := c.Source(); src != "" {
		return src
	}
	return c.ID
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
