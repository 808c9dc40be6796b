package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/chat"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

const opTimeout = 60 * time.Second

var (
	userLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	agentLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	timeStyle       = lipgloss.NewStyle().Faint(true)
	statusStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	feedbackStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// refreshMsg is sent whenever the engine reports a state change.
type refreshMsg struct{}

// opDoneMsg carries the result of a background engine call. Silent results
// never reach the status line; the engine already logs their failures.
type opDoneMsg struct {
	err    error
	silent bool
}

// uiMode selects what the input line is editing.
type uiMode int

const (
	modeCompose uiMode = iota
	modeComment        // collecting an optional feedback comment
)

type model struct {
	engine *chat.Engine

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	mode          uiMode
	rating        string // feedback value awaiting its comment
	rateTargetID  string
	lastErr       string
	width, height int
	ready         bool
}

func newModel(engine *chat.Engine) model {
	ti := textinput.New()
	ti.Placeholder = "Tulis pesan…"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		engine: engine,
		input:  ti,
		spin:   sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - 4
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
		m.refreshTranscript(true)

	case refreshMsg:
		m.refreshTranscript(true)

	case opDoneMsg:
		if !msg.silent {
			if msg.err != nil {
				m.lastErr = msg.err.Error()
			} else {
				m.lastErr = ""
			}
		}
		m.refreshTranscript(true)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.mode == modeComment {
				// Cancel the comment, keep the chat.
				m.mode = modeCompose
				m.rating = ""
				m.rateTargetID = ""
				m.input.Reset()
				m.input.Placeholder = "Tulis pesan…"
				return m, nil
			}
			return m, tea.Quit

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if m.mode == modeComment {
				return m.submitRating(text)
			}
			if text == "" {
				return m, nil
			}
			return m, m.sendCmd(text)

		case "pgup":
			if m.engine.HasMore() && !m.engine.Loading() {
				return m, m.loadOlderCmd()
			}
			return m, nil

		case "ctrl+l":
			return m.beginRating(domain.FeedbackLike)

		case "ctrl+d":
			return m.beginRating(domain.FeedbackDislike)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// beginRating enters comment mode targeting the newest agent message.
func (m model) beginRating(rating string) (tea.Model, tea.Cmd) {
	target := lastAgentMessage(m.engine.Messages())
	if target == nil {
		m.lastErr = "belum ada balasan untuk dinilai"
		return m, nil
	}
	m.mode = modeComment
	m.rating = rating
	m.rateTargetID = target.ID
	m.input.Reset()
	m.input.Placeholder = "Komentar (opsional), Enter untuk kirim…"
	return m, nil
}

func (m model) submitRating(comment string) (tea.Model, tea.Cmd) {
	engine, id, rating := m.engine, m.rateTargetID, m.rating
	m.mode = modeCompose
	m.rating = ""
	m.rateTargetID = ""
	m.input.Placeholder = "Tulis pesan…"
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: engine.Rate(ctx, id, rating, comment), silent: true}
	}
}

func (m model) sendCmd(text string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: engine.SendMessage(ctx, text)}
	}
}

func (m model) loadOlderCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: engine.LoadPage(ctx, false)}
	}
}

// refreshTranscript re-renders the message log into the viewport. When stick
// is true the view follows the newest message.
func (m *model) refreshTranscript(stick bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderMessages(m.engine.Messages(), m.viewport.Width))
	if stick {
		m.viewport.GotoBottom()
	}
}

func (m model) View() string {
	if !m.ready {
		return "memuat…"
	}

	var status strings.Builder
	if m.engine.Pending() {
		status.WriteString(m.spin.View())
		status.WriteString(" agent sedang mengetik…")
	} else if m.engine.Loading() {
		status.WriteString("memuat riwayat…")
	} else if m.engine.HasMore() {
		status.WriteString("PgUp: riwayat lama")
	}
	statusLine := statusStyle.Render(status.String())
	if m.lastErr != "" {
		statusLine = errorStyle.Render(m.lastErr)
	}

	inputLine := m.input.View()
	if m.mode == modeComment {
		inputLine = promptStyle.Render(ratingLabel(m.rating)+" ") + inputLine
	}

	help := statusStyle.Render("Enter kirim · PgUp riwayat · Ctrl+L suka · Ctrl+D tidak suka · Esc keluar")

	return fmt.Sprintf("%s\n%s\n%s\n%s", m.viewport.View(), statusLine, inputLine, help)
}

func renderMessages(msgs []domain.ChatMessage, width int) string {
	if len(msgs) == 0 {
		return statusStyle.Render("Belum ada pesan. Mulai percakapan di bawah.")
	}
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		label := userLabelStyle.Render("Anda")
		if msg.IsAgent() {
			label = agentLabelStyle.Render("Agent")
		}
		ts := timeStyle.Render(msg.CreatedAt.Local().Format("15:04"))
		b.WriteString(label + " " + ts + "\n")
		b.WriteString(wrap.Render(msg.Message))
		if msg.Feedback != nil {
			note := ratingLabel(*msg.Feedback)
			if msg.FeedbackText != nil && *msg.FeedbackText != "" {
				note += " - " + *msg.FeedbackText
			}
			b.WriteString("\n" + feedbackStyle.Render(note))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func ratingLabel(rating string) string {
	if rating == domain.FeedbackLike {
		return "👍 suka"
	}
	return "👎 tidak suka"
}

func lastAgentMessage(msgs []domain.ChatMessage) *domain.ChatMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAgent() {
			return &msgs[i]
		}
	}
	return nil
}
