package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/service"
)

// Chatter is the TUI-facing subset of the chat service.
type Chatter interface {
	Reply(ctx context.Context, text string) (service.Reply, error)
}

type replyMsg struct {
	reply service.Reply
	err   error
}

type chatEntry struct {
	user    string
	reply   service.Reply
	err     error
	pending bool
}

// ChatModel is the Bubble Tea model of the chat screen.
type ChatModel struct {
	ctx      context.Context
	chatter  Chatter
	name     string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []chatEntry
	status   string
	ready    bool
	busy     bool
}

// NewChat creates the chat screen. name labels the assistant's messages.
func NewChat(ctx context.Context, chatter Chatter, name string) ChatModel {
	ti := textinput.New()
	ti.Prompt = "You: "
	ti.Placeholder = "Say something (exit to quit)"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return ChatModel{
		ctx:      ctx,
		chatter:  chatter,
		name:     name,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

// Init starts the cursor blink.
func (m ChatModel) Init() tea.Cmd { return textinput.Blink }

// Update handles input, replies and resizes.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-1-1-qh-rh-1)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		last := &m.entries[len(m.entries)-1]
		last.pending = false
		last.reply, last.err = msg.reply, msg.err
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("%d knowledge base sources, %d web results", len(msg.reply.Sources), len(msg.reply.Web))
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			if q := strings.ToLower(text); q == "exit" || q == "quit" {
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			m.entries = append(m.entries, chatEntry{user: text, pending: true})
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.send(text))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) send(text string) tea.Cmd {
	ctx, chatter := m.ctx, m.chatter
	return func() tea.Msg {
		reply, err := chatter.Reply(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

// View renders the transcript, the input box and the status line.
func (m ChatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Chat with " + m.name)
	transcript := resultBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return lipgloss.JoinVertical(lipgloss.Left, header, transcript, input, status)
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m ChatModel) renderTranscript() string {
	if len(m.entries) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	width := max(10, m.viewport.Width-4)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(wrap.Render(e.user))
		b.WriteString("\n")
		b.WriteString(assistantStyle.Render(m.name + ": "))
		switch {
		case e.pending:
			b.WriteString(m.spinner.View())
		case e.err != nil:
			b.WriteString(errorStyle.Render(e.err.Error()))
		default:
			b.WriteString(wrap.Render(e.reply.Text))
			if len(e.reply.Sources) > 0 {
				ids := make([]string, len(e.reply.Sources))
				for j, s := range e.reply.Sources {
					ids[j] = fmt.Sprintf("%s (%.2f)", s.ChunkID, s.Score)
				}
				b.WriteString("\n")
				b.WriteString(mutedStyle.Render("sources: " + strings.Join(ids, ", ")))
			}
		}
	}
	return b.String()
}
