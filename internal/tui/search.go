package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/domain"
)

// Searcher is the TUI-facing subset of the search service.
type Searcher interface {
	Query(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error)
}

type searchResultMsg struct {
	query   string
	results []domain.RetrievalResult
	err     error
}

// SearchModel is the Bubble Tea model of the knowledge base browser.
type SearchModel struct {
	ctx       context.Context
	searcher  Searcher
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.RetrievalResult
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// NewSearch creates the browser. summary is shown under the title.
func NewSearch(ctx context.Context, searcher Searcher, summary string, topK int) SearchModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return SearchModel{
		ctx:      ctx,
		searcher: searcher,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m SearchModel) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case searchResultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.search(q)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m SearchModel) search(q string) tea.Cmd {
	ctx, searcher, k := m.ctx, m.searcher, m.topK
	return func() tea.Msg {
		res, err := searcher.Query(ctx, q, k)
		return searchResultMsg{query: q, results: res, err: err}
	}
}

// View renders the TUI layout and current result.
func (m SearchModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Knowledge Base Search")
	summary := mutedStyle.Render(m.summary)
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m SearchModel) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f  %s", m.cursor+1, len(m.results), r.Score, r.ChunkID)
	source := mutedStyle.Render(filepath.ToSlash(r.Meta.SourcePath))
	body := highlightBestSentence(r.Text, m.lastQuery)
	return title + "\n" + source + "\n\n" + body
}
