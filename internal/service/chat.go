package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/memory"
	"ragchat/internal/persona"
)

const none = "(none)"

// ChatOptions tunes a chat turn.
type ChatOptions struct {
	Retrieval   RetrievalPolicy
	Triggers    []string
	WebResults  int
	Temperature float64
	MaxTokens   int
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text    string
	Sources []domain.RetrievalResult
	Web     []domain.WebResult
}

// ChatService runs the conversation: each turn is grounded in knowledge base
// results, optional web results and both memories.
type ChatService struct {
	retriever domain.Retriever
	model     domain.ChatModel
	web       domain.WebSearcher
	updater   *memory.Updater
	stm       *memory.ShortTerm
	ltm       *memory.LongTerm
	persona   persona.Persona
	opts      ChatOptions
	log       *slog.Logger
}

// ChatDeps are the collaborators of a ChatService. Web may be nil.
type ChatDeps struct {
	Retriever domain.Retriever
	Model     domain.ChatModel
	Web       domain.WebSearcher
	Updater   *memory.Updater
	STM       *memory.ShortTerm
	LTM       *memory.LongTerm
	Persona   persona.Persona
	Logger    *slog.Logger
}

// NewChatService assembles a chat service.
func NewChatService(deps ChatDeps, opts ChatOptions) *ChatService {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		retriever: deps.Retriever,
		model:     deps.Model,
		web:       deps.Web,
		updater:   deps.Updater,
		stm:       deps.STM,
		ltm:       deps.LTM,
		persona:   deps.Persona,
		opts:      opts,
		log:       log,
	}
}

// Persona returns the persona the service speaks as.
func (s *ChatService) Persona() persona.Persona { return s.persona }

// Reply answers one user message. Web search and summary failures are logged
// and do not fail the turn; retrieval and completion failures do.
func (s *ChatService) Reply(ctx context.Context, userText string) (Reply, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return Reply{}, nil
	}

	hits, err := s.retriever.Retrieve(ctx, userText, s.opts.Retrieval.TopK)
	if err != nil {
		return Reply{}, fmt.Errorf("retrieve context: %w", err)
	}
	hits = FilterResults(hits, s.opts.Retrieval.MinScore, s.opts.Retrieval.MaxResults)

	var web []domain.WebResult
	if s.web != nil && NeedsWebSearch(userText, s.opts.Triggers) {
		web, err = s.web.Search(ctx, userText, s.opts.WebResults)
		if err != nil {
			s.log.Warn("web search failed", "error", err)
			web = nil
		}
	}

	messages := BuildMessages(s.persona, s.stm.Turns(), s.ltm.Get(), hits, web, userText)
	answer, err := s.model.Chat(ctx, messages, domain.ChatParams{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return Reply{}, err
	}
	answer = strings.TrimSpace(answer)
	s.log.Debug("chat turn", "sources", len(hits), "web", len(web))

	turn := memory.Turn{User: userText, Assistant: answer}
	s.stm.Add(turn)
	s.updateLongTerm(ctx, turn)

	return Reply{Text: answer, Sources: hits, Web: web}, nil
}

func (s *ChatService) updateLongTerm(ctx context.Context, turn memory.Turn) {
	if s.updater == nil {
		return
	}
	cur := s.ltm.Get()
	next := cur
	if v, err := s.updater.UpdateUser(ctx, cur.User, turn); err != nil {
		s.log.Warn("user summary not updated", "error", err)
	} else {
		next.User = v
	}
	if v, err := s.updater.UpdateChat(ctx, cur.Chat, turn); err != nil {
		s.log.Warn("chat summary not updated", "error", err)
	} else {
		next.Chat = v
	}
	s.ltm.Set(next)
	if err := s.ltm.Save(); err != nil {
		s.log.Error("long-term memory not saved", "path", s.ltm.Path(), "error", err)
	}
}

// NeedsWebSearch reports whether the lowercased text contains a trigger phrase.
func NeedsWebSearch(text string, triggers []string) bool {
	t := strings.ToLower(text)
	for _, trig := range triggers {
		if trig = strings.ToLower(strings.TrimSpace(trig)); trig != "" && strings.Contains(t, trig) {
			return true
		}
	}
	return false
}

// BuildMessages assembles the system prompt and the context-laden user message.
func BuildMessages(p persona.Persona, turns []memory.Turn, ltm memory.Summaries, hits []domain.RetrievalResult, web []domain.WebResult, userText string) []domain.ChatMessage {
	system := p.Prompt + "\n\n" +
		"Stay in character.\n" +
		"Be concise.\n" +
		"After the main reply add one short inner thought in parentheses.\n" +
		"Use RAG_CONTEXT only for facts from the knowledge base.\n" +
		"Use WEB_CONTEXT only if the user asks to look something up or if the question requires current facts.\n" +
		"If something is still unclear, say you're not sure.\n"

	var ragBlock []string
	for i, h := range hits {
		ragBlock = append(ragBlock, fmt.Sprintf("[%d] %s", i+1, h.Text))
	}
	var webBlock []string
	for i, w := range web {
		webBlock = append(webBlock, fmt.Sprintf("[%d] %s\n%s\n%s", i+1, w.Title, w.Content, w.URL))
	}
	var stmBlock []string
	for _, t := range turns {
		stmBlock = append(stmBlock, fmt.Sprintf("User: %s\n%s: %s", t.User, p.Name, t.Assistant))
	}

	var b strings.Builder
	section := func(name, body string) {
		if body == "" {
			body = none
		}
		b.WriteString(name)
		b.WriteString(":\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	section("LONG_TERM_USER_SUMMARY", ltm.User)
	section("LONG_TERM_CHAT_SUMMARY", ltm.Chat)
	section("RECENT_CONVERSATION", strings.Join(stmBlock, "\n"))
	section("RAG_CONTEXT", strings.Join(ragBlock, "\n"))
	section("WEB_CONTEXT", strings.Join(webBlock, "\n"))
	b.WriteString("USER_MESSAGE:\n")
	b.WriteString(userText)

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: b.String()},
	}
}
