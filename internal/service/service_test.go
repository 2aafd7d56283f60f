package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/memory"
	"ragchat/internal/persona"
	"ragchat/internal/summarizer"
)

type fakeRetriever struct {
	results []domain.RetrievalResult
	err     error
	lastK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievalResult, error) {
	f.lastK = k
	return f.results, f.err
}

type scriptedModel struct {
	replies map[string]string // keyed by a substring of the system prompt
	errs    map[string]error
	calls   [][]domain.ChatMessage
	params  []domain.ChatParams
}

func (m *scriptedModel) Chat(_ context.Context, msgs []domain.ChatMessage, p domain.ChatParams) (string, error) {
	m.calls = append(m.calls, msgs)
	m.params = append(m.params, p)
	for key, err := range m.errs {
		if strings.Contains(msgs[0].Content, key) {
			return "", err
		}
	}
	for key, reply := range m.replies {
		if strings.Contains(msgs[0].Content, key) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

type fakeWeb struct {
	results []domain.WebResult
	err     error
	queries []string
}

func (f *fakeWeb) Search(_ context.Context, q string, _ int) ([]domain.WebResult, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func res(score float32, id string) domain.RetrievalResult {
	return domain.RetrievalResult{Score: score, ChunkID: id, Text: "text of " + id}
}

func TestFilterResults(t *testing.T) {
	in := []domain.RetrievalResult{res(0.9, "a"), res(0.5, "b"), res(0.2, "c"), res(0.4, "d"), res(0.35, "e")}

	got := FilterResults(in, 0.30, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ChunkID)
	assert.Equal(t, "b", got[1].ChunkID)
	assert.Equal(t, "d", got[2].ChunkID)

	assert.Len(t, FilterResults(in, 0.30, 0), 4)
	assert.Empty(t, FilterResults(in, 0.95, 4))
	assert.Empty(t, FilterResults(nil, 0, 4))
}

func TestNeedsWebSearch(t *testing.T) {
	triggers := []string{"look up", "latest", "Release Date"}
	assert.True(t, NeedsWebSearch("Can you LOOK UP the score?", triggers))
	assert.True(t, NeedsWebSearch("what is the release date of season 3", triggers))
	assert.False(t, NeedsWebSearch("tell me about training", triggers))
	assert.False(t, NeedsWebSearch("latest", nil))
}

func TestBuildMessages(t *testing.T) {
	p := persona.Persona{Name: "Saitama", Prompt: "You are Saitama."}

	msgs := BuildMessages(p, nil, memory.Summaries{}, nil, nil, "hi")
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "You are Saitama.\n\nStay in character.\n"))
	assert.Equal(t,
		"LONG_TERM_USER_SUMMARY:\n(none)\n\n"+
			"LONG_TERM_CHAT_SUMMARY:\n(none)\n\n"+
			"RECENT_CONVERSATION:\n(none)\n\n"+
			"RAG_CONTEXT:\n(none)\n\n"+
			"WEB_CONTEXT:\n(none)\n\n"+
			"USER_MESSAGE:\nhi",
		msgs[1].Content)

	msgs = BuildMessages(p,
		[]memory.Turn{{User: "yo", Assistant: "ok"}},
		memory.Summaries{User: "Likes ramen.", Chat: "Said hi."},
		[]domain.RetrievalResult{res(0.8, "a"), res(0.7, "b")},
		[]domain.WebResult{{Title: "T", URL: "https://t.test", Content: "C"}},
		"next")
	body := msgs[1].Content
	assert.Contains(t, body, "LONG_TERM_USER_SUMMARY:\nLikes ramen.\n\n")
	assert.Contains(t, body, "RECENT_CONVERSATION:\nUser: yo\nSaitama: ok\n\n")
	assert.Contains(t, body, "RAG_CONTEXT:\n[1] text of a\n[2] text of b\n\n")
	assert.Contains(t, body, "WEB_CONTEXT:\n[1] T\nC\nhttps://t.test\n\n")
}

func newChat(t *testing.T, retr *fakeRetriever, model *scriptedModel, web domain.WebSearcher) (*ChatService, *memory.ShortTerm, *memory.LongTerm) {
	t.Helper()
	stm := memory.NewShortTerm(2)
	ltm := memory.NewLongTerm(filepath.Join(t.TempDir(), "ltm.json"))
	svc := NewChatService(ChatDeps{
		Retriever: retr,
		Model:     model,
		Web:       web,
		Updater:   memory.NewUpdater(model, 0),
		STM:       stm,
		LTM:       ltm,
		Persona:   persona.Persona{Name: "Saitama", Prompt: "You are Saitama."},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, ChatOptions{
		Retrieval:   RetrievalPolicy{TopK: 5, MinScore: 0.30, MaxResults: 4},
		Triggers:    []string{"latest"},
		WebResults:  3,
		Temperature: 0.6,
		MaxTokens:   350,
	})
	return svc, stm, ltm
}

func TestReplyRunsFullTurn(t *testing.T) {
	retr := &fakeRetriever{results: []domain.RetrievalResult{res(0.9, "a"), res(0.1, "low")}}
	model := &scriptedModel{replies: map[string]string{
		"Stay in character": " Ok. (so bored) ",
		"USER SUMMARY":      "Trains daily.",
		"CHAT SUMMARY":      "Asked about news.",
	}}
	web := &fakeWeb{results: []domain.WebResult{{Title: "News", URL: "https://n.test", Content: "stuff"}}}
	svc, stm, ltm := newChat(t, retr, model, web)

	reply, err := svc.Reply(context.Background(), "  what is the latest news?  ")
	require.NoError(t, err)
	assert.Equal(t, "Ok. (so bored)", reply.Text)
	assert.Equal(t, 5, retr.lastK)
	require.Len(t, reply.Sources, 1)
	assert.Equal(t, "a", reply.Sources[0].ChunkID)
	assert.Len(t, reply.Web, 1)
	assert.Equal(t, []string{"what is the latest news?"}, web.queries)

	require.Len(t, model.calls, 3)
	assert.InDelta(t, 0.6, model.params[0].Temperature, 1e-9)
	assert.Equal(t, 350, model.params[0].MaxTokens)
	assert.Contains(t, model.calls[0][1].Content, "RAG_CONTEXT:\n[1] text of a\n\n")
	assert.NotContains(t, model.calls[0][1].Content, "text of low")

	assert.Equal(t, []memory.Turn{{User: "what is the latest news?", Assistant: "Ok. (so bored)"}}, stm.Turns())
	assert.Equal(t, memory.Summaries{User: "Trains daily.", Chat: "Asked about news."}, ltm.Get())

	reloaded := memory.NewLongTerm(ltm.Path())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, ltm.Get(), reloaded.Get())
}

func TestReplySkipsWebWithoutTrigger(t *testing.T) {
	model := &scriptedModel{replies: map[string]string{"Stay in character": "Sure.", "SUMMARY": "s"}}
	web := &fakeWeb{}
	svc, _, _ := newChat(t, &fakeRetriever{}, model, web)

	_, err := svc.Reply(context.Background(), "tell me about training")
	require.NoError(t, err)
	assert.Empty(t, web.queries)
}

func TestReplyDegradesOnWebAndSummaryFailures(t *testing.T) {
	model := &scriptedModel{
		replies: map[string]string{"Stay in character": "Fine.", "CHAT SUMMARY": "Chatted."},
		errs:    map[string]error{"USER SUMMARY": errors.New("summary model down")},
	}
	web := &fakeWeb{err: errors.New("tavily down")}
	svc, _, ltm := newChat(t, &fakeRetriever{}, model, web)
	ltm.Set(memory.Summaries{User: "Old user summary."})

	reply, err := svc.Reply(context.Background(), "latest news")
	require.NoError(t, err)
	assert.Equal(t, "Fine.", reply.Text)
	assert.Empty(t, reply.Web)
	assert.Contains(t, model.calls[0][1].Content, "WEB_CONTEXT:\n(none)")
	assert.Equal(t, memory.Summaries{User: "Old user summary.", Chat: "Chatted."}, ltm.Get())
}

func TestReplyFailsOnCompletionError(t *testing.T) {
	model := &scriptedModel{errs: map[string]error{"Stay in character": errors.New("503")}}
	svc, stm, _ := newChat(t, &fakeRetriever{}, model, nil)

	_, err := svc.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 0, stm.Len())
}

func TestReplyFailsOnRetrievalError(t *testing.T) {
	model := &scriptedModel{}
	svc, _, _ := newChat(t, &fakeRetriever{err: domain.ErrNotBuilt}, model, nil)

	_, err := svc.Reply(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrNotBuilt)
	assert.Empty(t, model.calls)
}

func TestReplyIgnoresBlankInput(t *testing.T) {
	model := &scriptedModel{}
	retr := &fakeRetriever{}
	svc, _, _ := newChat(t, retr, model, nil)

	reply, err := svc.Reply(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, reply.Text)
	assert.Empty(t, model.calls)
}

func TestSearchServiceOverview(t *testing.T) {
	retr := &fakeRetriever{results: []domain.RetrievalResult{res(0.4, "a")}}
	svc := NewSearchService(retr, summarizer.NewFrequency(), 1)

	got, err := svc.Query(context.Background(), "q", 7)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 7, retr.lastK)

	overview, err := svc.Overview([]domain.Chunk{
		{Text: "Saitama is a hero. He is bald."},
		{Text: "Saitama beats every monster."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Saitama beats every monster.", overview)
}
