package memory

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

const (
	userSummaryPrompt = "You maintain a long-term USER SUMMARY.\n" +
		"Update the summary using the new turn.\n" +
		"Keep it short and stable.\n" +
		"Only include durable preferences, goals, constraints, and ongoing projects.\n" +
		"Do not include transient details.\n" +
		"Return ONLY the updated summary text, no bullets unless needed.\n" +
		"Max 120 words.\n"

	chatSummaryPrompt = "You maintain a long-term CHAT SUMMARY.\n" +
		"Summarize what has happened so far in the conversation.\n" +
		"Keep it short.\n" +
		"Return ONLY the updated summary text.\n" +
		"Max 120 words.\n"
)

// DefaultSummaryTokens caps the length of a rewritten summary.
const DefaultSummaryTokens = 220

// Updater rewrites long-term summaries after each turn using a chat model.
type Updater struct {
	model     domain.ChatModel
	maxTokens int
}

// NewUpdater returns an updater. maxTokens <= 0 uses DefaultSummaryTokens.
func NewUpdater(model domain.ChatModel, maxTokens int) *Updater {
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryTokens
	}
	return &Updater{model: model, maxTokens: maxTokens}
}

// UpdateUser folds a turn into the user summary.
func (u *Updater) UpdateUser(ctx context.Context, existing string, turn Turn) (string, error) {
	return u.rewrite(ctx, userSummaryPrompt, "USER", existing, turn)
}

// UpdateChat folds a turn into the chat summary.
func (u *Updater) UpdateChat(ctx context.Context, existing string, turn Turn) (string, error) {
	return u.rewrite(ctx, chatSummaryPrompt, "CHAT", existing, turn)
}

func (u *Updater) rewrite(ctx context.Context, system, kind, existing string, turn Turn) (string, error) {
	if existing == "" {
		existing = "(empty)"
	}
	user := fmt.Sprintf("EXISTING_%s_SUMMARY:\n%s\n\nNEW_TURN:\nUSER: %s\nASSISTANT: %s\n\nWrite UPDATED_%s_SUMMARY:",
		kind, existing, turn.User, turn.Assistant, kind)

	out, err := u.model.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}, domain.ChatParams{Temperature: 0, MaxTokens: u.maxTokens})
	if err != nil {
		return "", fmt.Errorf("update %s summary: %w", strings.ToLower(kind), err)
	}
	return strings.TrimSpace(out), nil
}
