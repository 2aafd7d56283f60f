package commands

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"ragchat/internal/domain"
	"ragchat/internal/llm"
	"ragchat/internal/memory"
	"ragchat/internal/persona"
	"ragchat/internal/service"
	"ragchat/internal/tui"
	"ragchat/internal/websearch"
)

// ChatAction starts the chat screen.
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd, true)
	if err != nil {
		return err
	}
	defer appCtx.Close()
	cfg := appCtx.Config
	log := appCtx.Logger.With("session", uuid.New().String())

	store, err := appCtx.LoadStore()
	if err != nil {
		return err
	}
	p, err := persona.Load(cfg.Persona.Path, cfg.Persona.Name)
	if err != nil {
		return err
	}
	ltm := memory.NewLongTerm(cfg.Memory.LTMPath)
	if err := ltm.Load(); err != nil {
		return err
	}

	key := os.Getenv(cfg.Chat.APIKeyEnv)
	chatModel, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Chat.BaseURL,
		APIKey:  key,
		Model:   cfg.Chat.Model,
		SiteURL: cfg.Chat.SiteURL,
		AppName: cfg.Chat.AppName,
		Timeout: time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return err
	}
	summaryModel, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Chat.BaseURL,
		APIKey:  key,
		Model:   cfg.Summary.Model,
		SiteURL: cfg.Chat.SiteURL,
		AppName: cfg.Chat.AppName,
		Timeout: time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return err
	}

	var web domain.WebSearcher
	if cfg.WebSearch.Enabled {
		client, err := websearch.NewClient(websearch.Config{
			BaseURL: cfg.WebSearch.BaseURL,
			APIKey:  os.Getenv(cfg.WebSearch.APIKeyEnv),
			Timeout: time.Duration(cfg.WebSearch.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Warn("web search disabled", "error", err)
		} else {
			web = client
		}
	}

	svc := service.NewChatService(service.ChatDeps{
		Retriever: store,
		Model:     chatModel,
		Web:       web,
		Updater:   memory.NewUpdater(summaryModel, cfg.Summary.MaxTokens),
		STM:       memory.NewShortTerm(cfg.Chat.HistoryTurns),
		LTM:       ltm,
		Persona:   p,
		Logger:    log,
	}, service.ChatOptions{
		Retrieval: service.RetrievalPolicy{
			TopK:       cfg.Retrieval.TopK,
			MinScore:   float32(cfg.Retrieval.MinScore),
			MaxResults: cfg.Retrieval.MaxResults,
		},
		Triggers:    cfg.WebSearch.Triggers,
		WebResults:  cfg.WebSearch.MaxResults,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	})

	log.Info("chat started", "model", cfg.Chat.Model, "persona", p.Name, "web_search", web != nil)
	m := tui.NewChat(ctx, svc, p.Name)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
