package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"ragchat/internal/config"
	"ragchat/internal/corpus"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/kb"
	"ragchat/internal/logger"
)

// AppContext holds what every command needs: configuration, logging and the embedder.
type AppContext struct {
	Config     *config.AppConfig
	ConfigPath string
	Logger     *slog.Logger
	Embedder   domain.Embedder

	closeLog func() error
}

// NewAppContext loads the environment file and configuration, then builds the
// logger and embedder. Terminal UIs log to a file instead of stderr.
func NewAppContext(cmd *cli.Command, toFile bool) (*AppContext, error) {
	if err := loadEnv(cmd.String("env")); err != nil {
		return nil, err
	}

	var (
		cfg  *config.AppConfig
		path = cmd.String("config")
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	if toFile {
		logCfg.File = cfg.LogFile()
	}
	log, closeLog, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Debug("config loaded", "path", path)

	emb, err := NewEmbedder(cfg)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	return &AppContext{
		Config:     cfg,
		ConfigPath: path,
		Logger:     log,
		Embedder:   emb,
		closeLog:   closeLog,
	}, nil
}

// Close releases the log file.
func (ac *AppContext) Close() {
	if ac.closeLog != nil {
		_ = ac.closeLog()
	}
}

// StoreOptions are the knowledge base options derived from the configuration.
func (ac *AppContext) StoreOptions() []kb.Option {
	return []kb.Option{
		kb.WithLogger(ac.Logger),
		kb.WithDiscovery(corpus.Options{
			Extensions: ac.Config.KB.Extensions,
			IgnoreFile: ac.Config.KB.IgnoreFile,
			Logger:     ac.Logger,
		}),
	}
}

// LoadStore loads the persisted knowledge base and refuses to use it with a
// different embedding model than it was built with.
func (ac *AppContext) LoadStore() (*kb.Store, error) {
	store, err := kb.Load(ac.Config.KB.IndexDir, ac.Embedder, ac.StoreOptions()...)
	if err != nil {
		return nil, err
	}
	if err := store.CheckEmbedder(); err != nil {
		return nil, fmt.Errorf("%w; rebuild with `ragchat build` or switch the embedder", err)
	}
	return store, nil
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case config.EmbedderHashing:
		emb, err := hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case config.EmbedderOpenAI:
		oc := cfg.Embedder.OpenAI
		key := os.Getenv(oc.APIKeyEnv)
		if key == "" {
			return nil, domain.NewError("init embedder", domain.ErrConfiguration, "", "environment variable %s is not set", oc.APIKeyEnv)
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     key,
			Model:      oc.Model,
			Dimensions: oc.Dimensions,
			BatchSize:  oc.BatchSize,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, domain.NewError("init embedder", domain.ErrConfiguration, "", "unknown embedder type %q", cfg.Embedder.Type)
}

// loadEnv reads KEY=VALUE pairs without overriding variables already set. A
// missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
