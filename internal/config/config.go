package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
)

// Embedder types.
const (
	EmbedderHashing = "hashing"
	EmbedderOpenAI  = "openai"
)

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
}

// ChunkerConfig configures the word windows documents are split into.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// KBConfig locates the corpus and the persisted index.
type KBConfig struct {
	CorpusDir  string   `yaml:"corpus_dir"`
	IndexDir   string   `yaml:"index_dir"`
	Extensions []string `yaml:"extensions"`
	IgnoreFile string   `yaml:"ignore_file"`
}

// RetrievalConfig holds the query size and the filters applied to its results.
type RetrievalConfig struct {
	TopK       int     `yaml:"top_k"`
	MinScore   float64 `yaml:"min_score"`
	MaxResults int     `yaml:"max_results"`
}

// ChatConfig configures the OpenRouter chat completion client.
type ChatConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	SiteURL      string  `yaml:"site_url,omitempty"`
	AppName      string  `yaml:"app_name"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	HistoryTurns int     `yaml:"history_turns"`
}

// SummaryConfig configures the long-term summary updates.
type SummaryConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// MemoryConfig locates the long-term memory file.
type MemoryConfig struct {
	LTMPath string `yaml:"ltm_path"`
}

// PersonaConfig locates the persona prompt and names the assistant.
type PersonaConfig struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// WebSearchConfig configures the optional Tavily web search.
type WebSearchConfig struct {
	Enabled     bool     `yaml:"enabled"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	MaxResults  int      `yaml:"max_results"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	Triggers    []string `yaml:"triggers"`
}

// SummarizerConfig configures the extractive summary shown in the search browser.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	KB         KBConfig         `yaml:"kb"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chat       ChatConfig       `yaml:"chat"`
	Summary    SummaryConfig    `yaml:"summary"`
	Memory     MemoryConfig     `yaml:"memory"`
	Persona    PersonaConfig    `yaml:"persona"`
	WebSearch  WebSearchConfig  `yaml:"web_search"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

// DefaultTriggers are the phrases that make a chat turn consult web search.
var DefaultTriggers = []string{"look up", "search", "latest", "today", "current", "news", "release date"}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, domain.NewError("load config", domain.ErrConfiguration, path, "%v", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath is the per-user config location.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: EmbedderHashing},
		WebSearch: WebSearchConfig{Enabled: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// Validate reports settings that cannot work with ErrConfiguration.
func (c *AppConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return domain.NewError("validate config", domain.ErrConfiguration, "", format, args...)
	}
	switch c.Embedder.Type {
	case EmbedderHashing:
		if c.Embedder.Hashing == nil || c.Embedder.Hashing.Dimension <= 0 {
			return invalid("embedder.hashing.dimension must be positive")
		}
	case EmbedderOpenAI:
		if c.Embedder.OpenAI == nil || c.Embedder.OpenAI.Model == "" {
			return invalid("embedder.openai.model is required")
		}
	default:
		return invalid("unknown embedder type %q", c.Embedder.Type)
	}
	if c.Chunker.ChunkSize <= 0 {
		return invalid("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return invalid("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}
	if c.Retrieval.TopK < 0 || c.Retrieval.MaxResults < 0 {
		return invalid("retrieval limits must not be negative (top_k=%d, max_results=%d)", c.Retrieval.TopK, c.Retrieval.MaxResults)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return invalid("retrieval.min_score must be in [-1, 1], got %v", c.Retrieval.MinScore)
	}
	if c.Chat.HistoryTurns < 0 {
		return invalid("chat.history_turns must not be negative, got %d", c.Chat.HistoryTurns)
	}
	return nil
}

// LogFile is where the terminal UIs log when no log file is configured.
func (c *AppConfig) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.KB.IndexDir, "ragchat.log")
}

func applyConfigDefaults(cfg *AppConfig) {
	cfg.Embedder.Type = strings.ToLower(strings.TrimSpace(cfg.Embedder.Type))
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderHashing
	}
	if cfg.Embedder.Type == EmbedderHashing {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 384
		}
	}
	if cfg.Embedder.Type == EmbedderOpenAI {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 2
		}
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 220
		if cfg.Chunker.ChunkOverlap == 0 {
			cfg.Chunker.ChunkOverlap = 40
		}
	}

	if cfg.KB.CorpusDir == "" {
		cfg.KB.CorpusDir = "knowledge"
	}
	if cfg.KB.IndexDir == "" {
		cfg.KB.IndexDir = filepath.Join("artifacts", "kb_index")
	}
	if len(cfg.KB.Extensions) == 0 {
		cfg.KB.Extensions = []string{".md", ".txt"}
	}
	if cfg.KB.IgnoreFile == "" {
		cfg.KB.IgnoreFile = ".kbignore"
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.30
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 4
	}

	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "openai/gpt-4o-mini"
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.6
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 350
	}
	if cfg.Chat.AppName == "" {
		cfg.Chat.AppName = "ragchat"
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 60
	}
	if cfg.Chat.HistoryTurns == 0 {
		cfg.Chat.HistoryTurns = 15
	}

	if cfg.Summary.Model == "" {
		cfg.Summary.Model = cfg.Chat.Model
	}
	if cfg.Summary.MaxTokens == 0 {
		cfg.Summary.MaxTokens = 220
	}

	if cfg.Memory.LTMPath == "" {
		cfg.Memory.LTMPath = filepath.Join("artifacts", "ltm_summary.json")
	}
	if cfg.Persona.Path == "" {
		cfg.Persona.Path = "persona.md"
	}
	if cfg.Persona.Name == "" {
		cfg.Persona.Name = "Assistant"
	}

	if cfg.WebSearch.BaseURL == "" {
		cfg.WebSearch.BaseURL = "https://api.tavily.com"
	}
	if cfg.WebSearch.APIKeyEnv == "" {
		cfg.WebSearch.APIKeyEnv = "TAVILY_API_KEY"
	}
	if cfg.WebSearch.MaxResults == 0 {
		cfg.WebSearch.MaxResults = 3
	}
	if cfg.WebSearch.TimeoutSecs == 0 {
		cfg.WebSearch.TimeoutSecs = 20
	}
	if len(cfg.WebSearch.Triggers) == 0 {
		cfg.WebSearch.Triggers = append([]string(nil), DefaultTriggers...)
	}

	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
