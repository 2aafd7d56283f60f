package domain

import "context"

// Document represents a single text file discovered in the corpus.
type Document struct {
	// Path is the file path as discovered (corpus root joined with RelPath).
	Path string
	// RelPath is the slash-separated path relative to the corpus root.
	RelPath string
	// Name prefixes every chunk id of the document; usually the file's basename.
	Name    string
	Content string
}

// ChunkMeta is the metadata recorded for every chunk.
type ChunkMeta struct {
	SourcePath string `json:"source_path"`
	ChunkIndex int    `json:"chunk_index"`
}

// Chunk is an immutable word window of a document used for indexing.
type Chunk struct {
	ChunkID string    `json:"chunk_id"`
	Text    string    `json:"text"`
	Meta    ChunkMeta `json:"meta"`
}

// RetrievalResult is a chunk hydrated from an index hit together with its score.
type RetrievalResult struct {
	Score   float32
	ChunkID string
	Text    string
	Meta    ChunkMeta
}

// Embedder converts texts into unit-length float32 vectors of a fixed dimension.
// Name identifies the model and is recorded next to every persisted index.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Retriever answers similarity queries against a knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]RetrievalResult, error)
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatParams are the sampling settings of one completion.
type ChatParams struct {
	Temperature float64
	MaxTokens   int
}

// ChatModel produces the assistant reply to a list of messages.
type ChatModel interface {
	Chat(ctx context.Context, messages []ChatMessage, params ChatParams) (string, error)
}

// WebResult is a single web search hit.
type WebResult struct {
	Title   string
	URL     string
	Content string
}

// WebSearcher looks up current information on the web.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}
