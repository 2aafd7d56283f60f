package service

import (
	"context"
	"strings"

	"ragchat/internal/domain"
)

// RetrievalPolicy is the query size plus the presentation filters applied to
// its results: a minimum score, then a cap on the count.
type RetrievalPolicy struct {
	TopK       int
	MinScore   float32
	MaxResults int
}

// FilterResults keeps results scoring at least minScore, then at most max of
// them. max <= 0 disables the cap. Order is preserved.
func FilterResults(results []domain.RetrievalResult, minScore float32, max int) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score < minScore {
			continue
		}
		out = append(out, r)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// SearchService answers interactive knowledge base queries.
type SearchService struct {
	retriever           domain.Retriever
	summarizer          domain.Summarizer
	summaryMaxSentences int
}

// NewSearchService wires a retriever and the summarizer used for overviews.
func NewSearchService(retriever domain.Retriever, summarizer domain.Summarizer, summaryMaxSentences int) *SearchService {
	return &SearchService{retriever: retriever, summarizer: summarizer, summaryMaxSentences: summaryMaxSentences}
}

// Query returns the raw top-k results for query.
func (s *SearchService) Query(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	return s.retriever.Retrieve(ctx, query, topK)
}

// Overview summarizes the given chunks, in order, into a few sentences.
func (s *SearchService) Overview(chunks []domain.Chunk) (string, error) {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return s.summarizer.Summarize(b.String(), s.summaryMaxSentences)
}
