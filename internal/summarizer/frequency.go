package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// Frequency ranks sentences by the normalized frequency of their non-stopword
// tokens and keeps the best ones in document order.
type Frequency struct {
	stopwords map[string]struct{}
}

// NewFrequency creates a frequency-based extractive summarizer.
func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences of text. Text without
// sentence punctuation is returned trimmed.
func (f *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = Tokens(sent)
		for _, tok := range tokens[i] {
			if _, stop := f.stopwords[tok]; !stop {
				freq[tok]++
			}
		}
	}
	var maxF float64
	for _, v := range freq {
		maxF = max(maxF, v)
	}

	scores := make([]float64, len(sentences))
	for i, toks := range tokens {
		if len(toks) == 0 || maxF == 0 {
			continue
		}
		var sum float64
		for _, tok := range toks {
			sum += freq[tok] / maxF
		}
		// Dampen long sentences.
		scores[i] = sum / math.Sqrt(float64(len(toks)))
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})
	selected := order[:min(maxSentences, len(order))]
	slices.Sort(selected)

	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Sentences splits text on terminal punctuation. A trailing fragment without
// punctuation is kept as a final sentence.
func Sentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" && len(out) > 0 {
		out = append(out, tail)
	}
	return out
}

// Tokens returns the lowercased word tokens of text.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
