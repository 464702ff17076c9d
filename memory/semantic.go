package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`\w+`)

// KeywordStore is a process-local SemanticStore scoring recall hits with
// Jaccard similarity over lowercased word tokens. A proxy for embedding
// search, suitable for tests and small deployments; swap in a vector index
// behind the same interface for production retrieval.
type KeywordStore struct {
	mu      sync.RWMutex
	entries []semanticEntry
}

type semanticEntry struct {
	text     string
	tokens   map[string]struct{}
	metadata map[string]any
}

// NewKeywordStore creates an empty store.
func NewKeywordStore() *KeywordStore {
	return &KeywordStore{}
}

// Add stores a memory snippet. Empty text is ignored.
func (s *KeywordStore) Add(_ context.Context, text string, metadata map[string]any) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, semanticEntry{
		text:     text,
		tokens:   tokenize(text),
		metadata: metadata,
	})
	return nil
}

// Search returns up to k entries with a positive token-overlap score, ranked
// by descending score.
func (s *KeywordStore) Search(_ context.Context, query string, k int) ([]SemanticResult, error) {
	queryTokens := tokenize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SemanticResult
	for _, entry := range s.entries {
		score := jaccard(queryTokens, entry.tokens)
		if score <= 0 {
			continue
		}
		results = append(results, SemanticResult{
			Text:     entry.text,
			Metadata: entry.metadata,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
