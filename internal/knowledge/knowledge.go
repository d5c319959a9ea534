// Package knowledge retrieves tenant documents for the support agent.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Entry is one matching document chunk.
type Entry struct {
	ID    string
	Title string
	Text  string
	Score float32
}

type Result struct {
	Entries []Entry
	// Text joins the entry texts in rank order.
	Text string
}

// Titles returns the non-empty entry titles in rank order.
func (r *Result) Titles() []string {
	titles := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Title != "" {
			titles = append(titles, e.Title)
		}
	}
	return titles
}

// Index finds the chunks closest to vector within one namespace.
type Index interface {
	Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Entry, error)
}

// Embedder turns a query into a vector. langchaingo's embeddings.Embedder
// satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewOpenAIEmbedder builds an Embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(apiKey, model string) (Embedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key required")
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return embedder, nil
}

type Searcher struct {
	index    Index
	embedder Embedder
	timeout  time.Duration
}

func NewSearcher(index Index, embedder Embedder, timeout time.Duration) *Searcher {
	return &Searcher{index: index, embedder: embedder, timeout: timeout}
}

// Search embeds query and returns up to limit entries from namespace.
func (s *Searcher) Search(ctx context.Context, namespace, query string, limit int) (*Result, error) {
	if namespace == "" {
		return nil, errors.New("namespace required")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	entries, err := s.index.Search(ctx, namespace, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Text != "" {
			texts = append(texts, e.Text)
		}
	}

	log.Debug().
		Str("namespace", namespace).
		Int("results", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("knowledge search")

	return &Result{Entries: entries, Text: strings.Join(texts, "\n\n")}, nil
}
