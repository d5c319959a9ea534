package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	queries []string
	err     error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	docs      map[string][]Entry
	namespace string
	limit     int
	deadline  bool
}

func (f *fakeIndex) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Entry, error) {
	f.namespace = namespace
	f.limit = limit
	_, f.deadline = ctx.Deadline()
	entries := f.docs[namespace]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func TestSearcher_Search(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{docs: map[string][]Entry{
		"org_abc123": {
			{Title: "Refunds", Text: "Refunds take 5 days.", Score: 0.9},
			{Title: "", Text: "Contact billing@example.com.", Score: 0.7},
			{Title: "Shipping", Text: "We ship worldwide.", Score: 0.5},
		},
		"org_other": {{Title: "Secret", Text: "other tenant"}},
	}}

	t.Run("joins results within the namespace", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		searcher := NewSearcher(index, embedder, time.Second)

		result, err := searcher.Search(ctx, "org_abc123", "how do refunds work", 2)
		require.NoError(t, err)

		assert.Equal(t, []string{"how do refunds work"}, embedder.queries)
		assert.Equal(t, "org_abc123", index.namespace)
		assert.Equal(t, 2, index.limit)
		assert.True(t, index.deadline)
		assert.Len(t, result.Entries, 2)
		assert.Equal(t, []string{"Refunds"}, result.Titles())
		assert.Equal(t, "Refunds take 5 days.\n\nContact billing@example.com.", result.Text)
	})

	t.Run("empty namespace", func(t *testing.T) {
		searcher := NewSearcher(index, &fakeEmbedder{}, 0)
		_, err := searcher.Search(ctx, "", "q", 5)
		assert.Error(t, err)
	})

	t.Run("embedding failure", func(t *testing.T) {
		searcher := NewSearcher(index, &fakeEmbedder{err: errors.New("quota")}, 0)
		_, err := searcher.Search(ctx, "org_abc123", "q", 5)
		assert.ErrorContains(t, err, "quota")
	})
}

func TestNamespaceFilter(t *testing.T) {
	filter := namespaceFilter("org_abc123")
	require.Len(t, filter.Must, 1)
	field := filter.Must[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, "namespace", field.Key)
	assert.Equal(t, "org_abc123", field.Match.GetKeyword())
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "text-embedding-3-small")
	assert.Error(t, err)
}
