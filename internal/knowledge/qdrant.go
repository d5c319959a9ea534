package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written by the ingestion pipeline.
const (
	payloadNamespace = "namespace"
	payloadTitle     = "title"
	payloadText      = "text"
)

// QdrantIndex searches one qdrant collection. Every query is filtered on the
// namespace payload so tenants never see each other's documents.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex connects to the gRPC endpoint at rawURL (port 6334 when none
// is given). An https scheme enables TLS.
func NewQdrantIndex(rawURL, apiKey, collection string) (*QdrantIndex, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantIndex{client: client, collection: collection}, nil
}

func (i *QdrantIndex) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]Entry, error) {
	limitUint64 := uint64(limit)
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter:         namespaceFilter(namespace),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	entries := make([]Entry, 0, len(points))
	for _, point := range points {
		entry := Entry{Score: point.Score}
		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				entry.ID = id
			} else {
				entry.ID = strconv.FormatUint(point.Id.GetNum(), 10)
			}
		}
		if v, ok := point.Payload[payloadTitle]; ok {
			entry.Title = v.GetStringValue()
		}
		if v, ok := point.Payload[payloadText]; ok {
			entry.Text = v.GetStringValue()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (i *QdrantIndex) Close() error {
	return i.client.Close()
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   payloadNamespace,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: namespace}},
				},
			},
		}},
	}
}
