package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/service"
)

type stubCleaner struct {
	result service.CleanupResult
	err    error
}

func (s stubCleaner) CleanupExpired(ctx context.Context) (service.CleanupResult, error) {
	return s.result, s.err
}

type recordingStore struct {
	values map[string]any
}

func (s *recordingStore) Upsert(ctx context.Context, name string, value any) error {
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[name] = value
	return nil
}

type recordingPlugins struct {
	params []model.UpsertPluginParams
}

func (p *recordingPlugins) Upsert(ctx context.Context, params model.UpsertPluginParams) (*model.Plugin, error) {
	p.params = append(p.params, params)
	return &model.Plugin{}, nil
}

func TestRunCleanup(t *testing.T) {
	t.Run("prints the result as JSON", func(t *testing.T) {
		var out bytes.Buffer
		cleaner := stubCleaner{result: service.CleanupResult{
			DeletedCount: 3,
			Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}}

		require.NoError(t, runCleanup(context.Background(), cleaner, &out))
		assert.JSONEq(t, `{"deletedCount":3,"timestamp":"2026-03-01T12:00:00Z"}`, out.String())
	})

	t.Run("propagates failures", func(t *testing.T) {
		err := runCleanup(context.Background(), stubCleaner{err: errors.New("db down")}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "db down")
	})
}

func TestPutSecret(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the credential and connects the plugin", func(t *testing.T) {
		store := &recordingStore{}
		plugins := &recordingPlugins{}
		var out bytes.Buffer

		err := putSecret(ctx, store, plugins, "org_abc123", model.PluginVapi, `{"publicApiKey":"pk","privateApiKey":"sk"}`, &out)
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"publicApiKey": "pk", "privateApiKey": "sk"}, store.values["tenant/org_abc123/vapi"])
		require.Len(t, plugins.params, 1)
		assert.Equal(t, "tenant/org_abc123/vapi", plugins.params[0].SecretName)
		assert.Equal(t, "Stored tenant/org_abc123/vapi\n", out.String())
	})

	tests := []struct {
		name  string
		org   string
		svc   model.PluginService
		value string
	}{
		{"bad organization id", "acme", model.PluginVapi, `{}`},
		{"unknown service", "org_abc123", "stripe", `{}`},
		{"value is not an object", "org_abc123", model.PluginVapi, `"sk"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			plugins := &recordingPlugins{}

			err := putSecret(ctx, store, plugins, tt.org, tt.svc, tt.value, &bytes.Buffer{})
			assert.Error(t, err)
			assert.Empty(t, store.values)
			assert.Empty(t, plugins.params)
		})
	}
}
