package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/secrets"
	"github.com/supportdesk/support-server-go/internal/vapi"
)

type stubVapi struct {
	token string
}

func (s *stubVapi) ListPhoneNumbers(ctx context.Context, privateAPIKey string) ([]vapi.PhoneNumber, error) {
	s.token = privateAPIKey
	return []vapi.PhoneNumber{{ID: "pn_1"}}, nil
}

func (s *stubVapi) ListAssistants(ctx context.Context, privateAPIKey string) ([]vapi.Assistant, error) {
	return nil, errors.New("vapi down")
}

func newPluginFixture() (*PluginService, *mockPluginRepo, *secrets.Store, *inlineScheduler, *stubVapi) {
	repo := new(mockPluginRepo)
	store := secrets.NewStore(secrets.NewMemoryStore(), 0)
	sched := &inlineScheduler{}
	api := &stubVapi{}
	return NewPluginService(repo, store, sched, api), repo, store, sched, api
}

var vapiPlugin = &model.Plugin{
	ID:             "plugin-1",
	OrganizationID: "org_abc123",
	Service:        model.PluginVapi,
	SecretName:     "tenant/org_abc123/vapi",
}

func TestPluginService_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("stores secret and plugin in the background", func(t *testing.T) {
		svc, repo, store, sched, _ := newPluginFixture()
		repo.On("Upsert", mock.Anything, model.UpsertPluginParams{
			OrganizationID: "org_abc123",
			Service:        model.PluginVapi,
			SecretName:     "tenant/org_abc123/vapi",
		}).Return(vapiPlugin, nil)

		value := json.RawMessage(`{"publicApiKey":"pub","privateApiKey":"priv"}`)
		require.NoError(t, svc.Connect(ctx, operator(), model.PluginVapi, value))
		require.Equal(t, []string{"secret-upsert"}, sched.names)
		require.NoError(t, sched.errs[0])

		raw, err := store.GetSecretValue(ctx, "tenant/org_abc123/vapi")
		require.NoError(t, err)
		assert.JSONEq(t, string(value), raw)
		repo.AssertExpectations(t)
	})

	t.Run("reconnect overwrites the secret", func(t *testing.T) {
		svc, repo, store, sched, _ := newPluginFixture()
		repo.On("Upsert", mock.Anything, mock.Anything).Return(vapiPlugin, nil)

		require.NoError(t, svc.Connect(ctx, operator(), model.PluginVapi, json.RawMessage(`{"publicApiKey":"a","privateApiKey":"b"}`)))
		require.NoError(t, svc.Connect(ctx, operator(), model.PluginVapi, json.RawMessage(`{"publicApiKey":"c","privateApiKey":"d"}`)))
		assert.NoError(t, sched.errs[1])

		raw, err := store.GetSecretValue(ctx, "tenant/org_abc123/vapi")
		require.NoError(t, err)
		assert.JSONEq(t, `{"publicApiKey":"c","privateApiKey":"d"}`, raw)
	})

	t.Run("rejects unknown service and empty value", func(t *testing.T) {
		svc, _, _, sched, _ := newPluginFixture()
		requireCode(t, svc.Connect(ctx, operator(), "stripe", json.RawMessage(`{}`)), apperrors.ErrCodeValidation)
		requireCode(t, svc.Connect(ctx, operator(), model.PluginVapi, nil), apperrors.ErrCodeValidation)
		assert.Empty(t, sched.names)
	})
}

func TestPluginService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the caller's plugin", func(t *testing.T) {
		svc, repo, _, _, _ := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)
		repo.On("Delete", mock.Anything, "plugin-1").Return(nil)

		require.NoError(t, svc.Remove(ctx, operator(), model.PluginVapi))
		repo.AssertExpectations(t)
	})

	t.Run("missing plugin", func(t *testing.T) {
		svc, repo, _, _, _ := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(nil, nil)

		appErr := requireCode(t, svc.Remove(ctx, operator(), model.PluginVapi), apperrors.ErrCodeNotFound)
		assert.Equal(t, "Plugin not found", appErr.Message)
	})
}

func TestPluginService_Vapi(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, store *secrets.Store, value any) {
		t.Helper()
		require.NoError(t, store.Upsert(ctx, "tenant/org_abc123/vapi", value))
	}

	t.Run("public key only", func(t *testing.T) {
		svc, repo, store, _, _ := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)
		seed(t, store, model.VapiSecret{PublicAPIKey: "pub", PrivateAPIKey: "priv"})

		key, err := svc.GetVapiPublicKey(ctx, "org_abc123")
		require.NoError(t, err)
		assert.Equal(t, &VapiPublicKey{PublicAPIKey: "pub"}, key)
	})

	t.Run("public key is nil for incomplete or corrupt secrets", func(t *testing.T) {
		for _, value := range []any{model.VapiSecret{PublicAPIKey: "pub"}, "garbage"} {
			svc, repo, store, _, _ := newPluginFixture()
			repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)
			seed(t, store, value)

			key, err := svc.GetVapiPublicKey(ctx, "org_abc123")
			require.NoError(t, err)
			assert.Nil(t, key)
		}
	})

	t.Run("public key is nil without plugin or secret", func(t *testing.T) {
		svc, repo, _, _, _ := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_none", model.PluginVapi).Return(nil, nil)
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)

		key, err := svc.GetVapiPublicKey(ctx, "org_none")
		require.NoError(t, err)
		assert.Nil(t, key)

		key, err = svc.GetVapiPublicKey(ctx, "org_abc123")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("credential errors", func(t *testing.T) {
		svc, repo, store, _, _ := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)

		appErr := requireCode(t, func() error { _, err := svc.GetVapiCredentials(ctx, operator()); return err }(), apperrors.ErrCodeNotFound)
		assert.Equal(t, "Credentials not found", appErr.Message)

		seed(t, store, model.VapiSecret{PrivateAPIKey: "priv"})
		appErr = requireCode(t, func() error { _, err := svc.GetVapiCredentials(ctx, operator()); return err }(), apperrors.ErrCodeNotFound)
		assert.Equal(t, "Credentials incomplete. Please reconnect your Vapi account", appErr.Message)
	})

	t.Run("lists phone numbers with the private key", func(t *testing.T) {
		svc, repo, store, _, api := newPluginFixture()
		repo.On("FindByOrganizationAndService", mock.Anything, "org_abc123", model.PluginVapi).Return(vapiPlugin, nil)
		seed(t, store, model.VapiSecret{PublicAPIKey: "pub", PrivateAPIKey: "priv"})

		numbers, err := svc.ListVapiPhoneNumbers(ctx, operator())
		require.NoError(t, err)
		assert.Len(t, numbers, 1)
		assert.Equal(t, "priv", api.token)

		_, err = svc.ListVapiAssistants(ctx, operator())
		requireCode(t, err, apperrors.ErrCodeExternal)
	})
}
