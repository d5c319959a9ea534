package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/audit"
	"github.com/supportdesk/support-server-go/internal/auth"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/secrets"
	"github.com/supportdesk/support-server-go/internal/vapi"
)

// SecretStore is the tenant credential store.
type SecretStore interface {
	Upsert(ctx context.Context, name string, value any) error
	GetSecretValue(ctx context.Context, name string) (string, error)
}

// VapiAPI lists resources of a connected Vapi account.
type VapiAPI interface {
	ListPhoneNumbers(ctx context.Context, privateAPIKey string) ([]vapi.PhoneNumber, error)
	ListAssistants(ctx context.Context, privateAPIKey string) ([]vapi.Assistant, error)
}

type VapiPublicKey struct {
	PublicAPIKey string `json:"publicApiKey"`
}

type PluginService struct {
	repo      repository.PluginRepository
	secrets   SecretStore
	scheduler TaskScheduler
	vapi      VapiAPI
}

func NewPluginService(repo repository.PluginRepository, secretStore SecretStore, scheduler TaskScheduler, vapiAPI VapiAPI) *PluginService {
	return &PluginService{
		repo:      repo,
		secrets:   secretStore,
		scheduler: scheduler,
		vapi:      vapiAPI,
	}
}

// Connect stores a credential for service in the background and points the
// organization's plugin record at it. It returns once the work is queued.
func (s *PluginService) Connect(ctx context.Context, authCtx *auth.AuthContext, service model.PluginService, value json.RawMessage) error {
	if !service.Valid() {
		return apperrors.ValidationError("Unsupported plugin service")
	}
	if len(value) == 0 || string(value) == "null" {
		return apperrors.ValidationError("Secret value is required")
	}

	organizationID := authCtx.OrganizationID
	secretName := secrets.SecretName(organizationID, string(service))
	payload := append(json.RawMessage(nil), value...)

	err := s.scheduler.RunAfter(0, "secret-upsert", func(ctx context.Context) error {
		return s.storeCredential(ctx, organizationID, service, secretName, payload)
	})
	if err != nil {
		return fmt.Errorf("schedule secret upsert: %w", err)
	}
	return nil
}

func (s *PluginService) storeCredential(ctx context.Context, organizationID string, service model.PluginService, secretName string, value json.RawMessage) error {
	if err := s.secrets.Upsert(ctx, secretName, value); err != nil {
		return err
	}
	if _, err := s.repo.Upsert(ctx, model.UpsertPluginParams{
		OrganizationID: organizationID,
		Service:        service,
		SecretName:     secretName,
	}); err != nil {
		return fmt.Errorf("upsert plugin: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventPluginConnect,
		OrganizationID: organizationID,
		Details:        map[string]any{"service": string(service)},
	})
	return nil
}

// GetOne returns the caller's plugin for service, or nil when not connected.
func (s *PluginService) GetOne(ctx context.Context, authCtx *auth.AuthContext, service model.PluginService) (*model.Plugin, error) {
	if !service.Valid() {
		return nil, apperrors.ValidationError("Unsupported plugin service")
	}
	plugin, err := s.repo.FindByOrganizationAndService(ctx, authCtx.OrganizationID, service)
	if err != nil {
		return nil, fmt.Errorf("find plugin: %w", err)
	}
	return plugin, nil
}

func (s *PluginService) Remove(ctx context.Context, authCtx *auth.AuthContext, service model.PluginService) error {
	plugin, err := s.GetOne(ctx, authCtx, service)
	if err != nil {
		return err
	}
	if plugin == nil {
		return apperrors.NotFound("Plugin")
	}
	if err := s.repo.Delete(ctx, plugin.ID); err != nil {
		return fmt.Errorf("delete plugin: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventPluginDisconnect,
		OrganizationID: authCtx.OrganizationID,
		ActorID:        authCtx.Subject(),
		Details:        map[string]any{"service": string(service)},
	})
	return nil
}

// GetVapiPublicKey is safe to expose to the widget. It returns nil when the
// organization has no complete Vapi credential.
func (s *PluginService) GetVapiPublicKey(ctx context.Context, organizationID string) (*VapiPublicKey, error) {
	plugin, err := s.repo.FindByOrganizationAndService(ctx, organizationID, model.PluginVapi)
	if err != nil {
		return nil, fmt.Errorf("find plugin: %w", err)
	}
	if plugin == nil {
		return nil, nil
	}

	secret, err := s.loadVapiSecret(ctx, plugin.SecretName)
	if err != nil {
		return nil, err
	}
	if !secret.Complete() {
		return nil, nil
	}
	return &VapiPublicKey{PublicAPIKey: secret.PublicAPIKey}, nil
}

// GetVapiCredentials returns the caller's full Vapi credential for
// server-side calls.
func (s *PluginService) GetVapiCredentials(ctx context.Context, authCtx *auth.AuthContext) (*model.VapiSecret, error) {
	plugin, err := s.GetOne(ctx, authCtx, model.PluginVapi)
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, apperrors.NotFound("Plugin")
	}

	secret, err := s.loadVapiSecret(ctx, plugin.SecretName)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "Credentials not found")
	}
	if !secret.Complete() {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "Credentials incomplete. Please reconnect your Vapi account")
	}
	return secret, nil
}

func (s *PluginService) ListVapiPhoneNumbers(ctx context.Context, authCtx *auth.AuthContext) ([]vapi.PhoneNumber, error) {
	creds, err := s.GetVapiCredentials(ctx, authCtx)
	if err != nil {
		return nil, err
	}
	numbers, err := s.vapi.ListPhoneNumbers(ctx, creds.PrivateAPIKey)
	if err != nil {
		return nil, apperrors.External("vapi", err)
	}
	return numbers, nil
}

func (s *PluginService) ListVapiAssistants(ctx context.Context, authCtx *auth.AuthContext) ([]vapi.Assistant, error) {
	creds, err := s.GetVapiCredentials(ctx, authCtx)
	if err != nil {
		return nil, err
	}
	assistants, err := s.vapi.ListAssistants(ctx, creds.PrivateAPIKey)
	if err != nil {
		return nil, apperrors.External("vapi", err)
	}
	return assistants, nil
}

// loadVapiSecret returns nil for a missing or unreadable secret.
func (s *PluginService) loadVapiSecret(ctx context.Context, secretName string) (*model.VapiSecret, error) {
	raw, err := s.secrets.GetSecretValue(ctx, secretName)
	if errors.Is(err, secrets.ErrNotFound) {
		log.Warn().Str("secretName", secretName).Msg("plugin secret missing")
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.External("secret store", err)
	}
	return secrets.ParseSecretString[model.VapiSecret](raw, secretName), nil
}
