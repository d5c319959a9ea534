package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/supportdesk/support-server-go/internal/auth"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/util"
)

type UpdateWidgetSettingsParams struct {
	GreetMessage       string                   `json:"greetMessage"`
	DefaultSuggestions model.DefaultSuggestions `json:"defaultSuggestions"`
	VapiSettings       model.VapiSettings       `json:"vapiSettings"`
}

type WidgetSettingsService struct {
	repo repository.WidgetSettingsRepository
}

func NewWidgetSettingsService(repo repository.WidgetSettingsRepository) *WidgetSettingsService {
	return &WidgetSettingsService{repo: repo}
}

// Get returns the caller's settings, or nil when none were saved yet.
func (s *WidgetSettingsService) Get(ctx context.Context, authCtx *auth.AuthContext) (*model.WidgetSettings, error) {
	return s.GetByOrganizationID(ctx, authCtx.OrganizationID)
}

func (s *WidgetSettingsService) GetByOrganizationID(ctx context.Context, organizationID string) (*model.WidgetSettings, error) {
	if err := util.ValidateOrganizationID(organizationID); err != nil {
		return nil, err
	}
	settings, err := s.repo.FindByOrganizationID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("find widget settings: %w", err)
	}
	return settings, nil
}

func (s *WidgetSettingsService) Upsert(ctx context.Context, authCtx *auth.AuthContext, params UpdateWidgetSettingsParams) (*model.WidgetSettings, error) {
	greeting := strings.TrimSpace(params.GreetMessage)
	if greeting == "" {
		return nil, apperrors.ValidationError("Greeting message is required")
	}

	settings, err := s.repo.Upsert(ctx, model.UpsertWidgetSettingsParams{
		OrganizationID:     authCtx.OrganizationID,
		GreetMessage:       greeting,
		DefaultSuggestions: params.DefaultSuggestions,
		VapiSettings:       params.VapiSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert widget settings: %w", err)
	}
	return settings, nil
}
