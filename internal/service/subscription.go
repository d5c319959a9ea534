package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/audit"
	"github.com/supportdesk/support-server-go/internal/config"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
)

const eventSubscriptionUpdated = "subscription.updated"

// OrganizationDirectory is the identity provider's view of organizations.
type OrganizationDirectory interface {
	OrganizationExists(ctx context.Context, organizationID string) (bool, error)
	SetMaxAllowedMemberships(ctx context.Context, organizationID string, max int) error
}

// WebhookEvent is the envelope of an identity provider webhook.
type WebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type subscriptionEventData struct {
	Status string `json:"status"`
	Payer  *struct {
		OrganizationID string `json:"organization_id"`
	} `json:"payer"`
}

type SubscriptionService struct {
	repo      repository.SubscriptionRepository
	directory OrganizationDirectory
}

func NewSubscriptionService(repo repository.SubscriptionRepository, directory OrganizationDirectory) *SubscriptionService {
	return &SubscriptionService{repo: repo, directory: directory}
}

func (s *SubscriptionService) IsActive(ctx context.Context, organizationID string) (bool, error) {
	sub, err := s.repo.FindByOrganizationID(ctx, organizationID)
	if err != nil {
		return false, fmt.Errorf("find subscription: %w", err)
	}
	return sub.IsActive(), nil
}

// HandleWebhookEvent applies a verified webhook payload. Unknown event types
// are ignored.
func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, payload []byte) error {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return apperrors.BadRequest("Invalid webhook payload")
	}

	switch event.Type {
	case eventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event.Data)
	default:
		log.Info().Str("eventType", event.Type).Msg("Ignored Clerk webhook event")
		return nil
	}
}

func (s *SubscriptionService) handleSubscriptionUpdated(ctx context.Context, raw json.RawMessage) error {
	var data subscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return apperrors.BadRequest("Invalid webhook payload")
	}
	if data.Payer == nil || data.Payer.OrganizationID == "" {
		return apperrors.BadRequest("Missing Organization ID")
	}

	organizationID := data.Payer.OrganizationID
	status := model.SubscriptionStatus(data.Status)

	maxMemberships := config.InactiveMembershipLimit
	if status == model.SubscriptionActive {
		maxMemberships = config.ActiveMembershipLimit
	}

	if err := s.directory.SetMaxAllowedMemberships(ctx, organizationID, maxMemberships); err != nil {
		return apperrors.External("clerk", err)
	}
	if _, err := s.repo.Upsert(ctx, organizationID, status); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventSubscriptionChange,
		OrganizationID: organizationID,
		Details: map[string]any{
			"status":                string(status),
			"maxAllowedMemberships": maxMemberships,
		},
	})
	return nil
}
