package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/audit"
	"github.com/supportdesk/support-server-go/internal/auth"
	"github.com/supportdesk/support-server-go/internal/config"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/util"
)

const (
	reasonSessionNotFound = "Contact session not found"
	reasonSessionExpired  = "Contact session expired"
)

type CreateContactSessionParams struct {
	Name           string
	Email          string
	OrganizationID string
	Metadata       *model.ContactSessionMetadata
}

type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type CleanupResult struct {
	DeletedCount int64     `json:"deletedCount"`
	Timestamp    time.Time `json:"timestamp"`
}

type ContactSessionService struct {
	repo     repository.ContactSessionRepository
	convRepo repository.ConversationRepository
	limiter  RateLimiter
	now      func() time.Time
}

func NewContactSessionService(
	repo repository.ContactSessionRepository,
	convRepo repository.ConversationRepository,
	limiter RateLimiter,
) *ContactSessionService {
	return &ContactSessionService{
		repo:     repo,
		convRepo: convRepo,
		limiter:  limiter,
		now:      time.Now,
	}
}

func (s *ContactSessionService) Create(ctx context.Context, params CreateContactSessionParams) (*model.ContactSession, error) {
	email, err := util.ValidateEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := util.ValidateOrganizationID(params.OrganizationID); err != nil {
		return nil, err
	}

	if err := s.limiter.Check(ctx, params.OrganizationID+":"+email, SessionCreationPolicy); err != nil {
		audit.Log(ctx, audit.Event{
			Type:           audit.EventRateLimitExceed,
			OrganizationID: params.OrganizationID,
			Details: map[string]any{
				"policy": SessionCreationPolicy.Name,
				"email":  util.MaskEmail(email),
			},
		})
		return nil, err
	}

	session, err := s.repo.Create(ctx, model.CreateContactSessionParams{
		Name:           params.Name,
		Email:          email,
		OrganizationID: params.OrganizationID,
		ExpiresAt:      s.now().Add(config.SessionDuration),
		Metadata:       params.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create contact session: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:           audit.EventSessionCreate,
		OrganizationID: session.OrganizationID,
		Details: map[string]any{
			"contactSessionId": session.ID,
			"email":            util.MaskEmail(email),
		},
	})

	return session, nil
}

// Validate reports whether the session exists and has not expired. It never
// writes.
func (s *ContactSessionService) Validate(ctx context.Context, id string) (ValidationResult, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("find contact session: %w", err)
	}
	if session == nil {
		return ValidationResult{Valid: false, Reason: reasonSessionNotFound}, nil
	}
	if session.IsExpiredAt(s.now()) {
		return ValidationResult{Valid: false, Reason: reasonSessionExpired}, nil
	}
	return ValidationResult{Valid: true}, nil
}

// Refresh slides the expiry forward when less than the auto-refresh
// threshold remains. Sessions with more time left are returned unchanged.
func (s *ContactSessionService) Refresh(ctx context.Context, id string) (*model.ContactSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find contact session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Contact session")
	}

	now := s.now()
	if session.IsExpiredAt(now) {
		return nil, apperrors.SessionExpired()
	}
	if session.ExpiresAt.Sub(now) >= config.AutoRefreshThreshold {
		return session, nil
	}

	refreshed, err := s.repo.ExtendExpiry(ctx, id, now, now.Add(config.SessionDuration))
	if err != nil {
		return nil, fmt.Errorf("extend contact session: %w", err)
	}
	if refreshed == nil {
		// deleted or expired between the read and the update
		return nil, apperrors.SessionExpired()
	}

	log.Debug().
		Str("contactSessionId", id).
		Time("expiresAt", refreshed.ExpiresAt).
		Msg("contact session refreshed")

	return refreshed, nil
}

// RequireLive returns the session when it exists and has not expired.
func (s *ContactSessionService) RequireLive(ctx context.Context, id string) (*model.ContactSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find contact session: %w", err)
	}
	if session == nil || session.IsExpiredAt(s.now()) {
		return nil, apperrors.Unauthorized("Invalid session")
	}
	return session, nil
}

func (s *ContactSessionService) CleanupExpired(ctx context.Context) (CleanupResult, error) {
	now := s.now()
	deleted, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired contact sessions: %w", err)
	}

	log.Info().
		Int64("deletedCount", deleted).
		Msgf("Cleaned up %d expired contact sessions", deleted)

	return CleanupResult{DeletedCount: deleted, Timestamp: now}, nil
}

// GetForConversation returns the contact behind one of the caller's conversations.
func (s *ContactSessionService) GetForConversation(ctx context.Context, authCtx *auth.AuthContext, conversationID string) (*model.ContactSession, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if err := auth.ScopeToOrganization(conv.OrganizationID, authCtx.OrganizationID, "Conversation"); err != nil {
		return nil, err
	}

	session, err := s.repo.FindByID(ctx, conv.ContactSessionID)
	if err != nil {
		return nil, fmt.Errorf("find contact session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Contact session")
	}
	return session, nil
}
