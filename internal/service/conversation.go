package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/audit"
	"github.com/supportdesk/support-server-go/internal/auth"
	"github.com/supportdesk/support-server-go/internal/database"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/scheduler"
	"github.com/supportdesk/support-server-go/internal/sse"
)

const DefaultGreeting = "Hi! How can I help you today?"

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// TaskScheduler queues background work without waiting for it.
type TaskScheduler interface {
	RunAfter(delay time.Duration, name string, task scheduler.Task) error
}

// SubscriptionChecker reports whether an organization has a paid plan.
type SubscriptionChecker interface {
	IsActive(ctx context.Context, organizationID string) (bool, error)
}

// Responder produces the AI reply for a conversation's latest message.
type Responder interface {
	Reply(ctx context.Context, conv *model.Conversation) error
}

type SendCustomerMessageParams struct {
	ContactSessionID string
	ConversationID   string
	Prompt           string
}

type ListConversationsParams struct {
	Status *model.ConversationStatus
	Limit  int
	Offset int
}

type ConversationService struct {
	tx            TxRunner
	convRepo      repository.ConversationRepository
	msgRepo       repository.MessageRepository
	widgetRepo    repository.WidgetSettingsRepository
	sessions      *ContactSessionService
	limiter       RateLimiter
	subscriptions SubscriptionChecker
	events        sse.Publisher
	scheduler     TaskScheduler
	responder     Responder
}

func NewConversationService(
	tx TxRunner,
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	widgetRepo repository.WidgetSettingsRepository,
	sessions *ContactSessionService,
	limiter RateLimiter,
	subscriptions SubscriptionChecker,
	events sse.Publisher,
	scheduler TaskScheduler,
) *ConversationService {
	return &ConversationService{
		tx:            tx,
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		widgetRepo:    widgetRepo,
		sessions:      sessions,
		limiter:       limiter,
		subscriptions: subscriptions,
		events:        events,
		scheduler:     scheduler,
	}
}

// SetResponder enables AI replies to customer messages.
func (s *ConversationService) SetResponder(responder Responder) {
	s.responder = responder
}

// Start opens a new conversation for a live contact session and posts the
// organization's greeting as its first message.
func (s *ConversationService) Start(ctx context.Context, contactSessionID, organizationID string) (*model.Conversation, error) {
	session, err := s.sessions.RequireLive(ctx, contactSessionID)
	if err != nil {
		return nil, err
	}
	if organizationID != "" && session.OrganizationID != organizationID {
		return nil, apperrors.Unauthorized("Invalid session")
	}

	greeting := DefaultGreeting
	settings, err := s.widgetRepo.FindByOrganizationID(ctx, session.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("find widget settings: %w", err)
	}
	if settings != nil && strings.TrimSpace(settings.GreetMessage) != "" {
		greeting = settings.GreetMessage
	}

	var conv *model.Conversation
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		conv, err = s.convRepo.WithTx(tx).Create(ctx, model.CreateConversationParams{
			ThreadID:         uuid.NewString(),
			OrganizationID:   session.OrganizationID,
			ContactSessionID: session.ID,
		})
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		_, err = s.msgRepo.WithTx(tx).Create(ctx, model.CreateMessageParams{
			ThreadID: conv.ThreadID,
			Role:     model.RoleAssistant,
			Content:  greeting,
		})
		if err != nil {
			return fmt.Errorf("create greeting: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("organizationId", conv.OrganizationID).
		Str("contactSessionId", session.ID).
		Msg("conversation started")

	s.publish(ctx, conv.OrganizationID, sse.NewEvent(sse.EventConversationUpdated, conv))
	return conv, nil
}

// GetForContact returns a conversation owned by the contact session. Other
// sessions' conversations are reported as missing.
func (s *ConversationService) GetForContact(ctx context.Context, contactSessionID, conversationID string) (*model.Conversation, error) {
	session, err := s.sessions.RequireLive(ctx, contactSessionID)
	if err != nil {
		return nil, err
	}
	return s.findOwned(ctx, session.ID, conversationID)
}

func (s *ConversationService) ListMessagesForContact(ctx context.Context, contactSessionID, conversationID string, limit, offset int) ([]model.Message, int, error) {
	conv, err := s.GetForContact(ctx, contactSessionID, conversationID)
	if err != nil {
		return nil, 0, err
	}
	return s.listThread(ctx, conv.ThreadID, limit, offset)
}

func (s *ConversationService) ListForContact(ctx context.Context, contactSessionID string, limit, offset int) ([]model.Conversation, int, error) {
	session, err := s.sessions.RequireLive(ctx, contactSessionID)
	if err != nil {
		return nil, 0, err
	}
	convs, err := s.convRepo.ListByContactSession(ctx, session.ID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	total, err := s.convRepo.CountByContactSession(ctx, session.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}
	return convs, total, nil
}

// AddCustomerMessage appends a widget message. Sending keeps the contact
// session alive, and unresolved conversations get an AI reply in the background.
func (s *ConversationService) AddCustomerMessage(ctx context.Context, params SendCustomerMessageParams) (*model.Message, error) {
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return nil, apperrors.ValidationError("Message cannot be empty")
	}

	session, err := s.sessions.Refresh(ctx, params.ContactSessionID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, session.ID, MessageCreationPolicy); err != nil {
		audit.Log(ctx, audit.Event{
			Type:           audit.EventRateLimitExceed,
			OrganizationID: session.OrganizationID,
			Details: map[string]any{
				"policy":           MessageCreationPolicy.Name,
				"contactSessionId": session.ID,
			},
		})
		return nil, err
	}

	// The status check and the insert share a row lock, so a resolve that
	// commits first is always seen.
	var (
		conv *model.Conversation
		msg  *model.Message
	)
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		conv, err = s.convRepo.WithTx(tx).LockByID(ctx, params.ConversationID)
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}
		if conv == nil || conv.ContactSessionID != session.ID {
			return apperrors.NotFound("Conversation")
		}
		if conv.Status == model.ConversationResolved {
			return apperrors.ConversationResolved()
		}

		msg, err = s.msgRepo.WithTx(tx).Create(ctx, model.CreateMessageParams{
			ThreadID: conv.ThreadID,
			Role:     model.RoleUser,
			Content:  prompt,
		})
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, conv.OrganizationID, sse.NewEvent(sse.EventMessageCreated, msg.ToSSEEventData(conv.ID)))

	if conv.Status == model.ConversationUnresolved {
		s.scheduleReply(ctx, conv)
	}
	return msg, nil
}

func (s *ConversationService) scheduleReply(ctx context.Context, conv *model.Conversation) {
	if s.responder == nil {
		return
	}
	active, err := s.subscriptions.IsActive(ctx, conv.OrganizationID)
	if err != nil {
		log.Warn().Err(err).Str("organizationId", conv.OrganizationID).Msg("subscription lookup failed, skipping ai reply")
		return
	}
	if !active {
		return
	}

	responder := s.responder
	snapshot := *conv
	err = s.scheduler.RunAfter(0, "agent-reply", func(ctx context.Context) error {
		return responder.Reply(ctx, &snapshot)
	})
	if err != nil {
		log.Warn().Err(err).Str("conversationId", conv.ID).Msg("failed to schedule ai reply")
	}
}

func (s *ConversationService) List(ctx context.Context, authCtx *auth.AuthContext, params ListConversationsParams) ([]model.ConversationWithContact, int, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperrors.ValidationError("Invalid status")
	}

	convs, err := s.convRepo.ListByOrganization(ctx, model.ListConversationsParams{
		OrganizationID: authCtx.OrganizationID,
		Status:         params.Status,
		Limit:          params.Limit,
		Offset:         params.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	total, err := s.convRepo.CountByOrganization(ctx, authCtx.OrganizationID, params.Status)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}
	return convs, total, nil
}

// Get returns one of the caller's conversations; any other id is NOT_FOUND.
func (s *ConversationService) Get(ctx context.Context, authCtx *auth.AuthContext, id string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if err := auth.ScopeToOrganization(conv.OrganizationID, authCtx.OrganizationID, "Conversation"); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) ListMessages(ctx context.Context, authCtx *auth.AuthContext, id string, limit, offset int) ([]model.Message, int, error) {
	conv, err := s.Get(ctx, authCtx, id)
	if err != nil {
		return nil, 0, err
	}
	return s.listThread(ctx, conv.ThreadID, limit, offset)
}

// UpdateStatus is the operator setting a status from the dashboard. The
// change still goes through the trigger table.
func (s *ConversationService) UpdateStatus(ctx context.Context, authCtx *auth.AuthContext, id string, status model.ConversationStatus) (*model.Conversation, error) {
	trigger, ok := model.TriggerTo(status)
	if !ok {
		return nil, apperrors.ValidationError("Invalid status")
	}

	conv, err := s.findForMutation(ctx, authCtx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status == status {
		return conv, nil
	}
	if _, ok := conv.Status.Transition(trigger); !ok {
		return nil, apperrors.BadRequest(fmt.Sprintf("Cannot change status from %s to %s", conv.Status, status))
	}

	updated, applied, err := s.applyTrigger(ctx, conv, trigger)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperrors.BadRequest("Conversation status changed, please retry")
	}
	return updated, nil
}

// AddOperatorMessage posts an operator reply. The first operator message on
// an unresolved conversation of a subscribed organization escalates it; the
// escalation and the message commit or roll back together.
func (s *ConversationService) AddOperatorMessage(ctx context.Context, authCtx *auth.AuthContext, id, prompt string) (*model.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperrors.ValidationError("Message cannot be empty")
	}

	conv, err := s.findForMutation(ctx, authCtx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.ConversationResolved {
		return nil, apperrors.ConversationResolved()
	}

	escalate := false
	if conv.Status == model.ConversationUnresolved {
		escalate, err = s.subscriptions.IsActive(ctx, conv.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("check subscription: %w", err)
		}
	}

	var authorName *string
	if authCtx.Identity != nil && authCtx.Identity.FamilyName != "" {
		name := authCtx.Identity.FamilyName
		authorName = &name
	}

	var (
		locked    *model.Conversation
		escalated *model.Conversation
		msg       *model.Message
	)
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		convs := s.convRepo.WithTx(tx)

		var err error
		locked, err = convs.LockByID(ctx, conv.ID)
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}
		if locked == nil {
			return apperrors.NotFound("Conversation")
		}
		if locked.Status == model.ConversationResolved {
			return apperrors.ConversationResolved()
		}

		if escalate && locked.Status == model.ConversationUnresolved {
			updated, applied, err := s.transition(ctx, convs, locked, model.TriggerEscalate)
			if err != nil {
				return err
			}
			if applied {
				escalated = updated
			}
		}

		msg, err = s.msgRepo.WithTx(tx).Create(ctx, model.CreateMessageParams{
			ThreadID:   locked.ThreadID,
			Role:       model.RoleAssistant,
			AuthorName: authorName,
			Content:    prompt,
		})
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if escalated != nil {
		s.announceTransition(ctx, locked.Status, escalated, model.TriggerEscalate)
	}
	s.publish(ctx, locked.OrganizationID, sse.NewEvent(sse.EventMessageCreated, msg.ToSSEEventData(locked.ID)))
	return msg, nil
}

// AddAssistantMessage stores an AI-authored message on the conversation's thread.
func (s *ConversationService) AddAssistantMessage(ctx context.Context, conv *model.Conversation, content string) (*model.Message, error) {
	msg, err := s.msgRepo.Create(ctx, model.CreateMessageParams{
		ThreadID: conv.ThreadID,
		Role:     model.RoleAssistant,
		Content:  content,
	})
	if err != nil {
		return nil, fmt.Errorf("create assistant message: %w", err)
	}
	s.publish(ctx, conv.OrganizationID, sse.NewEvent(sse.EventMessageCreated, msg.ToSSEEventData(conv.ID)))
	return msg, nil
}

// RecentMessages returns the newest limit messages of a thread, oldest first.
func (s *ConversationService) RecentMessages(ctx context.Context, threadID string, limit int) ([]model.Message, error) {
	msgs, err := s.msgRepo.ListRecentByThread(ctx, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return msgs, nil
}

func (s *ConversationService) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByThreadID(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	return conv, nil
}

// Escalate hands a conversation to a human. applied is false when the
// conversation was no longer unresolved.
func (s *ConversationService) Escalate(ctx context.Context, conv *model.Conversation) (applied bool, err error) {
	_, applied, err = s.applyTrigger(ctx, conv, model.TriggerEscalate)
	return applied, err
}

// Resolve closes a conversation. applied is false when it was already resolved.
func (s *ConversationService) Resolve(ctx context.Context, conv *model.Conversation) (applied bool, err error) {
	_, applied, err = s.applyTrigger(ctx, conv, model.TriggerResolve)
	return applied, err
}

// applyTrigger moves conv in a single conditional update, so of several
// concurrent callers only one sees the transition applied.
func (s *ConversationService) applyTrigger(ctx context.Context, conv *model.Conversation, trigger model.ConversationTrigger) (*model.Conversation, bool, error) {
	updated, applied, err := s.transition(ctx, s.convRepo, conv, trigger)
	if err != nil || !applied {
		return updated, applied, err
	}
	s.announceTransition(ctx, conv.Status, updated, trigger)
	return updated, true, nil
}

// transition runs the conditional update on repo without any side effects,
// so callers inside a transaction can announce only after commit.
func (s *ConversationService) transition(ctx context.Context, repo repository.ConversationRepository, conv *model.Conversation, trigger model.ConversationTrigger) (*model.Conversation, bool, error) {
	to, ok := model.TriggerTarget(trigger)
	if !ok {
		return nil, false, fmt.Errorf("unknown trigger %q", trigger)
	}

	updated, applied, err := repo.UpdateStatusFrom(ctx, conv.ID, model.AllowedFrom(trigger), to)
	if err != nil {
		return nil, false, fmt.Errorf("update conversation status: %w", err)
	}
	if !applied {
		log.Debug().
			Str("conversationId", conv.ID).
			Str("trigger", string(trigger)).
			Msg("conversation transition not applied")
		return conv, false, nil
	}
	return updated, true, nil
}

func (s *ConversationService) announceTransition(ctx context.Context, from model.ConversationStatus, updated *model.Conversation, trigger model.ConversationTrigger) {
	switch trigger {
	case model.TriggerEscalate:
		audit.Log(ctx, audit.Event{Type: audit.EventEscalate, OrganizationID: updated.OrganizationID, Details: map[string]any{"conversationId": updated.ID}})
	case model.TriggerResolve:
		audit.Log(ctx, audit.Event{Type: audit.EventResolve, OrganizationID: updated.OrganizationID, Details: map[string]any{"conversationId": updated.ID}})
	}

	log.Info().
		Str("conversationId", updated.ID).
		Str("from", string(from)).
		Str("to", string(updated.Status)).
		Msg("conversation status changed")

	s.publish(ctx, updated.OrganizationID, sse.NewEvent(sse.EventConversationUpdated, updated))
}

// findForMutation loads a conversation the caller is about to change.
// Unlike Get, a foreign conversation is UNAUTHORIZED.
func (s *ConversationService) findForMutation(ctx context.Context, authCtx *auth.AuthContext, id string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if err := auth.RequireOrganizationMatch(conv.OrganizationID, authCtx.OrganizationID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) findOwned(ctx context.Context, contactSessionID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil || conv.ContactSessionID != contactSessionID {
		return nil, apperrors.NotFound("Conversation")
	}
	return conv, nil
}

func (s *ConversationService) listThread(ctx context.Context, threadID string, limit, offset int) ([]model.Message, int, error) {
	msgs, err := s.msgRepo.ListByThread(ctx, threadID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	total, err := s.msgRepo.CountByThread(ctx, threadID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return msgs, total, nil
}

func (s *ConversationService) publish(ctx context.Context, organizationID string, event sse.Event) {
	if err := s.events.Publish(ctx, organizationID, event); err != nil {
		log.Warn().Err(err).Str("organizationId", organizationID).Str("eventType", event.Type).Msg("failed to publish event")
	}
}
