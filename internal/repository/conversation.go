package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/util"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// LockByID is FindByID with a row lock held until the transaction ends.
	// Only meaningful on a repository returned by WithTx.
	LockByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	ListByOrganization(ctx context.Context, params model.ListConversationsParams) ([]model.ConversationWithContact, error)
	CountByOrganization(ctx context.Context, organizationID string, status *model.ConversationStatus) (int, error)
	ListByContactSession(ctx context.Context, contactSessionID string, limit, offset int) ([]model.Conversation, error)
	CountByContactSession(ctx context.Context, contactSessionID string) (int, error)
	// UpdateStatusFrom sets status to `to` only if the current status is one
	// of `from`, in a single statement. applied is false when no row matched.
	UpdateStatusFrom(ctx context.Context, id string, from []model.ConversationStatus, to model.ConversationStatus) (conv *model.Conversation, applied bool, err error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ConversationRepository
}

type conversationRepo struct {
	db database.DBTX
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) WithTx(tx *sqlx.Tx) ConversationRepository {
	return &conversationRepo{db: tx}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}

	return findOne[model.Conversation](ctx, r.db, `
		SELECT * FROM conversations WHERE id = $1
	`, id)
}

func (r *conversationRepo) LockByID(ctx context.Context, id string) (*model.Conversation, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}

	return findOne[model.Conversation](ctx, r.db, `
		SELECT * FROM conversations WHERE id = $1 FOR UPDATE
	`, id)
}

func (r *conversationRepo) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	return findOne[model.Conversation](ctx, r.db, `
		SELECT * FROM conversations WHERE thread_id = $1
	`, threadID)
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (id, thread_id, organization_id, contact_session_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), params.ThreadID, params.OrganizationID, params.ContactSessionID, model.ConversationUnresolved)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListByOrganization(ctx context.Context, params model.ListConversationsParams) ([]model.ConversationWithContact, error) {
	var convs []model.ConversationWithContact
	err := r.db.SelectContext(ctx, &convs, `
		SELECT c.*,
			COALESCE(cs.name, '') AS contact_name,
			COALESCE(cs.email, '') AS contact_email
		FROM conversations c
		LEFT JOIN contact_sessions cs ON cs.id = c.contact_session_id
		WHERE c.organization_id = $1
		AND ($2::text IS NULL OR c.status = $2)
		ORDER BY c.updated_at DESC
		LIMIT $3 OFFSET $4
	`, params.OrganizationID, statusArg(params.Status), params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepo) CountByOrganization(ctx context.Context, organizationID string, status *model.ConversationStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM conversations
		WHERE organization_id = $1
		AND ($2::text IS NULL OR status = $2)
	`, organizationID, statusArg(status))
	return count, err
}

func (r *conversationRepo) ListByContactSession(ctx context.Context, contactSessionID string, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE contact_session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, contactSessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepo) CountByContactSession(ctx context.Context, contactSessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM conversations WHERE contact_session_id = $1
	`, contactSessionID)
	return count, err
}

func (r *conversationRepo) UpdateStatusFrom(
	ctx context.Context,
	id string,
	from []model.ConversationStatus,
	to model.ConversationStatus,
) (*model.Conversation, bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := findOne[model.Conversation](ctx, r.db, `
		UPDATE conversations SET status = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($2)
		RETURNING *
	`, id, pq.Array(allowed), to, time.Now())
	if err != nil {
		return nil, false, err
	}
	return result, result != nil, nil
}

func statusArg(status *model.ConversationStatus) any {
	if status == nil {
		return nil
	}
	return string(*status)
}
