package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	ListByThread(ctx context.Context, threadID string, limit, offset int) ([]model.Message, error)
	// ListRecentByThread returns the newest limit messages in chronological order.
	ListRecentByThread(ctx context.Context, threadID string, limit int) ([]model.Message, error)
	CountByThread(ctx context.Context, threadID string) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MessageRepository
}

type messageRepo struct {
	db database.DBTX
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) WithTx(tx *sqlx.Tx) MessageRepository {
	return &messageRepo{db: tx}
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (id, thread_id, role, author_name, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), params.ThreadID, params.Role, params.AuthorName, params.Content)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) ListByThread(ctx context.Context, threadID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE thread_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3
	`, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepo) ListRecentByThread(ctx context.Context, threadID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM (
			SELECT * FROM messages
			WHERE thread_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepo) CountByThread(ctx context.Context, threadID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE thread_id = $1
	`, threadID)
	return count, err
}
