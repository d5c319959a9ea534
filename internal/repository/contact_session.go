package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/util"
)

type ContactSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.ContactSession, error)
	Create(ctx context.Context, params model.CreateContactSessionParams) (*model.ContactSession, error)
	// ExtendExpiry moves expires_at forward, but only while the session is
	// still live at now. It returns nil when the row is gone or expired.
	ExtendExpiry(ctx context.Context, id string, now, expiresAt time.Time) (*model.ContactSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ContactSessionRepository
}

type contactSessionRepo struct {
	db database.DBTX
}

func NewContactSessionRepository(db *sqlx.DB) ContactSessionRepository {
	return &contactSessionRepo{db: db}
}

func (r *contactSessionRepo) WithTx(tx *sqlx.Tx) ContactSessionRepository {
	return &contactSessionRepo{db: tx}
}

func (r *contactSessionRepo) FindByID(ctx context.Context, id string) (*model.ContactSession, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}

	return findOne[model.ContactSession](ctx, r.db, `
		SELECT * FROM contact_sessions WHERE id = $1
	`, id)
}

func (r *contactSessionRepo) Create(ctx context.Context, params model.CreateContactSessionParams) (*model.ContactSession, error) {
	var session model.ContactSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO contact_sessions (id, name, email, organization_id, expires_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, uuid.NewString(), params.Name, params.Email, params.OrganizationID, params.ExpiresAt, params.Metadata)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *contactSessionRepo) ExtendExpiry(ctx context.Context, id string, now, expiresAt time.Time) (*model.ContactSession, error) {
	return findOne[model.ContactSession](ctx, r.db, `
		UPDATE contact_sessions SET expires_at = $3
		WHERE id = $1 AND expires_at > $2
		RETURNING *
	`, id, now, expiresAt)
}

func (r *contactSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contact_sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
