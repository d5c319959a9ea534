package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
)

type SubscriptionRepository interface {
	FindByOrganizationID(ctx context.Context, organizationID string) (*model.Subscription, error)
	Upsert(ctx context.Context, organizationID string, status model.SubscriptionStatus) (*model.Subscription, error)
}

type subscriptionRepo struct {
	db database.DBTX
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) FindByOrganizationID(ctx context.Context, organizationID string) (*model.Subscription, error) {
	return findOne[model.Subscription](ctx, r.db, `
		SELECT * FROM subscriptions WHERE organization_id = $1
	`, organizationID)
}

func (r *subscriptionRepo) Upsert(ctx context.Context, organizationID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		INSERT INTO subscriptions (organization_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`, organizationID, status, time.Now())
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
