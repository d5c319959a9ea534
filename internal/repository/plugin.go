package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
)

type PluginRepository interface {
	FindByOrganizationAndService(ctx context.Context, organizationID string, service model.PluginService) (*model.Plugin, error)
	Upsert(ctx context.Context, params model.UpsertPluginParams) (*model.Plugin, error)
	Delete(ctx context.Context, id string) error
}

type pluginRepo struct {
	db database.DBTX
}

func NewPluginRepository(db *sqlx.DB) PluginRepository {
	return &pluginRepo{db: db}
}

func (r *pluginRepo) FindByOrganizationAndService(ctx context.Context, organizationID string, service model.PluginService) (*model.Plugin, error) {
	return findOne[model.Plugin](ctx, r.db, `
		SELECT * FROM plugins WHERE organization_id = $1 AND service = $2
	`, organizationID, service)
}

func (r *pluginRepo) Upsert(ctx context.Context, params model.UpsertPluginParams) (*model.Plugin, error) {
	var plugin model.Plugin
	err := r.db.GetContext(ctx, &plugin, `
		INSERT INTO plugins (id, organization_id, service, secret_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, service) DO UPDATE SET
			secret_name = EXCLUDED.secret_name,
			updated_at = $5
		RETURNING *
	`, uuid.NewString(), params.OrganizationID, params.Service, params.SecretName, time.Now())
	if err != nil {
		return nil, err
	}
	return &plugin, nil
}

func (r *pluginRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM plugins WHERE id = $1
	`, id)
	return err
}
