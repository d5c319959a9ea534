package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
)

type WidgetSettingsRepository interface {
	FindByOrganizationID(ctx context.Context, organizationID string) (*model.WidgetSettings, error)
	Upsert(ctx context.Context, params model.UpsertWidgetSettingsParams) (*model.WidgetSettings, error)
}

type widgetSettingsRepo struct {
	db database.DBTX
}

func NewWidgetSettingsRepository(db *sqlx.DB) WidgetSettingsRepository {
	return &widgetSettingsRepo{db: db}
}

func (r *widgetSettingsRepo) FindByOrganizationID(ctx context.Context, organizationID string) (*model.WidgetSettings, error) {
	return findOne[model.WidgetSettings](ctx, r.db, `
		SELECT * FROM widget_settings WHERE organization_id = $1
	`, organizationID)
}

func (r *widgetSettingsRepo) Upsert(ctx context.Context, params model.UpsertWidgetSettingsParams) (*model.WidgetSettings, error) {
	var settings model.WidgetSettings
	err := r.db.GetContext(ctx, &settings, `
		INSERT INTO widget_settings (organization_id, greet_message, default_suggestions, vapi_settings, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id) DO UPDATE SET
			greet_message = EXCLUDED.greet_message,
			default_suggestions = EXCLUDED.default_suggestions,
			vapi_settings = EXCLUDED.vapi_settings,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`, params.OrganizationID, params.GreetMessage, params.DefaultSuggestions, params.VapiSettings, time.Now())
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
