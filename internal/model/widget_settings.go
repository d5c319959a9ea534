package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type WidgetSettings struct {
	OrganizationID     string             `db:"organization_id" json:"organizationId"`
	GreetMessage       string             `db:"greet_message" json:"greetMessage"`
	DefaultSuggestions DefaultSuggestions `db:"default_suggestions" json:"defaultSuggestions"`
	VapiSettings       VapiSettings       `db:"vapi_settings" json:"vapiSettings"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

type DefaultSuggestions struct {
	Suggestion1 string `json:"suggestion1,omitempty"`
	Suggestion2 string `json:"suggestion2,omitempty"`
	Suggestion3 string `json:"suggestion3,omitempty"`
}

func (d DefaultSuggestions) Value() (driver.Value, error) { return json.Marshal(d) }

func (d *DefaultSuggestions) Scan(src any) error { return scanJSON(src, d) }

type VapiSettings struct {
	AssistantID string `json:"assistantId,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func (v VapiSettings) Value() (driver.Value, error) { return json.Marshal(v) }

func (v *VapiSettings) Scan(src any) error { return scanJSON(src, v) }

type UpsertWidgetSettingsParams struct {
	OrganizationID     string
	GreetMessage       string
	DefaultSuggestions DefaultSuggestions
	VapiSettings       VapiSettings
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
