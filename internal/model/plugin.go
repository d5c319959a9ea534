package model

import (
	"time"
)

// Plugin points at a tenant's credential in the secret store. The credential
// itself is never stored here.
type Plugin struct {
	ID             string        `db:"id" json:"id"`
	OrganizationID string        `db:"organization_id" json:"organizationId"`
	Service        PluginService `db:"service" json:"service"`
	SecretName     string        `db:"secret_name" json:"secretName"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

type UpsertPluginParams struct {
	OrganizationID string
	Service        PluginService
	SecretName     string
}

type Subscription struct {
	OrganizationID string             `db:"organization_id" json:"organizationId"`
	Status         SubscriptionStatus `db:"status" json:"status"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updatedAt"`
}

func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// VapiSecret is the credential blob stored for the vapi plugin.
type VapiSecret struct {
	PublicAPIKey  string `json:"publicApiKey"`
	PrivateAPIKey string `json:"privateApiKey"`
}

func (s *VapiSecret) Complete() bool {
	return s != nil && s.PublicAPIKey != "" && s.PrivateAPIKey != ""
}
