package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ContactSession is an anonymous widget visitor's identity within one organization.
type ContactSession struct {
	ID             string                  `db:"id" json:"id"`
	Name           string                  `db:"name" json:"name"`
	Email          string                  `db:"email" json:"email"`
	OrganizationID string                  `db:"organization_id" json:"organizationId"`
	ExpiresAt      time.Time               `db:"expires_at" json:"expiresAt"`
	Metadata       *ContactSessionMetadata `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time               `db:"created_at" json:"createdAt"`
}

// IsExpiredAt reports whether the session is no longer usable at now.
// A session whose expiry equals now is already expired.
func (s *ContactSession) IsExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ContactSessionMetadata is browser context captured by the widget.
type ContactSessionMetadata struct {
	UserAgent        string   `json:"userAgent,omitempty"`
	Language         string   `json:"language,omitempty"`
	Languages        string   `json:"languages,omitempty"`
	Platform         string   `json:"platform,omitempty"`
	Vendor           string   `json:"vendor,omitempty"`
	ScreenResolution string   `json:"screenResolution,omitempty"`
	ViewportSize     string   `json:"viewportSize,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`
	TimezoneOffset   *float64 `json:"timezoneOffset,omitempty"`
	CookieEnabled    *bool    `json:"cookieEnabled,omitempty"`
	Referrer         string   `json:"referrer,omitempty"`
	CurrentURL       string   `json:"currentUrl,omitempty"`
}

func (m ContactSessionMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ContactSessionMetadata) Scan(src any) error {
	return scanJSON(src, m)
}

type CreateContactSessionParams struct {
	Name           string
	Email          string
	OrganizationID string
	ExpiresAt      time.Time
	Metadata       *ContactSessionMetadata
}
