package model

import (
	"time"
)

type Conversation struct {
	ID               string             `db:"id" json:"id"`
	ThreadID         string             `db:"thread_id" json:"threadId"`
	OrganizationID   string             `db:"organization_id" json:"organizationId"`
	ContactSessionID string             `db:"contact_session_id" json:"contactSessionId"`
	Status           ConversationStatus `db:"status" json:"status"`
	CreatedAt        time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updatedAt"`
}

type CreateConversationParams struct {
	ThreadID         string
	OrganizationID   string
	ContactSessionID string
}

type ListConversationsParams struct {
	OrganizationID string
	Status         *ConversationStatus
	Limit          int
	Offset         int
}

// ConversationWithContact is the dashboard list row.
type ConversationWithContact struct {
	Conversation
	ContactName  string `db:"contact_name" json:"contactName"`
	ContactEmail string `db:"contact_email" json:"contactEmail"`
}
