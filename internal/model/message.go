package model

import (
	"encoding/json"
	"time"
)

// Message is one entry in a conversation thread.
type Message struct {
	ID         string      `db:"id" json:"id"`
	Seq        int64       `db:"seq" json:"-"`
	ThreadID   string      `db:"thread_id" json:"threadId"`
	Role       MessageRole `db:"role" json:"role"`
	AuthorName *string     `db:"author_name" json:"authorName,omitempty"`
	Content    string      `db:"content" json:"content"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}

// ToSSEEventData returns JSON data for SSE message events
func (m *Message) ToSSEEventData(conversationID string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":             m.ID,
		"conversationId": conversationID,
		"role":           m.Role,
		"authorName":     m.AuthorName,
		"content":        m.Content,
		"createdAt":      m.CreatedAt,
	})
	return data
}

type CreateMessageParams struct {
	ThreadID   string
	Role       MessageRole
	AuthorName *string
	Content    string
}
