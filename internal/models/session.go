package models

import (
	"encoding/json"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one coding-tool session recorded for a subject
type Session struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	GuestID     *string   `json:"guest_id"`
	ProjectID   *string   `json:"project_id"`
	ProjectName string    `json:"project_name"`
	StartedAt   time.Time `json:"started_at"`
}

// Message is a stored session message. Content is either a JSON string
// or structured data such as tool calls.
type Message struct {
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// TextContent returns the message body when it is a plain string
func (m Message) TextContent() (string, bool) {
	if len(m.Content) == 0 || m.Content[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}
