package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat message posted in an event room.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	EventID     uuid.UUID   `json:"event_id"`
	SenderID    uuid.UUID   `json:"-"`
	Sender      UserSummary `json:"sender"`
	Content     string      `json:"content"`
	Edited      bool        `json:"edited"`
	Attachments []string    `json:"attachments"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
