package models

import (
	"time"

	"github.com/google/uuid"
)

// EventRef is a light reference to an event with its title.
type EventRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// Notification is a message addressed to one user. Rows are written by other services.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"-"`
	Event       *EventRef `json:"event,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
