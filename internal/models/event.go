package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the kind of volunteer activity an event belongs to.
type Category string

const (
	CategoryMilitary     Category = "military"
	CategoryMedical      Category = "medical"
	CategoryHumanitarian Category = "humanitarian"
	CategoryEducational  Category = "educational"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryMilitary, CategoryMedical, CategoryHumanitarian, CategoryEducational}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCanceled  EventStatus = "canceled"
)

// Coordinates is an optional map position.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Location is where an event takes place.
type Location struct {
	Address     string       `json:"address" validate:"required"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Event is a volunteer event with a bounded participant list.
type Event struct {
	ID               uuid.UUID     `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Category         Category      `json:"category"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          time.Time     `json:"end_date"`
	Location         Location      `json:"location"`
	OrganizerID      uuid.UUID     `json:"-"`
	Organizer        UserSummary   `json:"organizer"`
	Participants     []UserSummary `json:"participants"`
	MaxParticipants  int           `json:"max_participants"`
	StoredStatus     EventStatus   `json:"-"`
	Status           EventStatus   `json:"status"`
	ParticipantCount int           `json:"participant_count"`
	IsFull           bool          `json:"is_full"`
	RemainingSpots   int           `json:"remaining_spots"`
	Image            *string       `json:"image,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// DeriveStatus computes the lifecycle state at now. A canceled event stays canceled; otherwise
// the state follows the start and end dates, both inclusive for ongoing.
func DeriveStatus(stored EventStatus, start, end, now time.Time) EventStatus {
	if stored == StatusCanceled {
		return StatusCanceled
	}
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusCompleted
	default:
		return StatusOngoing
	}
}

// Resolve fills the derived fields (status, counts) as of now. Every read path calls it.
func (e *Event) Resolve(now time.Time) {
	if e.Participants == nil {
		e.Participants = []UserSummary{}
	}
	e.Status = DeriveStatus(e.StoredStatus, e.StartDate, e.EndDate, now)
	e.ParticipantCount = len(e.Participants)
	e.IsFull = e.ParticipantCount >= e.MaxParticipants
	e.RemainingSpots = e.MaxParticipants - e.ParticipantCount
	if e.RemainingSpots < 0 {
		e.RemainingSpots = 0
	}
}

// HasParticipant reports whether userID is registered for the event.
func (e *Event) HasParticipant(userID uuid.UUID) bool {
	for _, p := range e.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// CanManage reports whether the actor may edit or delete the event.
func (e *Event) CanManage(a Actor) bool {
	return a.IsAdmin() || e.OrganizerID == a.ID
}
