// Package registrations adds and removes event participants under the event's capacity limit.
package registrations

import "github.com/eblago/backend/pkg/apperr"

var (
	ErrEventFull         = apperr.Capacity("event is full")
	ErrAlreadyRegistered = apperr.Conflict("already registered for this event")
	ErrOrganizer         = apperr.Conflict("organizer cannot register for their own event")
	ErrNotRegistered     = apperr.Validation("not registered for this event")
)

// Admit decides whether one more participant may join an event with count of its capacity
// spots taken. Capacity is checked before membership.
func Admit(capacity, count int, already, isOrganizer bool) error {
	switch {
	case count >= capacity:
		return ErrEventFull
	case already:
		return ErrAlreadyRegistered
	case isOrganizer:
		return ErrOrganizer
	}
	return nil
}
