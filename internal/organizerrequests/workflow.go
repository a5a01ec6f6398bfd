// Package organizerrequests lets users apply for the organizer role and admins decide on it.
package organizerrequests

import (
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
)

var (
	ErrNotFound       = apperr.NotFound("organizer request not found")
	ErrAlreadyGranted = apperr.Conflict("user already has organizer permissions")
	ErrOpenRequest    = apperr.Conflict("an organizer request is already pending or approved")
	ErrDecided        = apperr.Conflict("organizer request has already been decided")
)

// CanTransition reports whether a request in state from may move to state to.
// Only pending requests can be decided; approved and rejected are terminal.
func CanTransition(from, to models.RequestStatus) error {
	if from != models.RequestPending {
		return ErrDecided
	}
	if to != models.RequestApproved && to != models.RequestRejected {
		return apperr.Validationf("invalid target status %q", to)
	}
	return nil
}

// CanApply reports whether a user with role may submit a request.
func CanApply(role models.Role) error {
	if role == models.RoleOrganizer || role == models.RoleAdmin {
		return ErrAlreadyGranted
	}
	return nil
}
