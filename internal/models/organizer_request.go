package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the state of an organizer request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// OrganizerRequest asks an admin to grant the organizer role.
type OrganizerRequest struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"-"`
	User             UserSummary   `json:"user"`
	OrganizationName string        `json:"organization_name"`
	Phone            string        `json:"phone"`
	Email            string        `json:"email"`
	Message          string        `json:"message"`
	Status           RequestStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
