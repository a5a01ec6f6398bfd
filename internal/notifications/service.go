// Package notifications lets users read and clear the notifications addressed to them.
package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
)

var (
	ErrNotFound  = apperr.NotFound("notification not found")
	ErrForbidden = apperr.Forbidden("notification belongs to another user")
)

// Store is the notification persistence used by Service.
type Store interface {
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// Service applies recipient ownership to notification operations.
type Service struct {
	store Store
}

// NewService creates a notification service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns the actor's notifications, newest first.
func (s *Service) List(ctx context.Context, actor models.Actor) ([]models.Notification, error) {
	return s.store.ListByRecipient(ctx, actor.ID)
}

func (s *Service) own(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actor.ID {
		return nil, ErrForbidden
	}
	return n, nil
}

// MarkRead marks one of the actor's notifications read.
func (s *Service) MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Notification, error) {
	n, err := s.own(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

// MarkAllRead marks all of the actor's notifications read.
func (s *Service) MarkAllRead(ctx context.Context, actor models.Actor) error {
	_, err := s.store.MarkAllRead(ctx, actor.ID)
	return err
}

// Delete removes one of the actor's notifications.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if _, err := s.own(ctx, actor, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// DeleteAll removes all of the actor's notifications.
func (s *Service) DeleteAll(ctx context.Context, actor models.Actor) error {
	_, err := s.store.DeleteAll(ctx, actor.ID)
	return err
}
