package registrations

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/models"
)

// Store changes participant lists atomically.
type Store interface {
	Add(ctx context.Context, eventID, userID uuid.UUID) error
	Remove(ctx context.Context, eventID, userID uuid.UUID) error
}

// EventReader loads an event with derived fields resolved.
type EventReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service registers users for events.
type Service struct {
	store  Store
	events EventReader
	logger *zap.Logger
}

// NewService creates a registration service.
func NewService(store Store, events EventReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, logger: logger}
}

// Register adds the actor to the event and returns the updated event.
func (s *Service) Register(ctx context.Context, actor models.Actor, eventID uuid.UUID) (*models.Event, error) {
	if err := s.store.Add(ctx, eventID, actor.ID); err != nil {
		return nil, err
	}
	s.logger.Info("user registered for event", zap.String("event_id", eventID.String()), zap.String("user_id", actor.ID.String()))
	return s.events.Get(ctx, eventID)
}

// Unregister removes the actor from the event and returns the updated event.
func (s *Service) Unregister(ctx context.Context, actor models.Actor, eventID uuid.UUID) (*models.Event, error) {
	if err := s.store.Remove(ctx, eventID, actor.ID); err != nil {
		return nil, err
	}
	s.logger.Info("user unregistered from event", zap.String("event_id", eventID.String()), zap.String("user_id", actor.ID.String()))
	return s.events.Get(ctx, eventID)
}
