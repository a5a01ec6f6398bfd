// Package chat stores per-event chat messages and pushes changes to the event's room.
package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
)

// Room event names pushed to subscribers.
const (
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
)

var (
	ErrMessageNotFound = apperr.NotFound("message not found")
	ErrNotMember       = apperr.Forbidden("only the organizer or participants can use this chat")
	ErrNotSender       = apperr.Forbidden("only the sender can change this message")
	ErrEmptyContent    = apperr.Validation("content is required")
)

// Store is the message persistence used by Service.
type Store interface {
	IsMember(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	List(ctx context.Context, eventID uuid.UUID, p pagination.Params) ([]models.Message, int, error)
	Create(ctx context.Context, eventID, senderID uuid.UUID, content string, attachments []string) (*models.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	UpdateContent(ctx context.Context, id, senderID uuid.UUID, content string) (*models.Message, error)
	Delete(ctx context.Context, id, senderID uuid.UUID) error
}

// Broadcaster delivers a named event to every subscriber of an event's room.
type Broadcaster interface {
	BroadcastToEvent(eventID uuid.UUID, event string, payload interface{})
}

// Deleted is the payload of a message_deleted push.
type Deleted struct {
	ID uuid.UUID `json:"id"`
}

// ListResult is one page of messages.
type ListResult struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
	HasMore  bool             `json:"has_more"`
}

// Service applies chat access rules and broadcasts every change.
type Service struct {
	store  Store
	rooms  Broadcaster
	logger *zap.Logger
}

// NewService creates a chat service.
func NewService(store Store, rooms Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, rooms: rooms, logger: logger}
}

func (s *Service) requireMember(ctx context.Context, eventID, userID uuid.UUID) error {
	ok, err := s.store.IsMember(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// List returns a page of the event's messages, oldest first.
func (s *Service) List(ctx context.Context, actor models.Actor, eventID uuid.UUID, p pagination.Params) (*ListResult, error) {
	if err := s.requireMember(ctx, eventID, actor.ID); err != nil {
		return nil, err
	}
	list, total, err := s.store.List(ctx, eventID, p)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Message{}
	}
	return &ListResult{Messages: list, Total: total, HasMore: p.HasMore(total)}, nil
}

// Send posts a message to the event chat and broadcasts it to the whole room.
func (s *Service) Send(ctx context.Context, actor models.Actor, eventID uuid.UUID, content string, attachments []string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if err := s.requireMember(ctx, eventID, actor.ID); err != nil {
		return nil, err
	}
	m, err := s.store.Create(ctx, eventID, actor.ID, content, attachments)
	if err != nil {
		return nil, err
	}
	s.rooms.BroadcastToEvent(eventID, EventNewMessage, m)
	return m, nil
}

// ownMessage loads a message and checks that the actor sent it.
func (s *Service) ownMessage(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Message, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != actor.ID {
		return nil, ErrNotSender
	}
	return m, nil
}

// Edit replaces the content of the actor's own message.
func (s *Service) Edit(ctx context.Context, actor models.Actor, id uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if _, err := s.ownMessage(ctx, actor, id); err != nil {
		return nil, err
	}
	m, err := s.store.UpdateContent(ctx, id, actor.ID, content)
	if err != nil {
		return nil, err
	}
	s.rooms.BroadcastToEvent(m.EventID, EventMessageUpdated, m)
	return m, nil
}

// Delete removes the actor's own message.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	m, err := s.ownMessage(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, actor.ID); err != nil {
		return err
	}
	s.rooms.BroadcastToEvent(m.EventID, EventMessageDeleted, Deleted{ID: id})
	s.logger.Debug("message deleted", zap.String("message_id", id.String()), zap.String("event_id", m.EventID.String()))
	return nil
}
