package organizerrequests

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/models"
)

// Store is the request persistence used by Service.
type Store interface {
	Create(ctx context.Context, req *models.OrganizerRequest) error
	HasOpen(ctx context.Context, userID uuid.UUID) (bool, error)
	List(ctx context.Context) ([]models.OrganizerRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OrganizerRequest, error)
	Transition(ctx context.Context, id uuid.UUID, to models.RequestStatus) (*models.OrganizerRequest, error)
}

// RoleReader returns a user's current role.
type RoleReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Application is what a user submits when asking for the organizer role.
type Application struct {
	OrganizationName string `json:"organization_name" binding:"required,min=2,max=200"`
	Phone            string `json:"phone" binding:"required,min=5,max=30"`
	Email            string `json:"email" binding:"required,email"`
	Message          string `json:"message" binding:"max=2000"`
}

// Service runs the organizer request workflow.
type Service struct {
	store  Store
	users  RoleReader
	logger *zap.Logger
}

// NewService creates an organizer request service.
func NewService(store Store, users RoleReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, logger: logger}
}

// Apply stores a pending request for the actor. The role is read from the store, not the token.
func (s *Service) Apply(ctx context.Context, actor models.Actor, app Application) (*models.OrganizerRequest, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := CanApply(user.Role); err != nil {
		return nil, err
	}
	open, err := s.store.HasOpen(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrOpenRequest
	}

	req := &models.OrganizerRequest{
		UserID:           actor.ID,
		User:             models.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Avatar: user.Avatar},
		OrganizationName: strings.TrimSpace(app.OrganizationName),
		Phone:            strings.TrimSpace(app.Phone),
		Email:            strings.TrimSpace(app.Email),
		Message:          strings.TrimSpace(app.Message),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("organizer request submitted", zap.String("request_id", req.ID.String()), zap.String("user_id", actor.ID.String()))
	return req, nil
}

// List returns every request.
func (s *Service) List(ctx context.Context) ([]models.OrganizerRequest, error) {
	return s.store.List(ctx)
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.OrganizerRequest, error) {
	return s.store.GetByID(ctx, id)
}

// Approve grants the requester the organizer role.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.OrganizerRequest, error) {
	return s.decide(ctx, id, models.RequestApproved)
}

// Reject closes the request without changing the requester's role.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*models.OrganizerRequest, error) {
	return s.decide(ctx, id, models.RequestRejected)
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, to models.RequestStatus) (*models.OrganizerRequest, error) {
	req, err := s.store.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info("organizer request decided",
		zap.String("request_id", id.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("status", string(to)),
	)
	return req, nil
}
