// Package users serves profile management and admin user moderation.
package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/events"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/password"
	"github.com/eblago/backend/pkg/queue"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

var (
	ErrNotFound       = apperr.NotFound("user not found")
	ErrEmailTaken     = apperr.Conflict("email already in use")
	ErrWrongPassword  = apperr.Validation("current password is incorrect")
	ErrAlreadyBlocked = apperr.Validation("user is already blocked")
	ErrNotBlocked     = apperr.Validation("user is not blocked")
	ErrBlockSelf      = apperr.Validation("you cannot block your own account")
	ErrInvalidRole    = apperr.Validation("role must be one of: user, organizer, admin")
)

func blockStateError(blocked bool) error {
	if blocked {
		return ErrAlreadyBlocked
	}
	return ErrNotBlocked
}

// Store is the account persistence used by Service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, p pagination.Params) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, avatar *string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

// EventLister lists the events a user organizes or joined.
type EventLister interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*events.OwnEvents, error)
}

// ImageCleanup schedules deletion of images no longer referenced by any row.
type ImageCleanup interface {
	EnqueueImageDelete(ctx context.Context, payload queue.ImageDeletePayload) error
}

// ProfileInput is a partial profile update. Nil fields are left unchanged.
type ProfileInput struct {
	Name   *string
	Email  *string
	Avatar *storage.File
}

type profile struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Email string `json:"email" validate:"required,email"`
}

// ListResult is one page of users.
type ListResult struct {
	Users   []models.UserPublic `json:"users"`
	Total   int                 `json:"total"`
	HasMore bool                `json:"has_more"`
}

// Service implements profile and admin user operations.
type Service struct {
	store   Store
	events  EventLister
	images  storage.ImageStore
	cleanup ImageCleanup
	logger  *zap.Logger
}

// NewService creates a users service. images and cleanup may be nil.
func NewService(store Store, lister EventLister, images storage.ImageStore, cleanup ImageCleanup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: lister, images: images, cleanup: cleanup, logger: logger}
}

func (s *Service) discard(ctx context.Context, url, reason string) {
	if url == "" {
		return
	}
	if s.cleanup == nil {
		s.logger.Warn("image left in storage", zap.String("url", url), zap.String("reason", reason))
		return
	}
	if err := s.cleanup.EnqueueImageDelete(ctx, queue.ImageDeletePayload{URL: url, Reason: reason}); err != nil {
		s.logger.Error("enqueue image delete failed", zap.String("url", url), zap.Error(err))
	}
}

// Profile returns the actor's own account.
func (s *Service) Profile(ctx context.Context, actor models.Actor) (models.UserPublic, error) {
	u, err := s.store.GetByID(ctx, actor.ID)
	if err != nil {
		return models.UserPublic{}, err
	}
	return u.ToPublic(), nil
}

// UpdateProfile changes the actor's name, email or avatar. A new avatar replaces the old one.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, in ProfileInput) (models.UserPublic, error) {
	u, err := s.store.GetByID(ctx, actor.ID)
	if err != nil {
		return models.UserPublic{}, err
	}
	p := profile{Name: u.Name, Email: u.Email}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		p.Email = strings.TrimSpace(*in.Email)
	}
	if err := validation.Struct(p); err != nil {
		return models.UserPublic{}, err
	}

	avatar := u.Avatar
	var uploaded string
	if in.Avatar != nil {
		if s.images == nil {
			return models.UserPublic{}, storage.ErrNotConfigured
		}
		if err := storage.ValidateImage(*in.Avatar); err != nil {
			return models.UserPublic{}, err
		}
		if uploaded, err = s.images.Save(ctx, storage.FolderAvatars, *in.Avatar); err != nil {
			return models.UserPublic{}, err
		}
		avatar = &uploaded
	}

	updated, err := s.store.UpdateProfile(ctx, actor.ID, p.Name, p.Email, avatar)
	if err != nil {
		s.discard(ctx, uploaded, "profile update failed")
		return models.UserPublic{}, err
	}
	if uploaded != "" && u.Avatar != nil {
		s.discard(ctx, *u.Avatar, "avatar replaced")
	}
	return updated.ToPublic(), nil
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, current, next string) error {
	if len(next) < password.MinLength {
		return apperr.Validationf("new_password must be at least %d characters", password.MinLength)
	}
	u, err := s.store.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !password.Check(current, u.Password) {
		return ErrWrongPassword
	}
	hash, err := password.Hash(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, actor.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", actor.ID.String()))
	return nil
}

// DeleteAccount removes the actor and everything they own.
func (s *Service) DeleteAccount(ctx context.Context, actor models.Actor) error {
	images, err := s.store.Delete(ctx, actor.ID)
	if err != nil {
		return err
	}
	for _, url := range images {
		s.discard(ctx, url, "account deleted")
	}
	s.logger.Info("account deleted", zap.String("user_id", actor.ID.String()), zap.Int("images", len(images)))
	return nil
}

// Events returns the events the actor organizes and participates in.
func (s *Service) Events(ctx context.Context, actor models.Actor) (*events.OwnEvents, error) {
	return s.events.ForUser(ctx, actor.ID)
}

// List returns a page of all users.
func (s *Service) List(ctx context.Context, p pagination.Params) (*ListResult, error) {
	list, total, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	out := &ListResult{Users: make([]models.UserPublic, 0, len(list)), Total: total, HasMore: p.HasMore(total)}
	for i := range list {
		out.Users = append(out.Users, list[i].ToPublic())
	}
	return out, nil
}

// Get returns any user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.UserPublic, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.UserPublic{}, err
	}
	return u.ToPublic(), nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, admin models.Actor, id uuid.UUID, role models.Role) (models.UserPublic, error) {
	if !role.Valid() {
		return models.UserPublic{}, ErrInvalidRole
	}
	u, err := s.store.SetRole(ctx, id, role)
	if err != nil {
		return models.UserPublic{}, err
	}
	s.logger.Info("user role changed",
		zap.String("user_id", id.String()),
		zap.String("role", string(role)),
		zap.String("admin_id", admin.ID.String()),
	)
	return u.ToPublic(), nil
}

// Block prevents a user from logging in.
func (s *Service) Block(ctx context.Context, admin models.Actor, id uuid.UUID) (models.UserPublic, error) {
	if admin.ID == id {
		return models.UserPublic{}, ErrBlockSelf
	}
	return s.setBlocked(ctx, admin, id, true)
}

// Unblock lets a blocked user log in again.
func (s *Service) Unblock(ctx context.Context, admin models.Actor, id uuid.UUID) (models.UserPublic, error) {
	return s.setBlocked(ctx, admin, id, false)
}

func (s *Service) setBlocked(ctx context.Context, admin models.Actor, id uuid.UUID, blocked bool) (models.UserPublic, error) {
	u, err := s.store.SetBlocked(ctx, id, blocked)
	if err != nil {
		return models.UserPublic{}, err
	}
	s.logger.Info("user block state changed",
		zap.String("user_id", id.String()),
		zap.Bool("blocked", blocked),
		zap.String("admin_id", admin.ID.String()),
	)
	return u.ToPublic(), nil
}
