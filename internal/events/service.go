// Package events stores volunteer events and enforces who may change them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/queue"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

var (
	ErrNotFound  = apperr.NotFound("event not found")
	ErrForbidden = apperr.Forbidden("only the organizer or an admin can modify this event")
)

// Store is the event persistence used by Service.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f Filter, p pagination.Params) ([]models.Event, int, error)
	ListByOrganizer(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Event) error) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) (*string, error)
}

// ImageCleanup schedules deletion of images no longer referenced by any row.
type ImageCleanup interface {
	EnqueueImageDelete(ctx context.Context, payload queue.ImageDeletePayload) error
}

// Input carries the fields of a create or update request. Nil fields are absent.
type Input struct {
	Title           *string
	Description     *string
	Category        *models.Category
	StartDate       *time.Time
	EndDate         *time.Time
	Location        *models.Location
	MaxParticipants *int
	Status          *models.EventStatus
	Image           *storage.File
	RemoveImage     bool
}

// draft is the validated shape of an event after a create or a merged update.
type draft struct {
	Title           string             `json:"title" validate:"required,min=3,max=100"`
	Description     string             `json:"description" validate:"required"`
	Category        models.Category    `json:"category" validate:"required,oneof=military medical humanitarian educational"`
	StartDate       time.Time          `json:"start_date" validate:"required"`
	EndDate         time.Time          `json:"end_date" validate:"required,gtfield=StartDate"`
	Location        models.Location    `json:"location"`
	MaxParticipants int                `json:"max_participants" validate:"required,min=1"`
	Status          models.EventStatus `json:"status" validate:"omitempty,oneof=upcoming ongoing completed canceled"`
}

func draftOf(e *models.Event) draft {
	return draft{
		Title:           e.Title,
		Description:     e.Description,
		Category:        e.Category,
		StartDate:       e.StartDate,
		EndDate:         e.EndDate,
		Location:        e.Location,
		MaxParticipants: e.MaxParticipants,
		Status:          e.StoredStatus,
	}
}

// apply copies the present fields of in onto e.
func (in Input) apply(e *models.Event) {
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.StartDate != nil {
		e.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		e.EndDate = *in.EndDate
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.MaxParticipants != nil {
		e.MaxParticipants = *in.MaxParticipants
	}
	if in.Status != nil {
		e.StoredStatus = *in.Status
	}
}

// ListResult is one page of events.
type ListResult struct {
	Events  []models.Event `json:"events"`
	Total   int            `json:"total"`
	HasMore bool           `json:"has_more"`
}

// OwnEvents splits a user's events by their relation to the user.
type OwnEvents struct {
	Organizing    []models.Event `json:"organizing"`
	Participating []models.Event `json:"participating"`
}

// Service implements event CRUD on top of a Store.
type Service struct {
	store   Store
	images  storage.ImageStore
	cleanup ImageCleanup
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an event service. images may be nil, in which case uploads are rejected.
// cleanup may be nil, in which case replaced images are only logged.
func NewService(store Store, images storage.ImageStore, cleanup ImageCleanup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, images: images, cleanup: cleanup, logger: logger, now: time.Now}
}

func (s *Service) resolve(list []models.Event) []models.Event {
	now := s.now()
	for i := range list {
		list[i].Resolve(now)
	}
	if list == nil {
		list = []models.Event{}
	}
	return list
}

func (s *Service) upload(ctx context.Context, f *storage.File) (*string, error) {
	if f == nil {
		return nil, nil
	}
	if s.images == nil {
		return nil, storage.ErrNotConfigured
	}
	if err := storage.ValidateImage(*f); err != nil {
		return nil, err
	}
	url, err := s.images.Save(ctx, storage.FolderEvents, *f)
	if err != nil {
		return nil, err
	}
	return &url, nil
}

// discard queues deletion of an image that is no longer referenced.
func (s *Service) discard(ctx context.Context, url *string, reason string) {
	if url == nil || *url == "" {
		return
	}
	if s.cleanup == nil {
		s.logger.Warn("image left in storage", zap.String("url", *url), zap.String("reason", reason))
		return
	}
	err := s.cleanup.EnqueueImageDelete(ctx, queue.ImageDeletePayload{URL: *url, Reason: reason})
	if err != nil {
		s.logger.Error("enqueue image delete failed", zap.String("url", *url), zap.Error(err))
	}
}

// Create validates in and stores a new upcoming event organized by the actor.
func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*models.Event, error) {
	e := &models.Event{OrganizerID: actor.ID, StoredStatus: models.StatusUpcoming}
	in.Status = nil
	in.apply(e)
	if err := validation.Struct(draftOf(e)); err != nil {
		return nil, err
	}

	image, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	e.Image = image

	if err := s.store.Create(ctx, e); err != nil {
		s.discard(ctx, image, "event create failed")
		return nil, err
	}
	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("organizer_id", actor.ID.String()))
	return s.Get(ctx, e.ID)
}

// Get returns one event with derived fields resolved.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Resolve(s.now())
	return e, nil
}

// List returns a page of events matching f, ordered by start date.
func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) (*ListResult, error) {
	list, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return &ListResult{Events: s.resolve(list), Total: total, HasMore: p.HasMore(total)}, nil
}

// ForUser returns the events userID organizes and the events they are registered for.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*OwnEvents, error) {
	organizing, err := s.store.ListByOrganizer(ctx, userID)
	if err != nil {
		return nil, err
	}
	participating, err := s.store.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &OwnEvents{Organizing: s.resolve(organizing), Participating: s.resolve(participating)}, nil
}

// Update merges in onto the stored event under its row lock. An uploaded image wins over RemoveImage.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, in Input) (*models.Event, error) {
	if in.Image != nil {
		// the organizer never changes, so this check holds until the locked one below
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.CanManage(actor) {
			return nil, ErrForbidden
		}
	}
	newImage, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	var oldImage *string
	e, err := s.store.Update(ctx, id, func(e *models.Event) error {
		if !e.CanManage(actor) {
			return ErrForbidden
		}
		in.apply(e)
		if err := validation.Struct(draftOf(e)); err != nil {
			return err
		}
		if e.MaxParticipants < len(e.Participants) {
			return apperr.Validationf("max_participants cannot be less than current participants (%d)", len(e.Participants))
		}
		switch {
		case newImage != nil:
			oldImage, e.Image = e.Image, newImage
		case in.RemoveImage:
			oldImage, e.Image = e.Image, nil
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, newImage, "event update failed")
		return nil, err
	}
	s.discard(ctx, oldImage, "event image replaced")
	s.logger.Info("event updated", zap.String("event_id", id.String()), zap.String("user_id", actor.ID.String()))
	e.Resolve(s.now())
	return e, nil
}

// Delete removes the event if the actor organizes it or is an admin.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !e.CanManage(actor) {
		return ErrForbidden
	}
	image, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.discard(ctx, image, "event deleted")
	s.logger.Info("event deleted", zap.String("event_id", id.String()), zap.String("user_id", actor.ID.String()))
	return nil
}
