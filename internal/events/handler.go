package events

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

// EventRequest is the JSON body for POST and PUT /api/events. Multipart forms carry the same
// fields, with location as a JSON string and an optional image file.
type EventRequest struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	Category        *string          `json:"category"`
	StartDate       *string          `json:"start_date"`
	EndDate         *string          `json:"end_date"`
	Location        *models.Location `json:"location"`
	MaxParticipants *int             `json:"max_participants"`
	Status          *string          `json:"status"`
	RemoveImage     bool             `json:"remove_image"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*s))
	if err != nil {
		return nil, apperr.Validation(field + " must be an RFC3339 date")
	}
	return &t, nil
}

func (r EventRequest) input() (Input, error) {
	in := Input{
		Title:           r.Title,
		Description:     r.Description,
		Location:        r.Location,
		MaxParticipants: r.MaxParticipants,
		RemoveImage:     r.RemoveImage,
	}
	if r.Category != nil {
		c := models.Category(*r.Category)
		in.Category = &c
	}
	if r.Status != nil {
		st := models.EventStatus(*r.Status)
		in.Status = &st
	}
	var err error
	if in.StartDate, err = parseDate("start_date", r.StartDate); err != nil {
		return Input{}, err
	}
	if in.EndDate, err = parseDate("end_date", r.EndDate); err != nil {
		return Input{}, err
	}
	return in, nil
}

func formValue(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

func bindForm(c *gin.Context) (EventRequest, error) {
	req := EventRequest{
		Title:       formValue(c, "title"),
		Description: formValue(c, "description"),
		Category:    formValue(c, "category"),
		StartDate:   formValue(c, "start_date"),
		EndDate:     formValue(c, "end_date"),
		Status:      formValue(c, "status"),
		RemoveImage: c.PostForm("remove_image") == "true",
	}
	if v := formValue(c, "location"); v != nil {
		var loc models.Location
		if err := json.Unmarshal([]byte(*v), &loc); err != nil {
			return EventRequest{}, apperr.Validation("location must be a JSON object")
		}
		req.Location = &loc
	}
	if v := formValue(c, "max_participants"); v != nil {
		n, err := strconv.Atoi(strings.TrimSpace(*v))
		if err != nil {
			return EventRequest{}, apperr.Validation("max_participants must be a number")
		}
		req.MaxParticipants = &n
	}
	return req, nil
}

// bind reads a JSON or multipart request. The returned closer releases the uploaded file, if any.
func bind(c *gin.Context) (Input, io.Closer, error) {
	var req EventRequest
	multipartForm := strings.HasPrefix(c.ContentType(), "multipart/form-data")
	if multipartForm {
		var err error
		if req, err = bindForm(c); err != nil {
			return Input{}, nil, err
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		return Input{}, nil, validation.Translate(err)
	}

	in, err := req.input()
	if err != nil {
		return Input{}, nil, err
	}
	if !multipartForm {
		return in, nil, nil
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return Input{}, nil, apperr.Wrap(apperr.KindValidation, "invalid image upload", err)
	}
	f, closer, err := storage.FromMultipart(fh)
	if err != nil {
		return Input{}, nil, err
	}
	in.Image = &f
	return in, closer, nil
}

func eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /api/events (organizer or admin).
func (h *Handler) Create(c *gin.Context) {
	in, closer, err := bind(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.MustActor(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /api/events.
func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Category: models.Category(c.Query("category")),
		Status:   models.EventStatus(c.Query("status")),
		Search:   c.Query("search"),
	}
	out, err := h.svc.List(c.Request.Context(), f, pagination.Parse(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// GetByID handles GET /api/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Update handles PUT /api/events/:id (organizer or admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	in, closer, err := bind(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.MustActor(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /api/events/:id (organizer or admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "event deleted")
}
