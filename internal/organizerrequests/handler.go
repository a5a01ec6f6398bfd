package organizerrequests

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/validation"
)

// DecisionResponse is returned by approve and reject.
type DecisionResponse struct {
	Message string                   `json:"message"`
	Request *models.OrganizerRequest `json:"request"`
}

// Handler handles organizer request endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an organizer request handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Apply handles POST /api/users/organizer-request.
func (h *Handler) Apply(c *gin.Context) {
	var app Application
	if err := c.ShouldBindJSON(&app); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	req, err := h.svc.Apply(c.Request.Context(), middleware.MustActor(c), app)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// List handles GET /api/organizer-requests (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return uuid.Nil, false
	}
	return id, true
}

// Get handles GET /api/organizer-requests/:id (admin only).
func (h *Handler) Get(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Approve handles PUT /api/organizer-requests/:id/approve (admin only).
func (h *Handler) Approve(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.svc.Approve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, DecisionResponse{Message: "request approved", Request: req})
}

// Reject handles PUT /api/organizer-requests/:id/reject (admin only).
func (h *Handler) Reject(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	req, err := h.svc.Reject(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, DecisionResponse{Message: "request rejected", Request: req})
}
