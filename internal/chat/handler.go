package chat

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/validation"
)

// SendRequest is the body for POST /api/chat/events/:eventId/messages.
type SendRequest struct {
	Content     string   `json:"content" binding:"required,max=5000"`
	Attachments []string `json:"attachments" binding:"omitempty,max=10,dive,url"`
}

// EditRequest is the body for PUT /api/chat/messages/:messageId.
type EditRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/chat/events/:eventId/messages. Without page or limit the whole
// history comes back, oldest first.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := paramID(c, "eventId", "event")
	if !ok {
		return
	}
	p := pagination.ParseOr(c.Request, pagination.All)
	out, err := h.svc.List(c.Request.Context(), middleware.MustActor(c), eventID, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Send handles POST /api/chat/events/:eventId/messages.
func (h *Handler) Send(c *gin.Context) {
	eventID, ok := paramID(c, "eventId", "event")
	if !ok {
		return
	}
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	m, err := h.svc.Send(c.Request.Context(), middleware.MustActor(c), eventID, req.Content, req.Attachments)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// Edit handles PUT /api/chat/messages/:messageId.
func (h *Handler) Edit(c *gin.Context) {
	id, ok := paramID(c, "messageId", "message")
	if !ok {
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	m, err := h.svc.Edit(c.Request.Context(), middleware.MustActor(c), id, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /api/chat/messages/:messageId.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c, "messageId", "message")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "message deleted")
}
