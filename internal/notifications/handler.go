package notifications

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/pkg/response"
)

// Handler handles notification endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a notification handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func notificationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/notifications.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.MustActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// MarkRead handles PUT /api/notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), middleware.MustActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, n)
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(c.Request.Context(), middleware.MustActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "all notifications marked as read")
}

// Delete handles DELETE /api/notifications/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "notification deleted")
}

// DeleteAll handles DELETE /api/notifications.
func (h *Handler) DeleteAll(c *gin.Context) {
	if err := h.svc.DeleteAll(c.Request.Context(), middleware.MustActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "all notifications deleted")
}
