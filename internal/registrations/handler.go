package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/pkg/response"
)

// Handler handles event registration endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a registration handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register handles POST /api/events/:id/register.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.svc.Register(c.Request.Context(), middleware.MustActor(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Unregister handles POST /api/events/:id/unregister.
func (h *Handler) Unregister(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.svc.Unregister(c.Request.Context(), middleware.MustActor(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}
