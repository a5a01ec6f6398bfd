package statistics

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eblago/backend/pkg/response"
)

// Source loads the aggregate inputs.
type Source interface {
	UserCounts(ctx context.Context) (UserCounts, error)
	EventFacts(ctx context.Context) ([]EventFacts, error)
}

// Handler serves the admin statistics endpoint.
type Handler struct {
	src Source
	now func() time.Time
}

// NewHandler creates a statistics handler.
func NewHandler(src Source) *Handler {
	return &Handler{src: src, now: time.Now}
}

// Get handles GET /api/statistics (admin only).
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.src.UserCounts(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	facts, err := h.src.EventFacts(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, Compute(facts, users, h.now()))
}
