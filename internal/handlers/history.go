package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/chat"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/middleware"
)

// HistoryHandler serves room history over HTTP.
type HistoryHandler struct {
	history *chat.History
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history *chat.History) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List returns one page of a room, oldest first
// (GET /rooms/:roomId/messages?limit=&skip=).
func (h *HistoryHandler) List(c echo.Context) error {
	var q HistoryQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return Fail(c, http.StatusBadRequest, "Invalid query parameters", nil)
	}
	if err := c.Validate(&q); err != nil {
		return Fail(c, http.StatusBadRequest, "Validation failed", ValidationMessages(err))
	}

	ctx := c.Request().Context()
	page, err := h.history.Fetch(ctx, c.Param("roomId"), q.Limit, q.Skip)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return Fail(c, http.StatusBadRequest, "Validation failed", map[string]string{verr.Field: verr.Reason})
		}
		middleware.FromContext(ctx).Error("Failed to load history", "room_id", c.Param("roomId"), "error", err)
		return Fail(c, http.StatusInternalServerError, "Failed to load messages", nil)
	}
	if page == nil {
		page = []domain.ResolvedMessage{}
	}

	return Success(c, http.StatusOK, "Messages retrieved successfully", page)
}
