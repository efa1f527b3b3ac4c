package api

import (
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/labstack/echo/v4"
	"net/http"
	"strconv"
)

const (
	defaultDeadLetterLimit = 20
	maxDeadLetterLimit     = 100
)

type JobsHandler struct {
	inspector queue.Inspector
}

func NewJobsHandler(inspector queue.Inspector) *JobsHandler {
	return &JobsHandler{inspector: inspector}
}

func (h *JobsHandler) Stats(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return err
	}
	stats, err := h.inspector.Stats(c.Request().Context(), category)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *JobsHandler) DeadLetters(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return err
	}

	limit := defaultDeadLetterLimit
	if s := c.QueryParam("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 && parsed <= maxDeadLetterLimit {
			limit = parsed
		}
	}
	offset := 0
	if s := c.QueryParam("offset"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, total, err := h.inspector.DeadLetters(c.Request().Context(), category, limit, offset)
	if err != nil {
		return err
	}
	page := offset/limit + 1
	return c.JSON(http.StatusOK, types.NewPaginationResult(items, total, page, limit))
}

func categoryParam(c echo.Context) (types.Category, error) {
	category, err := types.ParseCategory(c.Param("category"))
	if err != nil {
		return "", custom_errors.NewNotFound("Unknown job category")
	}
	return category, nil
}
