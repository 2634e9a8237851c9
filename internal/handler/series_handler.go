package handler

import (
	"context"
	"iter"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/response"
)

type seriesLister interface {
	SeriesFor(ctx context.Context, actor models.Actor) ([]models.Series, error)
}

type lessonReader interface {
	Series(id string) (models.Series, error)
	EffectiveStatus(ctx context.Context, seriesID string, date models.Date) (models.LessonStatus, error)
	UpcomingOccurrences(ctx context.Context, seriesID string, from models.Date, horizonDays int) (iter.Seq[models.Occurrence], error)
	Overrides(ctx context.Context, start, end models.Date) (*models.OverrideRange, error)
}

type occurrenceChanger interface {
	Eligibility(ctx context.Context, seriesID string, date models.Date) (models.Eligibility, error)
	Slots(ctx context.Context, seriesID string, originalDate models.Date) ([]models.Slot, error)
	Restore(ctx context.Context, actor models.Actor, seriesID string, date models.Date) error
}

type clock interface {
	Today() models.Date
}

// SeriesHandler exposes lesson series and their occurrences.
type SeriesHandler struct {
	catalog  seriesLister
	lessons  lessonReader
	changes  occurrenceChanger
	clock    clock
	horizon  int
	maxRange int
}

// NewSeriesHandler builds the handler. horizon is the default occurrence window in days.
func NewSeriesHandler(catalog seriesLister, lessons lessonReader, changes occurrenceChanger, clock clock, horizon int) *SeriesHandler {
	if horizon <= 0 {
		horizon = 14
	}
	return &SeriesHandler{catalog: catalog, lessons: lessons, changes: changes, clock: clock, horizon: horizon, maxRange: 92}
}

// List godoc
// @Summary List lesson series visible to the caller
// @Tags Series
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /series [get]
func (h *SeriesHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	series, err := h.catalog.SeriesFor(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series)
}

// Status godoc
// @Summary Effective status of one occurrence
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Param date query string true "Original date"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /series/{id}/status [get]
func (h *SeriesHandler) Status(c *gin.Context) {
	date, err := dateValue(c.Query("date"), "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.lessons.EffectiveStatus(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, map[string]interface{}{"date": date})
}

// Occurrences godoc
// @Summary Upcoming occurrences of a series
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Param from query string false "First date, defaults to today"
// @Param days query int false "Window length in days"
// @Success 200 {object} response.Envelope
// @Router /series/{id}/occurrences [get]
func (h *SeriesHandler) Occurrences(c *gin.Context) {
	from, err := optionalDate(c.Query("from"), "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	if from.IsZero() {
		from = h.clock.Today()
	}
	days, err := intQuery(c, "days", h.horizon, h.maxRange)
	if err != nil {
		response.Error(c, err)
		return
	}

	seq, err := h.lessons.UpcomingOccurrences(c.Request.Context(), c.Param("id"), from, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	occurrences := slices.Collect(seq)
	if occurrences == nil {
		occurrences = []models.Occurrence{}
	}
	response.JSON(c, http.StatusOK, occurrences, map[string]interface{}{"from": from, "days": days})
}

// Eligibility godoc
// @Summary Whether an occurrence can still be changed
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Param date query string true "Original date"
// @Success 200 {object} response.Envelope
// @Router /series/{id}/eligibility [get]
func (h *SeriesHandler) Eligibility(c *gin.Context) {
	date, err := dateValue(c.Query("date"), "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.changes.Eligibility(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Slots godoc
// @Summary Reschedule slots for an occurrence
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Param exclude_date query string true "Original date of the lesson being moved"
// @Success 200 {object} response.Envelope
// @Router /series/{id}/slots [get]
func (h *SeriesHandler) Slots(c *gin.Context) {
	date, err := dateValue(c.Query("exclude_date"), "exclude_date")
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.changes.Slots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots)
}

// Restore godoc
// @Summary Remove the override of one occurrence
// @Tags Series
// @Param id path string true "Series ID"
// @Param date path string true "Original date"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /series/{id}/overrides/{date} [delete]
func (h *SeriesHandler) Restore(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	date, err := dateValue(c.Param("date"), "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.changes.Restore(c.Request.Context(), actor, c.Param("id"), date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overrides godoc
// @Summary Overrides touching a date range
// @Description Returns overrides keyed by original date and by new date.
// @Tags Series
// @Produce json
// @Param start query string true "First date"
// @Param end query string true "Last date"
// @Success 200 {object} response.Envelope
// @Router /overrides [get]
func (h *SeriesHandler) Overrides(c *gin.Context) {
	start, err := dateValue(c.Query("start"), "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := dateValue(c.Query("end"), "end")
	if err != nil {
		response.Error(c, err)
		return
	}
	window, err := h.lessons.Overrides(c.Request.Context(), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window)
}
