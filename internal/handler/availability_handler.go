package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
	"github.com/noah-isme/lessonsync-api/pkg/response"
)

type availabilityService interface {
	Set(ctx context.Context, teacherID string, req models.SetAvailabilityRequest) (*models.TeacherAvailability, error)
	Remove(ctx context.Context, teacherID string, date models.Date) error
	List(ctx context.Context, teacherID string) ([]models.TeacherAvailability, error)
}

// AvailabilityHandler lets teachers publish the windows used for rescheduled lessons.
type AvailabilityHandler struct {
	service availabilityService
}

func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// List godoc
// @Summary The caller's availability windows from today on
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	windows, err := h.service.List(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if windows == nil {
		windows = []models.TeacherAvailability{}
	}
	response.JSON(c, http.StatusOK, windows)
}

// Set godoc
// @Summary Declare or replace the window on a date
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body models.SetAvailabilityRequest true "Window"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability [put]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	saved, err := h.service.Set(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved)
}

// Remove godoc
// @Summary Delete the window on a date
// @Tags Availability
// @Param date path string true "Date"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /availability/{date} [delete]
func (h *AvailabilityHandler) Remove(c *gin.Context) {
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
	if err := h.service.Remove(c.Request.Context(), actor.ID, date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
