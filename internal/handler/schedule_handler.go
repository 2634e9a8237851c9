package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
	"github.com/noah-isme/lessonsync-api/pkg/export"
	"github.com/noah-isme/lessonsync-api/pkg/response"
)

type weeklySchedule interface {
	Week(ctx context.Context, actor models.Actor, day models.Date) (*models.WeeklySchedule, error)
	Export(ctx context.Context, actor models.Actor, day models.Date, format export.Format) ([]byte, string, error)
}

// ScheduleHandler serves the weekly timetable.
type ScheduleHandler struct {
	service weeklySchedule
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(service weeklySchedule) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Weekly godoc
// @Summary Effective timetable of one week
// @Tags Schedule
// @Produce json
// @Param week query string false "Any date in the week, defaults to today"
// @Success 200 {object} response.Envelope
// @Router /schedule/weekly [get]
func (h *ScheduleHandler) Weekly(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	day, err := optionalDate(c.Query("week"), "week")
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.service.Week(c.Request.Context(), actor, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule)
}

// Export godoc
// @Summary Download the weekly timetable
// @Tags Schedule
// @Produce text/csv
// @Produce application/pdf
// @Param week query string false "Any date in the week"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /schedule/weekly/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	day, err := optionalDate(c.Query("week"), "week")
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	body, filename, err := h.service.Export(c.Request.Context(), actor, day, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, format.ContentType(), filename, body)
}
