package service

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type overrideReader interface {
	Find(ctx context.Context, seriesID string, date models.Date) (*models.LessonOverride, error)
	ListInRange(ctx context.Context, start, end models.Date) (*models.OverrideRange, error)
}

type seriesSource interface {
	All() []models.Series
	Get(id string) (models.Series, bool)
}

// ScheduleResolver combines recurring templates with stored overrides into the effective schedule.
type ScheduleResolver struct {
	overrides overrideReader
	series    seriesSource
	logger    *zap.Logger
}

// NewScheduleResolver constructs the resolver.
func NewScheduleResolver(overrides overrideReader, series seriesSource, logger *zap.Logger) *ScheduleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleResolver{overrides: overrides, series: series, logger: logger}
}

// Series looks up a series or returns a not-found error.
func (r *ScheduleResolver) Series(id string) (models.Series, error) {
	s, ok := r.series.Get(id)
	if !ok {
		return models.Series{}, appErrors.Clone(appErrors.ErrNotFound, "series not found")
	}
	return s, nil
}

// EffectiveStatus resolves what happens to seriesID on date. A date without a regular
// occurrence and without an override yields ErrNoOccurrence.
func (r *ScheduleResolver) EffectiveStatus(ctx context.Context, seriesID string, date models.Date) (models.LessonStatus, error) {
	series, err := r.Series(seriesID)
	if err != nil {
		return models.LessonStatus{}, err
	}
	override, err := r.overrides.Find(ctx, seriesID, date)
	if err != nil {
		return models.LessonStatus{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson override")
	}
	if override != nil {
		return models.StatusFromOverride(override), nil
	}
	if !series.OccursOn(date) {
		return models.LessonStatus{}, appErrors.ErrNoOccurrence
	}
	return models.StatusNormal(), nil
}

// UpcomingOccurrences loads the overrides for [from, from+horizonDays) in one round trip and
// returns a finite sequence of the series' regular occurrences in that window. The sequence
// holds no state between iterations and can be ranged over any number of times.
func (r *ScheduleResolver) UpcomingOccurrences(ctx context.Context, seriesID string, from models.Date, horizonDays int) (iter.Seq[models.Occurrence], error) {
	series, err := r.Series(seriesID)
	if err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		return func(func(models.Occurrence) bool) {}, nil
	}
	end := from.AddDays(horizonDays - 1)
	window, err := r.overrides.ListInRange(ctx, from, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson overrides")
	}

	return func(yield func(models.Occurrence) bool) {
		for day := from; !day.After(end); day = day.AddDays(1) {
			if !series.OccursOn(day) {
				continue
			}
			if !yield(occurrenceOf(series, day, window)) {
				return
			}
		}
	}, nil
}

// ResolveRange returns the effective occurrences of every given series in [start, end], keyed
// by date, including lessons postponed into the window from elsewhere.
func (r *ScheduleResolver) ResolveRange(ctx context.Context, series []models.Series, start, end models.Date) (map[models.Date][]models.ScheduledLesson, error) {
	window, err := r.overrides.ListInRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson overrides")
	}

	byID := make(map[string]models.Series, len(series))
	for _, s := range series {
		byID[s.ID] = s
	}

	days := make(map[models.Date][]models.ScheduledLesson)
	for day := start; !day.After(end); day = day.AddDays(1) {
		for _, s := range series {
			if !s.OccursOn(day) {
				continue
			}
			occ := occurrenceOf(s, day, window)
			days[day] = append(days[day], scheduledLesson(s, s.Hour, s.Minute, occ.Status, nil))
		}
		for _, moved := range window.ByNewDate[day] {
			s, ok := byID[moved.SeriesID]
			if !ok {
				continue
			}
			target, _ := moved.Target()
			from := moved.OriginalDate
			days[day] = append(days[day], scheduledLesson(s, target.Hour, target.Minute, models.StatusNormal(), &from))
		}
	}
	return days, nil
}

// Overrides returns the raw overrides touching [start, end].
func (r *ScheduleResolver) Overrides(ctx context.Context, start, end models.Date) (*models.OverrideRange, error) {
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}
	window, err := r.overrides.ListInRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson overrides")
	}
	return window, nil
}

func occurrenceOf(series models.Series, day models.Date, window *models.OverrideRange) models.Occurrence {
	status := models.StatusNormal()
	if override, ok := window.ByOriginalDate[day][series.ID]; ok {
		status = models.StatusFromOverride(&override)
	}
	return models.Occurrence{
		SeriesID:  series.ID,
		Title:     series.Title,
		GroupName: series.GroupName,
		Date:      day,
		Hour:      series.Hour,
		Minute:    series.Minute,
		Status:    status,
	}
}

func scheduledLesson(s models.Series, hour, minute int, status models.LessonStatus, movedFrom *models.Date) models.ScheduledLesson {
	return models.ScheduledLesson{
		SeriesID:    s.ID,
		Title:       s.Title,
		GroupName:   s.GroupName,
		TeacherName: s.TeacherName,
		Hour:        hour,
		Minute:      minute,
		Status:      status,
		MovedFrom:   movedFrom,
	}
}
