package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

type recipientResolver interface {
	Recipients(ctx context.Context, series models.Series, actorID string) ([]string, error)
}

// LessonTriggerService decides which lessons actually run on a date and reminds their
// participants. An external scheduler invokes it.
type LessonTriggerService struct {
	resolver   rangeResolver
	catalog    seriesSource
	recipients recipientResolver
	notifier   *NotificationService
	clock      Clock
	logger     *zap.Logger
}

// NewLessonTriggerService constructs the service.
func NewLessonTriggerService(resolver rangeResolver, catalog seriesSource, recipients recipientResolver, notifier *NotificationService, clock Clock, logger *zap.Logger) *LessonTriggerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonTriggerService{
		resolver:   resolver,
		catalog:    catalog,
		recipients: recipients,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
	}
}

// Due returns lessons running on date: regular occurrences without an override plus lessons
// postponed into date. Cancelled and moved-away occurrences are skipped.
func (s *LessonTriggerService) Due(ctx context.Context, date models.Date) ([]models.DueLesson, error) {
	all := s.catalog.All()
	lessons, err := s.resolver.ResolveRange(ctx, all, date, date)
	if err != nil {
		return nil, err
	}

	due := make([]models.DueLesson, 0, len(lessons[date]))
	for _, lesson := range lessons[date] {
		if !lesson.Status.IsNormal() {
			continue
		}
		series, ok := s.catalog.Get(lesson.SeriesID)
		if !ok {
			continue
		}
		due = append(due, models.DueLesson{
			Series:    series,
			Slot:      models.Slot{Date: date, Hour: lesson.Hour, Minute: lesson.Minute},
			MovedFrom: lesson.MovedFrom,
		})
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].Slot.Less(due[j].Slot) })
	return due, nil
}

// Announce reminds participants of lessons on the date of from that start within
// [from, from+within). A non-positive window announces the whole day.
func (s *LessonTriggerService) Announce(ctx context.Context, from time.Time, within time.Duration) ([]models.DueLesson, error) {
	loc := s.clock.location()
	from = from.In(loc)
	due, err := s.Due(ctx, models.DateOf(from, loc))
	if err != nil {
		return nil, err
	}

	announced := make([]models.DueLesson, 0, len(due))
	for _, lesson := range due {
		startsAt := lesson.Slot.Time(loc)
		if within > 0 && (startsAt.Before(from) || !startsAt.Before(from.Add(within))) {
			continue
		}
		recipients, err := s.recipients.Recipients(ctx, lesson.Series, "")
		if err != nil {
			s.logger.Warn("failed to resolve lesson participants", zap.String("series_id", lesson.Series.ID), zap.Error(err))
			continue
		}
		s.notifier.LessonStarting(lesson, recipients)
		announced = append(announced, lesson)
	}
	s.logger.Info("lesson reminders sent", zap.Time("from", from), zap.Int("lessons", len(announced)))
	return announced, nil
}
