package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type availabilityRepository interface {
	Upsert(ctx context.Context, availability *models.TeacherAvailability) error
	Delete(ctx context.Context, teacherID string, date models.Date) (bool, error)
	ListBetween(ctx context.Context, teacherID string, start, end models.Date) ([]models.TeacherAvailability, error)
	ListFrom(ctx context.Context, teacherID string, from models.Date) ([]models.TeacherAvailability, error)
	PurgeBefore(ctx context.Context, date models.Date) (int64, error)
}

type postponementReader interface {
	ListPostponedBetween(ctx context.Context, start, end models.Date) ([]models.LessonOverride, error)
}

// SlotConfig tunes reschedule slot generation.
type SlotConfig struct {
	Granularity time.Duration
	Limit       int
	MinLead     time.Duration
}

func (c SlotConfig) withDefaults() SlotConfig {
	if c.Granularity <= 0 {
		c.Granularity = 30 * time.Minute
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.MinLead <= 0 {
		c.MinLead = 2 * time.Hour
	}
	return c
}

// AvailabilityService manages teacher reschedule windows and allocates free slots from them.
type AvailabilityService struct {
	repo      availabilityRepository
	overrides postponementReader
	series    seriesSource
	clock     Clock
	slots     SlotConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(repo availabilityRepository, overrides postponementReader, series seriesSource, clock Clock, slots SlotConfig, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		repo:      repo,
		overrides: overrides,
		series:    series,
		clock:     clock,
		slots:     slots.withDefaults(),
		validator: validate,
		logger:    logger,
	}
}

// Set declares or replaces the teacher's window on a date.
func (s *AvailabilityService) Set(ctx context.Context, teacherID string, req models.SetAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD or DD-MM-YYYY")
	}
	if date.Before(s.clock.Today()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "availability date is in the past")
	}

	availability := &models.TeacherAvailability{
		TeacherID: teacherID,
		Date:      date,
		StartHour: req.StartHour,
		EndHour:   req.EndHour,
	}
	if err := s.repo.Upsert(ctx, availability); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	s.logger.Info("availability set",
		zap.String("teacher_id", teacherID),
		zap.Stringer("date", date),
		zap.Int("start_hour", req.StartHour),
		zap.Int("end_hour", req.EndHour),
	)
	return availability, nil
}

// Remove deletes the window on date.
func (s *AvailabilityService) Remove(ctx context.Context, teacherID string, date models.Date) error {
	existed, err := s.repo.Delete(ctx, teacherID, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability")
	}
	if !existed {
		return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
	}
	return nil
}

// List returns the teacher's windows from today on.
func (s *AvailabilityService) List(ctx context.Context, teacherID string) ([]models.TeacherAvailability, error) {
	windows, err := s.repo.ListFrom(ctx, teacherID, s.clock.Today())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	return windows, nil
}

// PurgePast deletes windows dated before today.
func (s *AvailabilityService) PurgePast(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeBefore(ctx, s.clock.Today())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge availability")
	}
	if purged > 0 {
		s.logger.Info("purged past availability", zap.Int64("count", purged))
	}
	return purged, nil
}

// FindRescheduleSlots lists free slots inside the teacher's windows for the next horizonDays,
// skipping excludeDate. A slot is dropped when it starts within the minimum lead time, when a
// series of a different group regularly meets at that exact time, or when any postponement
// already targets it. Results are ordered by date and time and capped.
func (s *AvailabilityService) FindRescheduleSlots(ctx context.Context, teacherID string, excludeDate models.Date, groupName string, horizonDays int) ([]models.Slot, error) {
	if horizonDays <= 0 {
		return []models.Slot{}, nil
	}
	now := s.clock.Now()
	start := s.clock.Today()
	end := start.AddDays(horizonDays - 1)

	windows, err := s.repo.ListBetween(ctx, teacherID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if len(windows) == 0 {
		return []models.Slot{}, nil
	}

	claimed, err := s.claimedSlots(ctx, start, end)
	if err != nil {
		return nil, err
	}
	others := s.otherGroupSeries(groupName)

	step := int(s.slots.Granularity / time.Minute)
	slots := make([]models.Slot, 0, s.slots.Limit)
	for _, window := range windows {
		if window.Date == excludeDate {
			continue
		}
		busy := regularTimes(others, window.Date)
		for minutes := window.StartHour * 60; minutes < window.EndHour*60; minutes += step {
			slot := models.Slot{Date: window.Date, Hour: minutes / 60, Minute: minutes % 60}
			if slot.Time(s.clock.location()).Sub(now) < s.slots.MinLead {
				continue
			}
			if _, taken := busy[minutes]; taken {
				continue
			}
			if _, taken := claimed[slot]; taken {
				continue
			}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Less(slots[j]) })
	if len(slots) > s.slots.Limit {
		slots = slots[:s.slots.Limit]
	}
	return slots, nil
}

// IsSlotOffered reports whether target is among the slots FindRescheduleSlots would offer.
func (s *AvailabilityService) IsSlotOffered(ctx context.Context, teacherID string, excludeDate models.Date, groupName string, horizonDays int, target models.Slot) (bool, error) {
	slots, err := s.FindRescheduleSlots(ctx, teacherID, excludeDate, groupName, horizonDays)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *AvailabilityService) claimedSlots(ctx context.Context, start, end models.Date) (map[models.Slot]struct{}, error) {
	postponed, err := s.overrides.ListPostponedBetween(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load postponed lessons")
	}
	claimed := make(map[models.Slot]struct{}, len(postponed))
	for _, override := range postponed {
		if target, ok := override.Target(); ok {
			claimed[target] = struct{}{}
		}
	}
	return claimed, nil
}

func (s *AvailabilityService) otherGroupSeries(groupName string) []models.Series {
	var others []models.Series
	for _, series := range s.series.All() {
		if groupName != "" && series.GroupName == groupName {
			continue
		}
		others = append(others, series)
	}
	return others
}

// regularTimes returns minute-of-day keys of the series meeting on date.
func regularTimes(series []models.Series, date models.Date) map[int]struct{} {
	busy := make(map[int]struct{})
	for _, s := range series {
		if s.OccursOn(date) {
			busy[s.Hour*60+s.Minute] = struct{}{}
		}
	}
	return busy
}
