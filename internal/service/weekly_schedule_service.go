package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/export"
)

const weeklyCachePrefix = "schedule:weekly:"

type rangeResolver interface {
	ResolveRange(ctx context.Context, series []models.Series, start, end models.Date) (map[models.Date][]models.ScheduledLesson, error)
}

type seriesCatalog interface {
	All() []models.Series
	ByGroups(groups ...string) []models.Series
	ByTeacher(teacherID string) []models.Series
}

type teacherGroupSource interface {
	TeacherGroups(ctx context.Context, teacherID string, owned []models.Series) ([]string, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// WeeklyScheduleService renders Monday-to-Sunday views of the effective schedule.
type WeeklyScheduleService struct {
	resolver rangeResolver
	catalog  seriesCatalog
	groups   teacherGroupSource
	cache    scheduleCache
	cacheTTL time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewWeeklyScheduleService constructs the service. cache may be nil.
func NewWeeklyScheduleService(resolver rangeResolver, catalog seriesCatalog, groups teacherGroupSource, cache scheduleCache, cacheTTL time.Duration, clock Clock, logger *zap.Logger) *WeeklyScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeeklyScheduleService{
		resolver: resolver,
		catalog:  catalog,
		groups:   groups,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
		logger:   logger,
	}
}

// SeriesFor returns the series visible to actor: the student's group, the groups a teacher
// teaches, or everything for admins.
func (s *WeeklyScheduleService) SeriesFor(ctx context.Context, actor models.Actor) ([]models.Series, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return s.catalog.All(), nil
	case models.RoleTeacher:
		groups, err := s.groups.TeacherGroups(ctx, actor.ID, s.catalog.ByTeacher(actor.ID))
		if err != nil {
			return nil, err
		}
		return s.catalog.ByGroups(groups...), nil
	default:
		if actor.GroupName == "" {
			return []models.Series{}, nil
		}
		return s.catalog.ByGroups(actor.GroupName), nil
	}
}

// Week builds the view of the week containing day; a zero day means the current week.
func (s *WeeklyScheduleService) Week(ctx context.Context, actor models.Actor, day models.Date) (*models.WeeklySchedule, error) {
	if day.IsZero() {
		day = s.clock.Today()
	}
	weekStart := day.StartOfWeek()

	series, err := s.SeriesFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	key := weeklyCacheKey(weekStart, series)
	if s.cache != nil {
		var cached models.WeeklySchedule
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	weekEnd := weekStart.AddDays(6)
	lessons, err := s.resolver.ResolveRange(ctx, series, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	schedule := &models.WeeklySchedule{WeekStart: weekStart, Days: make([]models.ScheduleDay, 0, 7)}
	for d := weekStart; !d.After(weekEnd); d = d.AddDays(1) {
		dayLessons := lessons[d]
		sort.SliceStable(dayLessons, func(i, j int) bool {
			a, b := dayLessons[i], dayLessons[j]
			if a.Hour != b.Hour {
				return a.Hour < b.Hour
			}
			if a.Minute != b.Minute {
				return a.Minute < b.Minute
			}
			return a.Title < b.Title
		})
		if dayLessons == nil {
			dayLessons = []models.ScheduledLesson{}
		}
		schedule.Days = append(schedule.Days, models.ScheduleDay{
			Date:    d,
			Weekday: d.Weekday().String(),
			Lessons: dayLessons,
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, schedule, s.cacheTTL)
	}
	return schedule, nil
}

// Invalidate drops every cached week. Called after any override write.
func (s *WeeklyScheduleService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, weeklyCachePrefix+"*")
}

// Export renders the week as CSV or PDF and suggests a file name.
func (s *WeeklyScheduleService) Export(ctx context.Context, actor models.Actor, day models.Date, format export.Format) ([]byte, string, error) {
	schedule, err := s.Week(ctx, actor, day)
	if err != nil {
		return nil, "", err
	}
	table := export.Table{
		Title:   "Week of " + schedule.WeekStart.String(),
		Headers: []string{"time", "lesson", "group", "teacher", "status"},
	}
	for _, d := range schedule.Days {
		section := export.Section{Heading: d.Weekday + " " + d.Date.String()}
		for _, lesson := range d.Lessons {
			section.Rows = append(section.Rows, []string{
				fmt.Sprintf("%02d:%02d", lesson.Hour, lesson.Minute),
				lesson.Title,
				lesson.GroupName,
				lesson.TeacherName,
				lessonStatusLabel(lesson),
			})
		}
		table.Sections = append(table.Sections, section)
	}
	out, err := export.Render(format, table)
	if err != nil {
		return nil, "", err
	}
	return out, fmt.Sprintf("schedule-%s.%s", schedule.WeekStart.String(), format.Extension()), nil
}

func lessonStatusLabel(lesson models.ScheduledLesson) string {
	switch {
	case lesson.MovedFrom != nil:
		return "moved from " + lesson.MovedFrom.String()
	case lesson.Status.Kind == models.LessonPostponed && lesson.Status.Target != nil:
		return "postponed to " + lesson.Status.Target.String()
	default:
		return string(lesson.Status.Kind)
	}
}

func weeklyCacheKey(weekStart models.Date, series []models.Series) string {
	ids := make([]string, 0, len(series))
	for _, s := range series {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	digest := xxhash.Sum64String(strings.Join(ids, ","))
	return weeklyCachePrefix + weekStart.String() + ":" + strconv.FormatUint(digest, 16)
}
