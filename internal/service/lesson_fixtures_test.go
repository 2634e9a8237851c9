package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

// 2025-01-06 is a Monday.
var (
	mon = models.NewDate(2025, time.January, 6)
	tue = models.NewDate(2025, time.January, 7)
	wed = models.NewDate(2025, time.January, 8)
	fri = models.NewDate(2025, time.January, 10)
)

func mathSeries() models.Series {
	return models.Series{
		ID: "math-10a", Title: "Math", GroupName: "10A",
		TeacherID: "teacher-1", TeacherName: "Mr. Bell",
		Days: []time.Weekday{time.Monday, time.Wednesday}, Hour: 9, Minute: 0,
	}
}

func physicsSeries() models.Series {
	return models.Series{
		ID: "physics-10b", Title: "Physics", GroupName: "10B",
		TeacherID: "teacher-1", TeacherName: "Mr. Bell",
		Days: []time.Weekday{time.Monday, time.Friday}, Hour: 10, Minute: 0,
	}
}

func privateSeries() models.Series {
	return models.Series{
		ID: "piano-solo", Title: "Piano", GroupName: "solo",
		TeacherID: "teacher-2", TeacherName: "Ms. Reed",
		Days: []time.Weekday{time.Tuesday}, Hour: 16, Minute: 30,
	}
}

type seriesSourceStub struct {
	series []models.Series
}

func newSeriesSourceStub(series ...models.Series) seriesSourceStub {
	sorted := append([]models.Series(nil), series...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return seriesSourceStub{series: sorted}
}

func (s seriesSourceStub) All() []models.Series { return append([]models.Series(nil), s.series...) }

func (s seriesSourceStub) Get(id string) (models.Series, bool) {
	for _, series := range s.series {
		if series.ID == id {
			return series, true
		}
	}
	return models.Series{}, false
}

func (s seriesSourceStub) ByGroups(groups ...string) []models.Series {
	var out []models.Series
	for _, series := range s.series {
		for _, group := range groups {
			if series.GroupName == group {
				out = append(out, series)
				break
			}
		}
	}
	return out
}

func (s seriesSourceStub) ByTeacher(teacherID string) []models.Series {
	var out []models.Series
	for _, series := range s.series {
		if series.TeacherID == teacherID {
			out = append(out, series)
		}
	}
	return out
}

// overrideReaderStub partitions its rows the same way the repository does.
type overrideReaderStub struct {
	rows  []models.LessonOverride
	calls int
	err   error
}

func (s *overrideReaderStub) Find(_ context.Context, seriesID string, date models.Date) (*models.LessonOverride, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, row := range s.rows {
		if row.SeriesID == seriesID && row.OriginalDate == date {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (s *overrideReaderStub) ListInRange(_ context.Context, start, end models.Date) (*models.OverrideRange, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	window := &models.OverrideRange{
		ByOriginalDate: map[models.Date]map[string]models.LessonOverride{},
		ByNewDate:      map[models.Date][]models.LessonOverride{},
	}
	for _, row := range s.rows {
		if !row.OriginalDate.Before(start) && !row.OriginalDate.After(end) {
			if window.ByOriginalDate[row.OriginalDate] == nil {
				window.ByOriginalDate[row.OriginalDate] = map[string]models.LessonOverride{}
			}
			window.ByOriginalDate[row.OriginalDate][row.SeriesID] = row
		}
		if target, ok := row.Target(); ok && !target.Date.Before(start) && !target.Date.After(end) {
			window.ByNewDate[target.Date] = append(window.ByNewDate[target.Date], row)
		}
	}
	return window, nil
}

func (s *overrideReaderStub) ListPostponedBetween(_ context.Context, start, end models.Date) ([]models.LessonOverride, error) {
	var out []models.LessonOverride
	for _, row := range s.rows {
		if target, ok := row.Target(); ok && !target.Date.Before(start) && !target.Date.After(end) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memberDirectoryStub struct {
	students map[string][]string
	teaches  map[string][]string
	err      error
}

func (m memberDirectoryStub) ListStudentsByGroup(_ context.Context, group string) ([]models.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Member
	for _, id := range m.students[group] {
		out = append(out, models.Member{ChatID: id, Role: models.RoleStudent, GroupName: group})
	}
	return out, nil
}

func (m memberDirectoryStub) ListTeacherGroups(_ context.Context, teacherID string) ([]models.TeacherGroup, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.TeacherGroup
	for _, group := range m.teaches[teacherID] {
		out = append(out, models.TeacherGroup{TeacherID: teacherID, GroupName: group})
	}
	return out, nil
}

func defaultMembers() memberDirectoryStub {
	return memberDirectoryStub{
		students: map[string][]string{
			"10A":  {"student-1", "student-2", "student-3"},
			"10B":  {"student-4"},
			"solo": {"student-9"},
		},
		teaches: map[string][]string{"teacher-1": {"10A"}},
	}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (r *recordingDispatcher) Dispatch(n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingDispatcher) recipients(kind models.NotificationKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n.RecipientID)
		}
	}
	sort.Strings(out)
	return out
}

func postponedOverride(seriesID string, original models.Date, target models.Slot) models.LessonOverride {
	return models.NewPostponement(seriesID, original, target)
}
