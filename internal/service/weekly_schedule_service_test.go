package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/export"
)

type scheduleCacheStub struct {
	entries     map[string][]byte
	hits        int
	invalidated []string
}

func newScheduleCacheStub() *scheduleCacheStub {
	return &scheduleCacheStub{entries: map[string][]byte{}}
}

func (c *scheduleCacheStub) Get(_ context.Context, key string, dest interface{}) bool {
	raw, ok := c.entries[key]
	if !ok {
		return false
	}
	c.hits++
	return json.Unmarshal(raw, dest) == nil
}

func (c *scheduleCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) {
	raw, err := json.Marshal(value)
	if err == nil {
		c.entries[key] = raw
	}
}

func (c *scheduleCacheStub) Invalidate(_ context.Context, pattern string) {
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func newWeeklyFixture(overrides []models.LessonOverride, cache scheduleCache) (*WeeklyScheduleService, *overrideReaderStub) {
	catalog := newSeriesSourceStub(mathSeries(), physicsSeries(), privateSeries())
	reader := &overrideReaderStub{rows: overrides}
	clock := FixedClock(time.Date(2025, time.January, 8, 12, 0, 0, 0, time.UTC), time.UTC)
	svc := NewWeeklyScheduleService(NewScheduleResolver(reader, catalog, nil), catalog, NewParticipantService(defaultMembers()), cache, time.Minute, clock, nil)
	return svc, reader
}

func TestWeekBuildsMondayToSunday(t *testing.T) {
	moved := postponedOverride("math-10a", wed, models.Slot{Date: fri, Hour: 11, Minute: 30})
	svc, _ := newWeeklyFixture([]models.LessonOverride{moved}, nil)

	schedule, err := svc.Week(context.Background(), models.Actor{ID: "admin-1", Role: models.RoleAdmin}, models.Date{})
	require.NoError(t, err)
	assert.Equal(t, mon, schedule.WeekStart)
	require.Len(t, schedule.Days, 7)
	assert.Equal(t, "Monday", schedule.Days[0].Weekday)
	assert.Equal(t, "Sunday", schedule.Days[6].Weekday)
	assert.NotNil(t, schedule.Days[6].Lessons)
	assert.Empty(t, schedule.Days[6].Lessons)

	monday := schedule.Days[0].Lessons
	require.Len(t, monday, 2)
	assert.Equal(t, "Math", monday[0].Title)
	assert.Equal(t, "Physics", monday[1].Title)

	friday := schedule.Days[4].Lessons
	require.Len(t, friday, 2)
	assert.Equal(t, "Physics", friday[0].Title)
	assert.Equal(t, "Math", friday[1].Title)
	require.NotNil(t, friday[1].MovedFrom)
	assert.Equal(t, wed, *friday[1].MovedFrom)
}

func TestSeriesForScopesByRole(t *testing.T) {
	svc, _ := newWeeklyFixture(nil, nil)
	ids := func(series []models.Series) []string {
		out := make([]string, 0, len(series))
		for _, s := range series {
			out = append(out, s.ID)
		}
		return out
	}

	series, err := svc.SeriesFor(context.Background(), models.Actor{ID: "student-1", Role: models.RoleStudent, GroupName: "10A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"math-10a"}, ids(series))

	// teacher-1 is linked to 10A and owns the 10B series.
	series, err = svc.SeriesFor(context.Background(), models.Actor{ID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, []string{"math-10a", "physics-10b"}, ids(series))

	series, err = svc.SeriesFor(context.Background(), models.Actor{ID: "student-x", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Empty(t, series)

	series, err = svc.SeriesFor(context.Background(), models.Actor{ID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, series, 3)
}

func TestWeekUsesCacheUntilInvalidated(t *testing.T) {
	cache := newScheduleCacheStub()
	svc, reader := newWeeklyFixture(nil, cache)
	actor := models.Actor{ID: "student-1", Role: models.RoleStudent, GroupName: "10A"}

	first, err := svc.Week(context.Background(), actor, wed)
	require.NoError(t, err)
	second, err := svc.Week(context.Background(), actor, fri)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, 1, cache.hits)

	svc.Invalidate(context.Background())
	assert.Equal(t, []string{"schedule:weekly:*"}, cache.invalidated)

	_, err = svc.Week(context.Background(), actor, wed)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)
}

func TestWeeklyCacheKeyIgnoresSeriesOrder(t *testing.T) {
	a := weeklyCacheKey(mon, []models.Series{mathSeries(), physicsSeries()})
	b := weeklyCacheKey(mon, []models.Series{physicsSeries(), mathSeries()})
	c := weeklyCacheKey(mon, []models.Series{mathSeries()})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "schedule:weekly:2025-01-06:"))
}

func TestExportWeekAsCSV(t *testing.T) {
	cancelled := models.NewCancellation("math-10a", mon)
	svc, _ := newWeeklyFixture([]models.LessonOverride{cancelled}, nil)

	out, filename, err := svc.Export(context.Background(), models.Actor{ID: "student-1", Role: models.RoleStudent, GroupName: "10A"}, wed, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "schedule-2025-01-06.csv", filename)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"section", "time", "lesson", "group", "teacher", "status"}, records[0])
	assert.Equal(t, []string{"Monday 2025-01-06", "09:00", "Math", "10A", "Mr. Bell", "cancelled"}, records[1])
	assert.Equal(t, "normal", records[2][5])
}

func TestExportWeekAsPDF(t *testing.T) {
	svc, _ := newWeeklyFixture(nil, nil)

	out, filename, err := svc.Export(context.Background(), models.Actor{ID: "admin", Role: models.RoleAdmin}, mon, export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "schedule-2025-01-06.pdf", filename)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
