package service

import (
	"time"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

// Clock pins every date and time comparison to one configured zone.
type Clock struct {
	Location *time.Location
	NowFunc  func() time.Time
}

// NewClock returns a wall clock in loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, NowFunc: time.Now}
}

// FixedClock always reports now; used by tests and the CLI --at flag.
func FixedClock(now time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, NowFunc: func() time.Time { return now }}
}

func (c Clock) Now() time.Time {
	nowFn := c.NowFunc
	if nowFn == nil {
		nowFn = time.Now
	}
	return nowFn().In(c.location())
}

func (c Clock) Today() models.Date {
	return models.DateOf(c.Now(), c.location())
}

// EndOfDay is the last second of the day containing t.
func (c Clock) EndOfDay(t time.Time) time.Time {
	return models.DateOf(t, c.location()).At(23, 59, c.location()).Add(59 * time.Second)
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
