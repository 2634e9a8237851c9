package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Series is a recurring lesson template. Series are loaded from configuration and never
// mutated by the service.
type Series struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	GroupName   string         `json:"group_name"`
	TeacherID   string         `json:"teacher_id"`
	TeacherName string         `json:"teacher_name"`
	Days        []time.Weekday `json:"days"`
	Hour        int            `json:"hour"`
	Minute      int            `json:"minute"`
}

// OccursOn reports whether the recurring template places a lesson on d.
func (s Series) OccursOn(d Date) bool {
	return slices.Contains(s.Days, d.Weekday())
}

// StartsAt returns the regular start instant of the lesson on d.
func (s Series) StartsAt(d Date, loc *time.Location) time.Time {
	return d.At(s.Hour, s.Minute, loc)
}

// Slot returns the regular slot of the lesson on d.
func (s Series) Slot(d Date) Slot {
	return Slot{Date: d, Hour: s.Hour, Minute: s.Minute}
}

func (s Series) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("series id is required")
	case strings.TrimSpace(s.GroupName) == "":
		return fmt.Errorf("series %s: group is required", s.ID)
	case len(s.Days) == 0:
		return fmt.Errorf("series %s: at least one weekday is required", s.ID)
	case s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59:
		return fmt.Errorf("series %s: invalid time %02d:%02d", s.ID, s.Hour, s.Minute)
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts English day names and their three letter abbreviations.
func ParseWeekday(raw string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", raw)
	}
	return day, nil
}

// Slot is a concrete date and time of day.
type Slot struct {
	Date   Date `json:"date"`
	Hour   int  `json:"hour"`
	Minute int  `json:"minute"`
}

func (s Slot) Time(loc *time.Location) time.Time {
	return s.Date.At(s.Hour, s.Minute, loc)
}

// Less orders slots by date, then time of day.
func (s Slot) Less(other Slot) bool {
	if c := s.Date.Compare(other.Date); c != 0 {
		return c < 0
	}
	return s.Hour*60+s.Minute < other.Hour*60+other.Minute
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %02d:%02d", s.Date, s.Hour, s.Minute)
}

// Occurrence is one calendar instance implied by a series, annotated with its effective status.
type Occurrence struct {
	SeriesID  string       `json:"series_id"`
	Title     string       `json:"title"`
	GroupName string       `json:"group_name"`
	Date      Date         `json:"date"`
	Hour      int          `json:"hour"`
	Minute    int          `json:"minute"`
	Status    LessonStatus `json:"status"`
}
