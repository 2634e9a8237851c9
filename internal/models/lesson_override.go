package models

import (
	"fmt"
	"strings"
	"time"
)

// OverrideType enumerates the stored deviations from a recurring lesson.
type OverrideType string

const (
	OverrideCancelled OverrideType = "cancelled"
	OverridePostponed OverrideType = "postponed"
)

// NormalizeOverrideType maps the loose spellings used by clients onto OverrideType.
func NormalizeOverrideType(raw string) (OverrideType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cancel", "cancelled", "canceled":
		return OverrideCancelled, nil
	case "postpone", "postponed", "reschedule", "rescheduled":
		return OverridePostponed, nil
	default:
		return "", fmt.Errorf("unknown override type %q", raw)
	}
}

// LessonOverride records a deviation for a single occurrence, keyed by (series_id, original_date).
type LessonOverride struct {
	ID           string       `db:"id" json:"id"`
	SeriesID     string       `db:"series_id" json:"series_id"`
	OriginalDate Date         `db:"original_date" json:"original_date"`
	Type         OverrideType `db:"override_type" json:"override_type"`
	NewDate      *Date        `db:"new_date" json:"new_date,omitempty"`
	NewHour      *int         `db:"new_hour" json:"new_hour,omitempty"`
	NewMinute    *int         `db:"new_minute" json:"new_minute,omitempty"`
	Status       string       `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// NewCancellation builds a cancelled override.
func NewCancellation(seriesID string, date Date) LessonOverride {
	return LessonOverride{
		SeriesID:     seriesID,
		OriginalDate: date,
		Type:         OverrideCancelled,
		Status:       string(OverrideCancelled),
	}
}

// NewPostponement builds a postponed override targeting slot.
func NewPostponement(seriesID string, date Date, target Slot) LessonOverride {
	newDate, hour, minute := target.Date, target.Hour, target.Minute
	return LessonOverride{
		SeriesID:     seriesID,
		OriginalDate: date,
		Type:         OverridePostponed,
		NewDate:      &newDate,
		NewHour:      &hour,
		NewMinute:    &minute,
		Status:       string(OverridePostponed),
	}
}

// Validate enforces that postponements carry a full target and cancellations carry none.
func (o LessonOverride) Validate() error {
	if strings.TrimSpace(o.SeriesID) == "" || o.OriginalDate.IsZero() {
		return fmt.Errorf("override requires series id and original date")
	}
	hasAny := o.NewDate != nil || o.NewHour != nil || o.NewMinute != nil
	hasAll := o.NewDate != nil && o.NewHour != nil && o.NewMinute != nil
	switch o.Type {
	case OverrideCancelled:
		if hasAny {
			return fmt.Errorf("cancelled override must not carry a new date or time")
		}
	case OverridePostponed:
		if !hasAll {
			return fmt.Errorf("postponed override requires new date, hour and minute")
		}
		if *o.NewHour < 0 || *o.NewHour > 23 || *o.NewMinute < 0 || *o.NewMinute > 59 {
			return fmt.Errorf("postponed override has invalid time %02d:%02d", *o.NewHour, *o.NewMinute)
		}
	default:
		return fmt.Errorf("unknown override type %q", o.Type)
	}
	return nil
}

// Target returns the new slot of a postponement.
func (o LessonOverride) Target() (Slot, bool) {
	if o.Type != OverridePostponed || o.NewDate == nil || o.NewHour == nil || o.NewMinute == nil {
		return Slot{}, false
	}
	return Slot{Date: *o.NewDate, Hour: *o.NewHour, Minute: *o.NewMinute}, true
}

// OverrideRange is the result of a window lookup, partitioned by the role the date plays.
type OverrideRange struct {
	ByOriginalDate map[Date]map[string]LessonOverride `json:"by_original_date"`
	ByNewDate      map[Date][]LessonOverride          `json:"by_new_date"`
}

// LessonStatusKind tags the effective state of an occurrence.
type LessonStatusKind string

const (
	LessonNormal    LessonStatusKind = "normal"
	LessonCancelled LessonStatusKind = "cancelled"
	LessonPostponed LessonStatusKind = "postponed"
)

// LessonStatus is the effective state of one occurrence. Target is set only for postponements.
type LessonStatus struct {
	Kind   LessonStatusKind `json:"kind"`
	Target *Slot            `json:"target,omitempty"`
}

func StatusNormal() LessonStatus    { return LessonStatus{Kind: LessonNormal} }
func StatusCancelled() LessonStatus { return LessonStatus{Kind: LessonCancelled} }

func StatusPostponed(target Slot) LessonStatus {
	return LessonStatus{Kind: LessonPostponed, Target: &target}
}

// StatusFromOverride resolves the status implied by o; nil means the lesson runs as scheduled.
func StatusFromOverride(o *LessonOverride) LessonStatus {
	if o == nil {
		return StatusNormal()
	}
	if target, ok := o.Target(); ok {
		return StatusPostponed(target)
	}
	return StatusCancelled()
}

func (s LessonStatus) IsNormal() bool { return s.Kind == LessonNormal }
