package models

import "time"

// EligibilityReason explains why a change cannot be opened.
type EligibilityReason string

const (
	ReasonNone     EligibilityReason = ""
	ReasonInPast   EligibilityReason = "in_past"
	ReasonTooClose EligibilityReason = "too_close"
)

// Eligibility is the result of the lead-time gate.
type Eligibility struct {
	Eligible bool              `json:"eligible"`
	Reason   EligibilityReason `json:"reason,omitempty"`
	StartsAt time.Time         `json:"starts_at"`
}

// ScheduledLesson is one row of the weekly view.
type ScheduledLesson struct {
	SeriesID    string       `json:"series_id"`
	Title       string       `json:"title"`
	GroupName   string       `json:"group_name"`
	TeacherName string       `json:"teacher_name,omitempty"`
	Hour        int          `json:"hour"`
	Minute      int          `json:"minute"`
	Status      LessonStatus `json:"status"`
	MovedFrom   *Date        `json:"moved_from,omitempty"`
}

// ScheduleDay groups the lessons of one date.
type ScheduleDay struct {
	Date    Date              `json:"date"`
	Weekday string            `json:"weekday"`
	Lessons []ScheduledLesson `json:"lessons"`
}

// WeeklySchedule covers Monday through Sunday.
type WeeklySchedule struct {
	WeekStart Date          `json:"week_start"`
	Days      []ScheduleDay `json:"days"`
}

// DueLesson is a lesson that actually runs on a given date.
type DueLesson struct {
	Series    Series `json:"series"`
	Slot      Slot   `json:"slot"`
	MovedFrom *Date  `json:"moved_from,omitempty"`
}
