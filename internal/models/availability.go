package models

import "time"

// TeacherAvailability is a per-date window a teacher offers for rescheduled lessons only.
type TeacherAvailability struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      Date      `db:"available_date" json:"date"`
	StartHour int       `db:"start_hour" json:"start_hour"`
	EndHour   int       `db:"end_hour" json:"end_hour"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SetAvailabilityRequest declares or replaces the window on one date.
type SetAvailabilityRequest struct {
	Date      string `json:"date" validate:"required"`
	StartHour int    `json:"start_hour" validate:"min=0,max=23"`
	EndHour   int    `json:"end_hour" validate:"min=1,max=24,gtfield=StartHour"`
}
