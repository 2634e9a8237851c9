package dto

import "github.com/noah-isme/lessonsync-api/internal/models"

// SubmitChangeRequest asks to cancel or postpone one occurrence.
type SubmitChangeRequest struct {
	SeriesID   string `json:"series_id" validate:"required"`
	Date       string `json:"date" validate:"required"`
	ChangeType string `json:"change_type" validate:"required"`
	NewDate    string `json:"new_date,omitempty"`
	NewHour    *int   `json:"new_hour,omitempty" validate:"omitempty,min=0,max=23"`
	NewMinute  *int   `json:"new_minute,omitempty" validate:"omitempty,min=0,max=59"`
}

// Submission modes.
const (
	SubmissionApplied = "applied"
	SubmissionVoting  = "voting"
)

// ChangeSubmission reports whether a change took effect immediately or went to a vote.
type ChangeSubmission struct {
	Mode     string                 `json:"mode"`
	Override *models.LessonOverride `json:"override,omitempty"`
	Request  *models.ChangeRequest  `json:"request,omitempty"`
	Voters   int                    `json:"voters"`
}

// CastVoteRequest carries one voter's decision.
type CastVoteRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// ExpireRequestsResponse reports a sweep.
type ExpireRequestsResponse struct {
	Expired int64 `json:"expired"`
}
