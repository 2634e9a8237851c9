package models

import (
	"fmt"
	"strings"
	"time"
)

// ChangeType is the kind of change a request proposes.
type ChangeType string

const (
	ChangeCancel   ChangeType = "cancel"
	ChangePostpone ChangeType = "postpone"
)

// NormalizeChangeType accepts the same loose spellings as NormalizeOverrideType.
func NormalizeChangeType(raw string) (ChangeType, error) {
	overrideType, err := NormalizeOverrideType(raw)
	if err != nil {
		return "", fmt.Errorf("unknown change type %q", raw)
	}
	if overrideType == OverridePostponed {
		return ChangePostpone, nil
	}
	return ChangeCancel, nil
}

// OverrideType maps the change onto the override it produces.
func (c ChangeType) OverrideType() OverrideType {
	if c == ChangePostpone {
		return OverridePostponed
	}
	return OverrideCancelled
}

// RequestStatus is monotonic: pending moves to exactly one terminal state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// ChangeRequest is a proposal to cancel or postpone one occurrence, gated by votes.
type ChangeRequest struct {
	RequestID         string        `db:"request_id" json:"request_id"`
	SeriesID          string        `db:"series_id" json:"series_id"`
	RequesterID       string        `db:"requester_id" json:"requester_id"`
	RequesterRole     Role          `db:"requester_role" json:"requester_role"`
	ChangeType        ChangeType    `db:"change_type" json:"change_type"`
	OriginalDate      Date          `db:"original_date" json:"original_date"`
	NewDate           *Date         `db:"new_date" json:"new_date,omitempty"`
	NewHour           *int          `db:"new_hour" json:"new_hour,omitempty"`
	NewMinute         *int          `db:"new_minute" json:"new_minute,omitempty"`
	ApprovalsNeeded   int           `db:"approvals_needed" json:"approvals_needed"`
	ApprovalsReceived int           `db:"approvals_received" json:"approvals_received"`
	Status            RequestStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	ExpiresAt         time.Time     `db:"expires_at" json:"expires_at"`
	ResolvedAt        *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

func (r ChangeRequest) IsPending() bool { return r.Status == RequestPending }

// Remaining is the number of approvals still missing.
func (r ChangeRequest) Remaining() int {
	if left := r.ApprovalsNeeded - r.ApprovalsReceived; left > 0 {
		return left
	}
	return 0
}

// Target returns the proposed slot of a postponement.
func (r ChangeRequest) Target() (Slot, bool) {
	if r.ChangeType != ChangePostpone || r.NewDate == nil || r.NewHour == nil || r.NewMinute == nil {
		return Slot{}, false
	}
	return Slot{Date: *r.NewDate, Hour: *r.NewHour, Minute: *r.NewMinute}, true
}

// Override builds the override materialised when the request is approved.
func (r ChangeRequest) Override() LessonOverride {
	if target, ok := r.Target(); ok {
		return NewPostponement(r.SeriesID, r.OriginalDate, target)
	}
	return NewCancellation(r.SeriesID, r.OriginalDate)
}

// ValidateChange checks the shape shared by requests and instant changes.
func ValidateChange(seriesID string, changeType ChangeType, original Date, target *Slot) error {
	if strings.TrimSpace(seriesID) == "" || original.IsZero() {
		return fmt.Errorf("series id and original date are required")
	}
	switch changeType {
	case ChangeCancel:
		if target != nil {
			return fmt.Errorf("cancel must not carry a new slot")
		}
	case ChangePostpone:
		if target == nil || target.Date.IsZero() {
			return fmt.Errorf("postpone requires new date, hour and minute")
		}
		if target.Hour < 0 || target.Hour > 23 || target.Minute < 0 || target.Minute > 59 {
			return fmt.Errorf("invalid time %02d:%02d", target.Hour, target.Minute)
		}
	default:
		return fmt.Errorf("unknown change type %q", changeType)
	}
	return nil
}

// Approval is one voter's decision on a request.
type Approval struct {
	RequestID string    `db:"request_id" json:"request_id"`
	VoterID   string    `db:"voter_id" json:"voter_id"`
	Approved  bool      `db:"approved" json:"approved"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VoteResult enumerates CastVote outcomes.
type VoteResult string

const (
	VoteApproved     VoteResult = "approved"
	VoteRejected     VoteResult = "rejected"
	VotePending      VoteResult = "pending"
	VoteAlreadyVoted VoteResult = "already_voted"
	VoteClosed       VoteResult = "closed"
)

// VoteOutcome reports what a vote did. Request is the post-vote snapshot; Override is set
// only when the vote completed the quorum.
type VoteOutcome struct {
	Result    VoteResult      `json:"result"`
	Remaining int             `json:"remaining"`
	Request   *ChangeRequest  `json:"request,omitempty"`
	Override  *LessonOverride `json:"override,omitempty"`
}

// Terminal reports whether the vote moved the request out of pending.
func (o VoteOutcome) Terminal() bool {
	return o.Result == VoteApproved || o.Result == VoteRejected
}
