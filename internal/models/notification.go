package models

// NotificationKind names the message template a recipient should see.
type NotificationKind string

const (
	NotifyChangeApplied  NotificationKind = "change_applied"
	NotifyVoteRequested  NotificationKind = "vote_requested"
	NotifyVoteStarted    NotificationKind = "vote_started"
	NotifyChangeRejected NotificationKind = "change_rejected"
	NotifyLessonRestored NotificationKind = "lesson_restored"
	NotifyLessonStarting NotificationKind = "lesson_starting"
)

// Notification is the structured payload handed to the delivery sink. Rendering text is the
// transport's job.
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	RecipientID  string           `json:"recipient_id"`
	SeriesID     string           `json:"series_id"`
	Title        string           `json:"title"`
	OriginalDate Date             `json:"original_date"`
	OldHour      int              `json:"old_hour"`
	OldMinute    int              `json:"old_minute"`
	NewSlot      *Slot            `json:"new_slot,omitempty"`
	Cancelled    bool             `json:"cancelled,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	Remaining    int              `json:"remaining,omitempty"`
	ApproveURL   string           `json:"approve_url,omitempty"`
	RejectURL    string           `json:"reject_url,omitempty"`
}
