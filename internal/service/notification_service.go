package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

type notificationDispatcher interface {
	Dispatch(n models.Notification) error
}

type voteLinkIssuer interface {
	Links(requestID, voterID string, expiresAt time.Time) (approve, reject string, err error)
}

// NotificationService turns domain events into one notification per recipient. Delivery is
// asynchronous and best effort: a failed hand-off is logged and never undoes the change.
type NotificationService struct {
	dispatcher notificationDispatcher
	links      voteLinkIssuer
	logger     *zap.Logger
}

// NewNotificationService constructs the service. links may be nil, in which case vote
// notifications carry no one-tap links.
func NewNotificationService(dispatcher notificationDispatcher, links voteLinkIssuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, links: links, logger: logger}
}

// ChangeApplied announces a cancellation or postponement that is now in effect.
func (s *NotificationService) ChangeApplied(series models.Series, override models.LessonOverride, actorID string, recipients []string) {
	base := s.base(models.NotifyChangeApplied, series, override.OriginalDate)
	base.ActorID = actorID
	if target, ok := override.Target(); ok {
		base.NewSlot = &target
	} else {
		base.Cancelled = true
	}
	s.fanOut(base, recipients)
}

// VoteRequested asks each voter to approve or reject, attaching signed links when available.
func (s *NotificationService) VoteRequested(series models.Series, req models.ChangeRequest, voters []string) {
	base := s.requestBase(models.NotifyVoteRequested, series, req)
	for _, voter := range voters {
		n := base
		n.RecipientID = voter
		if s.links != nil {
			approve, reject, err := s.links.Links(req.RequestID, voter, req.ExpiresAt)
			if err != nil {
				s.logger.Warn("failed to sign vote links", zap.String("request_id", req.RequestID), zap.String("voter_id", voter), zap.Error(err))
			} else {
				n.ApproveURL, n.RejectURL = approve, reject
			}
		}
		s.send(n)
	}
}

// VoteStarted tells the teacher a vote is running on their lesson.
func (s *NotificationService) VoteStarted(series models.Series, req models.ChangeRequest, teacherID string) {
	if teacherID == "" || teacherID == req.RequesterID {
		return
	}
	s.fanOut(s.requestBase(models.NotifyVoteStarted, series, req), []string{teacherID})
}

// ChangeRejected announces that a vote failed.
func (s *NotificationService) ChangeRejected(series models.Series, req models.ChangeRequest, recipients []string) {
	s.fanOut(s.requestBase(models.NotifyChangeRejected, series, req), recipients)
}

// LessonRestored announces that an override was removed.
func (s *NotificationService) LessonRestored(series models.Series, date models.Date, actorID string, recipients []string) {
	base := s.base(models.NotifyLessonRestored, series, date)
	base.ActorID = actorID
	s.fanOut(base, recipients)
}

// LessonStarting reminds participants of a lesson that runs today.
func (s *NotificationService) LessonStarting(due models.DueLesson, recipients []string) {
	original := due.Slot.Date
	if due.MovedFrom != nil {
		original = *due.MovedFrom
	}
	base := s.base(models.NotifyLessonStarting, due.Series, original)
	if due.MovedFrom != nil {
		slot := due.Slot
		base.NewSlot = &slot
	}
	s.fanOut(base, recipients)
}

func (s *NotificationService) base(kind models.NotificationKind, series models.Series, date models.Date) models.Notification {
	return models.Notification{
		Kind:         kind,
		SeriesID:     series.ID,
		Title:        series.Title,
		OriginalDate: date,
		OldHour:      series.Hour,
		OldMinute:    series.Minute,
	}
}

func (s *NotificationService) requestBase(kind models.NotificationKind, series models.Series, req models.ChangeRequest) models.Notification {
	n := s.base(kind, series, req.OriginalDate)
	n.RequestID = req.RequestID
	n.ActorID = req.RequesterID
	n.Remaining = req.Remaining()
	if target, ok := req.Target(); ok {
		n.NewSlot = &target
	} else {
		n.Cancelled = true
	}
	return n
}

func (s *NotificationService) fanOut(base models.Notification, recipients []string) {
	for _, recipient := range recipients {
		n := base
		n.RecipientID = recipient
		s.send(n)
	}
}

func (s *NotificationService) send(n models.Notification) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(n); err != nil {
		s.logger.Warn("failed to queue notification",
			zap.String("kind", string(n.Kind)),
			zap.String("recipient_id", n.RecipientID),
			zap.String("series_id", n.SeriesID),
			zap.Error(err),
		)
	}
}
