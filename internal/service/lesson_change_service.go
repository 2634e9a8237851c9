package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/dto"
	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
	"github.com/noah-isme/lessonsync-api/pkg/signing"
)

type lessonResolver interface {
	Series(id string) (models.Series, error)
	EffectiveStatus(ctx context.Context, seriesID string, date models.Date) (models.LessonStatus, error)
}

type slotChecker interface {
	FindRescheduleSlots(ctx context.Context, teacherID string, excludeDate models.Date, groupName string, horizonDays int) ([]models.Slot, error)
	IsSlotOffered(ctx context.Context, teacherID string, excludeDate models.Date, groupName string, horizonDays int, target models.Slot) (bool, error)
}

type changeEngine interface {
	OpenRequest(ctx context.Context, in OpenRequestInput) (*models.ChangeRequest, error)
	InstantApply(ctx context.Context, in InstantApplyInput) (*models.LessonOverride, error)
	CastVote(ctx context.Context, requestID, voterID string, approve bool, now time.Time) (*models.VoteOutcome, error)
	Get(ctx context.Context, requestID string) (*models.ChangeRequest, error)
	PendingForVoter(ctx context.Context, voterID string, now time.Time) ([]models.ChangeRequest, error)
	Restore(ctx context.Context, seriesID string, date models.Date) (bool, error)
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context)
}

type voteLinkParser interface {
	Parse(token string) (signing.VoteClaim, error)
}

// LessonChangeService is the entry point for user-initiated changes. It authorises the actor,
// applies the lead-time gate and slot checks, picks instant apply or a vote, and fans out
// notifications once the change is committed.
type LessonChangeService struct {
	resolver     lessonResolver
	eligibility  EligibilityChecker
	slots        slotChecker
	participants *ParticipantService
	engine       changeEngine
	notifier     *NotificationService
	schedule     scheduleInvalidator
	links        voteLinkParser
	clock        Clock
	horizon      int
	validator    *validator.Validate
	logger       *zap.Logger
}

// LessonChangeDeps groups the collaborators of LessonChangeService.
type LessonChangeDeps struct {
	Resolver     lessonResolver
	Eligibility  EligibilityChecker
	Slots        slotChecker
	Participants *ParticipantService
	Engine       changeEngine
	Notifier     *NotificationService
	Schedule     scheduleInvalidator
	Links        voteLinkParser
	Clock        Clock
	HorizonDays  int
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewLessonChangeService constructs the service.
func NewLessonChangeService(deps LessonChangeDeps) *LessonChangeService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HorizonDays <= 0 {
		deps.HorizonDays = 14
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotificationService(nil, nil, deps.Logger)
	}
	return &LessonChangeService{
		resolver:     deps.Resolver,
		eligibility:  deps.Eligibility,
		slots:        deps.Slots,
		participants: deps.Participants,
		engine:       deps.Engine,
		notifier:     deps.Notifier,
		schedule:     deps.Schedule,
		links:        deps.Links,
		clock:        deps.Clock,
		horizon:      deps.HorizonDays,
		validator:    deps.Validator,
		logger:       deps.Logger,
	}
}

// Submit applies a change directly when nobody else has to consent, otherwise opens a vote.
// Every student of the group other than the requester is a voter, whoever requested.
func (s *LessonChangeService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*dto.ChangeSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}
	changeType, err := models.NormalizeChangeType(req.ChangeType)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	target, err := targetFromRequest(changeType, req)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	series, err := s.resolver.Series(req.SeriesID)
	if err != nil {
		return nil, err
	}
	if !s.participants.CanAct(actor, series) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this series")
	}

	status, err := s.resolver.EffectiveStatus(ctx, series.ID, date)
	if err != nil {
		return nil, err
	}
	if !status.IsNormal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("lesson is already %s; restore it first", status.Kind))
	}

	now := s.clock.Now()
	if eligibility := s.eligibility.CanChange(series.StartsAt(date, s.clock.location()), now); !eligibility.Eligible {
		return nil, appErrors.Clone(appErrors.ErrChangeTooLate, eligibilityMessage(eligibility.Reason))
	}

	if target != nil {
		offered, err := s.slots.IsSlotOffered(ctx, series.TeacherID, date, series.GroupName, s.horizon, *target)
		if err != nil {
			return nil, err
		}
		if !offered {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, fmt.Sprintf("slot %s is not offered", target.String()))
		}
	}

	voters, err := s.participants.Voters(ctx, series, actor.ID)
	if err != nil {
		return nil, err
	}

	if len(voters) == 0 {
		override, err := s.engine.InstantApply(ctx, InstantApplyInput{
			SeriesID:     series.ID,
			ChangeType:   changeType,
			OriginalDate: date,
			Target:       target,
		})
		if err != nil {
			return nil, err
		}
		s.invalidateSchedule(ctx)
		s.announceApplied(ctx, series, *override, actor.ID)
		return &dto.ChangeSubmission{Mode: dto.SubmissionApplied, Override: override}, nil
	}

	request, err := s.engine.OpenRequest(ctx, OpenRequestInput{
		SeriesID:        series.ID,
		RequesterID:     actor.ID,
		RequesterRole:   actor.Role,
		ChangeType:      changeType,
		OriginalDate:    date,
		Target:          target,
		ApprovalsNeeded: len(voters),
	})
	if err != nil {
		return nil, err
	}
	s.notifier.VoteRequested(series, *request, voters)
	if actor.ID != series.TeacherID {
		s.notifier.VoteStarted(series, *request, series.TeacherID)
	}
	return &dto.ChangeSubmission{Mode: dto.SubmissionVoting, Request: request, Voters: len(voters)}, nil
}

// Eligibility reports whether the occurrence of seriesID on date may still be changed.
func (s *LessonChangeService) Eligibility(ctx context.Context, seriesID string, date models.Date) (models.Eligibility, error) {
	series, err := s.resolver.Series(seriesID)
	if err != nil {
		return models.Eligibility{}, err
	}
	if _, err := s.resolver.EffectiveStatus(ctx, seriesID, date); err != nil {
		return models.Eligibility{}, err
	}
	return s.eligibility.CanChange(series.StartsAt(date, s.clock.location()), s.clock.Now()), nil
}

// Slots lists where the occurrence of seriesID on originalDate could be moved.
func (s *LessonChangeService) Slots(ctx context.Context, seriesID string, originalDate models.Date) ([]models.Slot, error) {
	series, err := s.resolver.Series(seriesID)
	if err != nil {
		return nil, err
	}
	return s.slots.FindRescheduleSlots(ctx, series.TeacherID, originalDate, series.GroupName, s.horizon)
}

// Vote casts the actor's vote on a request.
func (s *LessonChangeService) Vote(ctx context.Context, actor models.Actor, requestID string, approve bool) (*models.VoteOutcome, error) {
	return s.vote(ctx, actor.ID, requestID, approve)
}

// VoteByLink casts the vote encoded in a signed one-tap link.
func (s *LessonChangeService) VoteByLink(ctx context.Context, token string) (*models.VoteOutcome, error) {
	if s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidVoteLink, "vote links are disabled")
	}
	claim, err := s.links.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidVoteLink.Code, appErrors.ErrInvalidVoteLink.Status, appErrors.ErrInvalidVoteLink.Message)
	}
	return s.vote(ctx, claim.VoterID, claim.RequestID, claim.Approve)
}

func (s *LessonChangeService) vote(ctx context.Context, voterID, requestID string, approve bool) (*models.VoteOutcome, error) {
	request, err := s.engine.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	series, err := s.resolver.Series(request.SeriesID)
	if err != nil {
		return nil, err
	}
	voters, err := s.participants.Voters(ctx, series, request.RequesterID)
	if err != nil {
		return nil, err
	}
	// The requester's consent row already exists, so their ballot resolves to already_voted.
	if voterID != request.RequesterID && !slices.Contains(voters, voterID) {
		return nil, appErrors.Clone(appErrors.ErrNotEligibleVoter, "not a voter on this change request")
	}

	outcome, err := s.engine.CastVote(ctx, requestID, voterID, approve, s.clock.Now())
	if err != nil {
		return nil, err
	}

	switch outcome.Result {
	case models.VoteApproved:
		s.invalidateSchedule(ctx)
		if outcome.Override != nil {
			s.announceApplied(ctx, series, *outcome.Override, voterID)
		}
	case models.VoteRejected:
		recipients, err := s.participants.Recipients(ctx, series, voterID)
		if err != nil {
			s.logger.Warn("failed to resolve rejection recipients", zap.String("request_id", requestID), zap.Error(err))
			break
		}
		s.notifier.ChangeRejected(series, *outcome.Request, recipients)
	}
	return outcome, nil
}

// Restore removes the override on one occurrence.
func (s *LessonChangeService) Restore(ctx context.Context, actor models.Actor, seriesID string, date models.Date) error {
	series, err := s.resolver.Series(seriesID)
	if err != nil {
		return err
	}
	if !s.participants.CanManage(actor, series) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the series teacher or an admin can restore lessons")
	}
	removed, err := s.engine.Restore(ctx, seriesID, date)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson has no override on this date")
	}
	s.invalidateSchedule(ctx)

	recipients, err := s.participants.Recipients(ctx, series, actor.ID)
	if err != nil {
		s.logger.Warn("failed to resolve restore recipients", zap.String("series_id", seriesID), zap.Error(err))
		return nil
	}
	s.notifier.LessonRestored(series, date, actor.ID, recipients)
	return nil
}

// Pending lists requests awaiting the actor's vote, limited to series where the actor is a voter.
func (s *LessonChangeService) Pending(ctx context.Context, actor models.Actor) ([]models.ChangeRequest, error) {
	requests, err := s.engine.PendingForVoter(ctx, actor.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	eligible := make(map[string]bool)
	pending := make([]models.ChangeRequest, 0, len(requests))
	for _, request := range requests {
		key := request.SeriesID + "|" + request.RequesterID
		ok, seen := eligible[key]
		if !seen {
			series, err := s.resolver.Series(request.SeriesID)
			if err != nil {
				s.logger.Warn("skipping request for unknown series", zap.String("request_id", request.RequestID), zap.String("series_id", request.SeriesID))
				eligible[key] = false
				continue
			}
			voters, err := s.participants.Voters(ctx, series, request.RequesterID)
			if err != nil {
				return nil, err
			}
			ok = slices.Contains(voters, actor.ID)
			eligible[key] = ok
		}
		if ok {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

func (s *LessonChangeService) announceApplied(ctx context.Context, series models.Series, override models.LessonOverride, actorID string) {
	recipients, err := s.participants.Recipients(ctx, series, actorID)
	if err != nil {
		s.logger.Warn("failed to resolve change recipients", zap.String("series_id", series.ID), zap.Error(err))
		return
	}
	s.notifier.ChangeApplied(series, override, actorID, recipients)
}

func (s *LessonChangeService) invalidateSchedule(ctx context.Context) {
	if s.schedule != nil {
		s.schedule.Invalidate(ctx)
	}
}

func targetFromRequest(changeType models.ChangeType, req dto.SubmitChangeRequest) (*models.Slot, error) {
	hasAny := req.NewDate != "" || req.NewHour != nil || req.NewMinute != nil
	if changeType == models.ChangeCancel {
		if hasAny {
			return nil, fmt.Errorf("cancel must not carry a new slot")
		}
		return nil, nil
	}
	if req.NewDate == "" || req.NewHour == nil || req.NewMinute == nil {
		return nil, fmt.Errorf("postpone requires new_date, new_hour and new_minute")
	}
	newDate, err := models.ParseDate(req.NewDate)
	if err != nil {
		return nil, fmt.Errorf("invalid new_date")
	}
	return &models.Slot{Date: newDate, Hour: *req.NewHour, Minute: *req.NewMinute}, nil
}

func eligibilityMessage(reason models.EligibilityReason) string {
	switch reason {
	case models.ReasonInPast:
		return "lesson has already started"
	case models.ReasonTooClose:
		return "lesson starts too soon to be changed"
	default:
		return appErrors.ErrChangeTooLate.Message
	}
}
