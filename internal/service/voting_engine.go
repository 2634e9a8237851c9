package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type changeRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.ChangeRequest) error
	Get(ctx context.Context, requestID string) (*models.ChangeRequest, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, requestID string) (*models.ChangeRequest, error)
	IncrementApprovals(ctx context.Context, exec sqlx.ExtContext, requestID string) (int, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, requestID string, status models.RequestStatus, at time.Time) error
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
	ListPendingForVoter(ctx context.Context, voterID string, now time.Time) ([]models.ChangeRequest, error)
	PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type approvalStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, approval models.Approval) (bool, error)
}

type overrideWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, override *models.LessonOverride) error
	Delete(ctx context.Context, exec sqlx.ExtContext, seriesID string, date models.Date) (bool, error)
}

// OpenRequestInput describes a change that needs votes before it applies.
type OpenRequestInput struct {
	SeriesID        string
	RequesterID     string
	RequesterRole   models.Role
	ChangeType      models.ChangeType
	OriginalDate    models.Date
	Target          *models.Slot
	ApprovalsNeeded int
}

// InstantApplyInput describes a change applied without a vote.
type InstantApplyInput struct {
	SeriesID     string
	ChangeType   models.ChangeType
	OriginalDate models.Date
	Target       *models.Slot
}

// VotingEngine owns the change request lifecycle. Every mutation runs in one transaction and
// vote casting locks the request row, so concurrent votes on one request serialise.
type VotingEngine struct {
	tx        txProvider
	requests  changeRequestStore
	approvals approvalStore
	overrides overrideWriter
	clock     Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewVotingEngine constructs the engine.
func NewVotingEngine(tx txProvider, requests changeRequestStore, approvals approvalStore, overrides overrideWriter, clock Clock, metrics *MetricsService, logger *zap.Logger) *VotingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VotingEngine{
		tx:        tx,
		requests:  requests,
		approvals: approvals,
		overrides: overrides,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// OpenRequest persists a pending request together with the requester's own consent. The
// requester's vote is recorded but never counted toward ApprovalsNeeded.
func (e *VotingEngine) OpenRequest(ctx context.Context, in OpenRequestInput) (req *models.ChangeRequest, err error) {
	if err := models.ValidateChange(in.SeriesID, in.ChangeType, in.OriginalDate, in.Target); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if in.RequesterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester id is required")
	}
	if in.ApprovalsNeeded < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approvals needed must be at least 1")
	}

	now := e.clock.Now()
	req = &models.ChangeRequest{
		RequestID:       uuid.NewString(),
		SeriesID:        in.SeriesID,
		RequesterID:     in.RequesterID,
		RequesterRole:   in.RequesterRole,
		ChangeType:      in.ChangeType,
		OriginalDate:    in.OriginalDate,
		ApprovalsNeeded: in.ApprovalsNeeded,
		Status:          models.RequestPending,
		CreatedAt:       now.UTC(),
		ExpiresAt:       e.clock.EndOfDay(now).UTC(),
	}
	if in.Target != nil {
		date, hour, minute := in.Target.Date, in.Target.Hour, in.Target.Minute
		req.NewDate, req.NewHour, req.NewMinute = &date, &hour, &minute
	}

	tx, err := e.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = e.requests.Create(ctx, tx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}
	if _, err = e.approvals.Insert(ctx, tx, models.Approval{RequestID: req.RequestID, VoterID: in.RequesterID, Approved: true, CreatedAt: now.UTC()}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record requester consent")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit change request")
	}

	e.metrics.RecordRequestOpened(req.ChangeType)
	e.logger.Info("change request opened",
		zap.String("request_id", req.RequestID),
		zap.String("series_id", req.SeriesID),
		zap.String("change_type", string(req.ChangeType)),
		zap.Int("approvals_needed", req.ApprovalsNeeded),
	)
	return req, nil
}

// InstantApply writes the override immediately.
func (e *VotingEngine) InstantApply(ctx context.Context, in InstantApplyInput) (*models.LessonOverride, error) {
	if err := models.ValidateChange(in.SeriesID, in.ChangeType, in.OriginalDate, in.Target); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	override := models.NewCancellation(in.SeriesID, in.OriginalDate)
	if in.Target != nil {
		override = models.NewPostponement(in.SeriesID, in.OriginalDate, *in.Target)
	}
	if err := e.overrides.Upsert(ctx, nil, &override); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply lesson change")
	}
	e.metrics.RecordChangeApplied("instant", override.Type)
	e.logger.Info("lesson change applied",
		zap.String("series_id", override.SeriesID),
		zap.String("original_date", override.OriginalDate.String()),
		zap.String("override_type", string(override.Type)),
	)
	return &override, nil
}

// CastVote records one vote and, when it completes the quorum, materialises the override in the
// same transaction. Closed and duplicate votes are outcomes, not errors.
func (e *VotingEngine) CastVote(ctx context.Context, requestID, voterID string, approve bool, now time.Time) (outcome *models.VoteOutcome, err error) {
	if requestID == "" || voterID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id and voter id are required")
	}

	tx, err := e.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	req, err := e.requests.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}

	if !req.IsPending() {
		e.metrics.RecordVote(models.VoteClosed)
		return &models.VoteOutcome{Result: models.VoteClosed, Request: req}, nil
	}

	if now.After(req.ExpiresAt) {
		if err = e.requests.Resolve(ctx, tx, req.RequestID, models.RequestExpired, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire change request")
		}
		if err = tx.Commit(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit expiry")
		}
		committed = true
		req.Status = models.RequestExpired
		resolvedAt := now.UTC()
		req.ResolvedAt = &resolvedAt
		e.metrics.RecordExpired(1)
		e.metrics.RecordVote(models.VoteClosed)
		return &models.VoteOutcome{Result: models.VoteClosed, Request: req}, nil
	}

	inserted, err := e.approvals.Insert(ctx, tx, models.Approval{RequestID: req.RequestID, VoterID: voterID, Approved: approve, CreatedAt: now.UTC()})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}
	if !inserted {
		e.metrics.RecordVote(models.VoteAlreadyVoted)
		return &models.VoteOutcome{Result: models.VoteAlreadyVoted, Remaining: req.Remaining(), Request: req}, nil
	}

	outcome = &models.VoteOutcome{Request: req}
	resolvedAt := now.UTC()

	if !approve {
		if err = e.requests.Resolve(ctx, tx, req.RequestID, models.RequestRejected, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject change request")
		}
		req.Status = models.RequestRejected
		req.ResolvedAt = &resolvedAt
		outcome.Result = models.VoteRejected
	} else {
		received, incErr := e.requests.IncrementApprovals(ctx, tx, req.RequestID)
		if incErr != nil {
			err = incErr
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approval")
		}
		req.ApprovalsReceived = received

		if received >= req.ApprovalsNeeded {
			if err = e.requests.Resolve(ctx, tx, req.RequestID, models.RequestApproved, now); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve change request")
			}
			override := req.Override()
			if err = e.overrides.Upsert(ctx, tx, &override); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply approved change")
			}
			req.Status = models.RequestApproved
			req.ResolvedAt = &resolvedAt
			outcome.Result = models.VoteApproved
			outcome.Override = &override
		} else {
			outcome.Result = models.VotePending
		}
	}
	outcome.Remaining = req.Remaining()

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit vote")
	}
	committed = true

	e.metrics.RecordVote(outcome.Result)
	if outcome.Override != nil {
		e.metrics.RecordChangeApplied("vote", outcome.Override.Type)
	}
	e.logger.Info("vote recorded",
		zap.String("request_id", req.RequestID),
		zap.String("voter_id", voterID),
		zap.Bool("approve", approve),
		zap.String("result", string(outcome.Result)),
		zap.Int("remaining", outcome.Remaining),
	)
	return outcome, nil
}

// ExpireStaleRequests closes every pending request whose expiry is before now.
func (e *VotingEngine) ExpireStaleRequests(ctx context.Context, now time.Time) (int64, error) {
	expired, err := e.requests.ExpireBefore(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire change requests")
	}
	if expired > 0 {
		e.metrics.RecordExpired(expired)
		e.logger.Info("change requests expired", zap.Int64("count", expired))
	}
	return expired, nil
}

// PurgeResolved deletes terminal requests resolved before cutoff; their votes cascade.
func (e *VotingEngine) PurgeResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	purged, err := e.requests.PurgeResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge change requests")
	}
	return purged, nil
}

// PendingForVoter lists live requests still waiting on the voter.
func (e *VotingEngine) PendingForVoter(ctx context.Context, voterID string, now time.Time) ([]models.ChangeRequest, error) {
	requests, err := e.requests.ListPendingForVoter(ctx, voterID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending change requests")
	}
	return requests, nil
}

// Get returns one request.
func (e *VotingEngine) Get(ctx context.Context, requestID string) (*models.ChangeRequest, error) {
	req, err := e.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	return req, nil
}

// Restore removes the override of one occurrence, reporting whether one existed.
func (e *VotingEngine) Restore(ctx context.Context, seriesID string, date models.Date) (bool, error) {
	removed, err := e.overrides.Delete(ctx, nil, seriesID, date)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore lesson")
	}
	if removed {
		e.logger.Info("lesson restored", zap.String("series_id", seriesID), zap.String("original_date", date.String()))
	}
	return removed, nil
}
