package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type changeRequestStoreStub struct {
	requests  map[string]*models.ChangeRequest
	created   []models.ChangeRequest
	createErr error
}

func newChangeRequestStoreStub(reqs ...models.ChangeRequest) *changeRequestStoreStub {
	stub := &changeRequestStoreStub{requests: map[string]*models.ChangeRequest{}}
	for i := range reqs {
		req := reqs[i]
		stub.requests[req.RequestID] = &req
	}
	return stub
}

func (s *changeRequestStoreStub) Create(_ context.Context, _ sqlx.ExtContext, req *models.ChangeRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	copied := *req
	s.requests[req.RequestID] = &copied
	s.created = append(s.created, copied)
	return nil
}

func (s *changeRequestStoreStub) Get(_ context.Context, id string) (*models.ChangeRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (s *changeRequestStoreStub) GetForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.ChangeRequest, error) {
	return s.Get(ctx, id)
}

func (s *changeRequestStoreStub) IncrementApprovals(_ context.Context, _ sqlx.ExtContext, id string) (int, error) {
	req, ok := s.requests[id]
	if !ok || !req.IsPending() {
		return 0, sql.ErrNoRows
	}
	req.ApprovalsReceived++
	return req.ApprovalsReceived, nil
}

func (s *changeRequestStoreStub) Resolve(_ context.Context, _ sqlx.ExtContext, id string, status models.RequestStatus, at time.Time) error {
	req, ok := s.requests[id]
	if !ok || !req.IsPending() {
		return sql.ErrNoRows
	}
	req.Status = status
	resolved := at
	req.ResolvedAt = &resolved
	return nil
}

func (s *changeRequestStoreStub) ExpireBefore(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, req := range s.requests {
		if req.IsPending() && req.ExpiresAt.Before(now) {
			req.Status = models.RequestExpired
			count++
		}
	}
	return count, nil
}

func (s *changeRequestStoreStub) ListPendingForVoter(_ context.Context, voterID string, now time.Time) ([]models.ChangeRequest, error) {
	var out []models.ChangeRequest
	for _, req := range s.requests {
		if req.IsPending() && req.ExpiresAt.After(now) && req.RequesterID != voterID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *changeRequestStoreStub) PurgeResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for id, req := range s.requests {
		if !req.IsPending() && req.ResolvedAt != nil && req.ResolvedAt.Before(cutoff) {
			delete(s.requests, id)
			count++
		}
	}
	return count, nil
}

type approvalStoreStub struct {
	votes map[string]models.Approval
}

func newApprovalStoreStub() *approvalStoreStub {
	return &approvalStoreStub{votes: map[string]models.Approval{}}
}

func (s *approvalStoreStub) Insert(_ context.Context, _ sqlx.ExtContext, approval models.Approval) (bool, error) {
	key := approval.RequestID + "/" + approval.VoterID
	if _, exists := s.votes[key]; exists {
		return false, nil
	}
	s.votes[key] = approval
	return true, nil
}

type overrideStoreStub struct {
	rows      map[string]models.LessonOverride
	upsertErr error
}

func newOverrideStoreStub() *overrideStoreStub {
	return &overrideStoreStub{rows: map[string]models.LessonOverride{}}
}

func overrideKey(seriesID string, date models.Date) string { return seriesID + "/" + date.String() }

func (s *overrideStoreStub) Upsert(_ context.Context, _ sqlx.ExtContext, override *models.LessonOverride) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if err := override.Validate(); err != nil {
		return err
	}
	s.rows[overrideKey(override.SeriesID, override.OriginalDate)] = *override
	return nil
}

func (s *overrideStoreStub) Delete(_ context.Context, _ sqlx.ExtContext, seriesID string, date models.Date) (bool, error) {
	key := overrideKey(seriesID, date)
	_, ok := s.rows[key]
	delete(s.rows, key)
	return ok, nil
}

// snapshot exposes the written overrides to a ScheduleResolver.
func (s *overrideStoreStub) snapshot() *overrideReaderStub {
	reader := &overrideReaderStub{}
	for _, row := range s.rows {
		reader.rows = append(reader.rows, row)
	}
	return reader
}

var engineNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine    *VotingEngine
	mock      sqlmock.Sqlmock
	requests  *changeRequestStoreStub
	approvals *approvalStoreStub
	overrides *overrideStoreStub
}

func newEngineFixture(t *testing.T, reqs ...models.ChangeRequest) engineFixture {
	tx, mock := newTxProviderMock(t)
	requests := newChangeRequestStoreStub(reqs...)
	approvals := newApprovalStoreStub()
	overrides := newOverrideStoreStub()
	engine := NewVotingEngine(tx, requests, approvals, overrides, FixedClock(engineNow, time.UTC), NewMetricsService(), nil)
	return engineFixture{engine: engine, mock: mock, requests: requests, approvals: approvals, overrides: overrides}
}

func pendingPostpone(id string, needed int) models.ChangeRequest {
	newDate := models.NewDate(2025, time.January, 8)
	hour, minute := 9, 30
	return models.ChangeRequest{
		RequestID:       id,
		SeriesID:        "math-10a",
		RequesterID:     "student-1",
		RequesterRole:   models.RoleStudent,
		ChangeType:      models.ChangePostpone,
		OriginalDate:    models.NewDate(2025, time.January, 6),
		NewDate:         &newDate,
		NewHour:         &hour,
		NewMinute:       &minute,
		ApprovalsNeeded: needed,
		Status:          models.RequestPending,
		CreatedAt:       engineNow,
		ExpiresAt:       time.Date(2025, 1, 6, 23, 59, 59, 0, time.UTC),
	}
}

func TestVotingEngineOpenRequestRecordsRequesterConsent(t *testing.T) {
	f := newEngineFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	target := models.Slot{Date: models.NewDate(2025, time.January, 8), Hour: 9, Minute: 30}
	req, err := f.engine.OpenRequest(context.Background(), OpenRequestInput{
		SeriesID:        "math-10a",
		RequesterID:     "student-1",
		RequesterRole:   models.RoleStudent,
		ChangeType:      models.ChangePostpone,
		OriginalDate:    models.NewDate(2025, time.January, 6),
		Target:          &target,
		ApprovalsNeeded: 2,
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, 0, req.ApprovalsReceived)
	assert.True(t, req.ExpiresAt.Equal(time.Date(2025, 1, 6, 23, 59, 59, 0, time.UTC)))
	assert.Contains(t, f.approvals.votes, req.RequestID+"/student-1")
	require.Len(t, f.requests.created, 1)
}

func TestVotingEngineOpenRequestRejectsInvalidInput(t *testing.T) {
	f := newEngineFixture(t)
	target := models.Slot{Date: models.NewDate(2025, time.January, 8), Hour: 9}

	cases := []OpenRequestInput{
		{SeriesID: "math-10a", RequesterID: "s1", ChangeType: models.ChangeCancel, OriginalDate: models.NewDate(2025, 1, 6), Target: &target, ApprovalsNeeded: 1},
		{SeriesID: "math-10a", RequesterID: "s1", ChangeType: models.ChangePostpone, OriginalDate: models.NewDate(2025, 1, 6), ApprovalsNeeded: 1},
		{SeriesID: "math-10a", RequesterID: "s1", ChangeType: models.ChangeCancel, OriginalDate: models.NewDate(2025, 1, 6), ApprovalsNeeded: 0},
	}
	for _, in := range cases {
		_, err := f.engine.OpenRequest(context.Background(), in)
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
	assert.Empty(t, f.requests.created)
}

func TestVotingEngineOpenRequestRollsBackOnStoreFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.requests.createErr = errors.New("insert failed")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.engine.OpenRequest(context.Background(), OpenRequestInput{
		SeriesID: "math-10a", RequesterID: "s1", ChangeType: models.ChangeCancel,
		OriginalDate: models.NewDate(2025, 1, 6), ApprovalsNeeded: 1,
	})
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.approvals.votes)
}

func TestVotingEngineQuorumMaterialisesOverride(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 2))
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.engine.CastVote(ctx, "req-1", "student-2", true, engineNow)
	require.NoError(t, err)
	assert.Equal(t, models.VotePending, first.Result)
	assert.Equal(t, 1, first.Remaining)
	assert.Empty(t, f.overrides.rows)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	second, err := f.engine.CastVote(ctx, "req-1", "student-3", true, engineNow.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteApproved, second.Result)
	assert.Equal(t, 0, second.Remaining)
	assert.True(t, second.Terminal())
	require.NotNil(t, second.Override)
	assert.Equal(t, models.OverridePostponed, second.Override.Type)

	stored, ok := f.overrides.rows[overrideKey("math-10a", models.NewDate(2025, 1, 6))]
	require.True(t, ok)
	target, ok := stored.Target()
	require.True(t, ok)
	assert.Equal(t, "2025-01-08 09:30", target.String())
	assert.Equal(t, models.RequestApproved, f.requests.requests["req-1"].Status)
}

func TestVotingEngineRejectClosesRequest(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 2))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	outcome, err := f.engine.CastVote(context.Background(), "req-1", "student-2", false, engineNow)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteRejected, outcome.Result)
	assert.Nil(t, outcome.Override)
	assert.Equal(t, models.RequestRejected, f.requests.requests["req-1"].Status)
	assert.Empty(t, f.overrides.rows)
}

func TestVotingEngineVetoAfterApprovalRejects(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 2))
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.engine.CastVote(ctx, "req-1", "student-2", true, engineNow)
	require.NoError(t, err)
	assert.Equal(t, models.VotePending, first.Result)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	second, err := f.engine.CastVote(ctx, "req-1", "student-3", false, engineNow.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteRejected, second.Result)
	assert.Nil(t, second.Override)
	assert.Equal(t, models.RequestRejected, f.requests.requests["req-1"].Status)
	assert.Equal(t, 1, f.requests.requests["req-1"].ApprovalsReceived)
	assert.Empty(t, f.overrides.rows)
}

func TestVotingOutcomeDrivesEffectiveStatus(t *testing.T) {
	mondayLesson := models.NewDate(2025, time.January, 6)
	moveTo := func(id string) models.ChangeRequest {
		req := pendingPostpone(id, 2)
		newDate := models.NewDate(2025, time.January, 8)
		hour, minute := 14, 0
		req.NewDate, req.NewHour, req.NewMinute = &newDate, &hour, &minute
		return req
	}
	catalog := newSeriesSourceStub(mathSeries())
	ctx := context.Background()

	t.Run("quorum", func(t *testing.T) {
		f := newEngineFixture(t, moveTo("req-1"))
		for _, voter := range []string{"student-2", "student-3"} {
			f.mock.ExpectBegin()
			f.mock.ExpectCommit()
			_, err := f.engine.CastVote(ctx, "req-1", voter, true, engineNow)
			require.NoError(t, err)
		}

		status, err := NewScheduleResolver(f.overrides.snapshot(), catalog, nil).EffectiveStatus(ctx, "math-10a", mondayLesson)
		require.NoError(t, err)
		assert.Equal(t, models.LessonPostponed, status.Kind)
		require.NotNil(t, status.Target)
		assert.Equal(t, "2025-01-08 14:00", status.Target.String())
	})

	t.Run("veto", func(t *testing.T) {
		f := newEngineFixture(t, moveTo("req-1"))
		for _, vote := range []struct {
			voter   string
			approve bool
		}{{"student-2", true}, {"student-3", false}} {
			f.mock.ExpectBegin()
			f.mock.ExpectCommit()
			_, err := f.engine.CastVote(ctx, "req-1", vote.voter, vote.approve, engineNow)
			require.NoError(t, err)
		}

		status, err := NewScheduleResolver(f.overrides.snapshot(), catalog, nil).EffectiveStatus(ctx, "math-10a", mondayLesson)
		require.NoError(t, err)
		assert.True(t, status.IsNormal())
	})
}

func TestVotingEngineDuplicateVoteIsNoop(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 3))
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.engine.CastVote(ctx, "req-1", "student-2", true, engineNow)
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	outcome, err := f.engine.CastVote(ctx, "req-1", "student-2", false, engineNow)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteAlreadyVoted, outcome.Result)
	assert.Equal(t, 2, outcome.Remaining)
	assert.Equal(t, models.RequestPending, f.requests.requests["req-1"].Status)
	assert.Equal(t, 1, f.requests.requests["req-1"].ApprovalsReceived)
}

func TestVotingEngineVoteOnResolvedRequestIsClosed(t *testing.T) {
	resolved := pendingPostpone("req-1", 1)
	resolved.Status = models.RequestApproved
	f := newEngineFixture(t, resolved)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	outcome, err := f.engine.CastVote(context.Background(), "req-1", "student-9", true, engineNow)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteClosed, outcome.Result)
	assert.Empty(t, f.approvals.votes)
}

func TestVotingEngineLateVoteExpiresRequest(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 1))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	outcome, err := f.engine.CastVote(context.Background(), "req-1", "student-2", true, time.Date(2025, 1, 7, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.VoteClosed, outcome.Result)
	assert.Equal(t, models.RequestExpired, outcome.Request.Status)
	assert.Equal(t, models.RequestExpired, f.requests.requests["req-1"].Status)
	assert.Empty(t, f.overrides.rows)
}

func TestVotingEngineUnknownRequest(t *testing.T) {
	f := newEngineFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.engine.CastVote(context.Background(), "missing", "student-2", true, engineNow)
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestVotingEngineOverrideFailureRollsBack(t *testing.T) {
	f := newEngineFixture(t, pendingPostpone("req-1", 1))
	f.overrides.upsertErr = errors.New("write failed")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.engine.CastVote(context.Background(), "req-1", "student-2", true, engineNow)
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVotingEngineExpireStaleRequests(t *testing.T) {
	stale := pendingPostpone("req-1", 1)
	stale.ExpiresAt = engineNow.Add(-time.Hour)
	live := pendingPostpone("req-2", 1)
	f := newEngineFixture(t, stale, live)

	count, err := f.engine.ExpireStaleRequests(context.Background(), engineNow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, models.RequestExpired, f.requests.requests["req-1"].Status)
	assert.Equal(t, models.RequestPending, f.requests.requests["req-2"].Status)
}

func TestVotingEngineInstantApplyAndRestore(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	date := models.NewDate(2025, time.January, 6)

	override, err := f.engine.InstantApply(ctx, InstantApplyInput{SeriesID: "math-10a", ChangeType: models.ChangeCancel, OriginalDate: date})
	require.NoError(t, err)
	assert.Equal(t, models.OverrideCancelled, override.Type)

	removed, err := f.engine.Restore(ctx, "math-10a", date)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.engine.Restore(ctx, "math-10a", date)
	require.NoError(t, err)
	assert.False(t, removed)
}
