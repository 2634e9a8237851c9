package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lessonsync-api/internal/dto"
	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
)

type changeServiceMock struct {
	submitResp *dto.ChangeSubmission
	submitErr  error
	outcome    *models.VoteOutcome
	voteErr    error
	pending    []models.ChangeRequest

	lastActor   models.Actor
	lastSubmit  dto.SubmitChangeRequest
	lastRequest string
	lastApprove bool
	lastToken   string
}

func (m *changeServiceMock) Submit(_ context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*dto.ChangeSubmission, error) {
	m.lastActor = actor
	m.lastSubmit = req
	return m.submitResp, m.submitErr
}

func (m *changeServiceMock) Vote(_ context.Context, actor models.Actor, requestID string, approve bool) (*models.VoteOutcome, error) {
	m.lastActor = actor
	m.lastRequest = requestID
	m.lastApprove = approve
	return m.outcome, m.voteErr
}

func (m *changeServiceMock) VoteByLink(_ context.Context, token string) (*models.VoteOutcome, error) {
	m.lastToken = token
	return m.outcome, m.voteErr
}

func (m *changeServiceMock) Pending(_ context.Context, actor models.Actor) ([]models.ChangeRequest, error) {
	m.lastActor = actor
	return m.pending, nil
}

type sweeperStub struct {
	at      time.Time
	expired int64
	err     error
}

func (s *sweeperStub) ExpireStaleRequests(_ context.Context, now time.Time) (int64, error) {
	s.at = now
	return s.expired, s.err
}

func TestChangeHandlerSubmitStatusFollowsMode(t *testing.T) {
	svc := &changeServiceMock{submitResp: &dto.ChangeSubmission{Mode: dto.SubmissionVoting, Voters: 2}}
	handler := NewChangeHandler(svc, &sweeperStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/changes", `{"series_id":"math-10a","date":"2025-01-08","change_type":"cancel"}`, studentClaims)
	handler.Submit(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "student-1", svc.lastActor.ID)
	assert.Equal(t, "10A", svc.lastActor.GroupName)
	assert.Equal(t, "math-10a", svc.lastSubmit.SeriesID)

	svc.submitResp = &dto.ChangeSubmission{Mode: dto.SubmissionApplied}
	c, w = newTestContext(http.MethodPost, "/changes", `{"series_id":"math-10a","date":"2025-01-08","change_type":"cancel"}`, teacherClaims)
	handler.Submit(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangeHandlerSubmitErrors(t *testing.T) {
	handler := NewChangeHandler(&changeServiceMock{}, &sweeperStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/changes", `{"series_id":`, studentClaims)
	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/changes", `{}`, nil)
	handler.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	failing := NewChangeHandler(&changeServiceMock{submitErr: appErrors.Clone(appErrors.ErrChangeTooLate, "too late")}, &sweeperStub{}, nil)
	c, w = newTestContext(http.MethodPost, "/changes", `{"series_id":"math-10a","date":"2025-01-06","change_type":"cancel"}`, studentClaims)
	failing.Submit(c)
	assert.Equal(t, appErrors.ErrChangeTooLate.Status, w.Code)
	assert.Equal(t, appErrors.ErrChangeTooLate.Code, errorCode(t, w))
}

func TestChangeHandlerVoteOutcomes(t *testing.T) {
	request := &models.ChangeRequest{RequestID: "req-1", Status: models.RequestApproved}
	cases := []struct {
		name   string
		result models.VoteResult
		status int
		code   string
	}{
		{"pending", models.VotePending, http.StatusOK, ""},
		{"approved", models.VoteApproved, http.StatusOK, ""},
		{"closed", models.VoteClosed, http.StatusConflict, appErrors.ErrRequestClosed.Code},
		{"already voted", models.VoteAlreadyVoted, http.StatusConflict, appErrors.ErrAlreadyVoted.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &changeServiceMock{outcome: &models.VoteOutcome{Result: tc.result, Request: request}}
			handler := NewChangeHandler(svc, &sweeperStub{}, nil)

			c, w := newTestContext(http.MethodPost, "/changes/req-1/votes", `{"approve":false}`, studentClaims, gin.Param{Key: "id", Value: "req-1"})
			handler.Vote(c)
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, "req-1", svc.lastRequest)
			assert.False(t, svc.lastApprove)
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(t, w))
			}
		})
	}
}

func TestChangeHandlerVoteRequiresDecision(t *testing.T) {
	svc := &changeServiceMock{}
	handler := NewChangeHandler(svc, &sweeperStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/changes/req-1/votes", `{}`, studentClaims, gin.Param{Key: "id", Value: "req-1"})
	handler.Vote(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastRequest)
}

func TestChangeHandlerVoteByLink(t *testing.T) {
	svc := &changeServiceMock{outcome: &models.VoteOutcome{Result: models.VotePending, Remaining: 1}}
	handler := NewChangeHandler(svc, &sweeperStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/votes/tok", "", nil, gin.Param{Key: "token", Value: "tok"})
	handler.VoteByLink(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", svc.lastToken)

	var outcome models.VoteOutcome
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &outcome))
	assert.Equal(t, 1, outcome.Remaining)

	svc.voteErr = appErrors.Clone(appErrors.ErrUnauthorized, "vote link expired")
	c, w = newTestContext(http.MethodPost, "/votes/tok", "", nil, gin.Param{Key: "token", Value: "tok"})
	handler.VoteByLink(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangeHandlerPendingNeverNull(t *testing.T) {
	handler := NewChangeHandler(&changeServiceMock{}, &sweeperStub{}, nil)

	c, w := newTestContext(http.MethodGet, "/changes/pending", "", studentClaims)
	handler.Pending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))
}

func TestChangeHandlerExpireRequests(t *testing.T) {
	now := time.Date(2025, time.January, 7, 0, 0, 5, 0, time.UTC)
	sweeper := &sweeperStub{expired: 3}
	handler := NewChangeHandler(&changeServiceMock{}, sweeper, func() time.Time { return now })

	c, w := newTestContext(http.MethodPost, "/admin/requests/expire", "", adminClaims)
	handler.ExpireRequests(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now, sweeper.at)
	assert.JSONEq(t, `{"expired":3}`, string(decode(t, w).Data))

	sweeper.err = appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire requests")
	c, w = newTestContext(http.MethodPost, "/admin/requests/expire", "", adminClaims)
	handler.ExpireRequests(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
