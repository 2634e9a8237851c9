package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

type voteLinkIssuerStub struct{ err error }

func (s voteLinkIssuerStub) Links(requestID, voterID string, _ time.Time) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return "approve/" + requestID + "/" + voterID, "reject/" + requestID + "/" + voterID, nil
}

func TestVoteRequestedCarriesLinks(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(dispatcher, voteLinkIssuerStub{}, nil)
	req := pendingPostpone("req-1", 2)

	svc.VoteRequested(mathSeries(), req, []string{"student-2", "student-3"})
	require.Len(t, dispatcher.sent, 2)
	first := dispatcher.sent[0]
	assert.Equal(t, models.NotifyVoteRequested, first.Kind)
	assert.Equal(t, "approve/req-1/student-2", first.ApproveURL)
	assert.Equal(t, "reject/req-1/student-2", first.RejectURL)
	assert.Equal(t, 2, first.Remaining)
	assert.Equal(t, 9, first.OldHour)
	require.NotNil(t, first.NewSlot)
	assert.False(t, first.Cancelled)
}

func TestVoteRequestedWithoutLinks(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(dispatcher, voteLinkIssuerStub{err: errors.New("no secret")}, nil)

	svc.VoteRequested(mathSeries(), pendingPostpone("req-1", 1), []string{"student-2"})
	require.Len(t, dispatcher.sent, 1)
	assert.Empty(t, dispatcher.sent[0].ApproveURL)
}

func TestVoteStartedSkipsRequester(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(dispatcher, nil, nil)
	req := pendingPostpone("req-1", 1)

	svc.VoteStarted(mathSeries(), req, "")
	svc.VoteStarted(mathSeries(), req, req.RequesterID)
	assert.Empty(t, dispatcher.sent)

	svc.VoteStarted(mathSeries(), req, "teacher-1")
	assert.Equal(t, []string{"teacher-1"}, dispatcher.recipients(models.NotifyVoteStarted))
}

func TestChangeAppliedMarksCancellation(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(dispatcher, nil, nil)

	svc.ChangeApplied(mathSeries(), models.NewCancellation("math-10a", wed), "teacher-1", []string{"student-1"})
	require.Len(t, dispatcher.sent, 1)
	assert.True(t, dispatcher.sent[0].Cancelled)
	assert.Nil(t, dispatcher.sent[0].NewSlot)
	assert.Equal(t, "teacher-1", dispatcher.sent[0].ActorID)
}

func TestDispatchFailureIsSwallowed(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("queue closed")}
	svc := NewNotificationService(dispatcher, nil, nil)

	assert.NotPanics(t, func() {
		svc.LessonRestored(mathSeries(), wed, "teacher-1", []string{"student-1"})
	})

	silent := NewNotificationService(nil, nil, nil)
	assert.NotPanics(t, func() {
		silent.ChangeRejected(mathSeries(), pendingPostpone("req-1", 1), []string{"student-1"})
	})
}
