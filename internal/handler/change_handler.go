package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/dto"
	"github.com/noah-isme/lessonsync-api/internal/models"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
	"github.com/noah-isme/lessonsync-api/pkg/response"
)

type changeService interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*dto.ChangeSubmission, error)
	Vote(ctx context.Context, actor models.Actor, requestID string, approve bool) (*models.VoteOutcome, error)
	VoteByLink(ctx context.Context, token string) (*models.VoteOutcome, error)
	Pending(ctx context.Context, actor models.Actor) ([]models.ChangeRequest, error)
}

type requestSweeper interface {
	ExpireStaleRequests(ctx context.Context, now time.Time) (int64, error)
}

// ChangeHandler exposes lesson change submission and voting.
type ChangeHandler struct {
	changes changeService
	sweeper requestSweeper
	now     func() time.Time
}

// NewChangeHandler builds the handler.
func NewChangeHandler(changes changeService, sweeper requestSweeper, now func() time.Time) *ChangeHandler {
	if now == nil {
		now = time.Now
	}
	return &ChangeHandler{changes: changes, sweeper: sweeper, now: now}
}

// Submit godoc
// @Summary Cancel or postpone one occurrence
// @Description Applies immediately for teachers, admins and sole students; otherwise opens a vote among the other students.
// @Tags Changes
// @Accept json
// @Produce json
// @Param payload body dto.SubmitChangeRequest true "Change payload"
// @Success 200 {object} response.Envelope "applied"
// @Success 202 {object} response.Envelope "voting"
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /changes [post]
func (h *ChangeHandler) Submit(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid change payload"))
		return
	}

	result, err := h.changes.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Mode == dto.SubmissionVoting {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result)
}

// Pending godoc
// @Summary Change requests awaiting the caller's vote
// @Tags Changes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /changes/pending [get]
func (h *ChangeHandler) Pending(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, err := h.changes.Pending(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if requests == nil {
		requests = []models.ChangeRequest{}
	}
	response.JSON(c, http.StatusOK, requests)
}

// Vote godoc
// @Summary Approve or reject a change request
// @Tags Changes
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CastVoteRequest true "Vote"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /changes/{id}/votes [post]
func (h *ChangeHandler) Vote(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "approve is required"))
		return
	}

	outcome, err := h.changes.Vote(c.Request.Context(), actor, c.Param("id"), *req.Approve)
	writeOutcome(c, outcome, err)
}

// VoteByLink godoc
// @Summary Cast the vote encoded in a signed link
// @Tags Changes
// @Produce json
// @Param token path string true "Signed vote token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /votes/{token} [post]
func (h *ChangeHandler) VoteByLink(c *gin.Context) {
	outcome, err := h.changes.VoteByLink(c.Request.Context(), c.Param("token"))
	writeOutcome(c, outcome, err)
}

// ExpireRequests godoc
// @Summary Expire pending requests past their deadline
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/requests/expire [post]
func (h *ChangeHandler) ExpireRequests(c *gin.Context) {
	expired, err := h.sweeper.ExpireStaleRequests(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExpireRequestsResponse{Expired: expired})
}

func writeOutcome(c *gin.Context, outcome *models.VoteOutcome, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	switch outcome.Result {
	case models.VoteClosed:
		response.Error(c, appErrors.Clone(appErrors.ErrRequestClosed, "change request is "+string(outcome.Request.Status)))
	case models.VoteAlreadyVoted:
		response.Error(c, appErrors.ErrAlreadyVoted)
	default:
		response.JSON(c, http.StatusOK, outcome)
	}
}
