package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lessonsync-api/internal/dto"
	appErrors "github.com/noah-isme/lessonsync-api/pkg/errors"
	"github.com/noah-isme/lessonsync-api/pkg/response"
)

type tokenIssuer interface {
	Issue(ctx context.Context, chatID string) (string, time.Time, error)
}

// AuthHandler issues tokens for the messaging front end and reports the caller's identity.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Issue godoc
// @Summary Issue a token for a member
// @Description Admin only. The messaging front end exchanges a chat id for a bearer token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.IssueTokenRequest true "Member"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/tokens [post]
func (h *AuthHandler) Issue(c *gin.Context) {
	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "chat_id is required"))
		return
	}
	token, expiresAt, err := h.service.Issue(c.Request.Context(), req.ChatID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// Me godoc
// @Summary Get current member
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actor)
}
