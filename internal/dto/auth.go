package dto

import "time"

// IssueTokenRequest asks for a token on behalf of a messaging-transport member.
type IssueTokenRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
}

// TokenResponse carries a signed bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
