package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims identifies the member behind a request.
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
	GroupName string `json:"group_name,omitempty"`
	jwt.RegisteredClaims
}

// Actor extracts the acting member from the token.
func (c JWTClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role, GroupName: c.GroupName}
}
