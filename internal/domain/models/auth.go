package models

import "github.com/golang-jwt/jwt/v5"

// Claims is the session token payload. Tokens issued by the web app carry the
// user id in "userId"; tokens from an identity provider carry it in "sub".
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// GetUserID returns the authenticated user's id
func (c *Claims) GetUserID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
