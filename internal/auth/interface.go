package auth

import "cortex/internal/domain/models"

// TokenVerifier defines the interface for session token verification.
// The middleware stays agnostic to whether tokens are checked against a
// shared secret or a JWKS endpoint.
type TokenVerifier interface {
	// VerifyToken validates a token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.Claims, error)

	// Close releases any resources held by the verifier (e.g., HTTP connections for JWKS).
	Close() error
}
