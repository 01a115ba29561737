package auth

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidName is returned when the display name fails constraints.
	ErrInvalidName = errors.New("invalid display name")
)

// Service issues and validates guest tokens for the REST boundary.
// Identity is ephemeral: there is no user store, a token is minted per
// page load and dies with its TTL.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// IssueGuestToken returns a signed token carrying the display name.
func (s *Service) IssueGuestToken(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return "", ErrInvalidName
	}
	return GenerateToken(s.jwtConfig, name)
}

// ValidateToken checks a bearer token and returns its claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, token)
}
