// Package session holds the authenticated user's session token.
//
// The auth provider is an external collaborator: it issues a signed JWT and
// the host hands it to SetToken. This package only reads the claims it needs
// (subject, expiry) to scope requests and to classify a missing or expired
// session as the permanent auth error class. It never verifies signatures;
// that is the backend's job.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperr "github.com/studyflow/backend/internal/errors"
)

// Provider supplies the current user id and bearer token to the remote
// client and the data service.
type Provider interface {
	// UserID returns the authenticated user's id, or "" with an auth error
	// when no valid session exists.
	UserID() (string, error)

	// Token returns the bearer token for remote calls. Expired or absent
	// sessions fail with the auth error class.
	Token() (string, error)
}

// JWTSession is a Provider backed by a JWT from the auth provider.
type JWTSession struct {
	mu      sync.RWMutex
	raw     string
	userID  string
	expires time.Time
}

// NewJWTSession returns an empty session; callers must SetToken before any
// remote call can succeed.
func NewJWTSession() *JWTSession {
	return &JWTSession{}
}

// SetToken installs a token issued by the auth provider. The token's subject
// claim becomes the user id.
func (s *JWTSession) SetToken(raw string) error {
	claims := jwt.RegisteredClaims{}
	// Signature verification happens server-side; here the token is only a
	// carrier for subject and expiry.
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return apperr.Wrap(apperr.ErrAuth, "malformed session token", err)
	}
	if claims.Subject == "" {
		return apperr.New(apperr.ErrAuth, "session token has no subject")
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	s.raw = raw
	s.userID = claims.Subject
	s.expires = expires
	s.mu.Unlock()
	return nil
}

// Clear drops the session, e.g. on sign-out.
func (s *JWTSession) Clear() {
	s.mu.Lock()
	s.raw = ""
	s.userID = ""
	s.expires = time.Time{}
	s.mu.Unlock()
}

// Valid reports whether a non-expired session is installed.
func (s *JWTSession) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

func (s *JWTSession) validLocked() bool {
	if s.raw == "" {
		return false
	}
	if !s.expires.IsZero() && time.Now().After(s.expires) {
		return false
	}
	return true
}

// UserID implements Provider.
func (s *JWTSession) UserID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return "", apperr.New(apperr.ErrAuth, "no valid session")
	}
	return s.userID, nil
}

// Token implements Provider.
func (s *JWTSession) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return "", apperr.New(apperr.ErrAuth, "no valid session")
	}
	return s.raw, nil
}

// Static is a Provider with a fixed user id and token, for tests and for
// deployments where the host manages auth entirely.
type Static struct {
	User        string
	BearerToken string
}

// UserID implements Provider.
func (s Static) UserID() (string, error) { return s.User, nil }

// Token implements Provider.
func (s Static) Token() (string, error) { return s.BearerToken, nil }
