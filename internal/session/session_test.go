package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperr "github.com/studyflow/backend/internal/errors"
)

func signedToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func TestSetTokenAndRead(t *testing.T) {
	s := NewJWTSession()
	raw := signedToken(t, "u1", time.Now().Add(time.Hour))

	if err := s.SetToken(raw); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	uid, err := s.UserID()
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if uid != "u1" {
		t.Errorf("expected u1, got %s", uid)
	}

	got, err := s.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got != raw {
		t.Error("token round trip mismatch")
	}
}

func TestEmptySessionIsAuthError(t *testing.T) {
	s := NewJWTSession()
	_, err := s.Token()
	if !apperr.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
	if s.Valid() {
		t.Error("empty session must not be valid")
	}
}

func TestExpiredTokenIsAuthError(t *testing.T) {
	s := NewJWTSession()
	if err := s.SetToken(signedToken(t, "u1", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	_, err := s.Token()
	if !apperr.IsAuth(err) {
		t.Errorf("expected auth error for expired token, got %v", err)
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	s := NewJWTSession()
	if err := s.SetToken("not-a-jwt"); !apperr.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestMissingSubjectRejected(t *testing.T) {
	s := NewJWTSession()
	raw := signedToken(t, "", time.Now().Add(time.Hour))
	if err := s.SetToken(raw); !apperr.IsAuth(err) {
		t.Errorf("expected auth error for missing subject, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := NewJWTSession()
	s.SetToken(signedToken(t, "u1", time.Now().Add(time.Hour)))
	s.Clear()
	if s.Valid() {
		t.Error("session still valid after Clear")
	}
}
