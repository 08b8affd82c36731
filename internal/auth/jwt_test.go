package auth

import (
	"testing"
	"time"
)

func setTestSecret(t *testing.T) {
	t.Helper()
	// The secret is cached behind a sync.Once; setting the env before first
	// use in the test binary is enough.
	t.Setenv("WD_JWT_SECRET", "test-secret-that-is-at-least-32-chars-long")
	if err := ValidateJWTSecret(); err != nil {
		t.Fatalf("ValidateJWTSecret: %v", err)
	}
}

func TestSessionJWT_RoundTrip(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateSessionJWT("user-1", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}

	claims, err := ValidateSessionJWT(token)
	if err != nil {
		t.Fatalf("ValidateSessionJWT: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.SessionID != "sess-1" {
		t.Errorf("SessionID = %s, want sess-1", claims.SessionID)
	}
}

func TestSessionJWT_RejectsExpired(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateSessionJWT("user-1", "sess-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateSessionJWT: %v", err)
	}
	if _, err := ValidateSessionJWT(token); err == nil {
		t.Error("expired token must not validate")
	}
}

func TestSessionJWT_RejectsGarbage(t *testing.T) {
	setTestSecret(t)
	if _, err := ValidateSessionJWT("not.a.jwt"); err == nil {
		t.Error("garbage token must not validate")
	}
}
