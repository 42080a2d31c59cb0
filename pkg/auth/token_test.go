package auth

import (
	"testing"
	"time"

	"turfbook/pkg/model"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("64b0c8b9f1a2b3c4d5e6f7a8", model.RoleOwner)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	identity, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if identity.ActorID != "64b0c8b9f1a2b3c4d5e6f7a8" {
		t.Errorf("expected actor id to round-trip, got %q", identity.ActorID)
	}
	if identity.Role != model.RoleOwner {
		t.Errorf("expected role owner, got %q", identity.Role)
	}
}

func TestTokenInvalidClasses(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	otherIssuer := NewTokenIssuer("other-secret", time.Hour)
	expiredIssuer := NewTokenIssuer("test-secret", -time.Minute)

	foreign, err := otherIssuer.Issue("64b0c8b9f1a2b3c4d5e6f7a8", model.RoleCustomer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expired, err := expiredIssuer.Issue("64b0c8b9f1a2b3c4d5e6f7a8", model.RoleCustomer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not-a-token"},
		{"empty", ""},
		{"bad signature", foreign},
		{"expired", expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if err != ErrInvalidToken {
				t.Errorf("expected ErrInvalidToken for %s token, got %v", tt.name, err)
			}
		})
	}
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("64b0c8b9f1a2b3c4d5e6f7a8", model.Role("admin"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}
