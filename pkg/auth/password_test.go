package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(hashed, "correct horse") {
		t.Error("hash must not contain the plaintext")
	}
	if !hasher.Verify("correct horse battery staple", hashed) {
		t.Error("expected matching password to verify")
	}
	if hasher.Verify("wrong password", hashed) {
		t.Error("expected mismatched password to fail verification")
	}
}

func TestPasswordHasherCostClamped(t *testing.T) {
	hasher := NewPasswordHasher(99)

	hashed, err := hasher.Hash("secret-password")
	if err != nil {
		t.Fatalf("expected out-of-range cost to fall back to default, got error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		t.Fatalf("unexpected error reading cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("expected default cost %d, got %d", bcrypt.DefaultCost, cost)
	}
}
