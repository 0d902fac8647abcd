package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
)

func testUser() *model.User {
	return &model.User{ID: uuid.Must(uuid.NewV7()), FullName: "Ana Admin", Role: model.RoleAdmin}
}

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"
	u := testUser()

	token, err := GenerateToken(secret, u, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != u.ID {
		t.Errorf("expected user_id %s, got %s", u.ID, claims.UserID)
	}
	if claims.Name != "Ana Admin" {
		t.Errorf("expected name 'Ana Admin', got %q", claims.Name)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}

	p := claims.Principal()
	if p.ID != u.ID || !p.IsAdmin() {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", testUser(), time.Hour)

	_, err := ValidateToken("secret2", token)
	if err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	if err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	token, _ := GenerateToken("secret", testUser(), -1)
	if _, err := ValidateToken("secret", token); err != nil {
		t.Fatalf("non-positive ttl should use the default: %v", err)
	}

	token, _ = GenerateToken("secret", testUser(), time.Nanosecond)
	time.Sleep(1100 * time.Millisecond)
	if _, err := ValidateToken("secret", token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := "test"
	token, _ := GenerateToken(secret, testUser(), 0)
	claims, _ := ValidateToken(secret, token)

	expiresAt := claims.ExpiresAt.Time
	expectedExpiry := time.Now().Add(DefaultTTL)

	// Should be within a few seconds.
	diff := expectedExpiry.Sub(expiresAt)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}
