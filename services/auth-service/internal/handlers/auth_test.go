package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/merodias-lab/clinic/libs/auth"
	"github.com/merodias-lab/clinic/services/auth-service/internal/storage"
)

func TestPasswordHashing(t *testing.T) {
	password := "s3cret-clinic"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"admin":         RoleAdmin,
		"Administrador": RoleAdmin,
		"patient":       RolePatient,
		"paciente":      RolePatient,
		"":              RolePatient,
	}
	for raw, want := range cases {
		if got := normalizeRole(raw); got != want {
			t.Fatalf("normalizeRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestIssueJWT(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	user := storage.User{
		ID:    "user-1",
		Email: "ana@example.com",
		Role:  "paciente",
	}

	token, err := issueJWT(user, signer)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != user.ID {
		t.Fatalf("sub = %q, want %q", claims.Sub, user.ID)
	}
	if claims.Email != user.Email {
		t.Fatalf("email = %q, want %q", claims.Email, user.Email)
	}
	if claims.Role != RolePatient {
		t.Fatalf("role = %q, want %q", claims.Role, RolePatient)
	}
	if claims.Exp <= time.Now().Unix() {
		t.Fatalf("exp %d is not in the future", claims.Exp)
	}
}

func TestRotatingSignerActiveKid(t *testing.T) {
	keyA, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	keyB, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	keys := map[string]*rsa.PrivateKey{"kid-a": keyA, "kid-b": keyB}
	signer, err := NewRotatingRS256Signer(keys, "kid-a")
	if err != nil {
		t.Fatalf("NewRotatingRS256Signer failed: %v", err)
	}

	claims := auth.Claims{
		Sub:  "user-2",
		Role: RolePatient,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}
	tokenA, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if err := signer.SetActiveKid("kid-b"); err != nil {
		t.Fatalf("SetActiveKid failed: %v", err)
	}

	// Tokens from the previous key must still verify after rotation.
	if _, err := signer.Verify(tokenA); err != nil {
		t.Fatalf("Verify of pre-rotation token failed: %v", err)
	}

	tokenB, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign after rotation failed: %v", err)
	}
	if _, err := signer.Verify(tokenB); err != nil {
		t.Fatalf("Verify of post-rotation token failed: %v", err)
	}

	if got := len(signer.JWKS()); got != 2 {
		t.Fatalf("JWKS returned %d keys, want 2", got)
	}

	if err := signer.SetActiveKid("missing"); err == nil {
		t.Fatal("SetActiveKid should reject an unknown kid")
	}
}
