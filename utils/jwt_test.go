package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateAdminToken(3, "reviewer")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}

	claims, err := ValidateAdminToken(token)
	if err != nil {
		t.Fatalf("ValidateAdminToken: %v", err)
	}
	if claims["username"] != "reviewer" {
		t.Errorf("username = %v", claims["username"])
	}
	if claims["role"] != "admin" {
		t.Errorf("role = %v", claims["role"])
	}
	if claims["jti"] == "" {
		t.Error("expected a jti claim")
	}
}

func TestValidateAdminTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-a")
	token, err := GenerateAdminToken(1, "reviewer")
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("JWT_SECRET", "secret-b")
	if _, err := ValidateAdminToken(token); err == nil {
		t.Error("expected signature validation failure")
	}
}

func TestValidateAdminTokenRejectsNonAdminRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	claims := jwt.MapClaims{"id": 1, "username": "someone", "role": "applicant"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateAdminToken(token); err == nil {
		t.Error("expected role check to fail")
	}
}

func TestGenerateAdminTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := GenerateAdminToken(1, "reviewer"); err == nil {
		t.Error("expected error without JWT_SECRET")
	}
}
