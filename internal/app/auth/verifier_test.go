package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

func TestVerifyRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"wallet":"0xabc","tier":"PRO","allowed_operations":["llm_analysis"]}`))
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "", nil)
	user, err := v.Verify(context.Background(), "token-123")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Wallet != "0xabc" || user.Tier != tier.Pro {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(user.AllowedOperations) != 1 || user.AllowedOperations[0] != "llm_analysis" {
		t.Fatalf("unexpected operations: %v", user.AllowedOperations)
	}
}

func TestVerifyRemoteRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "", nil)
	if _, err := v.Verify(context.Background(), "bad-token"); err == nil {
		t.Fatal("expected error for rejected token")
	}
}

func TestVerifyLocalJWT(t *testing.T) {
	secret := "test-secret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"wallet": "0xdef",
		"tier":   "enterprise",
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	v := NewVerifier("", secret, nil)
	user, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Wallet != "0xdef" || user.Tier != tier.Enterprise {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestVerifyLocalJWTWrongSecret(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"wallet": "0xdef",
	}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	v := NewVerifier("", "test-secret", nil)
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	v := NewVerifier("", "secret", nil)
	if _, err := v.Verify(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}
