package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	tok := signToken(t, jwt.MapClaims{"id": "u1", "exp": exp.Unix()})

	got, ok, err := TokenExpiry(tok)
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if !ok {
		t.Fatal("TokenExpiry() ok = false, want true")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	got, ok, err = TokenExpiry("Bearer " + tok)
	if err != nil || !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry(Bearer) = %v, %v, %v", got, ok, err)
	}
}

func TestTokenExpiry_NoExp(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{"id": "u1"})
	_, ok, err := TokenExpiry(tok)
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if ok {
		t.Error("TokenExpiry() ok = true for token without exp")
	}
}

func TestTokenExpiry_Malformed(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := TokenExpiry(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("TokenExpiry(%q) error = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestIsJWT(t *testing.T) {
	if !IsJWT("a.b.c") {
		t.Error("IsJWT(a.b.c) = false")
	}
	if IsJWT("opaque-token") {
		t.Error("IsJWT(opaque-token) = true")
	}
}
