package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndParseToken(t *testing.T) {
	svc := NewService("vtrade", []byte("secret"), time.Hour)
	token, err := svc.SignToken("user-1")
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}
	got, err := svc.ParseToken(token)
	if err != nil || got != "user-1" {
		t.Errorf("ParseToken() = %q, %v", got, err)
	}
	if _, err := svc.SignToken(" "); err == nil {
		t.Error("SignToken() with empty user should fail")
	}
}

func TestParseTokenRejects(t *testing.T) {
	svc := NewService("vtrade", []byte("secret"), time.Hour)
	otherIssuer, _ := NewService("other", []byte("secret"), time.Hour).SignToken("u")
	otherKey, _ := NewService("vtrade", []byte("nope"), time.Hour).SignToken("u")
	expired, _ := NewService("vtrade", []byte("secret"), -time.Minute).SignToken("u")
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "vtrade", Subject: "u"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"issuer":  otherIssuer,
		"key":     otherKey,
		"expired": expired,
		"none":    none,
		"garbage": "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
