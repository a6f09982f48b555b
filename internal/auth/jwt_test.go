package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateAdminToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateAdminToken("ops@example.com")
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}

	claims, err := svc.ValidateAdminToken(token)
	if err != nil {
		t.Fatalf("ValidateAdminToken() error = %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("Subject = %q, want ops@example.com", claims.Subject)
	}
	if claims.Type != TokenTypeAdmin {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeAdmin)
	}
}

func TestGenerateAdminTokenEmptySubject(t *testing.T) {
	svc := NewJWTService("test-secret")
	if _, err := svc.GenerateAdminToken(""); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("GenerateAdminToken(\"\") error = %v, want ErrEmptySubject", err)
	}
}

func TestValidateAdminTokenRejections(t *testing.T) {
	svc := NewJWTService("test-secret")

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.ValidateAdminToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService("different-secret")
		token, err := other.GenerateAdminToken("ops")
		if err != nil {
			t.Fatalf("GenerateAdminToken() error = %v", err)
		}
		if _, err := svc.ValidateAdminToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		// Sign a token that expired beyond the leeway.
		now := time.Now().Add(-2 * time.Hour)
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			Type: TokenTypeAdmin,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.ValidateAdminToken(token); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("error = %v, want ErrExpiredToken", err)
		}
	})

	t.Run("wrong token type", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Type: "access",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.ValidateAdminToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong signing algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Type: TokenTypeAdmin,
		}).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.ValidateAdminToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestSecretRotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	oldToken, err := oldSvc.GenerateAdminToken("ops")
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}

	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")

	// Tokens signed with the previous secret still validate.
	if _, err := rotated.ValidateAdminToken(oldToken); err != nil {
		t.Errorf("ValidateAdminToken(old) error = %v, want nil during rotation", err)
	}

	// New tokens are signed with the new secret.
	newToken, err := rotated.GenerateAdminToken("ops")
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}
	if _, err := NewJWTService("new-secret").ValidateAdminToken(newToken); err != nil {
		t.Errorf("new token not signed with current secret: %v", err)
	}

	// After rotation completes the old secret stops working.
	final := NewJWTService("new-secret")
	if _, err := final.ValidateAdminToken(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAdminToken(old) error = %v, want ErrInvalidToken after rotation", err)
	}
}
