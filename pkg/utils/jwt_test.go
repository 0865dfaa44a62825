package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestValidateTokenStringToUUID(t *testing.T) {
	const secret = "test-secret"
	userID := uuid.New()

	valid, err := GenerateToken(userID, "user", secret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, _ := GenerateToken(userID, "user", secret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{"valid", valid, secret, nil},
		{"bearer prefix", "Bearer " + valid, secret, nil},
		{"wrong secret", valid, "other", ErrInvalidToken},
		{"expired", expired, secret, ErrExpiredToken},
		{"empty", "", secret, ErrMissingToken},
		{"garbage", "not-a-token", secret, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := ValidateTokenStringToUUID(tt.token, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && user.ID != userID {
				t.Errorf("user id = %s, want %s", user.ID, userID)
			}
		})
	}
}
