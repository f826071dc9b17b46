package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/config"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret      = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

var fixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, key string, at time.Time) JWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{JWTSecret: key, TokenLifetime: time.Hour}, domain.NewFixedClock(at))
	require.NoError(t, err)
	return svc
}

func TestNewJWTServiceRejectsWeakConfig(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetime: time.Hour}, nil)
	assert.Error(t, err)

	_, err = NewJWTService(config.AuthConfig{JWTSecret: secret}, nil)
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	svc := newTestService(t, secret, fixedTime)

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "access", claims.TokenType)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	issue := func(t *testing.T) string {
		token, err := newTestService(t, secret, fixedTime).GenerateToken(context.Background(), userID)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		key     string
		at      time.Time
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:  "valid token",
			key:   secret,
			at:    fixedTime.Add(30 * time.Minute),
			token: issue,
		},
		{
			name:    "expired token",
			key:     secret,
			at:      fixedTime.Add(2 * time.Hour),
			token:   issue,
			wantErr: ErrExpiredToken,
		},
		{
			name:    "invalid signature",
			key:     wrongSecret,
			at:      fixedTime,
			token:   issue,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed token",
			key:     secret,
			at:      fixedTime,
			token:   func(*testing.T) string { return "this.is.not.a.valid.jwt.token" },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing token",
			key:     secret,
			at:      fixedTime,
			token:   func(*testing.T) string { return "" },
			wantErr: ErrMissingToken,
		},
		{
			name: "wrong token type",
			key:  secret,
			at:   fixedTime,
			token: func(t *testing.T) string {
				claims := jwtCustomClaims{
					UserID:    userID,
					TokenType: "refresh",
					RegisteredClaims: jwt.RegisteredClaims{
						IssuedAt:  jwt.NewNumericDate(fixedTime),
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					},
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
				require.NoError(t, err)
				return token
			},
			wantErr: ErrWrongTokenType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, tt.key, tt.at)
			claims, err := svc.ValidateToken(context.Background(), tt.token(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}
