package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTProviderAuthenticate(t *testing.T) {
	provider := NewJWTProvider("test-secret")
	ctx := context.Background()

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "user_42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := provider.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user_42", userID)
}

func TestJWTProviderRejectsWrongSecret(t *testing.T) {
	provider := NewJWTProvider("test-secret")
	ctx := context.Background()

	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user_42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := provider.Authenticate(ctx, token)
	require.Error(t, err)
}

func TestJWTProviderRejectsExpiredToken(t *testing.T) {
	provider := NewJWTProvider("test-secret")
	ctx := context.Background()

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "user_42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := provider.Authenticate(ctx, token)
	require.Error(t, err)
}

func TestJWTProviderRejectsMissingSubject(t *testing.T) {
	provider := NewJWTProvider("test-secret")
	ctx := context.Background()

	token := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := provider.Authenticate(ctx, token)
	require.Error(t, err)
}

func TestJWTProviderRejectsUnsignedToken(t *testing.T) {
	provider := NewJWTProvider("test-secret")
	ctx := context.Background()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_42"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = provider.Authenticate(ctx, signed)
	require.Error(t, err)
}
