package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/division-console/internal/models"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
)

func signTestToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	claims := models.SessionClaims{
		Name: "Operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	claims, err := verifier.Verify(signTestToken(t, "secret", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Operator", claims.Name)
}

func TestTokenVerifierRejectsBadTokens(t *testing.T) {
	verifier := NewTokenVerifier("secret")

	_, err := verifier.Verify(signTestToken(t, "other", time.Now().Add(time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = verifier.Verify(signTestToken(t, "secret", time.Now().Add(-time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = verifier.Verify("")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenVerifierOpaqueWithoutSecret(t *testing.T) {
	verifier := NewTokenVerifier("")
	claims, err := verifier.Verify("opaque-token")
	require.NoError(t, err)
	assert.Nil(t, claims)
	assert.False(t, verifier.Enabled())
}
