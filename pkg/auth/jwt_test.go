package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artion-backend/pkg/auth"
)

func newValidator(t *testing.T) *auth.JWTValidator {
	t.Helper()
	v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "secret", Issuer: "artion-backend"})
	require.NoError(t, err)
	return v
}

func TestValidateToken_RoundTrip(t *testing.T) {
	v := newValidator(t)
	token, err := v.GenerateToken("user-1", "0xabc", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "0xabc", claims.Address)
}

func TestValidateToken_Failures(t *testing.T) {
	v := newValidator(t)
	expired, err := v.GenerateToken("user-1", "", -time.Minute)
	require.NoError(t, err)

	other, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "other", Issuer: "artion-backend"})
	require.NoError(t, err)
	forged, err := other.GenerateToken("user-1", "", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "secret", Issuer: "someone-else"})
	require.NoError(t, err)
	foreign, err := wrongIssuer.GenerateToken("user-1", "", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", auth.ErrMissingToken},
		{"expired", expired, auth.ErrExpiredToken},
		{"wrong key", forged, auth.ErrInvalidSignature},
		{"wrong issuer", foreign, auth.ErrInvalidToken},
		{"unsigned", none, auth.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserContext(t *testing.T) {
	_, err := auth.GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := auth.SetUserInContext(context.Background(), &auth.UserContext{UserID: "u", Token: "t"})
	user, err := auth.GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t", user.Token)
}
