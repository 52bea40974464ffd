package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndParseAccessToken(t *testing.T) {
	token, exp, err := SignAccessToken("u1", "mina", time.Minute, "secret")
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := ParseAndValidate(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "mina", claims.Username)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := SignAccessToken("u1", "mina", time.Minute, "secret")
	require.NoError(t, err)

	_, err = ParseAndValidate(token, "other-secret")
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, _, err := SignAccessToken("u1", "mina", -time.Minute, "secret")
	require.NoError(t, err)

	_, err = ParseAndValidate(token, "secret")
	require.Error(t, err)
}

func TestGenerateRefreshTokenIsRandom(t *testing.T) {
	a, err := GenerateRefreshToken(32)
	require.NoError(t, err)
	b, err := GenerateRefreshToken(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}
