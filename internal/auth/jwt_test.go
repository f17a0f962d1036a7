package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{
		UserID: "user_2abc",
		Name:   "Alice",
		Email:  "alice@example.com",
	}, time.Hour)
	require.NoError(t, err)

	identity, err := VerifyToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", identity.UserID)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{UserID: "user_2abc"}, time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{UserID: "user_2abc"}, -time.Minute)
	require.NoError(t, err)

	_, err = VerifyToken(testSecret, token)
	assert.Error(t, err)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	token, err := GenerateToken(testSecret, Identity{Name: "No Subject"}, time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken(testSecret, token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := VerifyToken(testSecret, "not.a.token")
	assert.Error(t, err)
}
