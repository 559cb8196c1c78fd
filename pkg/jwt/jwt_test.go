package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	svc := NewService("s3cret", time.Hour)

	token, err := svc.GenerateToken("alice", "Alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "Alice", claims.Username)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewService("one", time.Hour).GenerateToken("alice", "")
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	token, err := NewService("s3cret", -time.Minute).GenerateToken("alice", "")
	require.NoError(t, err)

	_, err = NewService("s3cret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDisabledService(t *testing.T) {
	svc := NewService("", 0)
	assert.False(t, svc.Enabled())

	_, err := svc.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}
