package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", time.Hour, "flowdeck")

	token, err := m.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "engineer", claims.Role)
	assert.Equal(t, "platform", claims.Department)
	assert.Equal(t, "flowdeck", claims.Issuer)
}

func TestValidateWrongSecret(t *testing.T) {
	m := NewManager("secret", time.Hour, "flowdeck")
	other := NewManager("other", time.Hour, "flowdeck")

	token, err := other.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m := NewManager("secret", -time.Minute, "flowdeck")

	token, err := m.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateGarbage(t *testing.T) {
	m := NewManager("secret", time.Hour, "flowdeck")

	_, err := m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
