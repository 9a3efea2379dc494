package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)

	access, err := m.GenerateToken(42, "alice", "USER")
	require.NoError(t, err)

	claims, err := m.VerifyToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "USER", claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.InDelta(t, time.Hour.Seconds(), m.RemainingTTL(claims).Seconds(), 5)
}

func TestJWTManager_TokenTypesAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)

	refresh, err := m.GenerateRefreshToken(1, "bob", "USER")
	require.NoError(t, err)
	_, err = m.VerifyToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	claims, err := m.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.TokenType)
}

func TestJWTManager_RejectsForeignSignature(t *testing.T) {
	issued, err := NewJWTManager("one", 1, 1).GenerateToken(1, "bob", "USER")
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1, 1).VerifyToken(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", 1, 1)
	issued, err := m.GenerateToken(1, "bob", "USER")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.VerifyToken(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
