package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", h)
	assert.True(t, CheckPasswordHash("s3cret!", h))
	assert.False(t, CheckPasswordHash("wrong", h))
}
