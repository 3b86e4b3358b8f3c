package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.True(t, CompareHashAndPassword(hash, "hunter2hunter2"))
	assert.False(t, CompareHashAndPassword(hash, "wrong-password"))
	assert.False(t, CompareHashAndPassword("not-a-hash", "hunter2hunter2"))
}

func TestHashIsSalted(t *testing.T) {
	h1, err := HashPassword("samepassword")
	require.NoError(t, err)
	h2, err := HashPassword("samepassword")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
