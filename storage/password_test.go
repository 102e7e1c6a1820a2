package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("p1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "argon2id$"))
	assert.NotContains(t, hash, "p1")

	assert.True(t, checkPassword(hash, "p1"))
	assert.False(t, checkPassword(hash, "p2"))
	assert.False(t, checkPassword(hash, ""))

	// salted: the same password hashes differently each time
	again, err := hashPassword("p1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestCheckPassword_Legacy(t *testing.T) {
	assert.True(t, checkPassword("plain", "plain"))
	assert.False(t, checkPassword("plain", "other"))
}

func TestCheckPassword_Malformed(t *testing.T) {
	assert.False(t, checkPassword("argon2id$!!$!!", "x"))
	assert.False(t, checkPassword("argon2id$c2FsdA$", "x"))
}
