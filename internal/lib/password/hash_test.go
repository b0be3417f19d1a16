package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndVerify(t *testing.T) {
	hash, err := GetHash("secret123")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, Verify(hash, "secret123"))
	assert.False(t, Verify(hash, "wrong"))
}

func TestGetHash_Salted(t *testing.T) {
	first, err := GetHash("secret123")
	require.NoError(t, err)
	second, err := GetHash("secret123")
	require.NoError(t, err)

	// соль генерируется заново для каждого хеша
	assert.NotEqual(t, first, second)
}

func TestVerify_MalformedHash(t *testing.T) {
	assert.False(t, Verify("", "secret123"))
	assert.False(t, Verify("plaintext", "secret123"))
	assert.False(t, Verify("$1$legacy", "secret123"))
}

func TestHasValidFormat(t *testing.T) {
	hash, err := GetHash("secret123")
	require.NoError(t, err)

	assert.True(t, HasValidFormat(hash))
	assert.False(t, HasValidFormat("sha256:deadbeef"))
}
