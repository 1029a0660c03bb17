package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/domain/access"
)

func TestTokenGenerator_Generate(t *testing.T) {
	generator := NewTokenGenerator()

	plain, hash, err := generator.Generate()
	require.NoError(t, err)
	assert.Len(t, plain, access.UpdateTokenLength)
	assert.True(t, LooksLikeUpdateToken(plain))
	assert.Len(t, hash, 64)
	assert.True(t, generator.Verify(plain, hash))
	assert.False(t, generator.Verify(plain+"x", hash))

	other, _, err := generator.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}

func TestTokenGenerator_HashDeterministic(t *testing.T) {
	generator := NewTokenGenerator()
	assert.Equal(t, generator.Hash("abc"), generator.Hash("abc"))
	assert.NotEqual(t, generator.Hash("abc"), generator.Hash("abd"))
}

func TestAccessKeyHasher(t *testing.T) {
	h, err := NewAccessKeyHasher("pepper")
	require.NoError(t, err)

	key, digest := h.Generate()
	assert.Len(t, key, 32)
	assert.NotContains(t, key, "-")
	assert.Equal(t, digest, h.Hash(key))
	assert.True(t, h.Verify(key, digest))
	assert.False(t, h.Verify("nope", digest))

	other, err := NewAccessKeyHasher("salt")
	require.NoError(t, err)
	assert.NotEqual(t, digest, other.Hash(key))
}
