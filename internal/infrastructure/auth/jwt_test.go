package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/domain/access"
)

func TestSessionSigner_RoundTrip(t *testing.T) {
	signer, err := NewSessionSigner("secret")
	require.NoError(t, err)

	signed, err := signer.Sign(7, 42)
	require.NoError(t, err)

	p, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, int64(42), p.ICUID)
}

func TestSessionSigner_LegacyObjectClaim(t *testing.T) {
	signer, err := NewSessionSigner("secret")
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": map[string]interface{}{"user_id": 3, "icu_id": 9},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	p, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, access.Principal{UserID: 3, ICUID: 9}, *p)
}

func TestSessionSigner_Rejects(t *testing.T) {
	signer, err := NewSessionSigner("secret")
	require.NoError(t, err)
	other, err := NewSessionSigner("other")
	require.NoError(t, err)

	foreign, err := other.Sign(1, 2)
	require.NoError(t, err)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "nope"})
	badSigned, err := bad.SignedString([]byte("secret"))
	require.NoError(t, err)

	short := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": []int{1}})
	shortSigned, err := short.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"garbage", "not-a-token"},
		{"claim not a pair", badSigned},
		{"claim too short", shortSigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			assert.ErrorIs(t, err, access.ErrMalformed)
		})
	}
}

func TestNewSessionSigner_EmptySecret(t *testing.T) {
	_, err := NewSessionSigner("")
	assert.Error(t, err)
}
