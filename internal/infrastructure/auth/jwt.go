package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/icubam/icubam/internal/domain/access"
)

// identityClaim is the single claim carried by a session token.
const identityClaim = "id"

// SessionSigner signs and verifies HS256 session tokens carrying a
// (user, ICU) pair as {"id": [user_id, icu_id]}. The secret never rotates
// within a process lifetime.
type SessionSigner struct {
	secret []byte
}

func NewSessionSigner(secret string) (*SessionSigner, error) {
	if secret == "" {
		return nil, errors.New("session signer: empty secret")
	}
	return &SessionSigner{secret: []byte(secret)}, nil
}

func (s *SessionSigner) Sign(userID, icuID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		identityClaim: []int64{userID, icuID},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns the principal encoded in tokenString. Both the list form
// and the older {"user_id": .., "icu_id": ..} object are accepted.
func (s *SessionSigner) Verify(tokenString string) (*access.Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", access.ErrMalformed, err)
	}
	if !token.Valid {
		return nil, access.ErrMalformed
	}
	return principalFromClaim(claims[identityClaim])
}

func principalFromClaim(raw interface{}) (*access.Principal, error) {
	switch v := raw.(type) {
	case []interface{}:
		if len(v) != 2 {
			return nil, access.ErrMalformed
		}
		userID, ok1 := asInt64(v[0])
		icuID, ok2 := asInt64(v[1])
		if !ok1 || !ok2 {
			return nil, access.ErrMalformed
		}
		return &access.Principal{UserID: userID, ICUID: icuID}, nil
	case map[string]interface{}:
		userID, ok1 := asInt64(v["user_id"])
		icuID, ok2 := asInt64(v["icu_id"])
		if !ok1 || !ok2 {
			return nil, access.ErrMalformed
		}
		return &access.Principal{UserID: userID, ICUID: icuID}, nil
	default:
		return nil, access.ErrMalformed
	}
}

// JSON numbers decode as float64.
func asInt64(v interface{}) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
