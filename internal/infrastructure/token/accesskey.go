package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	accessKeyIterations = 100000
	accessKeyDigestLen  = 32
	digestCacheSize     = 1024
)

// AccessKeyHasher derives deterministic salted digests of external-client
// access keys. PBKDF2 is slow on purpose, so digests of recently presented
// keys are kept in an LRU.
type AccessKeyHasher struct {
	salt  []byte
	cache *lru.Cache[string, string]
}

func NewAccessKeyHasher(salt string) (*AccessKeyHasher, error) {
	cache, err := lru.New[string, string](digestCacheSize)
	if err != nil {
		return nil, err
	}
	return &AccessKeyHasher{salt: []byte(salt), cache: cache}, nil
}

// Generate returns a new random access key and its digest.
func (h *AccessKeyHasher) Generate() (key string, digest string) {
	key = strings.ReplaceAll(uuid.NewString(), "-", "")
	return key, h.Hash(key)
}

func (h *AccessKeyHasher) Hash(key string) string {
	cacheKey := sha256Hex(key)
	if digest, ok := h.cache.Get(cacheKey); ok {
		return digest
	}
	digest := hex.EncodeToString(pbkdf2.Key([]byte(key), h.salt, accessKeyIterations, accessKeyDigestLen, sha256.New))
	h.cache.Add(cacheKey, digest)
	return digest
}

func (h *AccessKeyHasher) Verify(key, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(key)), []byte(digest)) == 1
}

// The cache is keyed by a fast hash so plain keys never sit in memory.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
