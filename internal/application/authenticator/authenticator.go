// Package authenticator resolves bearer credentials to principals and issues
// the update tokens embedded in outbound messages.
package authenticator

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/infrastructure/auth"
	"github.com/icubam/icubam/internal/infrastructure/token"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Store is the subset of the repository the authenticator reads and writes.
type Store interface {
	Now() time.Time
	GetUser(ctx context.Context, id int64) (*user.User, error)
	GetICU(ctx context.Context, id int64) (*icu.ICU, error)
	GetUpdateToken(ctx context.Context, userID, icuID int64) (*access.UpdateToken, error)
	FindUpdateTokenByHash(ctx context.Context, hash string) (*access.UpdateToken, error)
	CreateUpdateToken(ctx context.Context, userID, icuID int64, value, hash string) (*access.UpdateToken, error)
	RotateUpdateToken(ctx context.Context, t *access.UpdateToken, value, hash string) (*access.UpdateToken, error)
	GetExternalClientByHash(ctx context.Context, hash string) (*access.ExternalClient, error)
	AddExternalClient(ctx context.Context, caller *user.User, c *access.ExternalClient) (int64, error)
}

// Authenticator is safe for concurrent use.
type Authenticator struct {
	store        Store
	tokens       token.TokenGenerator
	signer       *auth.SessionSigner
	keys         *token.AccessKeyHasher
	validityDays int
	logger       logger.Interface
}

func New(
	store Store,
	tokens token.TokenGenerator,
	signer *auth.SessionSigner,
	keys *token.AccessKeyHasher,
	validityDays int,
	log logger.Interface,
) *Authenticator {
	return &Authenticator{
		store:        store,
		tokens:       tokens,
		signer:       signer,
		keys:         keys,
		validityDays: validityDays,
		logger:       log,
	}
}

// GetOrNewToken returns the live update token of the (user, icu) pair,
// creating it when the pair has none. With rotate set, a token older than
// the validity window is replaced and the fresh value returned.
func (a *Authenticator) GetOrNewToken(ctx context.Context, userID, icuID int64, rotate bool) (string, error) {
	current, err := a.store.GetUpdateToken(ctx, userID, icuID)
	switch {
	case errors.Is(err, access.ErrUnknown):
		return a.create(ctx, userID, icuID)
	case err != nil:
		return "", err
	}

	if !rotate || !current.Expired(a.store.Now(), a.validityDays) {
		return current.Value, nil
	}

	value, hash, err := a.tokens.Generate()
	if err != nil {
		return "", err
	}
	rotated, err := a.store.RotateUpdateToken(ctx, current, value, hash)
	if errors.Is(err, access.ErrConflict) {
		// Another rotation won; its value is the live one.
		return a.reread(ctx, userID, icuID)
	}
	if err != nil {
		return "", err
	}
	a.logger.Infow("update token rotated", "user_id", userID, "icu_id", icuID)
	return rotated.Value, nil
}

func (a *Authenticator) create(ctx context.Context, userID, icuID int64) (string, error) {
	value, hash, err := a.tokens.Generate()
	if err != nil {
		return "", err
	}
	created, err := a.store.CreateUpdateToken(ctx, userID, icuID, value, hash)
	if errors.Is(err, access.ErrConflict) {
		return a.reread(ctx, userID, icuID)
	}
	if err != nil {
		return "", err
	}
	return created.Value, nil
}

func (a *Authenticator) reread(ctx context.Context, userID, icuID int64) (string, error) {
	t, err := a.store.GetUpdateToken(ctx, userID, icuID)
	if err != nil {
		return "", err
	}
	return t.Value, nil
}

// SessionToken signs a session token for the pair.
func (a *Authenticator) SessionToken(userID, icuID int64) (string, error) {
	return a.signer.Sign(userID, icuID)
}

// Resolve maps a bearer string to a candidate principal without checking
// the user or the ICU. Strings of update-token length only go through the
// database; anything else is decoded as a session token.
func (a *Authenticator) Resolve(ctx context.Context, bearer string) (*access.Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, access.ErrUnknown
	}

	if token.LooksLikeUpdateToken(bearer) {
		t, err := a.store.FindUpdateTokenByHash(ctx, a.tokens.Hash(bearer))
		if err != nil {
			return nil, access.ErrUnknown
		}
		if subtle.ConstantTimeCompare([]byte(t.Value), []byte(bearer)) != 1 {
			return nil, access.ErrUnknown
		}
		return &access.Principal{UserID: t.UserID, ICUID: t.ICUID}, nil
	}

	if a.signer == nil {
		return nil, access.ErrUnknown
	}
	p, err := a.signer.Verify(bearer)
	if err != nil {
		a.logger.Debugw("session token rejected", "token", logger.Mask(bearer), "error", err)
		return nil, access.ErrUnknown
	}
	return p, nil
}

// Authenticate resolves bearer and checks, in order, consent, activity and
// membership.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (*user.User, *icu.ICU, error) {
	p, err := a.Resolve(ctx, bearer)
	if err != nil {
		return nil, nil, err
	}

	u, err := a.store.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, access.ErrUnknown
		}
		return nil, nil, err
	}
	i, err := a.store.GetICU(ctx, p.ICUID)
	if err != nil {
		if errors.Is(err, icu.ErrNotFound) {
			return nil, nil, access.ErrUnknown
		}
		return nil, nil, err
	}

	if u.HasDeclined() {
		return nil, nil, access.ErrRevokedConsent
	}
	if !u.IsActive || !i.IsActive {
		return nil, nil, access.ErrInactive
	}
	if !u.BelongsTo(i.ID) {
		return nil, nil, access.ErrNotMember
	}
	return u, i, nil
}

// AuthenticateClient resolves an external client from its plain access key.
// Unknown, inactive and expired clients all yield access.ErrUnknown.
func (a *Authenticator) AuthenticateClient(ctx context.Context, key string) (*access.ExternalClient, error) {
	key = strings.TrimSpace(key)
	if key == "" || a.keys == nil {
		return nil, access.ErrUnknown
	}
	c, err := a.store.GetExternalClientByHash(ctx, a.keys.Hash(key))
	if err != nil {
		return nil, access.ErrUnknown
	}
	if !c.IsValid(a.store.Now()) {
		a.logger.Infow("external client refused", "client_id", c.ID, "active", c.IsActive)
		return nil, access.ErrUnknown
	}
	return c, nil
}

// RegisterClient stores c under a freshly generated access key and returns
// the plain key. Lookups only ever go through the digest.
func (a *Authenticator) RegisterClient(ctx context.Context, caller *user.User, c *access.ExternalClient) (int64, string, error) {
	if a.keys == nil {
		return 0, "", errors.New("access keys are not configured")
	}
	key, digest := a.keys.Generate()
	c.KeyHash = digest
	id, err := a.store.AddExternalClient(ctx, caller, c)
	if err != nil {
		return 0, "", err
	}
	return id, key, nil
}

// UpdateURL builds the link sent to operators: {base}/update?id={token}.
func UpdateURL(baseURL, tok string) string {
	return fmt.Sprintf("%s/update?id=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(tok))
}
