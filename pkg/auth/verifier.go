package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abgdnv/catalog/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/sync/singleflight"
)

type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

// JWTVerifier verifies tokens against the key set published at a JWKS URL.
// The key set is cached for at least minInterval; concurrent refreshes share
// one fetch, and a failed refresh keeps serving the previous key set.
type JWTVerifier struct {
	mu sync.RWMutex

	jwksURL  string
	issuer   string
	clientID string

	cachedSet     jwk.Set
	lastRefreshed time.Time
	minInterval   time.Duration
	refresh       singleflight.Group
}

// NewJWTVerifier creates a verifier and fetches the key set once, so a bad
// configuration fails at startup.
func NewJWTVerifier(ctx context.Context, cfg config.IdP) (*JWTVerifier, error) {
	v := &JWTVerifier{
		jwksURL:     cfg.JwksURL,
		issuer:      cfg.Issuer,
		clientID:    cfg.ClientID,
		minInterval: cfg.MinInterval,
	}
	if _, err := v.getKeySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}
	return v, nil
}

func (v *JWTVerifier) cached() (jwk.Set, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cachedSet, v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval
}

func (v *JWTVerifier) getKeySet(ctx context.Context) (jwk.Set, error) {
	if set, fresh := v.cached(); fresh {
		return set, nil
	}
	res, err, _ := v.refresh.Do(v.jwksURL, func() (any, error) {
		if set, fresh := v.cached(); fresh {
			return set, nil
		}
		set, err := jwk.Fetch(ctx, v.jwksURL)
		if err != nil {
			if stale, _ := v.cached(); stale != nil {
				return stale, nil
			}
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.jwksURL, err)
		}
		v.mu.Lock()
		v.cachedSet = set
		v.lastRefreshed = time.Now()
		v.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(jwk.Set), nil
}

// Verify parses the token, checks its signature against the key set and
// validates expiry, issuer and the authorized party.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	set, err := v.getKeySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyset for verification: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithClaimValue("azp", v.clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}
