package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of decoded credentials kept by an
// [Inspector].
const DefaultCacheSize = 128

// Inspector decodes access credentials without verifying their signature.
// Decoded claims are cached by token string.
type Inspector struct {
	parser *jwt.Parser
	cache  *lru.Cache[string, AccessClaims]
}

// NewInspector returns an inspector caching up to size decoded tokens. A
// non-positive size selects DefaultCacheSize.
func NewInspector(size int) (*Inspector, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, AccessClaims](size)
	if err != nil {
		return nil, err
	}
	return &Inspector{
		parser: jwt.NewParser(),
		cache:  cache,
	}, nil
}

// Inspect returns the claims of token. The signature is not checked.
func (i *Inspector) Inspect(token string) (AccessClaims, error) {
	if token == "" {
		return AccessClaims{}, fmt.Errorf("%w: empty", ErrMalformedToken)
	}
	if claims, ok := i.cache.Get(token); ok {
		return claims, nil
	}

	var claims AccessClaims
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	i.cache.Add(token, claims)
	return claims, nil
}

// ExpiresAt returns the exp claim of token.
func (i *Inspector) ExpiresAt(token string) (time.Time, error) {
	claims, err := i.Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return exp, nil
}

// Len reports the number of cached entries.
func (i *Inspector) Len() int {
	return i.cache.Len()
}
