package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuerConfig configures an HS256 [Issuer].
type IssuerConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	KeyID     string
}

// Issuer mints HS256 access credentials. It backs fake servers and load
// tools; production credentials come from the authentication server.
type Issuer struct {
	config IssuerConfig
	now    func() time.Time
}

// NewIssuer validates cfg and returns an issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("hs256 secret must be at least 16 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	return &Issuer{config: cfg, now: time.Now}, nil
}

// WithNow overrides the issuing clock.
func (i *Issuer) WithNow(now func() time.Time) *Issuer {
	if now != nil {
		i.now = now
	}
	return i
}

// TTL returns the configured access lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.config.AccessTTL
}

// Issue signs an access credential for uid in tenant tid. Every token gets a
// fresh jti, so two issues within one second never collide. It returns the
// token and its expiry.
func (i *Issuer) Issue(uid, tid string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.config.AccessTTL)
	claims := AccessClaims{
		UID: uid,
		TID: tid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if i.config.KeyID != "" {
		token.Header["kid"] = i.config.KeyID
	}
	signed, err := token.SignedString(i.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses token with the issuer's secret and standard validation.
func (i *Issuer) Verify(token string) (AccessClaims, error) {
	var claims AccessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.config.Secret, nil
	})
	if err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}
