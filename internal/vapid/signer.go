// Package vapid issues the sender authentication tokens (RFC 8292) that prove
// this application's identity to push services.
package vapid

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/notifyhub/pusha/internal/domain"
)

// MaxExpiry is the longest token lifetime push services must accept.
const MaxExpiry = 24 * time.Hour

// DefaultExpiration leaves headroom under MaxExpiry for clock skew.
const DefaultExpiration = 12 * time.Hour

// Config holds the claim set shared by every token.
type Config struct {
	// Subject is the contact claim, a mailto: or https: URI.
	Subject string
	// Claims are sender-defined extra claims. They never override aud, exp or sub.
	Claims map[string]any
	// Expiration is the lifetime of issued tokens; zero means DefaultExpiration.
	Expiration time.Duration
}

// Signer is a pure function of its key, config and the wall clock, and is
// safe for concurrent use.
type Signer struct {
	key        *ecdsa.PrivateKey
	publicKey  string
	subject    string
	claims     map[string]any
	expiration time.Duration
	now        func() time.Time
}

func NewSigner(key *ecdsa.PrivateKey, cfg Config) (*Signer, error) {
	if key == nil {
		return nil, domain.ErrInvalidSigningKey
	}
	pub, err := EncodePublicKey(key)
	if err != nil {
		return nil, err
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.Expiration < 0 || cfg.Expiration > MaxExpiry {
		return nil, errors.Wrapf(domain.ErrInvalidExpiry, "expiration %s", cfg.Expiration)
	}
	if cfg.Subject != "" && !strings.HasPrefix(cfg.Subject, "mailto:") && !strings.HasPrefix(cfg.Subject, "https:") {
		return nil, errors.Wrapf(domain.ErrSignature, "subject %q must be a mailto: or https: URI", cfg.Subject)
	}

	claims := make(map[string]any, len(cfg.Claims))
	for k, v := range cfg.Claims {
		claims[k] = v
	}

	return &Signer{
		key:        key,
		publicKey:  pub,
		subject:    cfg.Subject,
		claims:     claims,
		expiration: cfg.Expiration,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of s that reads time from now. Used by tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

// PublicKey is the base64url application server key.
func (s *Signer) PublicKey() string { return s.publicKey }

// Sign issues a token for audience expiring after the configured lifetime.
func (s *Signer) Sign(audience string) (string, error) {
	return s.SignWithExpiry(audience, s.now().Add(s.expiration))
}

// SignWithExpiry issues a token with an explicit exp claim.
func (s *Signer) SignWithExpiry(audience string, exp time.Time) (string, error) {
	if audience == "" {
		return "", errors.Wrap(domain.ErrSignature, "empty audience")
	}
	now := s.now()
	if !exp.After(now) || exp.Sub(now) > MaxExpiry {
		return "", errors.Wrapf(domain.ErrInvalidExpiry, "exp %s is %s from now", exp.UTC().Format(time.RFC3339), exp.Sub(now))
	}

	claims := jwt.MapClaims{}
	for k, v := range s.claims {
		claims[k] = v
	}
	claims["aud"] = audience
	claims["exp"] = exp.Unix()
	if s.subject != "" {
		claims["sub"] = s.subject
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "sign vapid token"), domain.ErrSignature)
	}
	return token, nil
}

// AuthorizationHeader renders the RFC 8292 "vapid" scheme credentials.
func (s *Signer) AuthorizationHeader(token string) string {
	return fmt.Sprintf("vapid t=%s, k=%s", token, s.publicKey)
}

// Authorize signs a token for the message's push service origin and sets
// its Authorization header value.
func (s *Signer) Authorize(msg *domain.SignedMessage, audience string) error {
	token, err := s.Sign(audience)
	if err != nil {
		return err
	}
	msg.Authorization = s.AuthorizationHeader(token)
	return nil
}

// Verify parses a token issued by s and checks its signature and expiry.
func (s *Signer) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "verify vapid token"), domain.ErrSignature)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrSignature
	}
	return claims, nil
}
