package domain

import (
	"crypto/ecdh"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// AuthSecretSize is the length of the subscriber's shared auth secret.
	AuthSecretSize = 16
	// PublicKeySize is the length of an uncompressed P-256 point.
	PublicKeySize = 65
)

// Subscription identifies one browser/device push endpoint together with the
// keys needed to encrypt a message only that device can read.
// It is immutable: build it with NewSubscription and read it via accessors.
type Subscription struct {
	endpoint   string
	p256dh     string
	auth       string
	publicKey  []byte
	authSecret []byte
	origin     string
}

// NewSubscription validates and decodes the three subscription fields.
func NewSubscription(endpoint, p256dh, auth string) (Subscription, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Subscription{}, ErrInvalidEndpoint
	}

	pub, err := DecodeBase64URL(p256dh)
	if err != nil || len(pub) != PublicKeySize {
		return Subscription{}, ErrInvalidP256dh
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return Subscription{}, errors.Wrap(ErrInvalidP256dh, err.Error())
	}

	secret, err := DecodeBase64URL(auth)
	if err != nil || len(secret) != AuthSecretSize {
		return Subscription{}, ErrInvalidAuth
	}

	return Subscription{
		endpoint:   endpoint,
		p256dh:     p256dh,
		auth:       auth,
		publicKey:  pub,
		authSecret: secret,
		origin:     u.Scheme + "://" + u.Host,
	}, nil
}

func (s Subscription) Endpoint() string { return s.endpoint }
func (s Subscription) P256dh() string   { return s.p256dh }
func (s Subscription) Auth() string     { return s.auth }

// Origin is scheme://host of the endpoint; it is the VAPID audience.
func (s Subscription) Origin() string { return s.origin }

// PublicKey returns a copy of the decoded subscriber public key.
func (s Subscription) PublicKey() []byte { return append([]byte(nil), s.publicKey...) }

// AuthSecret returns a copy of the decoded auth secret.
func (s Subscription) AuthSecret() []byte { return append([]byte(nil), s.authSecret...) }

// IsZero reports whether s was never constructed.
func (s Subscription) IsZero() bool { return s.endpoint == "" }

// DecodeBase64URL accepts base64url with or without padding, which is what
// browsers hand out in PushSubscription.toJSON().
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
