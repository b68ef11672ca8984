package vapid

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/notifyhub/pusha/internal/domain"
)

// ParsePrivateKey accepts a PEM encoded SEC1 ("EC PRIVATE KEY") or PKCS#8
// ("PRIVATE KEY") P-256 key, or the bare base64url scalar most web-push
// tooling prints. Literal "\n" sequences are treated as newlines so the key
// can live in a single-line environment variable.
func ParsePrivateKey(material string) (*ecdsa.PrivateKey, error) {
	material = strings.TrimSpace(strings.ReplaceAll(material, `\n`, "\n"))
	if material == "" {
		return nil, errors.Wrap(domain.ErrInvalidSigningKey, "empty key material")
	}

	if block, _ := pem.Decode([]byte(material)); block != nil {
		return parseDER(block)
	}

	raw, err := domain.DecodeBase64URL(material)
	if err != nil || len(raw) != 32 {
		return nil, errors.Wrap(domain.ErrInvalidSigningKey, "not PEM and not a base64url P-256 scalar")
	}
	k, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidSigningKey, err.Error())
	}
	der, err := x509.MarshalPKCS8PrivateKey(k)
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidSigningKey, err.Error())
	}
	return parseDER(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// LoadPrivateKeyFile reads and parses a key file.
func LoadPrivateKeyFile(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read vapid key %s", path)
	}
	return ParsePrivateKey(string(b))
}

func parseDER(block *pem.Block) (*ecdsa.PrivateKey, error) {
	var key any
	var err error
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, errors.Wrapf(domain.ErrInvalidSigningKey, "unsupported PEM block %q", block.Type)
	}
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidSigningKey, err.Error())
	}

	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok || ec.Curve != elliptic.P256() {
		return nil, domain.ErrInvalidSigningKey
	}
	return ec, nil
}

// EncodePublicKey renders the uncompressed public point as base64url, the
// form browsers expect for applicationServerKey and the "k" parameter.
func EncodePublicKey(key *ecdsa.PrivateKey) (string, error) {
	pub, err := key.PublicKey.ECDH()
	if err != nil {
		return "", errors.Wrap(domain.ErrInvalidSigningKey, err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(pub.Bytes()), nil
}
