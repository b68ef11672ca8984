package vapid_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pusha/internal/domain"
	"github.com/notifyhub/pusha/internal/vapid"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return k
}

func sec1PEM(t *testing.T, k *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(k)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func newSigner(t *testing.T, cfg vapid.Config) (*vapid.Signer, *ecdsa.PrivateKey) {
	t.Helper()
	k := newKey(t)
	s, err := vapid.NewSigner(k, cfg)
	require.NoError(t, err)
	return s, k
}

func TestSigner_TokenVerifiesAgainstPublicKey(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s, k := newSigner(t, vapid.Config{
		Subject: "mailto:ops@example.com",
		Claims:  map[string]any{"foo": "bar", "omg": json.Number("123"), "aud": "ignored"},
	})
	s = s.WithClock(func() time.Time { return now })

	token, err := s.Sign("https://fcm.googleapis.com")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "https://fcm.googleapis.com", claims["aud"])
	assert.Equal(t, "mailto:ops@example.com", claims["sub"])
	assert.Equal(t, "bar", claims["foo"])
	assert.Equal(t, float64(123), claims["omg"])
	assert.EqualValues(t, now.Add(vapid.DefaultExpiration).Unix(), claims["exp"])

	// Independent verification with only the public key.
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return &k.PublicKey, nil },
		jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	assert.Equal(t, "ES256", parsed.Header["alg"])
}

func TestSigner_InvalidExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s, _ := newSigner(t, vapid.Config{Subject: "mailto:ops@example.com"})
	s = s.WithClock(func() time.Time { return now })

	tests := []struct {
		name string
		exp  time.Time
		ok   bool
	}{
		{"exactly 24h", now.Add(vapid.MaxExpiry), true},
		{"one hour", now.Add(time.Hour), true},
		{"beyond 24h", now.Add(vapid.MaxExpiry + time.Second), false},
		{"in the past", now.Add(-time.Minute), false},
		{"now", now, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.SignWithExpiry("https://push.example.net", tc.exp)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidExpiry))
			assert.Equal(t, domain.StatusSignatureError, domain.Classify(err))
		})
	}
}

func TestNewSigner_RejectsLongExpiration(t *testing.T) {
	_, err := vapid.NewSigner(newKey(t), vapid.Config{Expiration: 25 * time.Hour})
	assert.True(t, errors.Is(err, domain.ErrInvalidExpiry))
}

func TestSigner_VerifyRejectsExpiredToken(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s, _ := newSigner(t, vapid.Config{Expiration: time.Hour})

	token, err := s.WithClock(func() time.Time { return now }).Sign("https://push.example.net")
	require.NoError(t, err)

	_, err = s.WithClock(func() time.Time { return now.Add(2 * time.Hour) }).Verify(token)
	assert.True(t, errors.Is(err, domain.ErrSignature))
}

func TestSigner_AuthorizationHeader(t *testing.T) {
	s, k := newSigner(t, vapid.Config{})

	msg := &domain.SignedMessage{Endpoint: "https://push.example.net/x"}
	require.NoError(t, s.Authorize(msg, "https://push.example.net"))

	require.True(t, strings.HasPrefix(msg.Authorization, "vapid t="))
	parts := strings.Split(strings.TrimPrefix(msg.Authorization, "vapid "), ", ")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1], "k="))

	pub, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(parts[1], "k="))
	require.NoError(t, err)
	require.Len(t, pub, 65)
	x, y := elliptic.Unmarshal(elliptic.P256(), pub) //nolint:staticcheck
	assert.Equal(t, 0, x.Cmp(k.PublicKey.X))
	assert.Equal(t, 0, y.Cmp(k.PublicKey.Y))

	_, err = s.Verify(strings.TrimPrefix(parts[0], "t="))
	assert.NoError(t, err)
}

func TestParsePrivateKey(t *testing.T) {
	k := newKey(t)
	want, err := vapid.EncodePublicKey(k)
	require.NoError(t, err)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(k)
	require.NoError(t, err)
	scalar := make([]byte, 32)
	k.D.FillBytes(scalar)

	inputs := map[string]string{
		"sec1 pem":        sec1PEM(t, k),
		"pkcs8 pem":       string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
		"escaped newline": strings.ReplaceAll(sec1PEM(t, k), "\n", `\n`),
		"raw scalar":      base64.RawURLEncoding.EncodeToString(scalar),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := vapid.ParsePrivateKey(in)
			require.NoError(t, err)
			pub, err := vapid.EncodePublicKey(got)
			require.NoError(t, err)
			assert.Equal(t, want, pub)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := vapid.ParsePrivateKey("not a key")
		assert.True(t, errors.Is(err, domain.ErrInvalidSigningKey))
	})

	t.Run("wrong curve", func(t *testing.T) {
		p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)
		_, err = vapid.ParsePrivateKey(sec1PEM(t, p384))
		assert.True(t, errors.Is(err, domain.ErrInvalidSigningKey))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vapid.pem")
		require.NoError(t, os.WriteFile(path, []byte(sec1PEM(t, k)), 0o600))
		got, err := vapid.LoadPrivateKeyFile(path)
		require.NoError(t, err)
		assert.True(t, got.Equal(k))
	})
}
