package ece

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pusha/internal/domain"
)

// Values from RFC 8291 Appendix A.
const (
	vectorPlaintext = "When I grow up, I want to be a watermelon"
	vectorASPrivate = "yfWPiYE-n46HLnH0KqZOF1fJJU3MYrct3AELtAQ-oRw"
	vectorUAPrivate = "q1dXpw3UpT5VOmu_cf_v6ih07Aems3njxI-JWgLcM94"
	vectorUAPublic  = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
	vectorAuth      = "BTBZMqHH6r4Tts7J_aSIgg"
	vectorSalt      = "DGv6ra1nlYgDCS1FRnbzlw"
	vectorBody      = "DGv6ra1nlYgDCS1FRnbzlwAAEABBBP4z9KsN6nGRTbVYI_c7VJSPQTBtkgcy27mlmlMoZIIgDll6e3vCYLocInmYWAmS6TlzAC8wEqKK6PBru3jl7A_yl95bQpu6cVPTpK4Mqgkf1CXztLVBSt2Ks3oZwbuwXPXLWyouBWLVWGNWQexSgSxsj_Qulcy4a-fN"
)

func b64(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestEncrypt_RFC8291Vector(t *testing.T) {
	local, err := ecdh.P256().NewPrivateKey(b64(t, vectorASPrivate))
	require.NoError(t, err)

	body, err := encrypt([]byte(vectorPlaintext), b64(t, vectorUAPublic), b64(t, vectorAuth), b64(t, vectorSalt), local)
	require.NoError(t, err)

	assert.Equal(t, vectorBody, base64.RawURLEncoding.EncodeToString(body))
}

func TestDecrypt_RFC8291Vector(t *testing.T) {
	ua, err := ecdh.P256().NewPrivateKey(b64(t, vectorUAPrivate))
	require.NoError(t, err)

	plain, err := Decrypt(b64(t, vectorBody), ua, b64(t, vectorAuth))
	require.NoError(t, err)
	assert.Equal(t, vectorPlaintext, string(plain))
}

func newSubscriber(t *testing.T) (*ecdh.PrivateKey, []byte, domain.Subscription) {
	t.Helper()
	ua, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	sub, err := domain.NewSubscription(
		"https://push.example.net/send/abc",
		base64.RawURLEncoding.EncodeToString(ua.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(auth),
	)
	require.NoError(t, err)
	return ua, auth, sub
}

func TestEncrypt_RoundTrip(t *testing.T) {
	ua, auth, sub := newSubscriber(t)

	for _, size := range []int{0, 1, 100, MaxPayloadSize} {
		payload := []byte(strings.Repeat("p", size))
		body, err := Encrypt(payload, sub)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(body), RecordSize)

		plain, err := Decrypt(body, ua, auth)
		require.NoError(t, err)
		assert.Equal(t, payload, plain)
	}
}

func TestEncrypt_FreshKeysPerMessage(t *testing.T) {
	_, _, sub := newSubscriber(t)

	a, err := Encrypt([]byte("same"), sub)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), sub)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncrypt_PayloadTooLarge(t *testing.T) {
	_, _, sub := newSubscriber(t)

	_, err := Encrypt(make([]byte, MaxPayloadSize+1), sub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	assert.Equal(t, domain.StatusRejected, domain.Classify(err))
}

func TestDecrypt_WrongAuthSecret(t *testing.T) {
	ua, _, sub := newSubscriber(t)

	body, err := Encrypt([]byte("hello"), sub)
	require.NoError(t, err)

	_, err = Decrypt(body, ua, make([]byte, 16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEncryption))
}

func TestBuild(t *testing.T) {
	ua, auth, sub := newSubscriber(t)
	ttl := 60

	t.Run("carries delivery hints", func(t *testing.T) {
		job := domain.NewJob(sub, []byte("hi"), domain.JobOptions{TTL: &ttl, Urgency: domain.UrgencyHigh, Topic: "news"})
		msg, err := Build(job)
		require.NoError(t, err)

		assert.Equal(t, sub.Endpoint(), msg.Endpoint)
		assert.Equal(t, ContentEncoding, msg.ContentEncoding)
		require.NotNil(t, msg.TTL)
		assert.Equal(t, 60, *msg.TTL)
		assert.Equal(t, domain.UrgencyHigh, msg.Urgency)
		assert.Equal(t, "news", msg.Topic)
		assert.Empty(t, msg.Authorization)

		plain, err := Decrypt(msg.Body, ua, auth)
		require.NoError(t, err)
		assert.Equal(t, "hi", string(plain))
	})

	t.Run("absent ttl stays absent", func(t *testing.T) {
		msg, err := Build(domain.NewJob(sub, []byte("hi"), domain.JobOptions{}))
		require.NoError(t, err)
		assert.Nil(t, msg.TTL)
	})

	t.Run("negative ttl rejected", func(t *testing.T) {
		neg := -1
		_, err := Build(domain.NewJob(sub, []byte("hi"), domain.JobOptions{TTL: &neg}))
		assert.True(t, errors.Is(err, domain.ErrInvalidTTL))
	})

	t.Run("zero subscription rejected", func(t *testing.T) {
		_, err := Build(domain.NewJob(domain.Subscription{}, []byte("hi"), domain.JobOptions{}))
		assert.True(t, errors.Is(err, domain.ErrInvalidEndpoint))
	})
}
