// Package ece implements the aes128gcm content encoding for Web Push
// messages (RFC 8188 records keyed as described in RFC 8291).
package ece

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/notifyhub/pusha/internal/domain"
)

const (
	// ContentEncoding is the Content-Encoding header value for the body.
	ContentEncoding = "aes128gcm"

	// RecordSize is the single-record size advertised in the header and the
	// largest body push services are required to accept.
	RecordSize = 4096

	saltSize   = 16
	keySize    = 16
	nonceSize  = 12
	tagSize    = 16
	headerSize = saltSize + 4 + 1 + domain.PublicKeySize

	// MaxPayloadSize is the largest plaintext that fits one record once the
	// header, the padding delimiter and the GCM tag are accounted for.
	MaxPayloadSize = RecordSize - headerSize - tagSize - 1

	lastRecordDelimiter = 0x02
)

var (
	keyInfoPrefix = []byte("WebPush: info\x00")
	cekInfo       = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo     = []byte("Content-Encoding: nonce\x00")
)

// Encrypt produces the encrypted body for payload using a fresh ephemeral
// key pair and salt.
func Encrypt(payload []byte, sub domain.Subscription) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errors.Wrapf(domain.ErrPayloadTooLarge, "%d bytes, limit %d", len(payload), MaxPayloadSize)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate salt"), domain.ErrEncryption)
	}
	local, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate ephemeral key"), domain.ErrEncryption)
	}

	return encrypt(payload, sub.PublicKey(), sub.AuthSecret(), salt, local)
}

func encrypt(payload, uaPublic, authSecret, salt []byte, local *ecdh.PrivateKey) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errors.Wrapf(domain.ErrPayloadTooLarge, "%d bytes, limit %d", len(payload), MaxPayloadSize)
	}

	remote, err := ecdh.P256().NewPublicKey(uaPublic)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse subscriber key"), domain.ErrEncryption)
	}
	secret, err := local.ECDH(remote)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "ecdh"), domain.ErrEncryption)
	}

	asPublic := local.PublicKey().Bytes()
	gcm, nonce, err := deriveCipher(secret, authSecret, salt, uaPublic, asPublic)
	if err != nil {
		return nil, err
	}

	record := make([]byte, 0, len(payload)+1)
	record = append(record, payload...)
	record = append(record, lastRecordDelimiter)

	out := make([]byte, headerSize, headerSize+len(record)+tagSize)
	copy(out, salt)
	binary.BigEndian.PutUint32(out[saltSize:], RecordSize)
	out[saltSize+4] = byte(len(asPublic))
	copy(out[saltSize+5:], asPublic)

	return gcm.Seal(out, nonce, record, nil), nil
}

// Decrypt opens a single-record aes128gcm body with the subscriber's private
// key and auth secret. It is the inverse of Encrypt.
func Decrypt(body []byte, uaPrivate *ecdh.PrivateKey, authSecret []byte) ([]byte, error) {
	if len(body) < headerSize+tagSize+1 {
		return nil, errors.Mark(errors.New("body shorter than header"), domain.ErrEncryption)
	}
	salt := body[:saltSize]
	rs := binary.BigEndian.Uint32(body[saltSize:])
	idLen := int(body[saltSize+4])
	if idLen != domain.PublicKeySize {
		return nil, errors.Mark(errors.Newf("unexpected key id length %d", idLen), domain.ErrEncryption)
	}
	asPublic := body[saltSize+5 : headerSize]
	ciphertext := body[headerSize:]
	if uint32(len(ciphertext)) > rs {
		return nil, errors.Mark(errors.New("multi-record bodies are not supported"), domain.ErrEncryption)
	}

	remote, err := ecdh.P256().NewPublicKey(asPublic)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse sender key"), domain.ErrEncryption)
	}
	secret, err := uaPrivate.ECDH(remote)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "ecdh"), domain.ErrEncryption)
	}

	gcm, nonce, err := deriveCipher(secret, authSecret, salt, uaPrivate.PublicKey().Bytes(), asPublic)
	if err != nil {
		return nil, err
	}
	record, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open record"), domain.ErrEncryption)
	}

	// Strip trailing zero padding, then the delimiter.
	end := len(record) - 1
	for end >= 0 && record[end] == 0 {
		end--
	}
	if end < 0 || record[end] != lastRecordDelimiter {
		return nil, errors.Mark(errors.New("missing last-record delimiter"), domain.ErrEncryption)
	}
	return record[:end], nil
}

// deriveCipher runs the RFC 8291 key schedule: the auth secret and ECDH
// secret give the IKM, which the salt turns into the content key and nonce.
func deriveCipher(secret, authSecret, salt, uaPublic, asPublic []byte) (cipher.AEAD, []byte, error) {
	keyInfo := make([]byte, 0, len(keyInfoPrefix)+len(uaPublic)+len(asPublic))
	keyInfo = append(keyInfo, keyInfoPrefix...)
	keyInfo = append(keyInfo, uaPublic...)
	keyInfo = append(keyInfo, asPublic...)

	ikm := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, authSecret, keyInfo), ikm); err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "derive ikm"), domain.ErrEncryption)
	}

	cek := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, cekInfo), cek); err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "derive content key"), domain.ErrEncryption)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, nonceInfo), nonce); err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "derive nonce"), domain.ErrEncryption)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "aes"), domain.ErrEncryption)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "gcm"), domain.ErrEncryption)
	}
	return gcm, nonce, nil
}
