// Package security holds the cipher engine and the key vault: everything
// that touches key material or ciphertext. KB sections are encrypted per
// section with AES-256-GCM under a device-resident key; passphrase-derived
// keys wrap the device key for backup. Keys cross API boundaries as base64
// strings.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the symmetric key length in bytes (AES-256).
	KeySize = 32

	// SaltSize is the salt length for passphrase key derivation.
	SaltSize = 16

	// KDFIterations is the PBKDF2 round count.
	KDFIterations = 100000
)

// GenerateKey returns a fresh random 256-bit key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext under the base64 key with AES-256-GCM and a
// fresh random 96-bit nonce. The blob format is base64(nonce) + ":" +
// base64(ciphertext with tag). Two calls with identical inputs produce
// different blobs.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt, splitting on the first colon.
// It returns ErrDecryptFailed for a malformed blob, a wrong key, or a
// tampered ciphertext alike.
func Decrypt(blob, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonceB64, cipherB64, ok := strings.Cut(blob, ":")
	if !ok || nonceB64 == "" || cipherB64 == "" {
		return "", ErrDecryptFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != gcm.NonceSize() {
		return "", ErrDecryptFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return "", ErrDecryptFailed
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// DeriveKey stretches a passphrase into a base64 256-bit key with
// PBKDF2-SHA256 over KDFIterations rounds. Deterministic for a given
// passphrase and salt.
func DeriveKey(passphrase string, salt []byte) string {
	key := pbkdf2.Key([]byte(passphrase), salt, KDFIterations, KeySize, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// WrapKey encrypts rawKey under a key derived from the passphrase and a
// fresh random salt. The result is base64(salt) + ":" + the Encrypt blob,
// three colon-delimited parts in total.
func WrapKey(rawKey, passphrase string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	blob, err := Encrypt(rawKey, DeriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("wrap key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt) + ":" + blob, nil
}

// UnwrapKey reverses WrapKey. Everything after the first colon is the
// cipher blob, even if it contains further colons. A wrong passphrase
// surfaces as ErrUnwrapFailed.
func UnwrapKey(wrapped, passphrase string) (string, error) {
	saltB64, blob, ok := strings.Cut(wrapped, ":")
	if !ok || saltB64 == "" || blob == "" {
		return "", ErrUnwrapFailed
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", ErrUnwrapFailed
	}
	rawKey, err := Decrypt(blob, DeriveKey(passphrase, salt))
	if err != nil {
		return "", ErrUnwrapFailed
	}
	return rawKey, nil
}

func newGCM(key string) (cipher.AEAD, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrInvalidKey)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return cipher.NewGCM(block)
}
