package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Ciphertext envelopes are tagged so the vault knows which scheme applies:
//
//	v1:base64(nonce || ct || tag)         AES-256-GCM with the process key
//	v2:base64(salt || nonce || ct || tag) AES-256-GCM with a per-record
//	                                      scrypt-derived subkey
//
// Anything without a known tag fails closed. There is no fallback that
// reinterprets unreadable data as plaintext.
const (
	envelopeV1 = "v1:"
	envelopeV2 = "v2:"

	saltSize = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrDecryptionFailed covers every decrypt failure mode: unknown envelope,
// malformed payload, and authentication-tag mismatch. Callers must treat it
// as corrupt data, not as an invalid credential.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encrypt seals plaintext under the process key and returns a v1 envelope.
func Encrypt(plaintext, key []byte) (string, error) {
	sealed, err := seal(plaintext, key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return envelopeV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptDerived seals plaintext under a per-record subkey derived from the
// process secret with a random scrypt salt, returning a v2 envelope.
func EncryptDerived(plaintext, secret []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	subkey, err := scrypt.Key(secret, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	sealed, err := seal(plaintext, subkey)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return envelopeV2 + base64.StdEncoding.EncodeToString(append(salt, sealed...)), nil
}

// Decrypt opens either envelope version. Any failure returns
// ErrDecryptionFailed; the caller learns nothing beyond "unreadable".
func Decrypt(encryptedData string, key []byte) (string, error) {
	switch {
	case strings.HasPrefix(encryptedData, envelopeV1):
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encryptedData, envelopeV1))
		if err != nil {
			slog.Info(err.Error())
			return "", ErrDecryptionFailed
		}
		return open(data, key)

	case strings.HasPrefix(encryptedData, envelopeV2):
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encryptedData, envelopeV2))
		if err != nil {
			slog.Info(err.Error())
			return "", ErrDecryptionFailed
		}
		if len(data) < saltSize {
			return "", ErrDecryptionFailed
		}
		salt, sealed := data[:saltSize], data[saltSize:]
		subkey, err := scrypt.Key(key, salt, scryptN, scryptR, scryptP, 32)
		if err != nil {
			slog.Info(err.Error())
			return "", ErrDecryptionFailed
		}
		return open(sealed, subkey)

	default:
		slog.Info("vault: ciphertext carries no known envelope tag")
		return "", ErrDecryptionFailed
	}
}

func seal(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return append(nonce, aesGCM.Seal(nil, nonce, plaintext, nil)...), nil
}

func open(data, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return "", ErrDecryptionFailed
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return "", ErrDecryptionFailed
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecryptionFailed
	}

	plaintext, err := aesGCM.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		slog.Info(err.Error())
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
