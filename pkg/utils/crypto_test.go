package utils

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundtrip(t *testing.T) {
	cases := []string{
		"",
		"plain token",
		"IGQWRP-longish.token_value-1234567890",
		"мой секрет",
		"絵文字つき 🧵🔐 token",
	}

	for _, plaintext := range cases {
		encrypted, err := Encrypt([]byte(plaintext), testKey)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		if !strings.HasPrefix(encrypted, "v1:") {
			t.Fatalf("expected v1 envelope, got %q", encrypted)
		}
		decrypted, err := Decrypt(encrypted, testKey)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", plaintext, err)
		}
		if decrypted != plaintext {
			t.Fatalf("roundtrip mismatch: got %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptDerivedRoundtrip(t *testing.T) {
	encrypted, err := EncryptDerived([]byte("session=abc; csrftoken=def"), testKey)
	if err != nil {
		t.Fatalf("EncryptDerived: %v", err)
	}
	if !strings.HasPrefix(encrypted, "v2:") {
		t.Fatalf("expected v2 envelope, got %q", encrypted)
	}

	decrypted, err := Decrypt(encrypted, testKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != "session=abc; csrftoken=def" {
		t.Fatalf("roundtrip mismatch: got %q", decrypted)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	encrypted, err := Encrypt([]byte("bearer token"), testKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encrypted, "v1:"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Flip one bit in the trailing authentication tag.
	raw[len(raw)-1] ^= 0x01
	tampered := "v1:" + base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(tampered, testKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptFailsClosed(t *testing.T) {
	cases := []string{
		"",
		"not an envelope",
		base64.StdEncoding.EncodeToString([]byte("legacy untagged blob")),
		"v1:%%%not-base64%%%",
		"v1:" + base64.StdEncoding.EncodeToString([]byte("short")),
		"v2:" + base64.StdEncoding.EncodeToString([]byte("tiny")),
		"v9:" + base64.StdEncoding.EncodeToString([]byte("future format")),
	}

	for _, input := range cases {
		if _, err := Decrypt(input, testKey); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("Decrypt(%q): expected ErrDecryptionFailed, got %v", input, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("bearer token"), testKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	other := []byte("fedcba9876543210fedcba9876543210")
	if _, err := Decrypt(encrypted, other); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}
