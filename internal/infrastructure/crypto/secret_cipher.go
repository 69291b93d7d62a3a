package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecryption is returned for any blob that fails authentication: tampered
// data, a truncated blob, or a key mismatch. Callers cannot tell these apart.
var ErrDecryption = errors.New("decryption failed")

// KeyDeriver turns the configured secret into a symmetric key.
// Swap implementations to move key material into a KMS.
type KeyDeriver interface {
	DeriveKey(secret string) ([]byte, error)
}

// PadTruncateDeriver pads the secret with zero bytes, or truncates it, to the key size.
type PadTruncateDeriver struct{}

func (PadTruncateDeriver) DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	copy(key, secret)
	return key, nil
}

// HKDFDeriver derives the key with HKDF-SHA256 bound to Info.
type HKDFDeriver struct {
	Info string
}

func (d HKDFDeriver) DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(d.Info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// NewKeyDeriver selects a deriver by name ("pad" or "hkdf").
func NewKeyDeriver(name string) (KeyDeriver, error) {
	switch name {
	case "", "pad":
		return PadTruncateDeriver{}, nil
	case "hkdf":
		return HKDFDeriver{Info: "wiki-contributions/verification-code"}, nil
	default:
		return nil, fmt.Errorf("unknown key derivation %q", name)
	}
}

// SecretCipher encrypts short secrets with XChaCha20-Poly1305. Every output
// blob is nonce||ciphertext and is self-contained.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives the key from secret and prepares the AEAD.
func NewSecretCipher(secret string, deriver KeyDeriver) (*SecretCipher, error) {
	if deriver == nil {
		deriver = PadTruncateDeriver{}
	}
	key, err := deriver.DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *SecretCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *SecretCipher) Decrypt(blob []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(blob) < ns+c.aead.Overhead() {
		return nil, ErrDecryption
	}
	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// EncryptString is Encrypt with base64 output, for storage in text records.
func (c *SecretCipher) EncryptString(plaintext string) (string, error) {
	blob, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptString reverses EncryptString.
func (c *SecretCipher) DecryptString(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
