package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/wiki-contributions/internal/infrastructure/crypto"
)

func TestSecretCipher_RoundTrip(t *testing.T) {
	c, err := crypto.NewSecretCipher("short-secret", nil)
	require.NoError(t, err)

	enc, err := c.EncryptString("123456")
	require.NoError(t, err)
	require.NotContains(t, enc, "123456")

	dec, err := c.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "123456", dec)
}

func TestSecretCipher_FreshNoncePerCall(t *testing.T) {
	c, err := crypto.NewSecretCipher("secret", nil)
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSecretCipher_TamperedBlobFails(t *testing.T) {
	c, err := crypto.NewSecretCipher("secret", nil)
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte("654321"))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01

	_, err = c.Decrypt(blob)
	require.ErrorIs(t, err, crypto.ErrDecryption)

	_, err = c.Decrypt(blob[:4])
	require.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestSecretCipher_KeyMismatchFails(t *testing.T) {
	a, err := crypto.NewSecretCipher("secret-a", nil)
	require.NoError(t, err)
	b, err := crypto.NewSecretCipher("secret-b", nil)
	require.NoError(t, err)

	enc, err := a.EncryptString("111111")
	require.NoError(t, err)
	_, err = b.DecryptString(enc)
	require.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestKeyDerivers(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef-overflow"
	key, err := crypto.PadTruncateDeriver{}.DeriveKey(long)
	require.NoError(t, err)
	require.Len(t, key, 32)
	require.Equal(t, []byte(long[:32]), key)

	key, err = crypto.PadTruncateDeriver{}.DeriveKey("abc")
	require.NoError(t, err)
	require.Len(t, key, 32)
	require.Equal(t, byte(0), key[31])

	h1, err := crypto.HKDFDeriver{Info: "x"}.DeriveKey("abc")
	require.NoError(t, err)
	h2, err := crypto.HKDFDeriver{Info: "y"}.DeriveKey("abc")
	require.NoError(t, err)
	require.Len(t, h1, 32)
	require.NotEqual(t, h1, h2)

	_, err = crypto.NewKeyDeriver("kms")
	require.Error(t, err)

	d, err := crypto.NewKeyDeriver("hkdf")
	require.NoError(t, err)
	c, err := crypto.NewSecretCipher("abc", d)
	require.NoError(t, err)
	enc, err := c.EncryptString("999999")
	require.NoError(t, err)
	dec, err := c.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "999999", dec)
}

func TestPadTruncateDeriver_EmptySecret(t *testing.T) {
	_, err := crypto.NewSecretCipher("", nil)
	require.Error(t, err)
}
