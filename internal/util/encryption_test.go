package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

const vapiSecretName = "tenant/org_abc123/vapi"

func TestEncryptDecrypt(t *testing.T) {
	t.Run("round trips plaintext", func(t *testing.T) {
		ciphertext, err := Encrypt(testKey, `{"publicApiKey":"pk","privateApiKey":"sk"}`, vapiSecretName)
		require.NoError(t, err)
		assert.NotContains(t, ciphertext, "privateApiKey")

		plaintext, err := Decrypt(testKey, ciphertext, vapiSecretName)
		require.NoError(t, err)
		assert.Equal(t, `{"publicApiKey":"pk","privateApiKey":"sk"}`, plaintext)
	})

	t.Run("uses a fresh nonce per call", func(t *testing.T) {
		a, err := Encrypt(testKey, "same", vapiSecretName)
		require.NoError(t, err)
		b, err := Encrypt(testKey, "same", vapiSecretName)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := Encrypt("abcd", "data", vapiSecretName)
		assert.Error(t, err)
	})

	t.Run("fails with the wrong key", func(t *testing.T) {
		ciphertext, err := Encrypt(testKey, "data", vapiSecretName)
		require.NoError(t, err)

		other := "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
		_, err = Decrypt(other, ciphertext, vapiSecretName)
		assert.Error(t, err)
	})

	t.Run("ciphertext is bound to its secret name", func(t *testing.T) {
		ciphertext, err := Encrypt(testKey, "data", vapiSecretName)
		require.NoError(t, err)

		_, err = Decrypt(testKey, ciphertext, "tenant/org_other/vapi")
		assert.Error(t, err)
	})

	t.Run("rejects truncated ciphertext", func(t *testing.T) {
		_, err := Decrypt(testKey, base64.StdEncoding.EncodeToString([]byte("short")), vapiSecretName)
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})
}
