package aesgcm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := e.Encrypt("https://hooks.example.com/T000/B000/secret")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "example.com")

	plaintext, err := e.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/T000/B000/secret", plaintext)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := e.Encrypt("same input")
	require.NoError(t, err)
	b, err := e.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)
	other, err := NewEncryptor(strings.Repeat("ab", 32))
	require.NoError(t, err)

	ciphertext, err := e.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = e.Decrypt("deadbeef")
	assert.Error(t, err)

	_, err = e.Decrypt("not hex at all")
	assert.Error(t, err)
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	_, err := NewEncryptor("abcd")
	assert.Error(t, err)

	_, err = NewEncryptor("zz")
	assert.Error(t, err)
}
