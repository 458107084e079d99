package wdcrypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matjazt/svcwatchdog/internal/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	h := New()
	require.NoError(t, h.Configure(config.New(), "", "SuperSecretPassword"))

	cipherText, err := h.Encrypt("Hahaha")
	require.NoError(t, err)
	assert.NotEmpty(t, cipherText)

	plain, err := h.Decrypt(cipherText)
	require.NoError(t, err)
	assert.Equal(t, "Hahaha", plain)
}

func TestOperationsBeforeConfigureFail(t *testing.T) {
	h := New()
	_, err := h.Encrypt("x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = h.Decrypt("eA==")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfigurePrefersPasswordFile(t *testing.T) {
	dir := t.TempDir()
	pwPath := filepath.Join(dir, "pw.txt")
	require.NoError(t, os.WriteFile(pwPath, []byte("  file-password-value \r\n"), 0o600))

	cfgPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"crypto": {"passwordFile": "`+pwPath+`"}}`), 0o644))

	store := config.New()
	require.NoError(t, store.Load(cfgPath))

	fromFile := New()
	require.NoError(t, fromFile.Configure(store, "crypto", "unused-default"))

	fromLiteral := New()
	require.NoError(t, fromLiteral.Configure(config.New(), "", "file-password-value"))

	cipherText, err := fromLiteral.Encrypt("hello")
	require.NoError(t, err)

	plain, err := fromFile.Decrypt(cipherText)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)
}

func TestConfigureFallsBackToDefaultOnTooShortPasswordFile(t *testing.T) {
	dir := t.TempDir()
	pwPath := filepath.Join(dir, "pw.txt")
	require.NoError(t, os.WriteFile(pwPath, []byte("short"), 0o600))

	cfgPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"crypto": {"passwordFile": "`+pwPath+`"}}`), 0o644))

	store := config.New()
	require.NoError(t, store.Load(cfgPath))

	h := New()
	require.NoError(t, h.Configure(store, "crypto", "fallback-default-password"))

	fromLiteral := New()
	require.NoError(t, fromLiteral.Configure(config.New(), "", "fallback-default-password"))

	cipherText, err := fromLiteral.Encrypt("hello")
	require.NoError(t, err)

	plain, err := h.Decrypt(cipherText)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)
}

func TestGetPossiblyEncryptedPassesThroughPlainValue(t *testing.T) {
	h := New()
	require.NoError(t, h.Configure(config.New(), "", "SuperSecretPassword"))

	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{"mail": {"password": "not-actually-encrypted"}}`)))

	var warned bool
	got := h.GetPossiblyEncrypted(store, "mail", "password", "def", func(format string, args ...any) {
		warned = true
	})
	assert.Equal(t, "not-actually-encrypted", got)
	assert.True(t, warned)
}

func TestGetPossiblyEncryptedDecryptsStoredValue(t *testing.T) {
	h := New()
	require.NoError(t, h.Configure(config.New(), "", "SuperSecretPassword"))

	cipherText, err := h.Encrypt("s3cret!")
	require.NoError(t, err)

	store := config.New()
	require.NoError(t, store.LoadJSON([]byte(`{"mail": {"password": "`+cipherText+`"}}`)))

	var warned bool
	got := h.GetPossiblyEncrypted(store, "mail", "password", "def", func(format string, args ...any) {
		warned = true
	})
	assert.Equal(t, "s3cret!", got)
	assert.False(t, warned)
}

func TestGetPossiblyEncryptedEmptyReturnsDefault(t *testing.T) {
	h := New()
	require.NoError(t, h.Configure(config.New(), "", "SuperSecretPassword"))

	store := config.New()
	got := h.GetPossiblyEncrypted(store, "mail", "password", "the-default", nil)
	assert.Equal(t, "the-default", got)
}
