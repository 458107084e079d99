// Package wdcrypto implements the small AES-256-CBC/PBKDF2 helper used to
// keep secrets such as SMTP passwords out of plain text in the
// configuration file, wire-compatible with
// "openssl enc -aes-256-cbc -pbkdf2 -nosalt".
package wdcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/matjazt/svcwatchdog/internal/config"
	"github.com/matjazt/svcwatchdog/internal/logging"
)

// ErrNotConfigured is returned by Encrypt/Decrypt when Configure has not
// been called yet; it is a programming error, not an operational one.
var ErrNotConfigured = errors.New("wdcrypto: helper not configured")

const (
	pbkdf2Iterations = 10000
	keyIvLength      = 48 // 32-byte key + 16-byte IV
	minPasswordLen   = 12
)

// Helper derives a key and IV from a password once, via Configure, and
// reuses them for every subsequent Encrypt/Decrypt call. It is not
// reconfigurable mid-flight by design; a fresh Helper is cheap to build.
type Helper struct {
	keyAndIV []byte // nil until Configure succeeds
}

// New returns an unconfigured Helper.
func New() *Helper {
	return &Helper{}
}

// Configure derives the working key and IV. Password resolution order:
// (1) the ASCII-visible contents of the file named by section's
// "passwordFile" key, if present and at least minPasswordLen bytes
// survive the filter, else (2) defaultPassword. section may be empty, in
// which case only defaultPassword is used. A passwordFile that can't be
// read, or that filters down to too few characters, is not fatal: it is
// logged at error level and discarded in favor of defaultPassword,
// matching the original watchdog's CryptoTools::Configure.
func (h *Helper) Configure(cfg *config.Store, section, defaultPassword string) error {
	password := ""
	if section != "" {
		passwordFile := cfg.GetString(section, "passwordFile", "")
		if passwordFile != "" {
			loaded, err := loadFilteredPassword(passwordFile)
			if err != nil {
				if l := logging.Current(); l != nil {
					l.Msg(logging.LevelError, "wdcrypto: unable to load password file '%s': %v", passwordFile, err)
				}
			} else {
				password = loaded
			}
		}
	}
	if password == "" {
		password = defaultPassword
	}

	h.keyAndIV = pbkdf2.Key([]byte(password), nil, pbkdf2Iterations, keyIvLength, sha256.New)
	return nil
}

// loadFilteredPassword reads path and keeps only bytes strictly greater
// than 0x20 (ASCII space), discarding newlines, tabs, and other
// whitespace that editors like to append. It requires at least
// minPasswordLen surviving bytes, matching the original watchdog's
// "at least 12 characters" rule.
func loadFilteredPassword(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	filtered := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b > ' ' {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) < minPasswordLen {
		return "", fmt.Errorf("password file yields only %d usable characters, at least %d required", len(filtered), minPasswordLen)
	}
	return string(filtered), nil
}

func (h *Helper) keyAndIv() (key, iv []byte, err error) {
	if h.keyAndIV == nil {
		return nil, nil, ErrNotConfigured
	}
	return h.keyAndIV[:32], h.keyAndIV[32:], nil
}

// Encrypt returns the base64-encoded AES-256-CBC/PKCS7 ciphertext of
// plainText.
func (h *Helper) Encrypt(plainText string) (string, error) {
	key, iv, err := h.keyAndIv()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("wdcrypto: %w", err)
	}

	padded := pkcs7Pad([]byte(plainText), block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (h *Helper) Decrypt(base64CipherText string) (string, error) {
	key, iv, err := h.keyAndIv()
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(base64CipherText)
	if err != nil {
		return "", fmt.Errorf("wdcrypto: invalid base64 ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("wdcrypto: ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("wdcrypto: %w", err)
	}

	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)

	plain, err := pkcs7Unpad(plainPadded, block.BlockSize())
	if err != nil {
		return "", fmt.Errorf("wdcrypto: %w", err)
	}
	return string(plain), nil
}

// GetPossiblyEncrypted reads cfg[section][key] and tries to decrypt it. If
// decryption fails, the value is assumed to already be plain text: it is
// returned as-is, with a warning logged (via warnf) plus an information
// line (via the current global logger) giving the encrypted form the
// operator should store instead. An empty value returns def without
// attempting decryption.
func (h *Helper) GetPossiblyEncrypted(cfg *config.Store, section, key, def string, warnf func(format string, args ...any)) string {
	raw := cfg.GetString(section, key, "")
	if raw == "" {
		return def
	}

	plain, err := h.Decrypt(raw)
	if err == nil {
		return plain
	}

	suggestion, encErr := h.Encrypt(raw)
	if encErr != nil {
		suggestion = "<unavailable: " + encErr.Error() + ">"
	}
	if warnf != nil {
		warnf("config value '%s.%s' does not look encrypted", section, key)
	}
	if l := logging.Current(); l != nil {
		l.Msg(logging.LevelInformation, "encrypted form of '%s.%s' would be %q", section, key, suggestion)
	}
	return raw
}
