// Package vault encrypts secret strings with a key supplied once per process.
//
// Ciphertext is AES-256-GCM with a fresh random 96-bit nonce prepended, encoded
// as standard base64. The empty string encrypts to the empty string.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// KeySize is the required key length in bytes.
const KeySize = 32

// nonceSize is the GCM standard nonce length.
const nonceSize = 12

// Errors returned by the vault.
var (
	// ErrKeyAlreadySet is returned when a key is supplied to an unlocked vault.
	// The process must be restarted to use a different key.
	ErrKeyAlreadySet = errors.New("encryption key already initialized; restart required to change it")
	// ErrLocked is returned when encrypting or decrypting before a key is set.
	ErrLocked = errors.New("encryption key not initialized")
	// ErrInvalidKeySize is returned for keys that are not KeySize bytes long.
	ErrInvalidKeySize = errors.New("invalid encryption key size")
	// ErrEmptyPassphrase is returned when unlocking with an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	// ErrCiphertextTooShort is returned for input shorter than a nonce.
	ErrCiphertextTooShort = errors.New("invalid encrypted data")
	// ErrDecryptFailed is returned when authentication fails, usually because of a wrong key.
	ErrDecryptFailed = errors.New("decryption failed")
	// ErrInvalidPlaintext is returned when encrypting a string that is not valid UTF-8.
	ErrInvalidPlaintext = errors.New("secret is not valid UTF-8")
)

// Vault holds the process encryption key. The zero value is locked.
type Vault struct {
	mu   sync.RWMutex
	aead cipher.AEAD
}

// New returns a locked vault.
func New() *Vault {
	return &Vault{}
}

// DeriveKey turns an operator passphrase into a key with SHA-256.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))

	return sum[:]
}

// SetKey installs the encryption key. It succeeds once per vault.
func (v *Vault) SetKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead != nil {
		return ErrKeyAlreadySet
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	v.aead = aead

	logrus.Debug("Vault unlocked")

	return nil
}

// Unlock derives a key from passphrase and installs it.
func (v *Vault) Unlock(passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}

	return v.SetKey(DeriveKey(passphrase))
}

// Unlocked reports whether a key has been set.
func (v *Vault) Unlocked() bool {
	if v == nil {
		return false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.aead != nil
}

func (v *Vault) cipher() (cipher.AEAD, error) {
	if v == nil {
		return nil, ErrLocked
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return nil, ErrLocked
	}

	return v.aead, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
// Plaintext must be valid UTF-8 so that Decrypt can return it.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	if !utf8.ValidString(plaintext) {
		return "", ErrInvalidPlaintext
	}

	aead, err := v.cipher()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Corrupt input or a wrong key yields an error,
// never garbage plaintext.
func (v *Vault) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	aead, err := v.cipher()
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryptFailed)
	}

	return string(plaintext), nil
}
