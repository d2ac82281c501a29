package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/pkg/types"
	"github.com/nicholas-fedor/regman/pkg/vault"
)

// Record keys.
const (
	RegistriesKey  = "registries"
	ThemeKey       = "theme"
	CacheConfigKey = "cache_config"
	VerifierKey    = "verifier"
)

// verifierText is sealed under the vault key on the first save, so a wrong
// passphrase is caught even when no registry holds a secret.
const verifierText = "regman"


// Service reads and writes the persisted records through an Adapter, sealing
// registry secrets with the vault on the way in and opening them on the way out.
type Service struct {
	adapter Adapter
	vault   *vault.Vault
}

// NewService binds an adapter and an unlocked vault. A nil or locked vault is
// accepted; any operation that touches a secret then fails with vault.ErrLocked.
func NewService(adapter Adapter, v *vault.Vault) *Service {
	return &Service{adapter: adapter, vault: v}
}

// Adapter returns the underlying key-value store.
func (s *Service) Adapter() Adapter {
	return s.adapter
}

// HasConfig reports whether a registry list has ever been saved.
func (s *Service) HasConfig() bool {
	_, found, err := s.adapter.Retrieve(RegistriesKey)

	return err == nil && found
}

// SaveRegistries encrypts every secret and writes the list.
func (s *Service) SaveRegistries(registries []types.RegistryConfig) error {
	sealed := make([]types.RegistryConfig, len(registries))

	for i, registry := range registries {
		auth, err := s.seal(registry.Auth)
		if err != nil {
			return newError(KindEncryption, RegistriesKey, fmt.Errorf("registry %q: %w", registry.Name, err))
		}

		registry.Auth = auth
		sealed[i] = registry
	}

	if err := s.storeJSON(RegistriesKey, sealed); err != nil {
		return err
	}

	if err := s.ensureVerifier(); err != nil {
		return err
	}

	logrus.WithField("count", len(sealed)).Debug("Saved registries")

	return nil
}

// LoadRegistries reads and decrypts the registry list. A missing record yields
// an empty list. A decryption failure is reported as ErrIncorrectPassphrase so
// it is never mistaken for an empty configuration.
func (s *Service) LoadRegistries() ([]types.RegistryConfig, error) {
	var registries []types.RegistryConfig

	found, err := s.loadJSON(RegistriesKey, &registries)
	if err != nil {
		return nil, err
	}

	if !found || registries == nil {
		return []types.RegistryConfig{}, nil
	}

	for i := range registries {
		auth, err := s.open(registries[i].Auth)
		if err != nil {
			return nil, newError(KindEncryption, RegistriesKey, fmt.Errorf("%w: %w", ErrIncorrectPassphrase, err))
		}

		registries[i].Auth = auth
	}

	logrus.WithField("count", len(registries)).Debug("Loaded registries")

	return registries, nil
}

// Verify checks that the verifier record and the stored secrets open with
// the current key.
func (s *Service) Verify() error {
	var sealed string

	found, err := s.loadJSON(VerifierKey, &sealed)
	if err != nil {
		return err
	}

	if found {
		plaintext, err := s.decrypt(sealed)
		if err != nil {
			return newError(KindEncryption, VerifierKey, fmt.Errorf("%w: %w", ErrIncorrectPassphrase, err))
		}

		if plaintext != verifierText {
			return newError(KindEncryption, VerifierKey, ErrIncorrectPassphrase)
		}
	}

	if !s.HasConfig() {
		return nil
	}

	_, err = s.LoadRegistries()

	return err
}

// SaveTheme stores the theme preference.
func (s *Service) SaveTheme(theme types.Theme) error {
	return s.storeJSON(ThemeKey, theme)
}

// LoadTheme returns the stored theme, or the default when none is stored.
func (s *Service) LoadTheme() (types.Theme, error) {
	var theme types.Theme

	found, err := s.loadJSON(ThemeKey, &theme)
	if err != nil {
		return types.DefaultTheme, err
	}

	if !found {
		return types.DefaultTheme, nil
	}

	return theme, nil
}

// SaveCacheConfig stores the cache policy.
func (s *Service) SaveCacheConfig(config types.CacheConfig) error {
	return s.storeJSON(CacheConfigKey, config)
}

// LoadCacheConfig returns the stored cache policy, or the default when none is stored.
func (s *Service) LoadCacheConfig() (types.CacheConfig, error) {
	config := types.DefaultCacheConfig()

	found, err := s.loadJSON(CacheConfigKey, &config)
	if err != nil {
		return types.DefaultCacheConfig(), err
	}

	if !found {
		return types.DefaultCacheConfig(), nil
	}

	return config, nil
}

// ClearAll removes every record.
func (s *Service) ClearAll() error {
	if err := s.adapter.Clear(); err != nil {
		return err
	}

	logrus.Info("Cleared all stored configuration")

	return nil
}

// ensureVerifier writes the verifier record once. A locked vault writes none.
func (s *Service) ensureVerifier() error {
	if !s.vault.Unlocked() {
		return nil
	}

	if _, found, err := s.adapter.Retrieve(VerifierKey); err != nil || found {
		return err
	}

	sealed, err := s.vault.Encrypt(verifierText)
	if err != nil {
		return newError(KindEncryption, VerifierKey, err)
	}

	return s.storeJSON(VerifierKey, sealed)
}

func (s *Service) storeJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return newError(KindSerialization, key, err)
	}

	return s.adapter.Store(key, data)
}

func (s *Service) loadJSON(key string, value any) (bool, error) {
	data, found, err := s.adapter.Retrieve(key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return false, newError(KindSerialization, key, err)
	}

	return true, nil
}

// seal moves plaintext secrets into their encrypted fields. Secrets that are
// already encrypted and have no plaintext are kept as they are.
func (s *Service) seal(auth types.AuthConfig) (types.AuthConfig, error) {
	var err error

	if auth.Password != "" {
		if auth.EncryptedPassword, err = s.encrypt(auth.Password); err != nil {
			return auth, err
		}

		auth.Password = ""
	}

	if auth.Token != "" {
		if auth.EncryptedToken, err = s.encrypt(auth.Token); err != nil {
			return auth, err
		}

		auth.Token = ""
	}

	return auth, nil
}

// open is the inverse of seal. Records without an encrypted field pass through.
func (s *Service) open(auth types.AuthConfig) (types.AuthConfig, error) {
	var err error

	if auth.EncryptedPassword != "" {
		if auth.Password, err = s.decrypt(auth.EncryptedPassword); err != nil {
			return auth, err
		}

		auth.EncryptedPassword = ""
	}

	if auth.EncryptedToken != "" {
		if auth.Token, err = s.decrypt(auth.EncryptedToken); err != nil {
			return auth, err
		}

		auth.EncryptedToken = ""
	}

	return auth, nil
}

func (s *Service) encrypt(plaintext string) (string, error) {
	if !s.vault.Unlocked() {
		return "", vault.ErrLocked
	}

	return s.vault.Encrypt(plaintext)
}

func (s *Service) decrypt(ciphertext string) (string, error) {
	if !s.vault.Unlocked() {
		return "", vault.ErrLocked
	}

	return s.vault.Decrypt(ciphertext)
}

// IsIncorrectPassphrase reports whether err came from opening secrets with the wrong key.
func IsIncorrectPassphrase(err error) bool {
	return errors.Is(err, ErrIncorrectPassphrase)
}
