package storage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/pkg/types"
)

// Errors returned by Registries.
var (
	ErrRegistryNotFound = errors.New("registry not found")
	ErrDuplicateName    = errors.New("registry name already in use")
	ErrEmptyName        = errors.New("registry name must not be empty")
	ErrEmptyURL         = errors.New("registry URL must not be empty")
)

// Registries is the in-memory registry catalog. Every mutation is written
// through the Service before it returns.
type Registries struct {
	mu      sync.Mutex
	service *Service
	items   []types.RegistryConfig
}

// Registries loads the catalog from the service.
func (s *Service) Registries() (*Registries, error) {
	items, err := s.LoadRegistries()
	if err != nil {
		return nil, err
	}

	return &Registries{service: s, items: items}, nil
}

// List returns a copy of the catalog in insertion order.
func (r *Registries) List() []types.RegistryConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.items)
}

// Len returns the number of registries.
func (r *Registries) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.items)
}

// Get returns the registry with the given id.
func (r *Registries) Get(id string) (types.RegistryConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(id); i >= 0 {
		return r.items[i], true
	}

	return types.RegistryConfig{}, false
}

// Find resolves a registry by id, then by case-insensitive name.
func (r *Registries) Find(idOrName string) (types.RegistryConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(idOrName); i >= 0 {
		return r.items[i], nil
	}

	for _, item := range r.items {
		if strings.EqualFold(item.Name, idOrName) {
			return item, nil
		}
	}

	return types.RegistryConfig{}, fmt.Errorf("%w: %s", ErrRegistryNotFound, idOrName)
}

// Add creates a registry with a fresh id and persists the catalog.
func (r *Registries) Add(name, url string, auth types.AuthConfig) (types.RegistryConfig, error) {
	if err := validate(name, url); err != nil {
		return types.RegistryConfig{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(name, "") {
		return types.RegistryConfig{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	registry := types.NewRegistryConfig(name, url, auth)

	if err := r.persist(append(slices.Clone(r.items), registry)); err != nil {
		return types.RegistryConfig{}, err
	}

	logrus.WithFields(logrus.Fields{
		"registry": registry.Name,
		"url":      registry.URL,
		"auth":     registry.Auth.Describe(),
	}).Info("Added registry")

	return registry, nil
}

// Update replaces the registry with the same id. The id itself never changes.
func (r *Registries) Update(registry types.RegistryConfig) error {
	if err := validate(registry.Name, registry.URL); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(registry.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRegistryNotFound, registry.ID)
	}

	if r.nameTaken(registry.Name, registry.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, registry.Name)
	}

	registry.URL = types.NormalizeURL(registry.URL)

	items := slices.Clone(r.items)
	items[i] = registry

	if err := r.persist(items); err != nil {
		return err
	}

	logrus.WithField("registry", registry.Name).Info("Updated registry")

	return nil
}

// Delete removes the registry with the given id.
func (r *Registries) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRegistryNotFound, id)
	}

	name := r.items[i].Name

	if err := r.persist(slices.Delete(slices.Clone(r.items), i, i+1)); err != nil {
		return err
	}

	logrus.WithField("registry", name).Info("Removed registry")

	return nil
}

// Import appends imported registries. Entries whose id is already present get
// a new id; entries whose name is taken are skipped. It returns the added entries.
func (r *Registries) Import(imported []types.RegistryConfig) ([]types.RegistryConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := slices.Clone(r.items)
	added := make([]types.RegistryConfig, 0, len(imported))

	for _, registry := range imported {
		if validate(registry.Name, registry.URL) != nil {
			logrus.WithField("registry", registry.Name).Warn("Skipping incomplete registry")

			continue
		}

		if slices.ContainsFunc(items, func(item types.RegistryConfig) bool {
			return strings.EqualFold(item.Name, registry.Name)
		}) {
			logrus.WithField("registry", registry.Name).Warn("Skipping registry with duplicate name")

			continue
		}

		if registry.ID == "" || slices.ContainsFunc(items, func(item types.RegistryConfig) bool {
			return item.ID == registry.ID
		}) {
			registry.ID = uuid.NewString()
		}

		registry.URL = types.NormalizeURL(registry.URL)
		items = append(items, registry)
		added = append(added, registry)
	}

	if len(added) == 0 {
		return added, nil
	}

	if err := r.persist(items); err != nil {
		return nil, err
	}

	return added, nil
}

// SetStatus records the last observed connection state. It is not persisted.
func (r *Registries) SetStatus(id string, status types.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(id); i >= 0 {
		r.items[i].Status = status
	}
}

func (r *Registries) persist(items []types.RegistryConfig) error {
	if err := r.service.SaveRegistries(items); err != nil {
		return err
	}

	r.items = items

	return nil
}

func (r *Registries) index(id string) int {
	return slices.IndexFunc(r.items, func(item types.RegistryConfig) bool {
		return item.ID == id
	})
}

func (r *Registries) nameTaken(name, exceptID string) bool {
	return slices.ContainsFunc(r.items, func(item types.RegistryConfig) bool {
		return item.ID != exceptID && strings.EqualFold(item.Name, name)
	})
}

func validate(name, url string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}

	return nil
}
