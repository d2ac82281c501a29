package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/pkg/cache"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// CatalogClient is the part of the registry client a refresh needs.
type CatalogClient interface {
	Ping(ctx context.Context) (*auth.Challenge, error)
	Repositories(ctx context.Context) ([]string, error)
}

// ClientFactory builds a client for a configured registry.
type ClientFactory func(config types.RegistryConfig) (CatalogClient, error)

// RefreshResult is the outcome of refreshing one registry.
type RefreshResult struct {
	RegistryID   string                 `json:"registry_id"`
	Name         string                 `json:"name"`
	Status       types.ConnectionStatus `json:"status"`
	Repositories int                    `json:"repositories"`
	Cached       bool                   `json:"cached"`
}

// RefreshRegistries pings every registry and, when it answers, stores its
// repository list in the cache. Registries are processed in order and a failure
// of one never stops the others.
func RefreshRegistries(
	ctx context.Context,
	registries []types.RegistryConfig,
	newClient ClientFactory,
	store *cache.Store,
	m *metrics.Metrics,
) []RefreshResult {
	results := make([]RefreshResult, 0, len(registries))

	for _, config := range registries {
		result := refreshRegistry(ctx, config, newClient, store)
		m.SetRegistryUp(config.Name, result.Status.State == types.StateConnected)

		results = append(results, result)
	}

	return results
}

func refreshRegistry(
	ctx context.Context,
	config types.RegistryConfig,
	newClient ClientFactory,
	store *cache.Store,
) RefreshResult {
	result := RefreshResult{RegistryID: config.ID, Name: config.Name}
	fields := logrus.Fields{"registry": config.Name, "url": config.URL}

	client, err := newClient(config)
	if err != nil {
		result.Status = ConnectionStatusOf(fmt.Errorf("%w: %w", errClientSetup, err))
		logrus.WithFields(fields).WithError(err).Warn("Skipping registry")

		return result
	}

	challenge, err := client.Ping(ctx)
	result.Status = ConnectionStatusOf(err)

	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Registry ping failed")

		return result
	}

	if challenge != nil {
		fields["challenge"] = challenge.Scheme
	}

	repositories, err := client.Repositories(ctx)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Failed to refresh catalog")

		return result
	}

	result.Repositories = len(repositories)

	if store != nil {
		cache.Put(store, config.ID, cache.CatalogKind, repositories)

		result.Cached = true
	}

	fields["repositories"] = len(repositories)
	logrus.WithFields(fields).Debug("Refreshed registry")

	return result
}

// ConnectionStatusOf maps a ping outcome to a connection status. A registry
// that answers with an authentication challenge is reachable and therefore
// connected; transport failures mean disconnected; anything else is an error.
func ConnectionStatusOf(err error) types.ConnectionStatus {
	switch {
	case err == nil:
		return types.ConnectionStatus{State: types.StateConnected}
	case errors.Is(err, registry.ErrNetwork):
		return types.ConnectionStatus{State: types.StateDisconnected}
	default:
		return types.ConnectionStatus{State: types.StateError, Message: err.Error()}
	}
}
