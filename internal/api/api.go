// Package api wires regman's registry operations into the HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/pkg/api"
	metricsAPI "github.com/nicholas-fedor/regman/pkg/api/metrics"
	"github.com/nicholas-fedor/regman/pkg/api/refresh"
	"github.com/nicholas-fedor/regman/pkg/api/registries"
	"github.com/nicholas-fedor/regman/pkg/cache"
	"github.com/nicholas-fedor/regman/pkg/metrics"
)

// Options selects what the HTTP API serves and where.
type Options struct {
	Host    string
	Port    string
	Token   string
	Metrics bool
	// Block runs the server in the foreground until the context ends.
	Block bool
}

// Services are the components behind the API routes.
type Services struct {
	Catalog   registries.Catalog
	NewClient registries.ClientFactory
	Store     *cache.Store
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	// Refresh, when set, is exposed as POST /v1/refresh.
	Refresh func(ctx context.Context) []actions.RefreshResult
	// Lock serializes refreshes and deletions with the scheduler.
	Lock chan bool
}

// GetAPIAddr formats the API address string based on host and port.
func GetAPIAddr(host, port string) string {
	return net.JoinHostPort(host, port)
}

// SetupAndStartAPI registers the registry, refresh and metrics routes and
// starts the HTTP API.
//
// Parameters:
//   - ctx: The context controlling the API's lifecycle, enabling graceful shutdown on cancellation.
//   - opts: Address, token and enabled routes.
//   - services: Components backing the routes.
//   - server: Optional injected server for testing.
//
// Returns:
//   - error: An error if the API fails to start (excluding clean shutdown), nil otherwise.
func SetupAndStartAPI(ctx context.Context, opts Options, services Services, server ...api.HTTPServer) error {
	address := GetAPIAddr(opts.Host, opts.Port)

	httpAPI := api.New(opts.Token, address, server...)

	lock := services.Lock
	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true
	}

	if services.Catalog != nil && services.NewClient != nil {
		registries.New(
			services.Catalog,
			services.NewClient,
			services.Store,
			services.Metrics,
			lock,
		).Register(httpAPI)
	}

	if services.Refresh != nil {
		refreshHandler := refresh.New(services.Refresh, lock)
		httpAPI.RegisterFunc(http.MethodPost+" "+refreshHandler.Path, refreshHandler.Handle)
	}

	if opts.Metrics {
		metricsHandler := metricsAPI.New(services.Gatherer)
		httpAPI.RegisterHandler(http.MethodGet+" "+metricsHandler.Path, metricsHandler.Handle)
	}

	if err := httpAPI.Start(ctx, opts.Block); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("Failed to start API")

		return fmt.Errorf("failed to start HTTP API: %w", err)
	}

	return nil
}
