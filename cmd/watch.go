package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/regman/internal/actions"
	apiPkg "github.com/nicholas-fedor/regman/internal/api"
	"github.com/nicholas-fedor/regman/internal/flags"
	"github.com/nicholas-fedor/regman/internal/logging"
	"github.com/nicholas-fedor/regman/internal/meta"
	"github.com/nicholas-fedor/regman/internal/scheduling"
	"github.com/nicholas-fedor/regman/internal/util"
	"github.com/nicholas-fedor/regman/pkg/api/registries"
	"github.com/nicholas-fedor/regman/pkg/cache"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// watcher is the state shared by watch and serve.
type watcher struct {
	*app

	interval uint64
	store    *cache.Store
	metrics  *metrics.Metrics
	lock     chan bool
}

func newWatcher(c *cobra.Command) (*watcher, error) {
	a, err := openApp(c)
	if err != nil {
		return nil, err
	}

	cacheConfig, err := a.service.LoadCacheConfig()
	if err != nil {
		return nil, err
	}

	interval := cacheConfig.RefreshInterval
	if c.Flags().Changed("interval") || interval == 0 {
		interval, _ = c.Flags().GetUint64("interval")
	}

	lock := make(chan bool, 1)
	lock <- true

	return &watcher{
		app:      a,
		interval: interval,
		store:    cache.NewStore(cacheConfig.MaxAge),
		metrics:  metrics.Default(),
		lock:     lock,
	}, nil
}

func (r *watcher) registryClient(config types.RegistryConfig) (*registry.Client, error) {
	return r.client(config, registry.WithMetrics(r.metrics))
}

// refresh pings every registry, caches its catalog and records the status.
func (r *watcher) refresh(ctx context.Context) []actions.RefreshResult {
	results := actions.RefreshRegistries(ctx, r.registries.List(),
		func(config types.RegistryConfig) (actions.CatalogClient, error) {
			return r.registryClient(config)
		},
		r.store, r.metrics)

	for _, result := range results {
		r.registries.SetStatus(result.RegistryID, result.Status)
	}

	return results
}

func (r *watcher) startupInfo(nextRun time.Time, apiAddr string, withMetrics bool) logging.StartupInfo {
	return logging.StartupInfo{
		Version:    meta.Version,
		DataDir:    r.dataDir,
		Registries: r.registries.Len(),
		NextRun:    nextRun,
		APIAddr:    apiAddr,
		Metrics:    withMetrics,
	}
}

func (r *watcher) close() {
	r.store.Close()
}

func newWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh registry status and catalogs on a schedule",
		Long: `Refresh registry status and catalogs on a schedule.

The interval comes from --interval or the stored cache settings.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			r, err := newWatcher(c)
			if err != nil {
				return err
			}
			defer r.close()

			refreshOnStart, _ := c.Flags().GetBool("refresh-on-start")

			return scheduling.RunRefreshOnSchedule(
				c.Context(),
				r.interval,
				r.lock,
				func(ctx context.Context) { r.refresh(ctx) },
				func(nextRun time.Time) {
					logging.WriteStartupMessage(c, r.startupInfo(nextRun, "", false))
				},
				refreshOnStart,
			)
		},
	}

	flags.RegisterWatchFlags(watchCmd)

	return watchCmd
}

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API, refreshing registries on a schedule when an interval is set.

Every request needs "Authorization: Bearer TOKEN". Without --http-api-token a
random token is generated and printed at startup.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	flags.RegisterAPIFlags(serveCmd)
	flags.RegisterWatchFlags(serveCmd)

	return serveCmd
}

func runServe(c *cobra.Command, _ []string) error {
	r, err := newWatcher(c)
	if err != nil {
		return err
	}
	defer r.close()

	f := c.Flags()
	host, _ := f.GetString("http-api-host")
	port, _ := f.GetString("http-api-port")
	token, _ := f.GetString("http-api-token")
	withMetrics, _ := f.GetBool("http-api-metrics")
	refreshOnStart, _ := f.GetBool("refresh-on-start")

	if token == "" {
		token = util.GenerateToken()
		_, _ = fmt.Fprintf(c.ErrOrStderr(), "Generated HTTP API token: %s\n", token)
	}

	opts := apiPkg.Options{
		Host:    host,
		Port:    port,
		Token:   token,
		Metrics: withMetrics,
		Block:   r.interval == 0,
	}

	services := apiPkg.Services{
		Catalog: r.registries,
		NewClient: func(config types.RegistryConfig) (registries.Client, error) {
			return r.registryClient(config)
		},
		Store:    r.store,
		Metrics:  r.metrics,
		Gatherer: prometheus.DefaultGatherer,
		Refresh:  r.refresh,
		Lock:     r.lock,
	}

	addr := apiPkg.GetAPIAddr(host, port)

	if opts.Block {
		logging.WriteStartupMessage(c, r.startupInfo(time.Time{}, addr, withMetrics))

		if refreshOnStart {
			r.refresh(c.Context())
		}

		return apiPkg.SetupAndStartAPI(c.Context(), opts, services)
	}

	if err := apiPkg.SetupAndStartAPI(c.Context(), opts, services); err != nil {
		return err
	}

	err = scheduling.RunRefreshOnSchedule(
		c.Context(),
		r.interval,
		r.lock,
		func(ctx context.Context) { r.refresh(ctx) },
		func(nextRun time.Time) {
			logging.WriteStartupMessage(c, r.startupInfo(nextRun, addr, withMetrics))
		},
		refreshOnStart,
	)
	if errors.Is(err, scheduling.ErrRefreshDisabled) {
		logrus.Debug("Scheduled refresh disabled")

		return nil
	}

	return err
}
