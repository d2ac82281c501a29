// Package registries provides HTTP API handlers for browsing and pruning configured registries.
package registries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/pkg/api"
	"github.com/nicholas-fedor/regman/pkg/cache"
	"github.com/nicholas-fedor/regman/pkg/filters"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/registry/helpers"
	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// Path is the base path of the registry endpoints.
const Path = "/v1/registries"

// maxDeleteBody caps the size of a delete request document.
const maxDeleteBody = 1 << 20

// Errors returned to API callers.
var (
	errUnknownRegistry = errors.New("unknown registry")
	errMissingParam    = errors.New("missing query parameter")
	errInvalidBody     = errors.New("invalid request body")
	errDeleteRunning   = errors.New("another deletion is already running")
)

// Client is the part of the registry client the handlers use.
type Client interface {
	Ping(ctx context.Context) (*auth.Challenge, error)
	Repositories(ctx context.Context) ([]string, error)
	Tags(ctx context.Context, repo string) (*types.TagsResponse, error)
	TagDetails(ctx context.Context, repo string, tags []string) ([]types.TagInfo, error)
	Manifest(ctx context.Context, repo, reference string) (*manifest.Manifest, string, error)
	DeleteManifest(ctx context.Context, repo, digest string) error
}

// ClientFactory builds a client for a configured registry.
type ClientFactory func(config types.RegistryConfig) (Client, error)

// Catalog is the registry list the handlers serve.
type Catalog interface {
	List() []types.RegistryConfig
	Get(id string) (types.RegistryConfig, bool)
	SetStatus(id string, status types.ConnectionStatus)
}

// Registry is the credential-free view of a registry.
type Registry struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	URL      string                 `json:"url"`
	AuthType string                 `json:"auth_type"`
	Status   types.ConnectionStatus `json:"status"`
}

// ManifestView is the manifest endpoint's response.
type ManifestView struct {
	Digest    string                `json:"digest"`
	MediaType string                `json:"media_type"`
	Size      uint64                `json:"size"`
	Config    *manifest.Descriptor  `json:"config,omitempty"`
	Layers    []manifest.Descriptor `json:"layers"`
	Manifest  *manifest.Manifest    `json:"manifest"`
}

// DeleteRequest is the body of a delete request.
type DeleteRequest struct {
	Repository string   `json:"repo"`
	Tags       []string `json:"tags"`
}

// Handler serves the registry endpoints.
type Handler struct {
	catalog   Catalog
	newClient ClientFactory
	store     *cache.Store
	metrics   *metrics.Metrics
	lock      chan bool
}

// New creates a registry handler.
//
// Parameters:
//   - catalog: Configured registries.
//   - newClient: Factory for registry clients.
//   - store: Optional cache for catalogs and tag lists.
//   - m: Optional metrics handler receiving deletion tallies.
//   - lock: Optional lock shared with scheduled refreshes; if nil, a new one is created.
//
// Returns:
//   - *Handler: Initialized handler.
func New(catalog Catalog, newClient ClientFactory, store *cache.Store, m *metrics.Metrics, lock chan bool) *Handler {
	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true
	}

	return &Handler{
		catalog:   catalog,
		newClient: newClient,
		store:     store,
		metrics:   m,
		lock:      lock,
	}
}

// Register adds the registry routes to the API.
func (h *Handler) Register(a *api.API) {
	a.RegisterFunc("GET "+Path, h.List)
	a.RegisterFunc("GET "+Path+"/{id}/ping", h.Ping)
	a.RegisterFunc("GET "+Path+"/{id}/catalog", h.Catalog)
	a.RegisterFunc("GET "+Path+"/{id}/tags", h.Tags)
	a.RegisterFunc("GET "+Path+"/{id}/manifest", h.Manifest)
	a.RegisterFunc("POST "+Path+"/{id}/delete", h.Delete)
}

// List returns every configured registry.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	configs := h.catalog.List()

	views := make([]Registry, 0, len(configs))
	for _, config := range configs {
		views = append(views, view(config))
	}

	api.WriteJSON(w, http.StatusOK, views)
}

// Ping checks a registry and records its connection status.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	config, client, ok := h.resolve(w, r)
	if !ok {
		return
	}

	_, err := client.Ping(r.Context())
	status := actions.ConnectionStatusOf(err)

	h.catalog.SetStatus(config.ID, status)
	h.metrics.SetRegistryUp(config.Name, status.State == types.StateConnected)

	config.Status = status
	api.WriteJSON(w, http.StatusOK, view(config))
}

// Catalog lists a registry's repositories, served from the cache while fresh.
// The optional "filter" query parameter narrows the list case-insensitively,
// and "refresh=true" bypasses the cache.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	config, client, ok := h.resolve(w, r)
	if !ok {
		return
	}

	repos, cached, err := h.repositories(r, config, client)
	if err != nil {
		api.WriteError(w, err)

		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"repositories": filters.Sorted(filters.FilterStrings(repos, r.URL.Query().Get("filter"))),
		"cached":       cached,
	})
}

// Tags lists the tags of the "repo" query parameter. With "details=true"
// each tag carries its digest and size.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	config, client, ok := h.resolve(w, r)
	if !ok {
		return
	}

	repo, ok := requireParam(w, r, "repo")
	if !ok {
		return
	}

	if err := helpers.ValidateRepository(repo); err != nil {
		api.WriteErrorStatus(w, http.StatusBadRequest, err)

		return
	}

	tags, err := h.tags(r, config, client, repo)
	if err != nil {
		api.WriteError(w, err)

		return
	}

	tags = filters.Sorted(filters.FilterStrings(tags, r.URL.Query().Get("filter")))

	if details, _ := strconv.ParseBool(r.URL.Query().Get("details")); !details {
		api.WriteJSON(w, http.StatusOK, map[string]any{"name": repo, "tags": tags})

		return
	}

	infos, err := client.TagDetails(r.Context(), repo, tags)
	if err != nil {
		api.WriteError(w, err)

		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"name": repo, "tags": infos})
}

// Manifest returns the manifest of "repo" at "ref".
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	_, client, ok := h.resolve(w, r)
	if !ok {
		return
	}

	repo, ok := requireParam(w, r, "repo")
	if !ok {
		return
	}

	ref, ok := requireParam(w, r, "ref")
	if !ok {
		return
	}

	if err := helpers.ValidateReference(repo, ref); err != nil {
		api.WriteErrorStatus(w, http.StatusBadRequest, err)

		return
	}

	m, digest, err := client.Manifest(r.Context(), repo, ref)
	if err != nil {
		api.WriteError(w, err)

		return
	}

	result := ManifestView{
		Digest:    digest,
		MediaType: m.MediaType(),
		Size:      m.TotalSize(),
		Layers:    m.Layers(),
		Manifest:  m,
	}

	if descriptor, ok := m.Config(); ok {
		result.Config = &descriptor
	}

	api.WriteJSON(w, http.StatusOK, result)
}

// Delete removes the requested tags one at a time and returns the tally.
// Only one deletion runs at a time; a concurrent request gets 429.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	config, client, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req DeleteRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDeleteBody)).Decode(&req); err != nil {
		api.WriteErrorStatus(w, http.StatusBadRequest, fmt.Errorf("%w: %w", errInvalidBody, err))

		return
	}

	if err := helpers.ValidateRepository(req.Repository); err != nil || len(req.Tags) == 0 {
		api.WriteErrorStatus(w, http.StatusBadRequest, fmt.Errorf("%w: repo and tags are required", errInvalidBody))

		return
	}

	for _, tag := range req.Tags {
		if err := helpers.ValidateReference(req.Repository, tag); err != nil {
			api.WriteErrorStatus(w, http.StatusBadRequest, fmt.Errorf("%w: %w", errInvalidBody, err))

			return
		}
	}

	select {
	case value := <-h.lock:
		defer func() { h.lock <- value }()
	default:
		logrus.Debug("Skipped deletion, another deletion already in progress")
		w.Header().Set("Retry-After", "30")
		api.WriteErrorStatus(w, http.StatusTooManyRequests, errDeleteRunning)

		return
	}

	report := actions.DeleteTags(r.Context(), client, req.Repository, req.Tags, nil)
	h.metrics.Register(metrics.NewMetric(report))

	if h.store != nil && report.Deleted > 0 {
		h.store.Invalidate(config.ID)
	}

	api.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (types.RegistryConfig, Client, bool) {
	id := r.PathValue("id")

	config, ok := h.catalog.Get(id)
	if !ok {
		api.WriteErrorStatus(w, http.StatusNotFound, fmt.Errorf("%w: %s", errUnknownRegistry, id))

		return types.RegistryConfig{}, nil, false
	}

	client, err := h.newClient(config)
	if err != nil {
		api.WriteError(w, err)

		return types.RegistryConfig{}, nil, false
	}

	return config, client, true
}

func (h *Handler) repositories(r *http.Request, config types.RegistryConfig, client Client) ([]string, bool, error) {
	if h.store != nil && !refreshRequested(r) {
		if entry, ok := cache.Get[[]string](h.store, config.ID, cache.CatalogKind); ok {
			return entry.Data, true, nil
		}
	}

	repos, err := client.Repositories(r.Context())
	if err != nil {
		return nil, false, err
	}

	if h.store != nil {
		cache.Put(h.store, config.ID, cache.CatalogKind, repos)
	}

	return repos, false, nil
}

func (h *Handler) tags(r *http.Request, config types.RegistryConfig, client Client, repo string) ([]string, error) {
	if h.store != nil && !refreshRequested(r) {
		if entry, ok := cache.Get[[]string](h.store, config.ID, cache.TagsKind(repo)); ok {
			return entry.Data, nil
		}
	}

	resp, err := client.Tags(r.Context(), repo)
	if err != nil {
		return nil, err
	}

	if h.store != nil {
		cache.Put(h.store, config.ID, cache.TagsKind(repo), resp.Tags)
	}

	return resp.Tags, nil
}

func view(config types.RegistryConfig) Registry {
	return Registry{
		ID:       config.ID,
		Name:     config.Name,
		URL:      config.URL,
		AuthType: config.Auth.Describe(),
		Status:   config.Status,
	}
}

func refreshRequested(r *http.Request) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	return refresh
}

func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		api.WriteErrorStatus(w, http.StatusBadRequest, fmt.Errorf("%w: %s", errMissingParam, name))

		return "", false
	}

	return value, true
}
