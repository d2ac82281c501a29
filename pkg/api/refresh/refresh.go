// Package refresh provides the HTTP API handler that triggers a registry refresh.
package refresh

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/pkg/api"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// Path is the refresh endpoint.
const Path = "/v1/refresh"

var errRefreshRunning = errors.New("another refresh is already running")

// Handler triggers registry refreshes via HTTP.
//
// It holds the refresh function and the lock shared with the scheduler, so an
// API-triggered refresh never overlaps a scheduled one.
type Handler struct {
	fn   func(ctx context.Context) []actions.RefreshResult
	Path string
	lock chan bool
}

// New creates a new Handler instance.
//
// Parameters:
//   - refreshFn: Function refreshing every configured registry.
//   - refreshLock: Optional lock channel; if nil, a new channel is created.
//
// Returns:
//   - *Handler: Initialized handler.
func New(refreshFn func(ctx context.Context) []actions.RefreshResult, refreshLock chan bool) *Handler {
	lock := refreshLock
	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true

		logrus.Debug("Initialized new refresh lock channel")
	}

	return &Handler{
		fn:   refreshFn,
		Path: Path,
		lock: lock,
	}
}

// Handle runs a refresh and reports per-registry results.
//
// If another refresh is already running, it returns 429 (Too Many Requests)
// immediately, since a second pass over the same registries adds nothing.
func (handle *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Received HTTP API refresh request")

	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		logrus.WithError(err).Debug("Failed to read request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)

		return
	}

	select {
	case chanValue := <-handle.lock:
		defer func() { handle.lock <- chanValue }()
	default:
		logrus.Debug("Skipped refresh, another refresh already in progress")

		w.Header().Set("Retry-After", "30")
		api.WriteErrorStatus(w, http.StatusTooManyRequests, errRefreshRunning)

		return
	}

	startTime := time.Now()
	results := handle.fn(r.Context())
	duration := time.Since(startTime)

	connected := 0

	for _, result := range results {
		if result.Status.State == types.StateConnected {
			connected++
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"registries": len(results),
			"connected":  connected,
			"failed":     len(results) - connected,
		},
		"results": results,
		"timing": map[string]any{
			"duration_ms": duration.Milliseconds(),
			"duration":    duration.String(),
		},
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"api_version": api.Version,
	})
}
