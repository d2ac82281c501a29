// Package api provides the HTTP API server implementation for regman.
package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"
)

// Version is reported in every JSON response.
const Version = "v1"

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxHeaderShift    = 20
)

// ErrEmptyToken is returned by Start when handlers are registered without a token.
var ErrEmptyToken = errors.New("api token is empty or has not been set")

// API represents the HTTP API server for regman.
type API struct {
	Token       string
	Addr        string
	hasHandlers bool
	mux         *http.ServeMux // Custom mux to avoid global collisions
	server      HTTPServer     // Optional injected server for testing
}

// HTTPServer is the part of http.Server that RunHTTPServer drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// New is a factory function creating a new API instance.
// The server parameter is optional and allows dependency injection for testing.
func New(token, addr string, server ...HTTPServer) *API {
	var injectedServer HTTPServer
	if len(server) > 0 {
		injectedServer = server[0]
	}

	api := &API{
		Token:  token,
		Addr:   addr,
		mux:    http.NewServeMux(),
		server: injectedServer,
	}

	logrus.WithField("addr", addr).Debug("Initialized new API instance")

	return api
}

// RegisterFunc registers a token-protected handler function for the given pattern.
func (a *API) RegisterFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	a.mux.HandleFunc(pattern, a.RequireToken(handler))
	a.hasHandlers = true

	logrus.WithField("pattern", pattern).Debug("Registered API handler")
}

// RegisterHandler registers a token-protected handler for the given pattern.
func (a *API) RegisterHandler(pattern string, handler http.Handler) {
	a.RegisterFunc(pattern, handler.ServeHTTP)
}

// Handler returns the routed handler, for tests and embedding.
func (a *API) Handler() http.Handler {
	return a.mux
}

// Start runs the HTTP API server.
// If block is true, it runs in the foreground until ctx is cancelled.
// Otherwise it serves in the background and shuts down with ctx.
func (a *API) Start(ctx context.Context, block bool) error {
	if !a.hasHandlers {
		logrus.Debug("regman HTTP API skipped.")

		return nil
	}

	if a.Token == "" {
		return ErrEmptyToken
	}

	server := a.server
	if server == nil {
		server = &http.Server{
			Addr:              a.Addr,
			Handler:           a.mux,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
			MaxHeaderBytes:    1 << maxHeaderShift,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		}
	}

	logrus.WithField("addr", a.Addr).Info("Starting HTTP API server")

	if block {
		return RunHTTPServer(ctx, server)
	}

	go func() {
		if err := RunHTTPServer(ctx, server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP server failed")
		}
	}()

	return nil
}

// RequireToken wraps a handler function with bearer token authentication.
func (a *API) RequireToken(handler func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || a.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
			logrus.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Debug("Rejected unauthorized API request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		handler(w, r)
	}
}

// RunHTTPServer starts the HTTP server and handles graceful shutdown.
func RunHTTPServer(ctx context.Context, server HTTPServer) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		return nil
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(buf.Bytes()); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}

// WriteError writes err as a JSON error document. The status follows the
// error's errdefs class.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, StatusOf(err), err)
}

// WriteErrorStatus writes err as a JSON error document with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, status int, err error) {
	logrus.WithError(err).WithField("status", status).Debug("API request failed")

	WriteJSON(w, status, map[string]any{
		"error":       err.Error(),
		"api_version": Version,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// StatusOf maps an error to the HTTP status reported to API callers.
// Upstream authentication failures are reported as 502 so they cannot be
// confused with a rejected API token.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsConflict(err), errdefs.IsAlreadyExists(err):
		return http.StatusConflict
	case errdefs.IsResourceExhausted(err):
		return http.StatusTooManyRequests
	case errdefs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
