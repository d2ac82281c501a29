package registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/pkg/types"
)

// errIncompleteClientCert indicates a TlsCert configuration without both paths.
var errIncompleteClientCert = errors.New("client certificate requires both cert and key paths")

// TransportOptions tunes the TLS settings of the registry transport.
type TransportOptions struct {
	// CAFile adds a PEM bundle to the system roots.
	CAFile string
	// Insecure disables server certificate verification.
	Insecure bool
}

// NewTransport builds the HTTP transport for a registry. TlsCert configurations
// present their client certificate here rather than through a header.
func NewTransport(auth types.AuthConfig, opts TransportOptions) (*http.Transport, error) {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
	} else {
		transport = transport.Clone()
	}

	tlsOptions := tlsconfig.Options{
		CAFile:             opts.CAFile,
		InsecureSkipVerify: opts.Insecure,
	}

	if auth.Kind() == types.AuthTLSCert {
		if auth.CertPath == "" || auth.KeyPath == "" {
			return nil, errIncompleteClientCert
		}

		tlsOptions.CertFile = auth.CertPath
		tlsOptions.KeyFile = auth.KeyPath
	}

	if tlsOptions.CAFile == "" && tlsOptions.CertFile == "" && !tlsOptions.InsecureSkipVerify {
		return transport, nil
	}

	tlsConfig, err := tlsconfig.Client(tlsOptions)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"cert_path": tlsOptions.CertFile,
			"ca_file":   tlsOptions.CAFile,
		}).Debug("Failed to build TLS configuration")

		return nil, fmt.Errorf("failed to build TLS configuration: %w", err)
	}

	transport.TLSClientConfig = tlsConfig

	if opts.Insecure {
		logrus.Warn("TLS certificate verification is disabled")
	}

	return transport, nil
}
