package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	dockerCliConfig "github.com/docker/cli/cli/config"
	dockerConfigConfigfile "github.com/docker/cli/cli/config/configfile"
	dockerConfigCredentials "github.com/docker/cli/cli/config/credentials"
	dockerConfigTypes "github.com/docker/cli/cli/config/types"

	"github.com/nicholas-fedor/regman/pkg/registry/helpers"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// Errors for Docker credential import.
var (
	// errFailedGetRegistryAddress indicates a failure to extract the registry host from its URL.
	errFailedGetRegistryAddress = errors.New("failed to get registry address")
	// errFailedLoadDockerConfig indicates a failure to load the Docker configuration file.
	errFailedLoadDockerConfig = errors.New("failed to load Docker config")
	// errNoDockerCredentials indicates the Docker config holds nothing for the registry.
	errNoDockerCredentials = errors.New("no Docker credentials for registry")
)

// DockerConfigDir returns the directory holding the Docker CLI config.
// DOCKER_CONFIG takes precedence over the CLI default.
func DockerConfigDir() string {
	if dir := os.Getenv("DOCKER_CONFIG"); dir != "" {
		return dir
	}

	return dockerCliConfig.Dir()
}

// DockerConfigAuth reads the credentials stored by `docker login` for the
// registry at registryURL. A registry token becomes a bearer configuration and
// a username/password pair becomes basic authentication.
func DockerConfigAuth(registryURL string) (types.AuthConfig, error) {
	fields := logrus.Fields{
		"url": registryURL,
	}

	server, err := helpers.GetRegistryAddress(registryURL)
	if err != nil {
		logrus.WithError(err).WithFields(fields).Debug("Failed to get registry address")

		return types.AuthConfig{}, fmt.Errorf("%w: %w", errFailedGetRegistryAddress, err)
	}

	configDir := DockerConfigDir()

	configFile, err := dockerCliConfig.Load(configDir)
	if err != nil {
		logrus.WithError(err).
			WithFields(fields).
			WithField("config_dir", configDir).
			Debug("Failed to load Docker config")

		return types.AuthConfig{}, fmt.Errorf("%w: %w", errFailedLoadDockerConfig, err)
	}

	credStore := CredentialsStore(*configFile)
	creds, _ := credStore.Get(server)

	return authFromDocker(server, configFile.Filename, creds)
}

func authFromDocker(server, filename string, creds dockerConfigTypes.AuthConfig) (types.AuthConfig, error) {
	fields := logrus.Fields{
		"server":      server,
		"config_file": filename,
	}

	switch {
	case creds.RegistryToken != "":
		logrus.WithFields(fields).Debug("Loaded registry token from Docker config")

		return types.BearerToken(creds.RegistryToken), nil
	case creds.Username != "" || creds.Password != "":
		logrus.WithFields(fields).
			WithField("username", creds.Username).
			Debug("Loaded auth credentials from Docker config")

		return types.BasicAuth(creds.Username, creds.Password), nil
	default:
		logrus.WithFields(fields).Debug("No credentials found in config")

		return types.AuthConfig{}, fmt.Errorf("%w %s", errNoDockerCredentials, server)
	}
}

// CredentialsStore returns a new credentials store based on the settings provided in the configuration file.
// It determines whether to use a native or file-based store depending on the config.
func CredentialsStore(configFile dockerConfigConfigfile.ConfigFile) dockerConfigCredentials.Store {
	if configFile.CredentialsStore != "" {
		return dockerConfigCredentials.NewNativeStore(&configFile, configFile.CredentialsStore)
	}

	return dockerConfigCredentials.NewFileStore(&configFile)
}
