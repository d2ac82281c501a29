// Package flags manages command-line flags and environment variables for regman configuration.
package flags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/storage"
)

// DefaultAPIPort is the default listen port of the HTTP API.
const DefaultAPIPort = "8080"

// errInvalidLogFormat indicates an unsupported log format.
var errInvalidLogFormat = errors.New("invalid log format specified")

// errInvalidLogLevel indicates an unsupported log level.
var errInvalidLogLevel = errors.New("invalid log level specified")

// errReadFileFailed indicates a failure to read a secret file.
var errReadFileFailed = errors.New("failed to read secret file")

// errSetFlagFailed indicates a failure to read or set a flag value.
var errSetFlagFailed = errors.New("failed to set flag value")

// errNoPassphrase indicates no passphrase source is available.
var errNoPassphrase = errors.New("no passphrase provided: use --passphrase, --passphrase-file or run in a terminal")

// errPassphraseMismatch indicates the confirmation did not match the first entry.
var errPassphraseMismatch = errors.New("passphrases do not match")

// errReadPassphrase indicates a failure reading the passphrase from the terminal.
var errReadPassphrase = errors.New("failed to read passphrase")

// Terminal access, replaceable in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// RegisterSystemFlags adds flags that apply to every regman command.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringP(
		"data-dir",
		"d",
		envString("REGMAN_DATA_DIR"),
		"Directory holding the encrypted configuration (default $XDG_DATA_HOME/regman)")

	flags.String(
		"passphrase",
		envString("REGMAN_PASSPHRASE"),
		"Passphrase protecting stored credentials")

	flags.String(
		"passphrase-file",
		envString("REGMAN_PASSPHRASE_FILE"),
		"File containing the passphrase protecting stored credentials")

	flags.DurationP(
		"timeout",
		"t",
		envDuration("REGMAN_TIMEOUT"),
		"Timeout for each registry request")

	flags.Bool(
		"insecure",
		envBool("REGMAN_INSECURE"),
		"Skip TLS certificate verification")

	flags.String(
		"ca-file",
		envString("REGMAN_CA_FILE"),
		"PEM file with additional CA certificates for registry TLS")

	flags.Bool(
		"no-startup-message",
		envBool("REGMAN_NO_STARTUP_MESSAGE"),
		"Do not log the startup message of long-running commands")

	flags.BoolP(
		"debug",
		"",
		envBool("REGMAN_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("REGMAN_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes request details")

	flags.String(
		"log-format",
		envString("REGMAN_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty, JSON")

	flags.String(
		"log-level",
		envString("REGMAN_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace")

	flags.Bool(
		"no-color",
		viper.IsSet("NO_COLOR"),
		"Disable ANSI color escape codes in log output")
}

// RegisterAPIFlags adds the HTTP API flags to a command.
func RegisterAPIFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String(
		"http-api-token",
		envString("REGMAN_HTTP_API_TOKEN"),
		"Bearer token required by the HTTP API. A random token is generated when empty")

	flags.String(
		"http-api-host",
		envString("REGMAN_HTTP_API_HOST"),
		"Address the HTTP API listens on")

	flags.String(
		"http-api-port",
		envString("REGMAN_HTTP_API_PORT"),
		"Port the HTTP API listens on")

	flags.Bool(
		"http-api-metrics",
		envBool("REGMAN_HTTP_API_METRICS"),
		"Expose Prometheus metrics at /v1/metrics")
}

// RegisterWatchFlags adds the scheduled refresh flags to a command.
func RegisterWatchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.Uint64P(
		"interval",
		"i",
		envUint64("REGMAN_REFRESH_INTERVAL"),
		"Refresh interval in seconds, overriding the stored cache setting")

	flags.Bool(
		"refresh-on-start",
		envBool("REGMAN_REFRESH_ON_START"),
		"Refresh once immediately before the first scheduled run")
}

// envString retrieves a string value from an environment variable via Viper.
// It binds the key to the environment and returns its value.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envUint64 retrieves an unsigned integer value from an environment variable via Viper.
func envUint64(key string) uint64 {
	viper.MustBindEnv(key)

	return viper.GetUint64(key)
}

// envBool retrieves a boolean value from an environment variable via Viper.
// It binds the key to the environment and returns its value.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via Viper.
// It binds the key to the environment and returns its value.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults configures default values for environment variables.
// It ensures consistent fallback behavior when flags or environment variables are unset.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("REGMAN_TIMEOUT", registry.DefaultTimeout)
	viper.SetDefault("REGMAN_HTTP_API_PORT", DefaultAPIPort)
	viper.SetDefault("REGMAN_LOG_LEVEL", "info")
	viper.SetDefault("REGMAN_LOG_FORMAT", "auto")
}

// ClientOptions holds the registry connection settings read from flags.
type ClientOptions struct {
	Timeout  time.Duration
	Insecure bool
	CAFile   string
}

// ReadClientOptions retrieves the registry connection flags.
func ReadClientOptions(flags *pflag.FlagSet) (ClientOptions, error) {
	var (
		opts ClientOptions
		err  error
	)

	if opts.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return opts, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if opts.Insecure, err = flags.GetBool("insecure"); err != nil {
		return opts, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if opts.CAFile, err = flags.GetString("ca-file"); err != nil {
		return opts, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	return opts, nil
}

// Options converts the settings into registry client options.
func (o ClientOptions) Options() []registry.Option {
	opts := []registry.Option{registry.WithTimeout(o.Timeout), registry.WithInsecure(o.Insecure)}
	if o.CAFile != "" {
		opts = append(opts, registry.WithCAFile(o.CAFile))
	}

	return opts
}

// DataDir returns the configured data directory, or the default one.
func DataDir(flags *pflag.FlagSet) string {
	dir, _ := flags.GetString("data-dir")
	if dir == "" {
		return storage.DefaultDataDir()
	}

	return dir
}

// GetSecretsFromFiles replaces secret flag values with file contents when they
// reference an existing file.
func GetSecretsFromFiles(flags *pflag.FlagSet) error {
	for _, secret := range []string{"passphrase", "http-api-token"} {
		if flags.Lookup(secret) == nil {
			continue
		}

		if err := getSecretFromFile(flags, secret); err != nil {
			return fmt.Errorf("failed to get secret from flag %v: %w", secret, err)
		}
	}

	return nil
}

// getSecretFromFile updates a flag's value with file contents if it references a file.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	value := flags.Lookup(secret).Value.String()
	if value == "" || !isFilePath(value) {
		return nil
	}

	content, err := os.ReadFile(value)
	if err != nil {
		return fmt.Errorf("%w: %w", errReadFileFailed, err)
	}

	if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	return nil
}

// isFilePath determines if a string likely represents a file path.
// It checks for file existence, avoiding false positives from URLs or invalid Windows paths.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		// If ':' exists but isn't the second character, it's likely not a file path (e.g., URLs).
		return false
	}

	_, err := os.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// ReadPassphrase resolves the vault passphrase from --passphrase, then
// --passphrase-file, then an interactive prompt without echo. When confirm is
// set the prompt asks twice, for choosing a new passphrase.
func ReadPassphrase(flags *pflag.FlagSet, prompt io.Writer, confirm bool) (string, error) {
	if passphrase, _ := flags.GetString("passphrase"); passphrase != "" {
		return passphrase, nil
	}

	if path, _ := flags.GetString("passphrase-file"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		return strings.TrimSpace(string(content)), nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errNoPassphrase
	}

	passphrase, err := promptPassword(fd, prompt, "Passphrase: ")
	if err != nil || !confirm {
		return passphrase, err
	}

	again, err := promptPassword(fd, prompt, "Confirm passphrase: ")
	if err != nil {
		return "", err
	}

	if again != passphrase {
		return "", errPassphraseMismatch
	}

	return passphrase, nil
}

func promptPassword(fd int, prompt io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(prompt, label)

	raw, err := readPassword(fd)

	_, _ = fmt.Fprintln(prompt)

	if err != nil {
		return "", fmt.Errorf("%w: %w", errReadPassphrase, err)
	}

	return string(raw), nil
}

// ProcessFlagAliases applies --debug and --trace to the log level.
func ProcessFlagAliases(flags *pflag.FlagSet) {
	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}
}

// SetupLogging configures the global logger based on log-related flags.
// It sets the log format and level, returning an error for invalid configurations.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified format and color preference.
// It returns an error if the format is invalid.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true.
// It exits with a fatal error if the flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}
