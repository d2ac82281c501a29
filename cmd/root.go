package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/regman/internal/flags"
	"github.com/nicholas-fedor/regman/internal/meta"
	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/storage"
	"github.com/nicholas-fedor/regman/pkg/types"
	"github.com/nicholas-fedor/regman/pkg/vault"
)

// Errors returned by the commands.
var (
	errIncorrectPassphrase = errors.New("incorrect passphrase")
	errOpenStorage         = errors.New("failed to open storage")
	errAborted             = errors.New("aborted")
	errNothingSelected     = errors.New("no tags selected")
	errExportCredentials   = errors.New("refusing to write an export containing credentials")
)

// rootCmd is the regman command tree used by Execute.
var rootCmd = NewRootCommand()

// NewRootCommand builds the regman command tree.
//
// Returns:
//   - *cobra.Command: Root command with every subcommand and flag registered.
func NewRootCommand() *cobra.Command {
	flags.SetDefaults()

	root := &cobra.Command{
		Use:               "regman",
		Short:             "Manages images in Docker Registry v2 compatible registries",
		Long:              "\nregman browses repositories, tags and manifests of Docker Registry v2 compatible\nregistries and deletes tags, keeping registry credentials encrypted at rest.",
		Version:           meta.Version,
		PersistentPreRunE: preRun,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags.RegisterSystemFlags(root)

	root.AddCommand(
		newRegistryCommand(),
		newPingCommand(),
		newReposCommand(),
		newTagsCommand(),
		newManifestCommand(),
		newBlobCommand(),
		newDeleteCommand(),
		newSettingsCommand(),
		newWatchCommand(),
		newServeCommand(),
		newResetCommand(),
	)

	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logrus.WithError(err).Fatal("regman failed")
	}
}

// preRun configures logging and resolves file-backed secrets before any command runs.
func preRun(c *cobra.Command, _ []string) error {
	f := c.Flags()
	flags.ProcessFlagAliases(f)

	if err := flags.SetupLogging(f); err != nil {
		return err
	}

	if noColor, _ := f.GetBool("no-color"); noColor {
		color.NoColor = true
	}

	return flags.GetSecretsFromFiles(f)
}

// app is the unlocked state shared by the registry commands.
type app struct {
	dataDir    string
	service    *storage.Service
	registries *storage.Registries
	clientOpts flags.ClientOptions
}

// openStorage opens the configured data directory without unlocking it.
func openStorage(c *cobra.Command) (*storage.Service, string, error) {
	dataDir := flags.DataDir(c.Flags())

	adapter, err := storage.NewFileAdapter(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errOpenStorage, err)
	}

	return storage.NewService(adapter, vault.New()), dataDir, nil
}

// openApp opens storage and unlocks it with the operator's passphrase. On
// first run the passphrase is asked twice and becomes the vault passphrase.
func openApp(c *cobra.Command) (*app, error) {
	dataDir := flags.DataDir(c.Flags())

	adapter, err := storage.NewFileAdapter(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errOpenStorage, err)
	}

	v := vault.New()
	service := storage.NewService(adapter, v)
	firstRun := !service.HasConfig()

	passphrase, err := flags.ReadPassphrase(c.Flags(), c.ErrOrStderr(), firstRun)
	if err != nil {
		return nil, err
	}

	if err := v.Unlock(passphrase); err != nil {
		return nil, err
	}

	if err := service.Verify(); err != nil {
		if storage.IsIncorrectPassphrase(err) {
			return nil, fmt.Errorf("%w: %w", errIncorrectPassphrase, err)
		}

		return nil, err
	}

	registries, err := service.Registries()
	if err != nil {
		return nil, err
	}

	clientOpts, err := flags.ReadClientOptions(c.Flags())
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"data_dir":   dataDir,
		"registries": registries.Len(),
		"first_run":  firstRun,
	}).Debug("Storage unlocked")

	return &app{
		dataDir:    dataDir,
		service:    service,
		registries: registries,
		clientOpts: clientOpts,
	}, nil
}

// client builds a registry client for config with the connection flags applied.
func (a *app) client(config types.RegistryConfig, opts ...registry.Option) (*registry.Client, error) {
	return registry.NewClient(config.URL, config.Auth, append(a.clientOpts.Options(), opts...)...)
}

// lookup resolves a registry by id or name and builds its client.
func (a *app) lookup(idOrName string) (types.RegistryConfig, *registry.Client, error) {
	config, err := a.registries.Find(idOrName)
	if err != nil {
		return types.RegistryConfig{}, nil, err
	}

	client, err := a.client(config)
	if err != nil {
		return types.RegistryConfig{}, nil, err
	}

	return config, client, nil
}
