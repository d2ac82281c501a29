package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/moby/sys/atomicwriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/storage"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// exportFileMode is the permission of export files. Exports hold no secrets,
// but they do list internal registry endpoints.
const exportFileMode = 0o600

var (
	errPasswordRequired = errors.New("--password is required with --username")
	errKeyRequired      = errors.New("--cert and --key must be given together")
	errConflictingAuth  = errors.New("only one of --username, --token, --cert or --from-docker-config may be given")
)

func newRegistryCommand() *cobra.Command {
	registryCmd := &cobra.Command{
		Use:     "registry",
		Aliases: []string{"registries"},
		Short:   "Manage configured registries",
	}

	registryCmd.AddCommand(
		newRegistryAddCommand(),
		newRegistryListCommand(),
		newRegistryUpdateCommand(),
		newRegistryRemoveCommand(),
		newRegistryExportCommand(),
		newRegistryImportCommand(),
	)

	return registryCmd
}

// registerAuthFlags adds the credential flags shared by add and update.
func registerAuthFlags(f *pflag.FlagSet) {
	f.StringP("username", "u", "", "Username for basic authentication")
	f.StringP("password", "p", "", "Password for basic authentication")
	f.String("token", "", "Pre-issued bearer token")
	f.String("cert", "", "Client certificate file for TLS authentication")
	f.String("key", "", "Client key file for TLS authentication")
	f.Bool("anonymous", false, "Send no credentials")
	f.Bool("from-docker-config", false, "Use the credentials stored by 'docker login' for this registry")
}

// authFromFlags builds the AuthConfig selected by the credential flags. The
// boolean result is false when no credential flag was given.
func authFromFlags(f *pflag.FlagSet, url string) (types.AuthConfig, bool, error) {
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	token, _ := f.GetString("token")
	cert, _ := f.GetString("cert")
	key, _ := f.GetString("key")
	anonymous, _ := f.GetBool("anonymous")
	fromDocker, _ := f.GetBool("from-docker-config")

	selected := 0

	for _, set := range []bool{username != "", token != "", cert != "" || key != "", anonymous, fromDocker} {
		if set {
			selected++
		}
	}

	switch {
	case selected == 0:
		return types.Anonymous(), false, nil
	case selected > 1:
		return types.AuthConfig{}, false, errConflictingAuth
	case fromDocker:
		auth, err := registry.DockerConfigAuth(url)

		return auth, true, err
	case username != "":
		if password == "" {
			return types.AuthConfig{}, false, errPasswordRequired
		}

		return types.BasicAuth(username, password), true, nil
	case token != "":
		return types.BearerToken(token), true, nil
	case cert != "" || key != "":
		if cert == "" || key == "" {
			return types.AuthConfig{}, false, errKeyRequired
		}

		return types.TLSCert(cert, key), true, nil
	default:
		return types.Anonymous(), true, nil
	}
}

func newRegistryAddCommand() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add a registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			auth, _, err := authFromFlags(c.Flags(), args[1])
			if err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}

			config, err := a.registries.Add(args[0], args[1], auth)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(c.OutOrStdout(), "Added registry %s (%s)\n", config.Name, config.ID)

			return nil
		},
	}

	registerAuthFlags(addCmd.Flags())

	return addCmd
}

func newRegistryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registries",
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			return writeRegistries(c.OutOrStdout(), a.registries.List())
		},
	}
}

func writeRegistries(out io.Writer, configs []types.RegistryConfig) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "NAME\tURL\tAUTH\tID")

	for _, config := range configs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", config.Name, config.URL, config.Auth.Describe(), config.ID)
	}

	return w.Flush()
}

func newRegistryUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update REGISTRY",
		Short: "Change a registry's name, URL or credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			config, err := a.registries.Find(args[0])
			if err != nil {
				return err
			}

			if name, _ := c.Flags().GetString("name"); name != "" {
				config.Name = name
			}

			if url, _ := c.Flags().GetString("url"); url != "" {
				config.URL = url
			}

			auth, changed, err := authFromFlags(c.Flags(), config.URL)
			if err != nil {
				return err
			}

			if changed {
				config.Auth = auth
			}

			if err := a.registries.Update(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(c.OutOrStdout(), "Updated registry %s\n", config.Name)

			return nil
		},
	}

	updateCmd.Flags().String("name", "", "New registry name")
	updateCmd.Flags().String("url", "", "New registry URL")
	registerAuthFlags(updateCmd.Flags())

	return updateCmd
}

func newRegistryRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove REGISTRY",
		Aliases: []string{"rm"},
		Short:   "Remove a registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			config, err := a.registries.Find(args[0])
			if err != nil {
				return err
			}

			if err := a.registries.Delete(config.ID); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(c.OutOrStdout(), "Removed registry %s\n", config.Name)

			return nil
		},
	}
}

func newRegistryExportCommand() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export registries without credentials",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			data, err := storage.ExportRegistries(a.registries.List())
			if err != nil {
				return err
			}

			if storage.ContainsCredentials(string(data)) {
				return errExportCredentials
			}

			output, _ := c.Flags().GetString("output")
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(c.OutOrStdout(), string(data))

				return err
			}

			if err := atomicwriter.WriteFile(output, append(data, '\n'), exportFileMode); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			logrus.WithFields(logrus.Fields{
				"file":       output,
				"registries": a.registries.Len(),
			}).Info("Exported registries")

			return nil
		},
	}

	exportCmd.Flags().StringP("output", "o", "", "Write the export to a file instead of stdout")

	return exportCmd
}

func newRegistryImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import registries from an export; use - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)

			if args[0] == "-" {
				data, err = io.ReadAll(c.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}

			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}

			imported, err := storage.ImportRegistries(data)
			if err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}

			added, err := a.registries.Import(imported)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(c.OutOrStdout(), "Imported %d of %d registries\n", len(added), len(imported))

			for _, config := range added {
				if config.Auth.Kind() != types.AuthAnonymous {
					_, _ = fmt.Fprintf(c.OutOrStdout(), "  %s: re-enter credentials with 'regman registry update %s'\n", config.Name, config.Name)
				}
			}

			return nil
		},
	}
}
