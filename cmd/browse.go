package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/internal/util"
	"github.com/nicholas-fedor/regman/pkg/filters"
	"github.com/nicholas-fedor/regman/pkg/registry/helpers"
	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// historyTimeFormat renders image history timestamps.
const historyTimeFormat = "2006-01-02 15:04:05"

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping [REGISTRY...]",
		Short: "Check that registries answer the /v2/ API",
		Long:  "Check that registries answer the /v2/ API. Without arguments every configured registry is checked.",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			configs := a.registries.List()

			if len(args) > 0 {
				configs = configs[:0]

				for _, arg := range args {
					config, err := a.registries.Find(arg)
					if err != nil {
						return err
					}

					configs = append(configs, config)
				}
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tURL\tSTATUS")

			for _, config := range configs {
				status := pingRegistry(c.Context(), a, config)
				a.registries.SetStatus(config.ID, status)
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", config.Name, config.URL, colorStatus(status))
			}

			return w.Flush()
		},
	}
}

func pingRegistry(ctx context.Context, a *app, config types.RegistryConfig) types.ConnectionStatus {
	client, err := a.client(config)
	if err != nil {
		return actions.ConnectionStatusOf(err)
	}

	_, err = client.Ping(ctx)

	return actions.ConnectionStatusOf(err)
}

func colorStatus(status types.ConnectionStatus) string {
	switch status.State {
	case types.StateConnected:
		return color.GreenString(status.String())
	case types.StateDisconnected:
		return color.YellowString(status.String())
	case types.StateError:
		return color.RedString(status.String())
	default:
		return status.String()
	}
}

// registerFilterFlags adds the name selection flags shared by listing commands.
func registerFilterFlags(f *pflag.FlagSet) {
	f.StringP("filter", "f", "", "Only show names containing this text, ignoring case")
	f.StringSlice("match", nil, "Only show names equal to or fully matching these patterns")
	f.StringSlice("exclude", nil, "Hide names equal to or fully matching these patterns")
}

func filterFromFlags(f *pflag.FlagSet) (filters.Filter, string) {
	search, _ := f.GetString("filter")
	match, _ := f.GetStringSlice("match")
	exclude, _ := f.GetStringSlice("exclude")

	return filters.BuildFilter(search, match, exclude)
}

func newReposCommand() *cobra.Command {
	reposCmd := &cobra.Command{
		Use:     "repos REGISTRY",
		Aliases: []string{"catalog"},
		Short:   "List the repositories of a registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}

			_, client, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			repos, err := client.Repositories(c.Context())
			if err != nil {
				return err
			}

			filter, _ := filterFromFlags(c.Flags())

			return writeLines(c.OutOrStdout(), filters.Sorted(filters.Apply(repos, filter)))
		},
	}

	registerFilterFlags(reposCmd.Flags())

	return reposCmd
}

func newTagsCommand() *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags REGISTRY REPOSITORY",
		Short: "List the tags of a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			repo := args[1]
			if err := helpers.ValidateRepository(repo); err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}

			_, client, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			resp, err := client.Tags(c.Context(), repo)
			if err != nil {
				return err
			}

			filter, _ := filterFromFlags(c.Flags())
			tags := filters.Sorted(filters.Apply(resp.Tags, filter))

			if details, _ := c.Flags().GetBool("details"); !details {
				return writeLines(c.OutOrStdout(), tags)
			}

			infos, err := client.TagDetails(c.Context(), repo, tags)
			if err != nil {
				return err
			}

			return writeTagDetails(c.OutOrStdout(), infos)
		},
	}

	registerFilterFlags(tagsCmd.Flags())
	tagsCmd.Flags().BoolP("details", "l", false, "Show digest and size of every tag")

	return tagsCmd
}

func writeTagDetails(out io.Writer, infos []types.TagInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TAG\tDIGEST\tSIZE")

	for _, info := range infos {
		digest := "-"
		if info.Digest != "" {
			digest = helpers.ShortDigest(info.Digest)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, digest, util.FormatSize(info.Size))
	}

	return w.Flush()
}

func newManifestCommand() *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest REGISTRY REPOSITORY REFERENCE",
		Short: "Show the manifest of a tag or digest",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			repo, ref := args[1], args[2]
			if err := helpers.ValidateReference(repo, ref); err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}

			_, client, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			out := c.OutOrStdout()

			if showCurl, _ := c.Flags().GetBool("show-curl"); showCurl {
				_, _ = fmt.Fprintln(out, client.ManifestCurl(repo, ref))
			}

			m, digest, err := client.Manifest(c.Context(), repo, ref)
			if err != nil {
				return err
			}

			if raw, _ := c.Flags().GetBool("json"); raw {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")

				return encoder.Encode(m)
			}

			writeManifest(out, m, digest)

			if history, _ := c.Flags().GetBool("history"); history {
				descriptor, ok := m.Config()
				if !ok {
					_, _ = fmt.Fprintln(out, "\nHistory: not available for schema 1 manifests")

					return nil
				}

				config, err := client.ImageConfig(c.Context(), repo, descriptor.Digest)
				if err != nil {
					return err
				}

				writeHistory(out, manifest.SortedHistory(config))
			}

			return nil
		},
	}

	manifestCmd.Flags().Bool("show-curl", false, "Print the equivalent curl command, with credentials masked")
	manifestCmd.Flags().Bool("history", false, "Show the image build history")
	manifestCmd.Flags().Bool("json", false, "Print the decoded manifest as JSON")

	return manifestCmd
}

func writeManifest(out io.Writer, m *manifest.Manifest, digest string) {
	if digest == "" {
		digest = "(not reported)"
	}

	_, _ = fmt.Fprintf(out, "Digest:     %s\n", digest)
	_, _ = fmt.Fprintf(out, "Media type: %s\n", m.MediaType())
	_, _ = fmt.Fprintf(out, "Schema:     %s\n", m.Kind)
	_, _ = fmt.Fprintf(out, "Size:       %s\n", util.FormatSize(m.TotalSize()))

	if config, ok := m.Config(); ok {
		_, _ = fmt.Fprintf(out, "Config:     %s\n", config.Digest)
	}

	layers := m.Layers()
	if len(layers) == 0 {
		return
	}

	_, _ = fmt.Fprintf(out, "\nLayers (%d):\n", len(layers))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, layer := range layers {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", helpers.ShortDigest(layer.Digest), util.FormatSize(layer.Size), layer.MediaType)
	}

	_ = w.Flush()
}

func writeHistory(out io.Writer, history []v1.History) {
	_, _ = fmt.Fprintf(out, "\nHistory (%d):\n", len(history))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	for _, entry := range history {
		created := "-"
		if entry.Created != nil {
			created = entry.Created.UTC().Format(historyTimeFormat)
		}

		marker := ""
		if entry.EmptyLayer {
			marker = " (empty)"
		}

		_, _ = fmt.Fprintf(w, "  %s\t%s%s\n", created, strings.TrimSpace(entry.CreatedBy), marker)
	}

	_ = w.Flush()
}

func newBlobCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "blob REGISTRY REPOSITORY DIGEST",
		Short: "Show the size and media type of a blob",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			repo, digest := args[1], args[2]
			if err := helpers.ValidateRepository(repo); err != nil {
				return err
			}

			if err := helpers.ValidateDigest(digest); err != nil {
				return err
			}

			a, err := openApp(c)
			if err != nil {
				return err
			}

			_, client, err := a.lookup(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context(), a.clientOpts.Timeout+time.Second)
			defer cancel()

			info, err := client.HeadBlob(ctx, repo, digest)
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Digest:     %s\n", info.Digest)
			_, _ = fmt.Fprintf(out, "Size:       %s (%d bytes)\n", util.FormatSize(info.Size), info.Size)
			_, _ = fmt.Fprintf(out, "Media type: %s\n", info.MediaType)

			return nil
		},
	}
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	return nil
}
