package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/regman/internal/util"
	"github.com/nicholas-fedor/regman/pkg/types"
)

func newSettingsCommand() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored preferences",
	}

	settingsCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored preferences",
			Args:  cobra.NoArgs,
			RunE:  runSettingsShow,
		},
		&cobra.Command{
			Use:       "theme NAME",
			Short:     "Set the display theme (light, dark or system)",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"light", "dark", "system"},
			RunE:      runSettingsTheme,
		},
		newCacheSettingsCommand(),
	)

	return settingsCmd
}

func newCacheSettingsCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Set the cache refresh interval and maximum age",
		Long: `Set the cache refresh interval and maximum age, both in seconds.

A refresh interval of 0 disables scheduled refresh in watch and serve.`,
		Args: cobra.NoArgs,
		RunE: runSettingsCache,
	}

	cacheCmd.Flags().Uint64("refresh-interval", types.DefaultRefreshInterval, "Seconds between scheduled refreshes, 0 to disable")
	cacheCmd.Flags().Uint64("max-age", types.DefaultMaxAge, "Seconds a cached listing stays fresh")

	return cacheCmd
}

func runSettingsShow(c *cobra.Command, _ []string) error {
	service, dataDir, err := openStorage(c)
	if err != nil {
		return err
	}

	theme, err := service.LoadTheme()
	if err != nil {
		return err
	}

	cacheConfig, err := service.LoadCacheConfig()
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Data directory:   %s\n", dataDir)
	_, _ = fmt.Fprintf(out, "Theme:            %s\n", theme)
	_, _ = fmt.Fprintf(out, "Refresh interval: %s\n", describeSeconds(cacheConfig.RefreshInterval, "disabled"))
	_, _ = fmt.Fprintf(out, "Cache max age:    %s\n", describeSeconds(cacheConfig.MaxAge, "no caching"))

	return nil
}

func runSettingsTheme(c *cobra.Command, args []string) error {
	theme, err := types.ParseTheme(args[0])
	if err != nil {
		return err
	}

	service, _, err := openStorage(c)
	if err != nil {
		return err
	}

	if err := service.SaveTheme(theme); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.OutOrStdout(), "Theme set to %s\n", theme)

	return nil
}

func runSettingsCache(c *cobra.Command, _ []string) error {
	service, _, err := openStorage(c)
	if err != nil {
		return err
	}

	config, err := service.LoadCacheConfig()
	if err != nil {
		return err
	}

	f := c.Flags()
	if f.Changed("refresh-interval") {
		config.RefreshInterval, _ = f.GetUint64("refresh-interval")
	}

	if f.Changed("max-age") {
		config.MaxAge, _ = f.GetUint64("max-age")
	}

	if err := service.SaveCacheConfig(config); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.OutOrStdout(), "Refresh interval %s, cache max age %s\n",
		describeSeconds(config.RefreshInterval, "disabled"),
		describeSeconds(config.MaxAge, "no caching"))

	return nil
}

func describeSeconds(seconds uint64, zero string) string {
	if seconds == 0 {
		return zero
	}

	return util.FormatDuration(time.Duration(seconds) * time.Second)
}
