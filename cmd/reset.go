package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCommand() *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every stored registry and preference",
		Long: `Remove every stored registry and preference.

The next command asks for a new passphrase. A running watch or serve process
keeps its old key until it is restarted.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			service, dataDir, err := openStorage(c)
			if err != nil {
				return err
			}

			out := c.OutOrStdout()

			if yes, _ := c.Flags().GetBool("yes"); !yes {
				if !confirm(c.InOrStdin(), out, "Remove all registries and settings from "+dataDir+"?") {
					return errAborted
				}
			}

			if err := service.ClearAll(); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(out, "All data removed. Restart any running regman process to use a new passphrase.")

			return nil
		},
	}

	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	return resetCmd
}
