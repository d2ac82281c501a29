// Package flags manages command-line flags and environment variables for regman configuration.
// It configures storage, registry connections, logging and the HTTP API via Cobra and Viper.
//
// Key components:
//   - RegisterSystemFlags: Adds flags shared by every command.
//   - RegisterAPIFlags: Adds HTTP API settings.
//   - RegisterWatchFlags: Adds scheduled refresh settings.
//   - ReadPassphrase: Resolves the vault passphrase from flags, a file or the terminal.
//   - SetupLogging: Configures logrus based on flags.
//
// Usage example:
//
//	cmd := &cobra.Command{}
//	flags.SetDefaults()
//	flags.RegisterSystemFlags(cmd)
//	err := flags.SetupLogging(cmd.PersistentFlags())
//	if err != nil {
//	    logrus.WithError(err).Fatal("Logging setup failed")
//	}
//
// Every flag can also be set through a REGMAN_* environment variable.
package flags
