// Package cmd contains the regman command-line interface.
//
// The root command unlocks the encrypted registry store with the operator's
// passphrase before any registry command runs. Subcommands:
//   - registry: add, list, update, remove, export and import registries.
//   - ping, repos, tags, manifest, blob: browse a registry.
//   - delete: delete tags by digest.
//   - settings, reset: stored preferences.
//   - watch, serve: scheduled refresh and the HTTP API.
package cmd
