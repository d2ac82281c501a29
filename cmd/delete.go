package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/pkg/filters"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry/helpers"
	"github.com/nicholas-fedor/regman/pkg/session"
)

func newDeleteCommand() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete REGISTRY REPOSITORY [TAG...]",
		Short: "Delete tags from a repository",
		Long: `Delete tags from a repository.

Each tag is resolved to its manifest digest and the manifest is deleted by
digest. Every tag pointing at the same manifest disappears with it. Without
explicit tags, the repository's tags are selected with --match and --exclude.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runDelete,
	}

	f := deleteCmd.Flags()
	f.StringSlice("match", nil, "Select tags equal to or fully matching these patterns")
	f.StringSlice("exclude", nil, "Never select tags equal to or fully matching these patterns")
	f.BoolP("yes", "y", false, "Do not ask for confirmation")

	return deleteCmd
}

func runDelete(c *cobra.Command, args []string) error {
	repo := args[1]
	if err := helpers.ValidateRepository(repo); err != nil {
		return err
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}

	config, client, err := a.lookup(args[0])
	if err != nil {
		return err
	}

	tags := args[2:]

	match, _ := c.Flags().GetStringSlice("match")
	exclude, _ := c.Flags().GetStringSlice("exclude")

	if len(tags) == 0 {
		if len(match) == 0 {
			return fmt.Errorf("%w: pass tags or --match", errNothingSelected)
		}

		resp, err := client.Tags(c.Context(), repo)
		if err != nil {
			return err
		}

		tags = resp.Tags
	}

	filter, description := filters.BuildFilter("", match, exclude)
	tags = filters.Sorted(filters.Apply(tags, filter))

	if len(tags) == 0 {
		return fmt.Errorf("%w: no tags in %s match %s", errNothingSelected, repo, description)
	}

	out := c.OutOrStdout()

	if yes, _ := c.Flags().GetBool("yes"); !yes {
		_, _ = fmt.Fprintf(out, "About to delete %d tag(s) from %s on %s:\n", len(tags), repo, config.Name)

		for _, tag := range tags {
			_, _ = fmt.Fprintf(out, "  %s\n", tag)
		}

		if !confirm(c.InOrStdin(), out, "Tags sharing a manifest with these are deleted too. Continue?") {
			return errAborted
		}
	}

	report := actions.DeleteTags(c.Context(), client, repo, tags, func(completed, total int, status *session.TagStatus) {
		writeTagProgress(out, completed, total, status)
	})

	metrics.Default().Register(metrics.NewMetric(report))

	logrus.WithFields(logrus.Fields{
		"registry": config.Name,
		"repo":     repo,
	}).Debug(report.String())

	_, _ = fmt.Fprintf(out, "Deleted %d of %d tag(s) from %s\n", report.Deleted, report.Total(), repo)

	return report.Err()
}

func writeTagProgress(out io.Writer, completed, total int, status *session.TagStatus) {
	prefix := fmt.Sprintf("[%d/%d]", completed, total)

	switch status.State() {
	case session.DeletedState:
		_, _ = fmt.Fprintf(out, "%s %s %s (%s)\n", prefix, color.GreenString("deleted"), status.Tag(), helpers.ShortDigest(status.Digest()))
	case session.FailedState:
		_, _ = fmt.Fprintf(out, "%s %s %s: %s\n", prefix, color.RedString("failed"), status.Tag(), status.Error())
	default:
		_, _ = fmt.Fprintf(out, "%s %s %s\n", prefix, status.State(), status.Tag())
	}
}

// confirm asks a yes/no question and reads one line of answer.
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
