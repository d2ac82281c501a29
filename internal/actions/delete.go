package actions

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
	"github.com/nicholas-fedor/regman/pkg/session"
)

// ManifestClient is the part of the registry client a deletion batch needs.
type ManifestClient interface {
	Manifest(ctx context.Context, repo, reference string) (*manifest.Manifest, string, error)
	DeleteManifest(ctx context.Context, repo, digest string) error
}

// ProgressFunc is called after each tag reaches a final state.
type ProgressFunc func(completed, total int, status *session.TagStatus)

// DeleteTags deletes tags from repo one at a time.
//
// Each tag is resolved to its digest with a manifest GET and then deleted by
// digest. A failure is recorded against its tag and the batch continues with
// the next one, so the returned report always accounts for every tag. Once ctx
// is done, the remaining tags are recorded as failed without contacting the
// registry.
//
// Parameters:
//   - ctx: Context bounding the whole batch.
//   - client: Registry client used for the GET/DELETE pairs.
//   - repo: Repository the tags belong to.
//   - tags: Tags to delete, in order. Duplicates are deleted once.
//   - onProgress: Optional callback invoked after every tag.
//
// Returns:
//   - *session.Report: Tally of deleted and failed tags with per-tag messages.
func DeleteTags(
	ctx context.Context,
	client ManifestClient,
	repo string,
	tags []string,
	onProgress ProgressFunc,
) *session.Report {
	progress := session.NewProgress(repo, tags)

	logrus.WithFields(logrus.Fields{
		"repo": repo,
		"tags": progress.Total(),
	}).Info("Deleting tags")

	for _, status := range progress.Statuses() {
		tag := status.Tag()

		if err := ctx.Err(); err != nil {
			progress.MarkFailed(tag, "", fmt.Errorf("%w: %w", errCancelled, err))
		} else {
			progress.MarkDeleting(tag)
			deleteTag(ctx, client, progress, repo, tag)
		}

		if onProgress != nil {
			onProgress(progress.Completed(), progress.Total(), status)
		}
	}

	report := progress.Report()

	logrus.WithFields(logrus.Fields{
		"repo":    repo,
		"deleted": report.Deleted,
		"failed":  report.Failed,
	}).Info("Finished deleting tags")

	return report
}

func deleteTag(ctx context.Context, client ManifestClient, progress *session.Progress, repo, tag string) {
	_, digest, err := client.Manifest(ctx, repo, tag)
	if err != nil {
		progress.MarkFailed(tag, "", fmt.Errorf("%w: %w", errResolveDigest, err))

		return
	}

	if digest == "" {
		progress.MarkFailed(tag, "", errNoDigest)

		return
	}

	if err := client.DeleteManifest(ctx, repo, digest); err != nil {
		progress.MarkFailed(tag, digest, fmt.Errorf("%w: %w", errDeleteManifest, err))

		return
	}

	progress.MarkDeleted(tag, digest)
}
