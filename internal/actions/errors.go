package actions

import "errors"

// Errors for deletion batches.
var (
	// errNoDigest flags a manifest response without a Docker-Content-Digest header.
	errNoDigest = errors.New("no digest returned")
	// errResolveDigest flags a failure to fetch the manifest of a tag.
	errResolveDigest = errors.New("failed to resolve tag digest")
	// errDeleteManifest flags a failure of the DELETE request.
	errDeleteManifest = errors.New("failed to delete manifest")
	// errCancelled marks tags that were not attempted because the context ended.
	errCancelled = errors.New("deletion cancelled")
)

// Errors for registry refresh.
var (
	// errClientSetup flags a registry whose client could not be constructed.
	errClientSetup = errors.New("failed to create registry client")
)
