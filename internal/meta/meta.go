// Package meta holds build metadata injected at link time.
package meta

var (
	// Version is the released version, set with -ldflags "-X github.com/nicholas-fedor/regman/internal/meta.Version=v1.2.3".
	Version = "v0.0.0-unknown"
	// UserAgent is sent on every registry request.
	UserAgent = "regman/" + Version
)
