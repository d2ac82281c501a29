package registry_test

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/regman/pkg/registry"
)

var _ = ginkgo.Describe("FromStatus", func() {
	ginkgo.DescribeTable("maps statuses to kinds",
		func(status int, kind registry.ErrorKind, class func(error) bool) {
			err := registry.FromStatus(status, "context")
			gomega.Expect(err.Kind).To(gomega.Equal(kind))
			gomega.Expect(err.StatusCode).To(gomega.Equal(status))
			gomega.Expect(class(err)).To(gomega.BeTrue())
		},
		ginkgo.Entry("401", 401, registry.KindUnauthorized, errdefs.IsUnauthorized),
		ginkgo.Entry("403", 403, registry.KindForbidden, errdefs.IsPermissionDenied),
		ginkgo.Entry("404", 404, registry.KindNotFound, errdefs.IsNotFound),
		ginkgo.Entry("429", 429, registry.KindRateLimited, errdefs.IsResourceExhausted),
		ginkgo.Entry("500", 500, registry.KindServer, errdefs.IsInternal),
		ginkgo.Entry("503", 503, registry.KindServer, errdefs.IsInternal),
		ginkgo.Entry("302", 302, registry.KindNetwork, errdefs.IsUnavailable),
		ginkgo.Entry("600", 600, registry.KindNetwork, errdefs.IsUnavailable),
	)

	ginkgo.It("should survive wrapping", func() {
		wrapped := fmt.Errorf("listing: %w", registry.FromStatus(404, "Failed to get catalog"))

		gomega.Expect(errors.Is(wrapped, registry.ErrNotFound)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(wrapped, registry.ErrForbidden)).To(gomega.BeFalse())

		kind, ok := registry.KindOf(wrapped)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(kind.String()).To(gomega.Equal("NotFound"))

		_, ok = registry.KindOf(errors.New("plain"))
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})
