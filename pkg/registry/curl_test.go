package registry_test

import (
	"net/http"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/regman/pkg/registry"
)

var _ = ginkgo.Describe("CurlCommand", func() {
	ginkgo.It("should omit the method for GET and sort headers", func() {
		header := http.Header{}
		header.Set("Accept", "application/json")
		header.Set("Authorization", "Bearer abc")

		gomega.Expect(registry.CurlCommand(http.MethodGet, "https://r.example/v2/", header)).To(gomega.Equal(
			"curl -H 'Accept: application/json' -H 'Authorization: Bearer ***' 'https://r.example/v2/'",
		))
	})

	ginkgo.It("should include other methods", func() {
		gomega.Expect(registry.CurlCommand(http.MethodDelete, "https://r.example/v2/a/manifests/sha256:1", nil)).
			To(gomega.Equal("curl -X DELETE 'https://r.example/v2/a/manifests/sha256:1'"))
	})

	ginkgo.It("should mask unknown authorization schemes and escape quotes", func() {
		header := http.Header{"Authorization": []string{"Token xyz"}, "X-Note": []string{"it's"}}

		gomega.Expect(registry.CurlCommand(http.MethodHead, "https://r.example", header)).To(gomega.Equal(
			`curl -X HEAD -H 'Authorization: ***' -H 'X-Note: it'\''s' 'https://r.example'`,
		))
	})
})
