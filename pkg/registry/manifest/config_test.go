package manifest_test

import (
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
)

var _ = ginkgo.Describe("Image config", func() {
	ginkgo.It("should reject malformed config blobs", func() {
		_, err := manifest.DecodeConfig([]byte("[1,2"))
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("should sort undated history first and keep ties stable", func() {
		older := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
		newer := older.Add(time.Hour)

		config := &v1.Image{History: []v1.History{
			{Created: &newer, CreatedBy: "third"},
			{CreatedBy: "first"},
			{Created: &older, CreatedBy: "second-a"},
			{Created: &older, CreatedBy: "second-b"},
		}}

		var order []string
		for _, entry := range manifest.SortedHistory(config) {
			order = append(order, entry.CreatedBy)
		}

		gomega.Expect(order).To(gomega.Equal([]string{"first", "second-a", "second-b", "third"}))
		gomega.Expect(config.History[0].CreatedBy).To(gomega.Equal("third"))
	})

	ginkgo.It("should return an empty history for a nil config", func() {
		gomega.Expect(manifest.SortedHistory(nil)).To(gomega.BeEmpty())
	})
})
