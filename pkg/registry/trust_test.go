package registry

import (
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/regman/pkg/types"
)

var _ = ginkgo.Describe("Docker credential import", func() {
	var configDir string

	ginkgo.BeforeEach(func() {
		configDir = ginkgo.GinkgoT().TempDir()
		ginkgo.GinkgoT().Setenv("DOCKER_CONFIG", configDir)
	})

	writeConfig := func(content string) {
		err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(content), 0o600)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	}

	ginkgo.It("should use DOCKER_CONFIG as the config directory", func() {
		gomega.Expect(DockerConfigDir()).To(gomega.Equal(configDir))
	})

	ginkgo.It("should import basic credentials for the registry host", func() {
		// "admin:s3cret"
		writeConfig(`{"auths":{"registry.example.com":{"auth":"YWRtaW46czNjcmV0"}}}`)

		auth, err := DockerConfigAuth("https://registry.example.com/")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(auth).To(gomega.Equal(types.BasicAuth("admin", "s3cret")))
	})

	ginkgo.It("should import a registry token as bearer auth", func() {
		writeConfig(`{"auths":{"ghcr.io":{"registrytoken":"tok"}}}`)

		auth, err := DockerConfigAuth("https://ghcr.io")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(auth).To(gomega.Equal(types.BearerToken("tok")))
	})

	ginkgo.It("should return an error when no credentials exist", func() {
		writeConfig(`{"auths":{}}`)

		_, err := DockerConfigAuth("https://registry.example.com")
		gomega.Expect(err).To(gomega.MatchError(errNoDockerCredentials))
	})

	ginkgo.It("should return an error for an empty URL", func() {
		_, err := DockerConfigAuth("")
		gomega.Expect(err).To(gomega.MatchError(errFailedGetRegistryAddress))
	})
})
