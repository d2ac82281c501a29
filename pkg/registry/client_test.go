package registry_test

import (
	"context"
	"errors"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nicholas-fedor/regman/internal/meta"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
	"github.com/nicholas-fedor/regman/pkg/types"
)

const (
	mockDigest = "sha256:d68e1e532088964195ad3a0a71526bc2f11a78de0def85629beb75e2265f0547"
	v2Manifest = `{
		"schemaVersion": 2,
		"mediaType": "application/vnd.docker.distribution.manifest.v2+json",
		"config": {"mediaType": "application/vnd.docker.container.image.v1+json", "size": 7, "digest": "sha256:c0"},
		"layers": [
			{"mediaType": "application/vnd.docker.image.rootfs.diff.tar.gzip", "size": 10, "digest": "sha256:l1"},
			{"mediaType": "application/vnd.docker.image.rootfs.diff.tar.gzip", "size": 20, "digest": "sha256:l2"}
		]
	}`
)

var _ = ginkgo.Describe("Client", func() {
	var (
		server *ghttp.Server
		client *registry.Client
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()

		var err error
		client, err = registry.NewClient(server.URL()+"/", types.Anonymous())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.Describe("NewClient", func() {
		ginkgo.It("should strip one trailing slash", func() {
			gomega.Expect(client.BaseURL()).To(gomega.Equal(server.URL()))
		})

		ginkgo.It("should reject URLs without scheme or host", func() {
			_, err := registry.NewClient("registry.example.com", types.Anonymous())
			gomega.Expect(err).To(gomega.MatchError(registry.ErrInvalidURL))
			gomega.Expect(err.Error()).To(gomega.Equal("Invalid URL: registry.example.com"))

			_, err = registry.NewClient("http://", types.Anonymous())
			gomega.Expect(errdefs.IsInvalidArgument(err)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject incomplete client certificate settings", func() {
			_, err := registry.NewClient(server.URL(), types.TLSCert("/tmp/cert.pem", ""))
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("request headers", func() {
		ginkgo.It("should send basic credentials and the user agent", func() {
			authed, err := registry.NewClient(server.URL(), types.BasicAuth("admin", "secret"))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/"),
				ghttp.VerifyBasicAuth("admin", "secret"),
				ghttp.VerifyHeaderKV("User-Agent", meta.UserAgent),
				ghttp.RespondWith(http.StatusOK, "{}"),
			))

			_, err = authed.Ping(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(server.ReceivedRequests()).To(gomega.HaveLen(1))
		})

		ginkgo.It("should send bearer tokens verbatim", func() {
			authed, err := registry.NewClient(server.URL(), types.BearerToken("abc.def"))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyHeaderKV("Authorization", "Bearer abc.def"),
				ghttp.RespondWith(http.StatusOK, "{}"),
			))

			_, err = authed.Ping(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("should send no Authorization header anonymously", func() {
			server.AppendHandlers(func(_ http.ResponseWriter, req *http.Request) {
				gomega.Expect(req.Header.Get("Authorization")).To(gomega.BeEmpty())
			})

			_, err := client.Ping(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("Ping", func() {
		ginkgo.It("should treat 401 as available and return the challenge", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, "", http.Header{
				"WWW-Authenticate": []string{`Bearer realm="https://auth.example.com/token",service="registry.example.com"`},
			}))

			challenge, err := client.Ping(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(challenge.IsBearer()).To(gomega.BeTrue())
			gomega.Expect(challenge.Realm()).To(gomega.Equal("https://auth.example.com/token"))
			gomega.Expect(challenge.Service()).To(gomega.Equal("registry.example.com"))
		})

		ginkgo.It("should map other statuses to errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, ""))

			_, err := client.Ping(ctx)
			gomega.Expect(err).To(gomega.MatchError(registry.ErrServer))
			gomega.Expect(err.Error()).To(gomega.Equal("Server error: Registry not available"))
		})

		ginkgo.It("should report transport failures as network errors", func() {
			server.Close()

			_, err := client.Ping(ctx)
			gomega.Expect(err).To(gomega.MatchError(registry.ErrNetwork))
			gomega.Expect(errdefs.IsUnavailable(err)).To(gomega.BeTrue())
		})

		ginkgo.It("should report a cancelled context as a network error", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := client.Ping(cancelled)
			gomega.Expect(err).To(gomega.MatchError(registry.ErrNetwork))
			gomega.Expect(errors.Is(err, context.Canceled)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("Catalog", func() {
		ginkgo.It("should return repositories and the next page token", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/_catalog"),
				ghttp.RespondWith(http.StatusOK, `{"repositories":["a","b"]}`, http.Header{
					"Link": []string{`</v2/_catalog?n=2&last=b>; rel="next"`},
				}),
			))

			catalog, err := client.Catalog(ctx, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(catalog.Repositories).To(gomega.Equal([]string{"a", "b"}))
			gomega.Expect(catalog.NextPage).To(gomega.Equal("n=2&last=b"))
		})

		ginkgo.It("should forward the page token and report the last page", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/_catalog", "n=2&last=b"),
				ghttp.RespondWith(http.StatusOK, `{"repositories":["c"]}`),
			))

			catalog, err := client.Catalog(ctx, "n=2&last=b")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(catalog.Repositories).To(gomega.Equal([]string{"c"}))
			gomega.Expect(catalog.NextPage).To(gomega.BeEmpty())
		})

		ginkgo.It("should map malformed bodies to parse errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"repositories":`))

			_, err := client.Catalog(ctx, "")
			gomega.Expect(err).To(gomega.MatchError(registry.ErrParse))
		})

		ginkgo.It("should follow every page in Repositories", func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, `{"repositories":["a"]}`, http.Header{
					"Link": []string{`</v2/_catalog?n=1&last=a>; rel="next"`},
				}),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/v2/_catalog", "n=1&last=a"),
					ghttp.RespondWith(http.StatusOK, `{"repositories":["b"]}`),
				),
			)

			repos, err := client.Repositories(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repos).To(gomega.Equal([]string{"a", "b"}))
		})

		ginkgo.It("should stop when a registry repeats its token", func() {
			looping := ghttp.RespondWith(http.StatusOK, `{"repositories":["a"]}`, http.Header{
				"Link": []string{`</v2/_catalog?n=1&last=a>; rel=next`},
			})
			server.AppendHandlers(looping, looping)

			repos, err := client.Repositories(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repos).To(gomega.Equal([]string{"a", "a"}))
			gomega.Expect(server.ReceivedRequests()).To(gomega.HaveLen(2))
		})
	})

	ginkgo.Describe("Tags", func() {
		ginkgo.It("should list tags", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/library/alpine/tags/list"),
				ghttp.RespondWith(http.StatusOK, `{"name":"library/alpine","tags":["3.19","3.20"]}`),
			))

			tags, err := client.Tags(ctx, "library/alpine")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tags.Name).To(gomega.Equal("library/alpine"))
			gomega.Expect(tags.Tags).To(gomega.Equal([]string{"3.19", "3.20"}))
		})

		ginkgo.It("should return an empty list for a null tag array", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"name":"app","tags":null}`))

			tags, err := client.Tags(ctx, "app")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tags.Tags).NotTo(gomega.BeNil())
			gomega.Expect(tags.Tags).To(gomega.BeEmpty())
		})

		ginkgo.It("should annotate 404 with the repository and registry detail", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound,
				`{"errors":[{"code":"NAME_UNKNOWN","message":"repository name not known to registry"}]}`))

			_, err := client.Tags(ctx, "missing")
			gomega.Expect(err).To(gomega.MatchError(registry.ErrNotFound))
			gomega.Expect(errdefs.IsNotFound(err)).To(gomega.BeTrue())

			var apiErr *registry.APIError
			gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
			gomega.Expect(apiErr.Message).To(gomega.Equal("Failed to get tags for missing"))
			gomega.Expect(apiErr.Target).To(gomega.Equal("missing"))
			gomega.Expect(apiErr.Detail).To(gomega.Equal("NAME_UNKNOWN: repository name not known to registry"))
			gomega.Expect(apiErr.Error()).To(gomega.HavePrefix("Resource not found: Failed to get tags for missing"))
		})
	})

	ginkgo.DescribeTable("status mapping",
		func(status int, expected error, message string) {
			server.AppendHandlers(ghttp.RespondWith(status, ""))

			_, err := client.Tags(ctx, "app")
			gomega.Expect(err).To(gomega.MatchError(expected))
			gomega.Expect(err.Error()).To(gomega.Equal(message))
		},
		ginkgo.Entry("401", http.StatusUnauthorized, registry.ErrUnauthorized, "Authentication required"),
		ginkgo.Entry("403", http.StatusForbidden, registry.ErrForbidden, "Access forbidden"),
		ginkgo.Entry("404", http.StatusNotFound, registry.ErrNotFound, "Resource not found: Failed to get tags for app"),
		ginkgo.Entry("429", http.StatusTooManyRequests, registry.ErrRateLimited, "Rate limited, retry after 60 seconds"),
		ginkgo.Entry("500", http.StatusInternalServerError, registry.ErrServer, "Server error: Failed to get tags for app"),
		ginkgo.Entry("599", 599, registry.ErrServer, "Server error: Failed to get tags for app"),
		ginkgo.Entry("418", http.StatusTeapot, registry.ErrNetwork, "Network error: Failed to get tags for app"),
	)

	ginkgo.It("should attach the challenge to unauthorized errors", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, "", http.Header{
			"WWW-Authenticate": []string{`Bearer realm="https://auth.example.com/token",scope="repository:app:pull"`},
		}))

		_, err := client.Tags(ctx, "app")

		var apiErr *registry.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.Challenge).NotTo(gomega.BeNil())
		gomega.Expect(apiErr.Challenge.Scope()).To(gomega.Equal("repository:app:pull"))
		gomega.Expect(apiErr.Retryable()).To(gomega.BeFalse())
	})

	ginkgo.It("should report a fixed retry delay for rate limiting", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, "", http.Header{
			"Retry-After": []string{"5"},
		}))

		_, err := client.Tags(ctx, "app")

		var apiErr *registry.APIError
		gomega.Expect(errors.As(err, &apiErr)).To(gomega.BeTrue())
		gomega.Expect(apiErr.RetryAfter).To(gomega.Equal(uint64(60)))
		gomega.Expect(apiErr.Retryable()).To(gomega.BeTrue())
	})

	ginkgo.Describe("Manifest", func() {
		ginkgo.It("should advertise every schema and return the digest", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/library/alpine/manifests/latest"),
				ghttp.VerifyHeaderKV("Accept", manifest.AcceptHeader),
				ghttp.RespondWith(http.StatusOK, v2Manifest, http.Header{
					registry.ContentDigestHeader: []string{mockDigest},
				}),
			))

			m, digest, err := client.Manifest(ctx, "library/alpine", "latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(digest).To(gomega.Equal(mockDigest))
			gomega.Expect(m.Kind).To(gomega.Equal(manifest.KindV2))
			gomega.Expect(m.TotalSize()).To(gomega.Equal(uint64(30)))
		})

		ginkgo.It("should return an empty digest when the header is absent", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, v2Manifest))

			_, digest, err := client.Manifest(ctx, "app", "latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(digest).To(gomega.BeEmpty())
		})

		ginkgo.It("should annotate errors with repository and reference", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, ""))

			_, _, err := client.Manifest(ctx, "app", "gone")
			gomega.Expect(err).To(gomega.MatchError(registry.ErrNotFound))
			gomega.Expect(err.Error()).To(gomega.Equal("Resource not found: Failed to get manifest for app:gone"))
		})

		ginkgo.It("should map undecodable manifests to parse errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"schemaVersion":2,"manifests":[]}`))

			_, _, err := client.Manifest(ctx, "app", "latest")
			gomega.Expect(err).To(gomega.MatchError(registry.ErrParse))
			gomega.Expect(errdefs.IsDataLoss(err)).To(gomega.BeTrue())
		})

		ginkgo.It("should render a masked curl command", func() {
			authed, err := registry.NewClient(server.URL(), types.BasicAuth("admin", "secret"))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			curl := authed.ManifestCurl("app", "latest")
			gomega.Expect(curl).To(gomega.ContainSubstring("'Authorization: Basic ***'"))
			gomega.Expect(curl).NotTo(gomega.ContainSubstring("secret"))
			gomega.Expect(curl).To(gomega.HaveSuffix("'" + server.URL() + "/v2/app/manifests/latest'"))
		})
	})

	ginkgo.Describe("DeleteManifest", func() {
		ginkgo.It("should accept 202 and 200", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodDelete, "/v2/app/manifests/"+mockDigest),
					ghttp.RespondWith(http.StatusAccepted, ""),
				),
				ghttp.RespondWith(http.StatusOK, ""),
			)

			gomega.Expect(client.DeleteManifest(ctx, "app", mockDigest)).To(gomega.Succeed())
			gomega.Expect(client.DeleteManifest(ctx, "app", mockDigest)).To(gomega.Succeed())
		})

		ginkgo.It("should fail for registries with deletion disabled", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusMethodNotAllowed,
				`{"errors":[{"code":"UNSUPPORTED","message":"The operation is unsupported."}]}`))

			err := client.DeleteManifest(ctx, "app", mockDigest)
			gomega.Expect(err).To(gomega.MatchError(registry.ErrNetwork))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("Failed to delete manifest " + mockDigest))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("UNSUPPORTED"))
		})
	})

	ginkgo.Describe("HeadBlob", func() {
		ginkgo.It("should read size and media type from headers", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodHead, "/v2/app/blobs/"+mockDigest),
				ghttp.RespondWith(http.StatusOK, "", http.Header{
					"Content-Length": []string{"1234"},
					"Content-Type":   []string{"application/octet-stream"},
				}),
			))

			blob, err := client.HeadBlob(ctx, "app", mockDigest)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(blob.Digest).To(gomega.Equal(mockDigest))
			gomega.Expect(blob.Size).To(gomega.Equal(uint64(1234)))
			gomega.Expect(blob.MediaType).To(gomega.Equal("application/octet-stream"))
		})

		ginkgo.It("should default the size to zero", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, ""))

			blob, err := client.HeadBlob(ctx, "app", mockDigest)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(blob.Size).To(gomega.BeZero())
		})

		ginkgo.It("should annotate errors with the digest", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, ""))

			_, err := client.HeadBlob(ctx, "app", mockDigest)
			gomega.Expect(err.Error()).To(gomega.Equal("Resource not found: Failed to get blob " + mockDigest))
		})
	})

	ginkgo.Describe("ImageConfig", func() {
		ginkgo.It("should decode the config blob with its history", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v2/app/blobs/"+mockDigest),
				ghttp.RespondWith(http.StatusOK, `{
					"architecture": "amd64",
					"os": "linux",
					"rootfs": {"type": "layers", "diff_ids": []},
					"history": [
						{"created": "2024-02-01T00:00:00Z", "created_by": "CMD sh", "empty_layer": true},
						{"created": "2024-01-01T00:00:00Z", "created_by": "ADD rootfs.tar /"}
					]
				}`),
			))

			config, err := client.ImageConfig(ctx, "app", mockDigest)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(config.Architecture).To(gomega.Equal("amd64"))
			gomega.Expect(config.OS).To(gomega.Equal("linux"))

			history := manifest.SortedHistory(config)
			gomega.Expect(history).To(gomega.HaveLen(2))
			gomega.Expect(history[0].CreatedBy).To(gomega.Equal("ADD rootfs.tar /"))
			gomega.Expect(history[1].EmptyLayer).To(gomega.BeTrue())
		})

		ginkgo.It("should report undecodable blobs as parse errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "not json"))

			_, err := client.ImageConfig(ctx, "app", mockDigest)
			gomega.Expect(err).To(gomega.MatchError(registry.ErrParse))
		})
	})

	ginkgo.Describe("TagDetails", func() {
		ginkgo.It("should resolve digest and size per tag in order", func() {
			server.RouteToHandler(http.MethodGet, "/v2/app/manifests/a", ghttp.RespondWith(http.StatusOK, v2Manifest,
				http.Header{registry.ContentDigestHeader: []string{"sha256:aa"}}))
			server.RouteToHandler(http.MethodGet, "/v2/app/manifests/b", ghttp.RespondWith(http.StatusNotFound, ""))
			server.RouteToHandler(http.MethodGet, "/v2/app/manifests/c", ghttp.RespondWith(http.StatusOK, v2Manifest,
				http.Header{registry.ContentDigestHeader: []string{"sha256:cc"}}))

			details, err := client.TagDetails(ctx, "app", []string{"a", "b", "c"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(details).To(gomega.Equal([]types.TagInfo{
				{Name: "a", Digest: "sha256:aa", Size: 30},
				{Name: "b"},
				{Name: "c", Digest: "sha256:cc", Size: 30},
			}))
		})

		ginkgo.It("should abort on authorization failures", func() {
			server.RouteToHandler(http.MethodGet, "/v2/app/manifests/a", ghttp.RespondWith(http.StatusForbidden, ""))

			_, err := client.TagDetails(ctx, "app", []string{"a"})
			gomega.Expect(err).To(gomega.MatchError(registry.ErrForbidden))
		})
	})

	ginkgo.Describe("metrics", func() {
		ginkgo.It("should count requests by operation and outcome", func() {
			reg := prometheus.NewRegistry()
			m, err := metrics.NewWithRegistry(reg)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			defer m.Shutdown()

			instrumented, err := registry.NewClient(server.URL(), types.Anonymous(), registry.WithMetrics(m))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, `{"name":"app","tags":[]}`),
				ghttp.RespondWith(http.StatusNotFound, ""),
			)

			_, _ = instrumented.Tags(ctx, "app")
			_, _ = instrumented.Tags(ctx, "app")

			count, err := testutil.GatherAndCount(reg, "regman_registry_requests_total")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(count).To(gomega.Equal(2))
		})
	})
})
