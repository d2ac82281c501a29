package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/internal/actions"
	"github.com/nicholas-fedor/regman/internal/actions/mocks"
	"github.com/nicholas-fedor/regman/pkg/cache"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/session"
	"github.com/nicholas-fedor/regman/pkg/types"
)

func TestActions(t *testing.T) {
	t.Parallel()
	gomega.RegisterFailHandler(ginkgo.Fail)
	logrus.SetOutput(ginkgo.GinkgoWriter)
	logrus.SetLevel(logrus.DebugLevel)
	ginkgo.RunSpecs(t, "Actions Suite")
}

var errBoom = errors.New("boom")

var _ = ginkgo.Describe("the actions package", func() {
	ginkgo.Describe("DeleteTags", func() {
		var client *mocks.MockClient

		ginkgo.BeforeEach(func() {
			client = mocks.CreateMockClient(&mocks.TestData{
				Digests: map[string]string{
					"app:a": "sha256:aa",
					"app:b": "sha256:bb",
					"app:c": "sha256:cc",
				},
			})
		})

		ginkgo.When("every tag can be deleted", func() {
			ginkgo.It("should resolve and delete each tag in order", func() {
				report := actions.DeleteTags(context.Background(), client, "app", []string{"a", "b", "c"}, nil)

				gomega.Expect(report.Deleted).To(gomega.Equal(3))
				gomega.Expect(report.Failed).To(gomega.BeZero())
				gomega.Expect(report.Err()).NotTo(gomega.HaveOccurred())
				gomega.Expect(client.TestData.Requests).To(gomega.Equal([]string{
					"GET app:a", "DELETE app@sha256:aa",
					"GET app:b", "DELETE app@sha256:bb",
					"GET app:c", "DELETE app@sha256:cc",
				}))
			})
		})

		ginkgo.When("deleting one tag fails", func() {
			ginkgo.It("should continue with the remaining tags and tally the failure", func() {
				client.TestData.FailDelete = map[string]error{
					"sha256:bb": registry.FromStatus(403, "Failed to delete manifest"),
				}

				report := actions.DeleteTags(context.Background(), client, "app", []string{"a", "b", "c"}, nil)

				gomega.Expect(report.Deleted).To(gomega.Equal(2))
				gomega.Expect(report.Failed).To(gomega.Equal(1))
				gomega.Expect(report.Errors).To(gomega.HaveLen(1))
				gomega.Expect(report.Errors[0]).To(gomega.HavePrefix("b: "))
				gomega.Expect(report.Errors[0]).To(gomega.ContainSubstring("Access forbidden"))
				gomega.Expect(client.TestData.Requests).To(gomega.ContainElement("DELETE app@sha256:cc"))
				gomega.Expect(report.DeletedTags).To(gomega.Equal([]string{"a", "c"}))
				gomega.Expect(report.Err()).To(gomega.MatchError(registry.ErrForbidden))
			})
		})

		ginkgo.When("a tag does not exist", func() {
			ginkgo.It("should record the lookup failure without sending a DELETE", func() {
				report := actions.DeleteTags(context.Background(), client, "app", []string{"missing"}, nil)

				gomega.Expect(report.Failed).To(gomega.Equal(1))
				gomega.Expect(report.Err()).To(gomega.MatchError(registry.ErrNotFound))
				gomega.Expect(client.TestData.Requests).To(gomega.Equal([]string{"GET app:missing"}))
			})
		})

		ginkgo.When("the registry returns no digest", func() {
			ginkgo.It("should fail the tag with a clear message", func() {
				client.TestData.Digests["app:a"] = ""

				report := actions.DeleteTags(context.Background(), client, "app", []string{"a"}, nil)

				gomega.Expect(report.Errors).To(gomega.Equal([]string{"a: no digest returned"}))
				gomega.Expect(client.TestData.Deleted).To(gomega.BeEmpty())
			})
		})

		ginkgo.When("the manifest request errors", func() {
			ginkgo.It("should wrap the cause", func() {
				client.TestData.FailManifest = map[string]error{"app:a": errBoom}

				report := actions.DeleteTags(context.Background(), client, "app", []string{"a", "b"}, nil)

				gomega.Expect(report.Deleted).To(gomega.Equal(1))
				gomega.Expect(report.Err()).To(gomega.MatchError(errBoom))
			})
		})

		ginkgo.It("should report progress after every tag", func() {
			var seen []string

			report := actions.DeleteTags(context.Background(), client, "app", []string{"a", "a", "zzz"},
				func(completed, total int, status *session.TagStatus) {
					gomega.Expect(total).To(gomega.Equal(2))
					seen = append(seen, status.Tag()+"="+status.State().String())
					gomega.Expect(completed).To(gomega.Equal(len(seen)))
				})

			gomega.Expect(seen).To(gomega.Equal([]string{"a=deleted", "zzz=failed"}))
			gomega.Expect(report.Total()).To(gomega.Equal(2))
		})

		ginkgo.It("should stop contacting the registry once the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())

			report := actions.DeleteTags(ctx, client, "app", []string{"a", "b", "c"},
				func(completed, _ int, _ *session.TagStatus) {
					if completed == 1 {
						cancel()
					}
				})

			gomega.Expect(report.Deleted).To(gomega.Equal(1))
			gomega.Expect(report.Failed).To(gomega.Equal(2))
			gomega.Expect(report.Err()).To(gomega.MatchError(context.Canceled))
			gomega.Expect(client.TestData.Requests).To(gomega.HaveLen(2))
		})
	})

	ginkgo.Describe("RefreshRegistries", func() {
		var (
			store     *cache.Store
			m         *metrics.Metrics
			reg       *prometheus.Registry
			configs   []types.RegistryConfig
			clients   map[string]*mocks.MockClient
			newClient actions.ClientFactory
		)

		ginkgo.BeforeEach(func() {
			store = cache.NewStore(3600)
			ginkgo.DeferCleanup(store.Close)

			reg = prometheus.NewRegistry()

			var err error
			m, err = metrics.NewWithRegistry(reg)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			ginkgo.DeferCleanup(m.Shutdown)

			configs = []types.RegistryConfig{
				types.NewRegistryConfig("up", "http://up", types.Anonymous()),
				types.NewRegistryConfig("locked", "http://locked", types.Anonymous()),
				types.NewRegistryConfig("down", "http://down", types.Anonymous()),
				types.NewRegistryConfig("broken", "http://broken", types.Anonymous()),
			}

			challenge, _ := auth.ParseChallenge(`Bearer realm="https://auth.example/token"`)

			clients = map[string]*mocks.MockClient{
				"up": mocks.CreateMockClient(&mocks.TestData{Repositories: []string{"alpine", "nginx"}}),
				"locked": mocks.CreateMockClient(&mocks.TestData{
					PingChallenge:   challenge,
					RepositoriesErr: registry.FromStatus(401, "Failed to get catalog"),
				}),
				"down": mocks.CreateMockClient(&mocks.TestData{PingErr: &registry.APIError{Kind: registry.KindNetwork, Message: "connection refused"}}),
			}

			newClient = func(config types.RegistryConfig) (actions.CatalogClient, error) {
				client, ok := clients[config.Name]
				if !ok {
					return nil, errBoom
				}

				return client, nil
			}
		})

		ginkgo.It("should record a status per registry and cache reachable catalogs", func() {
			results := actions.RefreshRegistries(context.Background(), configs, newClient, store, m)

			gomega.Expect(results).To(gomega.HaveLen(4))

			gomega.Expect(results[0].Status.State).To(gomega.Equal(types.StateConnected))
			gomega.Expect(results[0].Repositories).To(gomega.Equal(2))
			gomega.Expect(results[0].Cached).To(gomega.BeTrue())

			cached, ok := cache.Get[[]string](store, configs[0].ID, cache.CatalogKind)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(cached.Data).To(gomega.Equal([]string{"alpine", "nginx"}))

			gomega.Expect(results[1].Status.State).To(gomega.Equal(types.StateConnected))
			gomega.Expect(results[1].Cached).To(gomega.BeFalse())

			gomega.Expect(results[2].Status.State).To(gomega.Equal(types.StateDisconnected))

			gomega.Expect(results[3].Status.State).To(gomega.Equal(types.StateError))
			gomega.Expect(results[3].Status.Message).To(gomega.ContainSubstring("boom"))

			gomega.Expect(testutil.GatherAndCount(reg, "regman_registry_up")).To(gomega.Equal(4))
		})
	})

	ginkgo.Describe("ConnectionStatusOf", func() {
		ginkgo.It("should separate transport failures from registry errors", func() {
			gomega.Expect(actions.ConnectionStatusOf(nil).State).To(gomega.Equal(types.StateConnected))
			gomega.Expect(actions.ConnectionStatusOf(registry.FromStatus(500, "Registry not available")).String()).
				To(gomega.Equal("Error: Server error: Registry not available"))
		})
	})
})
