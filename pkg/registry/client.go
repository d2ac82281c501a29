package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nicholas-fedor/regman/internal/meta"
	"github.com/nicholas-fedor/regman/pkg/metrics"
	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/registry/helpers"
	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
	"github.com/nicholas-fedor/regman/pkg/types"
)

// HTTP headers used by the registry API.
const (
	ContentDigestHeader = "Docker-Content-Digest"
	LinkHeader          = "Link"
)

// DefaultTimeout bounds every registry request unless overridden.
const DefaultTimeout = 30 * time.Second

// tagDetailConcurrency bounds parallel manifest requests in TagDetails.
const tagDetailConcurrency = 4

// maxErrorBody caps how much of a failure body is read for error detail.
const maxErrorBody = 64 << 10

// Client talks to one registry's /v2/ API.
//
// A Client holds no per-request state and is safe for concurrent use.
// It never retries on its own.
type Client struct {
	baseURL    string
	auth       types.AuthConfig
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	transport  TransportOptions
	metrics    *metrics.Metrics
}

// WithHTTPClient uses the given HTTP client instead of building one.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) { o.timeout = timeout }
}

// WithInsecure disables TLS certificate verification.
func WithInsecure(insecure bool) Option {
	return func(o *clientOptions) { o.transport.Insecure = insecure }
}

// WithCAFile trusts the certificates in a PEM bundle in addition to the system roots.
func WithCAFile(path string) Option {
	return func(o *clientOptions) { o.transport.CAFile = path }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient creates a client for the registry at baseURL. One trailing slash
// is stripped from the URL.
func NewClient(baseURL string, authConfig types.AuthConfig, opts ...Option) (*Client, error) {
	options := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	baseURL = types.NormalizeURL(baseURL)

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &APIError{Kind: KindInvalidURL, Op: "new", Message: baseURL, Err: err}
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &APIError{Kind: KindInvalidURL, Op: "new", Message: baseURL}
	}

	httpClient := options.httpClient
	if httpClient == nil {
		transport, err := NewTransport(authConfig, options.transport)
		if err != nil {
			return nil, &APIError{Kind: KindNetwork, Op: "new", Message: err.Error(), Err: err}
		}

		httpClient = &http.Client{Transport: transport, Timeout: options.timeout}
	}

	return &Client{
		baseURL:    baseURL,
		auth:       authConfig,
		httpClient: httpClient,
		metrics:    options.metrics,
	}, nil
}

// BaseURL returns the normalized registry URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the registry serves the /v2/ API. A 401 response counts as
// available; its parsed challenge, if any, is returned so callers can see which
// scheme the registry expects.
func (c *Client) Ping(ctx context.Context) (*auth.Challenge, error) {
	const op = "ping"

	resp, err := c.do(ctx, op, http.MethodGet, "/v2/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		c.observe(op, "success")

		return nil, nil
	case http.StatusUnauthorized:
		c.observe(op, "success")

		challenge, _ := auth.ParseChallenge(resp.Header.Get(auth.ChallengeHeader))

		logrus.WithFields(logrus.Fields{
			"registry": c.baseURL,
			"scheme":   challengeScheme(challenge),
		}).Debug("Registry requires authentication")

		return challenge, nil
	default:
		return nil, c.fail(op, "", resp, "Registry not available")
	}
}

// Catalog fetches one page of the repository catalog. pageToken is the raw
// query string returned as NextPage by the previous call, or empty for the first page.
func (c *Client) Catalog(ctx context.Context, pageToken string) (*types.CatalogResponse, error) {
	const op = "catalog"

	path := "/v2/_catalog"
	if pageToken != "" {
		path += "?" + pageToken
	}

	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(op, "", resp, "Failed to get catalog")
	}

	var catalog types.CatalogResponse
	if err := c.decode(op, "", resp, &catalog); err != nil {
		return nil, err
	}

	if catalog.Repositories == nil {
		catalog.Repositories = []string{}
	}

	catalog.NextPage, _ = helpers.ParseLinkHeader(resp.Header.Get(LinkHeader))

	c.observe(op, "success")

	return &catalog, nil
}

// Repositories follows catalog pagination and returns every repository.
// It stops if the registry repeats a continuation token.
func (c *Client) Repositories(ctx context.Context) ([]string, error) {
	var (
		repositories []string
		token        string
	)

	seen := map[string]bool{}

	for {
		page, err := c.Catalog(ctx, token)
		if err != nil {
			return nil, err
		}

		repositories = append(repositories, page.Repositories...)

		if page.NextPage == "" || seen[page.NextPage] {
			break
		}

		seen[page.NextPage] = true
		token = page.NextPage
	}

	if repositories == nil {
		repositories = []string{}
	}

	return repositories, nil
}

// Tags lists the tags of a repository.
func (c *Client) Tags(ctx context.Context, repo string) (*types.TagsResponse, error) {
	const op = "tags"

	resp, err := c.do(ctx, op, http.MethodGet, "/v2/"+repo+"/tags/list", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(op, repo, resp, "Failed to get tags for "+repo)
	}

	var tags types.TagsResponse
	if err := c.decode(op, repo, resp, &tags); err != nil {
		return nil, err
	}

	if tags.Tags == nil {
		tags.Tags = []string{}
	}

	c.observe(op, "success")

	return &tags, nil
}

// Manifest fetches the manifest for a tag or digest, returning it with the
// Docker-Content-Digest header value. An empty digest means the registry did not
// report one; it is not an error.
func (c *Client) Manifest(ctx context.Context, repo, reference string) (*manifest.Manifest, string, error) {
	const op = "manifest"

	target := repo + ":" + reference
	header := http.Header{"Accept": []string{manifest.AcceptHeader}}

	resp, err := c.do(ctx, op, http.MethodGet, "/v2/"+repo+"/manifests/"+reference, header)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.fail(op, target, resp, fmt.Sprintf("Failed to get manifest for %s:%s", repo, reference))
	}

	digest := resp.Header.Get(ContentDigestHeader)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.networkError(op, target, err)
	}

	decoded, err := manifest.Decode(body)
	if err != nil {
		c.observe(op, KindParse.String())

		return nil, "", &APIError{Kind: KindParse, Op: op, Target: target, Message: err.Error(), Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"registry":   c.baseURL,
		"repo":       repo,
		"reference":  reference,
		"digest":     digest,
		"media_type": decoded.MediaType(),
	}).Debug("Fetched manifest")

	c.observe(op, "success")

	return decoded, digest, nil
}

// DeleteManifest deletes a manifest by digest. Registries answer 200 or 202.
func (c *Client) DeleteManifest(ctx context.Context, repo, digest string) error {
	const op = "delete_manifest"

	resp, err := c.do(ctx, op, http.MethodDelete, "/v2/"+repo+"/manifests/"+digest, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return c.fail(op, repo+"@"+digest, resp, "Failed to delete manifest "+digest)
	}

	logrus.WithFields(logrus.Fields{
		"registry": c.baseURL,
		"repo":     repo,
		"digest":   digest,
	}).Info("Deleted manifest")

	c.observe(op, "success")

	return nil
}

// HeadBlob reads blob metadata from the headers of a HEAD request.
// A missing or unparseable Content-Length yields size zero.
func (c *Client) HeadBlob(ctx context.Context, repo, digest string) (*types.BlobInfo, error) {
	const op = "head_blob"

	resp, err := c.do(ctx, op, http.MethodHead, "/v2/"+repo+"/blobs/"+digest, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(op, repo+"@"+digest, resp, "Failed to get blob "+digest)
	}

	size, err := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		size = 0
	}

	c.observe(op, "success")

	return &types.BlobInfo{
		Digest:    digest,
		Size:      size,
		MediaType: resp.Header.Get("Content-Type"),
	}, nil
}

// ImageConfig fetches and decodes the image configuration blob a manifest points to.
func (c *Client) ImageConfig(ctx context.Context, repo, digest string) (*v1.Image, error) {
	const op = "image_config"

	target := repo + "@" + digest

	resp, err := c.do(ctx, op, http.MethodGet, "/v2/"+repo+"/blobs/"+digest, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(op, target, resp, "Failed to get blob "+digest)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.networkError(op, target, err)
	}

	config, err := manifest.DecodeConfig(body)
	if err != nil {
		c.observe(op, KindParse.String())

		return nil, &APIError{Kind: KindParse, Op: op, Target: target, Message: err.Error(), Err: err}
	}

	c.observe(op, "success")

	return config, nil
}

// TagDetails fetches the manifest of each tag with bounded concurrency and
// returns digest and total layer size per tag, in the order given. A tag that
// disappeared in the meantime is returned without digest; any other failure
// aborts the listing.
func (c *Client) TagDetails(ctx context.Context, repo string, tags []string) ([]types.TagInfo, error) {
	details := make([]types.TagInfo, len(tags))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(tagDetailConcurrency)

	for i, tag := range tags {
		details[i].Name = tag

		group.Go(func() error {
			m, digest, err := c.Manifest(groupCtx, repo, tag)
			if err != nil {
				if kind, ok := KindOf(err); ok && kind == KindNotFound {
					return nil
				}

				return err
			}

			details[i].Digest = digest
			details[i].Size = m.TotalSize()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return details, nil
}

// ManifestCurl renders the curl command equivalent to a Manifest call,
// with credentials masked.
func (c *Client) ManifestCurl(repo, reference string) string {
	header := http.Header{"Accept": []string{manifest.AcceptHeader}}
	if value, ok := auth.AuthorizationHeader(c.auth); ok {
		header.Set("Authorization", value)
	}

	return CurlCommand(http.MethodGet, c.baseURL+"/v2/"+repo+"/manifests/"+reference, header)
}

// do sends one request with the configured credentials.
func (c *Client) do(ctx context.Context, op, method, path string, header http.Header) (*http.Response, error) {
	target := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		c.observe(op, KindInvalidURL.String())

		return nil, &APIError{Kind: KindInvalidURL, Op: op, Message: target, Err: err}
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if value, ok := auth.AuthorizationHeader(c.auth); ok {
		req.Header.Set("Authorization", value)
	}

	req.Header.Set("User-Agent", meta.UserAgent)

	fields := logrus.Fields{
		"registry": c.baseURL,
		"method":   method,
		"url":      target,
	}
	logrus.WithFields(fields).Debug("Sending registry request")

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(fields).
			WithField("curl", CurlCommand(method, target, req.Header)).
			Trace("Registry request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	c.metrics.ObserveLatency(op, time.Since(start))

	if err != nil {
		logrus.WithError(err).WithFields(fields).Debug("Registry request failed")

		return nil, c.networkError(op, "", err)
	}

	logrus.WithFields(fields).WithField("status", resp.StatusCode).Debug("Received registry response")

	return resp, nil
}

// fail builds the error for an unexpected status, reading any registry error detail.
func (c *Client) fail(op, target string, resp *http.Response, message string) *APIError {
	apiErr := FromStatus(resp.StatusCode, message)
	apiErr.Op = op
	apiErr.Target = target

	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); err == nil {
		apiErr.Detail = parseErrorDetail(body)
	}

	if apiErr.Kind == KindUnauthorized {
		apiErr.Challenge, _ = auth.ParseChallenge(resp.Header.Get(auth.ChallengeHeader))
	}

	logrus.WithFields(logrus.Fields{
		"registry": c.baseURL,
		"op":       op,
		"target":   target,
		"status":   resp.StatusCode,
		"kind":     apiErr.Kind.String(),
	}).Debug("Registry request returned an error status")

	c.observe(op, apiErr.Kind.String())

	return apiErr
}

func (c *Client) networkError(op, target string, err error) *APIError {
	c.observe(op, KindNetwork.String())

	return &APIError{Kind: KindNetwork, Op: op, Target: target, Message: err.Error(), Err: err}
}

func (c *Client) decode(op, target string, resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.observe(op, KindParse.String())

		return &APIError{Kind: KindParse, Op: op, Target: target, Message: err.Error(), Err: err}
	}

	return nil
}

func (c *Client) observe(op, outcome string) {
	c.metrics.ObserveRequest(op, outcome)
}

func challengeScheme(challenge *auth.Challenge) string {
	if challenge == nil {
		return ""
	}

	return challenge.Scheme
}
