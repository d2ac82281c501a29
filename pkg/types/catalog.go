package types

// CatalogResponse is one page of the registry catalog.
// NextPage holds the raw query string of the next page, empty on the last page.
type CatalogResponse struct {
	Repositories []string `json:"repositories"`
	NextPage     string   `json:"next_page,omitempty"`
}

// TagsResponse is the body of a tag list request.
type TagsResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// BlobInfo describes a blob from the headers of a HEAD request.
type BlobInfo struct {
	Digest    string `json:"digest"`
	Size      uint64 `json:"size"`
	MediaType string `json:"media_type,omitempty"`
}

// TagInfo summarizes a tag's manifest.
type TagInfo struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   uint64 `json:"size"`
}
