// Package manifest decodes image manifests returned by registries.
// A manifest body may be a Docker schema 2, OCI image or Docker schema 1 document;
// Decode tries each shape in that order and returns the first that fits.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types understood by the decoder.
const (
	MediaTypeDockerV2 = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerV1 = "application/vnd.docker.distribution.manifest.v1+json"
	MediaTypeOCI      = v1.MediaTypeImageManifest
)

// AcceptHeader advertises, in order of preference, the manifest formats regman decodes.
const AcceptHeader = MediaTypeDockerV2 + ", " + MediaTypeOCI + ", " + MediaTypeDockerV1

// Errors for manifest decoding.
var (
	errMissingField = errors.New("missing required field")
	errUndecodable  = errors.New("manifest does not match any known schema")
)

// Kind identifies the decoded manifest schema.
type Kind string

// Manifest schema kinds.
const (
	KindV2  Kind = "v2"
	KindOCI Kind = "oci"
	KindV1  Kind = "v1"
)

// Descriptor references a blob by media type, size and digest.
type Descriptor struct {
	MediaType string `json:"mediaType"`
	Size      uint64 `json:"size"`
	Digest    string `json:"digest"`
}

// V2 is a Docker image manifest, schema version 2.
type V2 struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// OCI is an OCI image manifest. MediaType is optional in the document.
type OCI struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType,omitempty"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// FSLayer is a schema 1 layer reference.
type FSLayer struct {
	BlobSum string `json:"blobSum"`
}

// V1History is a schema 1 history entry.
type V1History struct {
	V1Compatibility string `json:"v1Compatibility"`
}

// V1 is a legacy Docker image manifest, schema version 1.
type V1 struct {
	SchemaVersion int         `json:"schemaVersion"`
	Name          string      `json:"name"`
	Tag           string      `json:"tag"`
	Architecture  string      `json:"architecture"`
	FSLayers      []FSLayer   `json:"fsLayers"`
	History       []V1History `json:"history"`
}

// Manifest holds exactly one decoded schema, selected by Kind.
type Manifest struct {
	Kind Kind `json:"kind"`
	V2   *V2  `json:"v2,omitempty"`
	OCI  *OCI `json:"oci,omitempty"`
	V1   *V1  `json:"v1,omitempty"`
}

// MediaType returns the manifest media type. An OCI manifest without one
// reports the OCI image manifest type.
func (m *Manifest) MediaType() string {
	switch m.Kind {
	case KindV2:
		return m.V2.MediaType
	case KindOCI:
		if m.OCI.MediaType == "" {
			return MediaTypeOCI
		}

		return m.OCI.MediaType
	case KindV1:
		return MediaTypeDockerV1
	default:
		return ""
	}
}

// Layers returns the layer descriptors. Schema 1 manifests carry none.
func (m *Manifest) Layers() []Descriptor {
	switch m.Kind {
	case KindV2:
		return m.V2.Layers
	case KindOCI:
		return m.OCI.Layers
	default:
		return []Descriptor{}
	}
}

// Config returns the config descriptor, if the schema has one.
func (m *Manifest) Config() (Descriptor, bool) {
	switch m.Kind {
	case KindV2:
		return m.V2.Config, true
	case KindOCI:
		return m.OCI.Config, true
	default:
		return Descriptor{}, false
	}
}

// TotalSize returns the sum of the layer sizes.
func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, layer := range m.Layers() {
		total += layer.Size
	}

	return total
}

// Decode decodes a manifest body, trying V2, then OCI, then V1.
// If no shape fits, the V1 error is returned wrapped.
func Decode(data []byte) (*Manifest, error) {
	if v2, err := decodeV2(data); err == nil {
		return &Manifest{Kind: KindV2, V2: v2}, nil
	}

	if oci, err := decodeOCI(data); err == nil {
		return &Manifest{Kind: KindOCI, OCI: oci}, nil
	}

	v1m, err := decodeV1(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUndecodable, err)
	}

	return &Manifest{Kind: KindV1, V1: v1m}, nil
}

// The shape types below use pointers so that absent fields can be told apart
// from zero values.

type descriptorShape struct {
	MediaType *string `json:"mediaType"`
	Size      *uint64 `json:"size"`
	Digest    *string `json:"digest"`
}

type imageShape struct {
	SchemaVersion *int               `json:"schemaVersion"`
	MediaType     *string            `json:"mediaType"`
	Config        *descriptorShape   `json:"config"`
	Layers        *[]descriptorShape `json:"layers"`
}

type v1Shape struct {
	SchemaVersion *int         `json:"schemaVersion"`
	Name          *string      `json:"name"`
	Tag           *string      `json:"tag"`
	Architecture  *string      `json:"architecture"`
	FSLayers      *[]FSLayer   `json:"fsLayers"`
	History       *[]V1History `json:"history"`
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode manifest: %w", err)
	}

	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", errMissingField, field)
}

func (d *descriptorShape) descriptor(field string) (Descriptor, error) {
	switch {
	case d == nil:
		return Descriptor{}, missing(field)
	case d.MediaType == nil:
		return Descriptor{}, missing(field + ".mediaType")
	case d.Size == nil:
		return Descriptor{}, missing(field + ".size")
	case d.Digest == nil:
		return Descriptor{}, missing(field + ".digest")
	}

	return Descriptor{MediaType: *d.MediaType, Size: *d.Size, Digest: *d.Digest}, nil
}

// body checks the fields shared by V2 and OCI manifests.
func (s *imageShape) body() (Descriptor, []Descriptor, error) {
	if s.SchemaVersion == nil {
		return Descriptor{}, nil, missing("schemaVersion")
	}

	config, err := s.Config.descriptor("config")
	if err != nil {
		return Descriptor{}, nil, err
	}

	if s.Layers == nil {
		return Descriptor{}, nil, missing("layers")
	}

	layers := make([]Descriptor, 0, len(*s.Layers))
	for i, layer := range *s.Layers {
		d, err := layer.descriptor(fmt.Sprintf("layers[%d]", i))
		if err != nil {
			return Descriptor{}, nil, err
		}

		layers = append(layers, d)
	}

	return config, layers, nil
}

func decodeV2(data []byte) (*V2, error) {
	var shape imageShape
	if err := unmarshal(data, &shape); err != nil {
		return nil, err
	}

	if shape.MediaType == nil {
		return nil, missing("mediaType")
	}

	config, layers, err := shape.body()
	if err != nil {
		return nil, err
	}

	return &V2{
		SchemaVersion: *shape.SchemaVersion,
		MediaType:     *shape.MediaType,
		Config:        config,
		Layers:        layers,
	}, nil
}

func decodeOCI(data []byte) (*OCI, error) {
	var shape imageShape
	if err := unmarshal(data, &shape); err != nil {
		return nil, err
	}

	config, layers, err := shape.body()
	if err != nil {
		return nil, err
	}

	oci := &OCI{
		SchemaVersion: *shape.SchemaVersion,
		Config:        config,
		Layers:        layers,
	}
	if shape.MediaType != nil {
		oci.MediaType = *shape.MediaType
	}

	return oci, nil
}

func decodeV1(data []byte) (*V1, error) {
	var shape v1Shape
	if err := unmarshal(data, &shape); err != nil {
		return nil, err
	}

	switch {
	case shape.SchemaVersion == nil:
		return nil, missing("schemaVersion")
	case shape.Name == nil:
		return nil, missing("name")
	case shape.Tag == nil:
		return nil, missing("tag")
	case shape.Architecture == nil:
		return nil, missing("architecture")
	}

	manifest := &V1{
		SchemaVersion: *shape.SchemaVersion,
		Name:          *shape.Name,
		Tag:           *shape.Tag,
		Architecture:  *shape.Architecture,
		FSLayers:      []FSLayer{},
		History:       []V1History{},
	}

	if shape.FSLayers != nil {
		manifest.FSLayers = *shape.FSLayers
	}

	if shape.History != nil {
		manifest.History = *shape.History
	}

	return manifest, nil
}
