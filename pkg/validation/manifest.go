package validation

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// Store kinds
const (
	StoreLocal = "local"
	StoreS3    = "s3"
)

// Embedding types and distances as spelled in manifests
const (
	EmbeddingFloat = "float"
	EmbeddingUint8 = "uint8"

	DistanceSquaredL2  = "squared_l2"
	DistanceDotProduct = "dot_product"
)

// BuildManifest describes one index build
type BuildManifest struct {
	Name          string           `yaml:"name" validate:"required,max=128"`
	EmbeddingDim  int              `yaml:"embedding_dim" validate:"required,gt=0,lte=65536"`
	EmbeddingType string           `yaml:"embedding_type" validate:"required,oneof=float uint8"`
	Distance      string           `yaml:"distance" validate:"omitempty,oneof=squared_l2 dot_product"`
	Compression   bool             `yaml:"compression"`
	BlockSize     int              `yaml:"block_size" validate:"omitempty,gte=256,lte=16777216"`
	UserInfo      string           `yaml:"user_info"`
	Input         string           `yaml:"input" validate:"required"`
	Output        string           `yaml:"output" validate:"required,blobname"`
	Partitioner   *PartitionerSpec `yaml:"partitioner"`
	Store         StoreSpec        `yaml:"store"`
}

// PartitionerSpec lists partition centroids
type PartitionerSpec struct {
	Leaves         [][]float32 `yaml:"leaves" validate:"required,min=1,dive,min=1"`
	QueryDistance  string      `yaml:"query_distance" validate:"omitempty,oneof=squared_l2 dot_product"`
	SearchFraction float32     `yaml:"search_fraction"`
}

// StoreSpec selects where built indexes are written
type StoreSpec struct {
	Kind            string `yaml:"kind" validate:"omitempty,oneof=local s3"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
}

// LoadManifest reads, defaults and validates the YAML manifest at path.
// Unknown keys are rejected.
func LoadManifest(path string) (*BuildManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes, defaults and validates a YAML manifest
func ParseManifest(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	m.ApplyDefaults()
	if err := ValidateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplyDefaults fills optional fields: squared L2 distance, a local store in
// the manifest's directory, and a partitioner searching every leaf.
func (m *BuildManifest) ApplyDefaults() {
	m.Distance = DefaultOr(m.Distance, DistanceSquaredL2)
	m.Store.Kind = DefaultOr(m.Store.Kind, StoreLocal)
	if m.Store.Kind == StoreLocal {
		m.Store.Dir = DefaultOr(m.Store.Dir, ".")
	}
	if m.Partitioner != nil {
		m.Partitioner.QueryDistance = DefaultOr(m.Partitioner.QueryDistance, m.Distance)
		m.Partitioner.SearchFraction = DefaultOr(m.Partitioner.SearchFraction, 1)
	}
}

// EmbeddingTypeValue returns the index embedding type
func (m *BuildManifest) EmbeddingTypeValue() scann.EmbeddingType {
	if m.EmbeddingType == EmbeddingUint8 {
		return scann.EmbeddingTypeUint8
	}
	return scann.EmbeddingTypeFloat
}

func distanceValue(name string) scann.DistanceMeasure {
	switch name {
	case DistanceSquaredL2:
		return scann.DistanceSquaredL2
	case DistanceDotProduct:
		return scann.DistanceDotProduct
	default:
		return scann.DistanceUnspecified
	}
}

// ScannConfig returns the search configuration stored in the built index
func (m *BuildManifest) ScannConfig() scann.ScannConfig {
	config := scann.ScannConfig{QueryDistance: distanceValue(m.Distance)}
	if m.Partitioner != nil {
		p := &scann.PartitionerConfig{
			QueryDistance:  distanceValue(m.Partitioner.QueryDistance),
			SearchFraction: m.Partitioner.SearchFraction,
			Leaves:         make([]scann.Leaf, len(m.Partitioner.Leaves)),
		}
		for i, leaf := range m.Partitioner.Leaves {
			p.Leaves[i] = scann.Leaf{Dimensions: leaf}
		}
		config.Partitioner = p
	}
	return config
}
