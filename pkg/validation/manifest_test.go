package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

const sampleManifest = `
name: products
embedding_dim: 3
embedding_type: float
distance: dot_product
compression: true
user_info: "catalog v2"
input: products.jsonl
output: products.ldb
partitioner:
  leaves:
    - [0, 0, 1]
    - [1, 0, 0]
  search_fraction: 0.5
store:
  kind: s3
  bucket: indexes
  prefix: prod
  region: eu-west-1
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	if m.EmbeddingDim != 3 || !m.Compression || m.UserInfo != "catalog v2" {
		t.Errorf("Unexpected manifest fields: %+v", m)
	}
	if m.Store.Kind != StoreS3 || m.Store.Bucket != "indexes" || m.Store.Prefix != "prod" {
		t.Errorf("Unexpected store: %+v", m.Store)
	}
	if m.EmbeddingTypeValue() != scann.EmbeddingTypeFloat {
		t.Errorf("EmbeddingTypeValue = %v", m.EmbeddingTypeValue())
	}

	config := m.ScannConfig()
	if config.QueryDistance != scann.DistanceDotProduct {
		t.Errorf("QueryDistance = %v, want dot product", config.QueryDistance)
	}
	if config.Partitioner == nil || config.Partitioner.NumPartitions() != 2 {
		t.Fatalf("Partitioner = %+v", config.Partitioner)
	}
	// Partitioner distance defaults to the index distance
	if config.Partitioner.QueryDistance != scann.DistanceDotProduct {
		t.Errorf("Partitioner distance = %v", config.Partitioner.QueryDistance)
	}
	if config.Partitioner.SearchFraction != 0.5 {
		t.Errorf("SearchFraction = %v", config.Partitioner.SearchFraction)
	}
}

func TestParseManifest_Defaults(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: tiny
embedding_dim: 4
embedding_type: uint8
input: in.jsonl
output: out.ldb
`))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if m.Distance != DistanceSquaredL2 {
		t.Errorf("Distance = %q, want %q", m.Distance, DistanceSquaredL2)
	}
	if m.Store.Kind != StoreLocal || m.Store.Dir != "." {
		t.Errorf("Store = %+v, want local store next to the manifest", m.Store)
	}
	if m.EmbeddingTypeValue() != scann.EmbeddingTypeUint8 {
		t.Errorf("EmbeddingTypeValue = %v", m.EmbeddingTypeValue())
	}
	if m.ScannConfig().Partitioner != nil {
		t.Error("Expected no partitioner")
	}
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "name: x\nembedding_dim: 2\nembedding_type: float\ninput: a\noutput: b\ncolour: red\n"},
		{"wrong type", "name: x\nembedding_dim: two\n"},
		{"missing input", "name: x\nembedding_dim: 2\nembedding_type: float\noutput: b\n"},
		{"leaf mismatch", "name: x\nembedding_dim: 2\nembedding_type: float\ninput: a\noutput: b\npartitioner:\n  leaves: [[1, 2, 3]]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("Expected ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Name != "products" {
		t.Errorf("Name = %q", m.Name)
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing manifest")
	}
}
