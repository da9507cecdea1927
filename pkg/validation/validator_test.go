package validation

import (
	"errors"
	"strings"
	"testing"
)

func validManifest() *BuildManifest {
	m := &BuildManifest{
		Name:          "products",
		EmbeddingDim:  2,
		EmbeddingType: EmbeddingFloat,
		Input:         "embeddings.jsonl",
		Output:        "indexes/products.ldb",
		Partitioner: &PartitionerSpec{
			Leaves:         [][]float32{{0, 0}, {1, 1}},
			SearchFraction: 0.5,
		},
	}
	m.ApplyDefaults()
	return m
}

// TestValidateManifest tests manifest validation
func TestValidateManifest(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(m *BuildManifest)
		expectError bool
		errorField  string
	}{
		{
			name:   "Valid manifest",
			mutate: func(m *BuildManifest) {},
		},
		{
			name:   "Valid without partitioner",
			mutate: func(m *BuildManifest) { m.Partitioner = nil },
		},
		{
			name: "Valid s3 store",
			mutate: func(m *BuildManifest) {
				m.Store = StoreSpec{Kind: StoreS3, Bucket: "indexes", Endpoint: "http://localhost:9000"}
			},
		},
		{
			name:        "Missing name",
			mutate:      func(m *BuildManifest) { m.Name = "" },
			expectError: true,
			errorField:  "name",
		},
		{
			name:        "Zero embedding dim",
			mutate:      func(m *BuildManifest) { m.EmbeddingDim = 0 },
			expectError: true,
			errorField:  "embedding_dim",
		},
		{
			name:        "Unknown embedding type",
			mutate:      func(m *BuildManifest) { m.EmbeddingType = "int4" },
			expectError: true,
			errorField:  "embedding_type",
		},
		{
			name:        "Unknown distance",
			mutate:      func(m *BuildManifest) { m.Distance = "cosine" },
			expectError: true,
			errorField:  "distance",
		},
		{
			name:        "Block size too small",
			mutate:      func(m *BuildManifest) { m.BlockSize = 16 },
			expectError: true,
			errorField:  "block_size",
		},
		{
			name:        "Output escapes store",
			mutate:      func(m *BuildManifest) { m.Output = "../products.ldb" },
			expectError: true,
			errorField:  "output",
		},
		{
			name:        "Empty leaf list",
			mutate:      func(m *BuildManifest) { m.Partitioner.Leaves = nil },
			expectError: true,
			errorField:  "leaves",
		},
		{
			name:        "Leaf dimension mismatch",
			mutate:      func(m *BuildManifest) { m.Partitioner.Leaves[1] = []float32{1, 2, 3} },
			expectError: true,
			errorField:  "partitioner.leaves[1]",
		},
		{
			name:        "Search fraction above one",
			mutate:      func(m *BuildManifest) { m.Partitioner.SearchFraction = 1.5 },
			expectError: true,
			errorField:  "search_fraction",
		},
		{
			name:        "S3 without bucket",
			mutate:      func(m *BuildManifest) { m.Store = StoreSpec{Kind: StoreS3} },
			expectError: true,
			errorField:  "store.bucket",
		},
		{
			name:        "Unknown store kind",
			mutate:      func(m *BuildManifest) { m.Store.Kind = "gcs" },
			expectError: true,
			errorField:  "kind",
		},
		{
			name: "Access key without secret",
			mutate: func(m *BuildManifest) {
				m.Store = StoreSpec{Kind: StoreS3, Bucket: "b", AccessKeyID: "AKIA"}
			},
			expectError: true,
			errorField:  "secret_access_key",
		},
		{
			name:        "Malformed endpoint",
			mutate:      func(m *BuildManifest) { m.Store = StoreSpec{Kind: StoreS3, Bucket: "b", Endpoint: "not a url"} },
			expectError: true,
			errorField:  "endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)
			err := ValidateManifest(m)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !errors.Is(err, ErrInvalidManifest) {
					t.Errorf("Expected ErrInvalidManifest, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errorField) {
					t.Errorf("Expected error to mention '%s', got: %v", tt.errorField, err)
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateManifest_Nil(t *testing.T) {
	if err := ValidateManifest(nil); !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("Expected ErrInvalidManifest for nil manifest, got %v", err)
	}
}

// TestValidateBlobName tests blob name validation
func TestValidateBlobName(t *testing.T) {
	tests := []struct {
		name        string
		expectError bool
	}{
		{"index.ldb", false},
		{"models/v2/index.ldb", false},
		{"_scratch-1.idx", false},
		{"", true},
		{"/abs.ldb", true},
		{"../up.ldb", true},
		{"a/../b", true},
		{"a//b", true},
		{"a/./b", true},
		{"has space.ldb", true},
		{".hidden", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlobName(tt.name)
			if tt.expectError && err == nil {
				t.Errorf("Expected error for %q", tt.name)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for %q, got: %v", tt.name, err)
			}
		})
	}
}
