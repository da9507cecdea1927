package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

func TestReadEmbeddings_Float(t *testing.T) {
	input := `{"embedding": [0.5, -1], "metadata": "a"}

{"embedding": [2, 3.25], "metadata": "b"}
{"embedding": [0, 0]}
`
	got, err := readEmbeddings(strings.NewReader(input), 2, scann.EmbeddingTypeFloat)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2, 3.25, 0, 0}, got.Float)
	assert.Nil(t, got.Hashed)
	assert.Equal(t, []string{"a", "b", ""}, got.Metadata)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, got.Float, got.AsFloat())
}

func TestReadEmbeddings_Uint8(t *testing.T) {
	input := `{"embedding": [0, 255, 7], "metadata": "x"}`
	got, err := readEmbeddings(strings.NewReader(input), 3, scann.EmbeddingTypeUint8)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 7}, got.Hashed)
	assert.Nil(t, got.Float)
	assert.Equal(t, []float32{0, 255, 7}, got.AsFloat())
}

func TestReadEmbeddings_Empty(t *testing.T) {
	got, err := readEmbeddings(strings.NewReader(""), 4, scann.EmbeddingTypeFloat)
	require.NoError(t, err)
	assert.NotNil(t, got.Float, "an empty float database is still present")
	assert.Zero(t, got.Len())
}

func TestReadEmbeddings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		typ   scann.EmbeddingType
		want  string
	}{
		{"wrong dimension", `{"embedding": [1, 2, 3]}`, scann.EmbeddingTypeFloat, "line 1: embedding has 3 values"},
		{"bad json", "{\"embedding\": [1, 2]}\n{oops", scann.EmbeddingTypeFloat, "line 2"},
		{"negative uint8", `{"embedding": [-1, 2]}`, scann.EmbeddingTypeUint8, "not a uint8"},
		{"large uint8", `{"embedding": [256, 2]}`, scann.EmbeddingTypeUint8, "not a uint8"},
		{"fractional uint8", `{"embedding": [1.5, 2]}`, scann.EmbeddingTypeUint8, "not a uint8"},
		{"unknown type", `{"embedding": [1, 2]}`, scann.EmbeddingType(9), "unsupported embedding type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readEmbeddings(strings.NewReader(tt.input), 2, tt.typ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseQuery(t *testing.T) {
	got, err := parseQuery("0.1, 2,-3.5")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 2, -3.5}, got)

	_, err = parseQuery("1,,2")
	assert.Error(t, err)
	_, err = parseQuery("")
	assert.Error(t, err)
}
