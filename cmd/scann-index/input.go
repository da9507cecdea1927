package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// maxLineSize bounds one JSON-lines record
const maxLineSize = 64 << 20

// record is one line of build input
type record struct {
	Embedding []float64 `json:"embedding"`
	Metadata  string    `json:"metadata"`
}

// embeddings is the decoded build input. Exactly one of Float and Hashed is
// set, matching the requested embedding type.
type embeddings struct {
	Float    []float32
	Hashed   []uint8
	Metadata []string
}

// Len returns the number of embeddings read
func (e *embeddings) Len() int {
	return len(e.Metadata)
}

// AsFloat returns every embedding as float32 values, converting uint8 input
func (e *embeddings) AsFloat() []float32 {
	if e.Hashed == nil {
		return e.Float
	}
	out := make([]float32, len(e.Hashed))
	for i, v := range e.Hashed {
		out[i] = float32(v)
	}
	return out
}

// readEmbeddings decodes JSON-lines input of {"embedding": [...], "metadata": "..."}.
// Blank lines are skipped. Every embedding must have dim values; uint8
// values must be integers in [0, 255].
func readEmbeddings(r io.Reader, dim int, typ scann.EmbeddingType) (*embeddings, error) {
	out := &embeddings{Metadata: []string{}}
	switch typ {
	case scann.EmbeddingTypeFloat:
		out.Float = []float32{}
	case scann.EmbeddingTypeUint8:
		out.Hashed = []uint8{}
	default:
		return nil, fmt.Errorf("unsupported embedding type %v", typ)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec.Embedding) != dim {
			return nil, fmt.Errorf("line %d: embedding has %d values, expected %d", line, len(rec.Embedding), dim)
		}

		for i, v := range rec.Embedding {
			if typ == scann.EmbeddingTypeFloat {
				out.Float = append(out.Float, float32(v))
				continue
			}
			if v < 0 || v > math.MaxUint8 || v != math.Trunc(v) {
				return nil, fmt.Errorf("line %d: value %d is %v, not a uint8", line, i, v)
			}
			out.Hashed = append(out.Hashed, uint8(v))
		}
		out.Metadata = append(out.Metadata, rec.Metadata)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return out, nil
}
