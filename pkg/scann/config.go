package scann

import (
	"fmt"
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// EmbeddingType is the element type of stored embeddings
type EmbeddingType int32

const (
	// EmbeddingTypeUint8 stores one unsigned byte per dimension (hashed or quantized)
	EmbeddingTypeUint8 EmbeddingType = 0
	// EmbeddingTypeFloat stores one little-endian float32 per dimension
	EmbeddingTypeFloat EmbeddingType = 1
)

// String returns the type name
func (t EmbeddingType) String() string {
	switch t {
	case EmbeddingTypeUint8:
		return "UINT8"
	case EmbeddingTypeFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("EmbeddingType(%d)", int32(t))
	}
}

// ElementSize returns the number of bytes per dimension
func (t EmbeddingType) ElementSize() int {
	if t == EmbeddingTypeFloat {
		return 4
	}
	return 1
}

// DistanceMeasure selects how query-to-leaf and query-to-embedding distances are scored
type DistanceMeasure int32

const (
	DistanceUnspecified DistanceMeasure = 0
	DistanceSquaredL2   DistanceMeasure = 1
	DistanceDotProduct  DistanceMeasure = 2
)

// String returns the measure name
func (d DistanceMeasure) String() string {
	switch d {
	case DistanceSquaredL2:
		return "SQUARED_L2_DISTANCE"
	case DistanceDotProduct:
		return "DOT_PRODUCT"
	case DistanceUnspecified:
		return "UNSPECIFIED"
	default:
		return fmt.Sprintf("DistanceMeasure(%d)", int32(d))
	}
}

// Leaf is one partition centroid, one value per dimension
type Leaf struct {
	Dimensions []float32
}

// PartitionerConfig describes how embeddings are split into partitions
type PartitionerConfig struct {
	Leaves         []Leaf
	QueryDistance  DistanceMeasure
	SearchFraction float32
}

// NumPartitions returns the number of leaves. A nil partitioner has none.
func (p *PartitionerConfig) NumPartitions() int {
	if p == nil {
		return 0
	}
	return len(p.Leaves)
}

// ScannConfig is the nested search configuration. Fields this package does
// not interpret are carried in unknown and written back unchanged.
type ScannConfig struct {
	QueryDistance DistanceMeasure
	Partitioner   *PartitionerConfig

	unknown []byte
}

// IndexConfig is persisted under IndexConfigKey in every built index
type IndexConfig struct {
	ScannConfig            ScannConfig
	EmbeddingType          EmbeddingType
	EmbeddingDim           uint32
	GlobalPartitionOffsets []uint32
}

// NumPartitions returns the number of partitions recorded in the index
func (c *IndexConfig) NumPartitions() int {
	return len(c.GlobalPartitionOffsets)
}

// PartitionSize returns the number of members in partition i, given the total
// number of metadata entries in the index.
func (c *IndexConfig) PartitionSize(i int, total uint32) (uint32, error) {
	if i < 0 || i >= len(c.GlobalPartitionOffsets) {
		return 0, NewError("partition_size").NotFound().
			Msgf("partition %d out of range [0, %d)", i, len(c.GlobalPartitionOffsets)).Err()
	}
	end := total
	if i+1 < len(c.GlobalPartitionOffsets) {
		end = c.GlobalPartitionOffsets[i+1]
	}
	start := c.GlobalPartitionOffsets[i]
	if end < start {
		return 0, NewError("partition_size").InvalidArgument().
			Msgf("partition %d ends at %d before it starts at %d", i, end, start).Err()
	}
	return end - start, nil
}

// Validate checks the offsets invariant: the first offset is 0 and offsets
// never decrease.
func (c *IndexConfig) Validate() error {
	if c.EmbeddingDim == 0 {
		return NewError("validate_config").InvalidArgument().Msgf("embedding_dim must be positive").Err()
	}
	if c.EmbeddingType != EmbeddingTypeUint8 && c.EmbeddingType != EmbeddingTypeFloat {
		return NewError("validate_config").InvalidArgument().Msgf("unknown embedding type %v", c.EmbeddingType).Err()
	}
	if len(c.GlobalPartitionOffsets) == 0 {
		return nil
	}
	if c.GlobalPartitionOffsets[0] != 0 {
		return NewError("validate_config").InvalidArgument().
			Msgf("first partition offset is %d, want 0", c.GlobalPartitionOffsets[0]).Err()
	}
	for i := 1; i < len(c.GlobalPartitionOffsets); i++ {
		if c.GlobalPartitionOffsets[i] < c.GlobalPartitionOffsets[i-1] {
			return NewError("validate_config").InvalidArgument().
				Msgf("partition offset %d decreases from %d to %d", i, c.GlobalPartitionOffsets[i-1], c.GlobalPartitionOffsets[i]).Err()
		}
	}
	return nil
}

// Field numbers of the serialized messages
const (
	indexConfigScannConfig   protowire.Number = 1
	indexConfigEmbeddingType protowire.Number = 2
	indexConfigEmbeddingDim  protowire.Number = 3
	indexConfigOffsets       protowire.Number = 4

	scannConfigQueryDistance protowire.Number = 1
	scannConfigPartitioner   protowire.Number = 2

	partitionerLeaf           protowire.Number = 1
	partitionerQueryDistance  protowire.Number = 2
	partitionerSearchFraction protowire.Number = 3

	leafDimension protowire.Number = 1
)

// Marshal encodes the config in protobuf wire format
func (c *IndexConfig) Marshal() []byte {
	var b []byte
	sc := c.ScannConfig.Marshal()
	if len(sc) > 0 {
		b = protowire.AppendTag(b, indexConfigScannConfig, protowire.BytesType)
		b = protowire.AppendBytes(b, sc)
	}
	if c.EmbeddingType != 0 {
		b = protowire.AppendTag(b, indexConfigEmbeddingType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.EmbeddingType))
	}
	if c.EmbeddingDim != 0 {
		b = protowire.AppendTag(b, indexConfigEmbeddingDim, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.EmbeddingDim))
	}
	if len(c.GlobalPartitionOffsets) > 0 {
		var packed []byte
		for _, off := range c.GlobalPartitionOffsets {
			packed = protowire.AppendVarint(packed, uint64(off))
		}
		b = protowire.AppendTag(b, indexConfigOffsets, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

// UnmarshalIndexConfig decodes a config written by Marshal. Unknown top-level
// fields are skipped.
func UnmarshalIndexConfig(b []byte) (*IndexConfig, error) {
	c := &IndexConfig{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == indexConfigScannConfig && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, nil
			}
			sc, err := UnmarshalScannConfig(v)
			if err != nil {
				return 0, true, err
			}
			c.ScannConfig = *sc
			return n, true, nil
		case num == indexConfigEmbeddingType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.EmbeddingType = EmbeddingType(int32(v))
			return n, true, nil
		case num == indexConfigEmbeddingDim && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > math.MaxUint32 {
				return 0, true, fmt.Errorf("embedding_dim %d overflows uint32", v)
			}
			c.EmbeddingDim = uint32(v)
			return n, true, nil
		case num == indexConfigOffsets:
			var n int
			var err error
			c.GlobalPartitionOffsets, n, err = consumeUint32s(c.GlobalPartitionOffsets, num, typ, b)
			return n, true, err
		}
		return 0, false, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal encodes the scann config in protobuf wire format, followed by any
// fields carried over from decoding.
func (s *ScannConfig) Marshal() []byte {
	var b []byte
	if s.QueryDistance != 0 {
		b = protowire.AppendTag(b, scannConfigQueryDistance, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.QueryDistance))
	}
	if s.Partitioner != nil {
		b = protowire.AppendTag(b, scannConfigPartitioner, protowire.BytesType)
		b = protowire.AppendBytes(b, s.Partitioner.marshal())
	}
	return append(b, s.unknown...)
}

// UnmarshalScannConfig decodes a serialized scann config, keeping unknown
// fields for re-encoding.
func UnmarshalScannConfig(b []byte) (*ScannConfig, error) {
	s := &ScannConfig{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == scannConfigQueryDistance && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.QueryDistance = DistanceMeasure(int32(v))
			return n, true, nil
		case num == scannConfigPartitioner && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, nil
			}
			p, err := unmarshalPartitioner(v)
			if err != nil {
				return 0, true, err
			}
			s.Partitioner = p
			return n, true, nil
		}
		return 0, false, nil
	}, func(raw []byte) {
		s.unknown = append(s.unknown, raw...)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// HasUnknownFields reports whether decoding kept fields this package does not interpret
func (s *ScannConfig) HasUnknownFields() bool {
	return len(s.unknown) > 0
}

func (p *PartitionerConfig) marshal() []byte {
	var b []byte
	for _, leaf := range p.Leaves {
		var lb []byte
		if len(leaf.Dimensions) > 0 {
			packed := make([]byte, 0, 4*len(leaf.Dimensions))
			for _, v := range leaf.Dimensions {
				packed = protowire.AppendFixed32(packed, math.Float32bits(v))
			}
			lb = protowire.AppendTag(lb, leafDimension, protowire.BytesType)
			lb = protowire.AppendBytes(lb, packed)
		}
		b = protowire.AppendTag(b, partitionerLeaf, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}
	if p.QueryDistance != 0 {
		b = protowire.AppendTag(b, partitionerQueryDistance, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.QueryDistance))
	}
	if p.SearchFraction != 0 {
		b = protowire.AppendTag(b, partitionerSearchFraction, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(p.SearchFraction))
	}
	return b
}

func unmarshalPartitioner(b []byte) (*PartitionerConfig, error) {
	p := &PartitionerConfig{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch {
		case num == partitionerLeaf && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, nil
			}
			leaf, err := unmarshalLeaf(v)
			if err != nil {
				return 0, true, err
			}
			p.Leaves = append(p.Leaves, leaf)
			return n, true, nil
		case num == partitionerQueryDistance && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.QueryDistance = DistanceMeasure(int32(v))
			return n, true, nil
		case num == partitionerSearchFraction && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			p.SearchFraction = math.Float32frombits(v)
			return n, true, nil
		}
		return 0, false, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalLeaf(b []byte) (Leaf, error) {
	var leaf Leaf
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num != leafDimension {
			return 0, false, nil
		}
		switch typ {
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			leaf.Dimensions = append(leaf.Dimensions, math.Float32frombits(v))
			return n, true, nil
		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, nil
			}
			if len(packed)%4 != 0 {
				return 0, true, fmt.Errorf("packed leaf dimensions are %d bytes, not a multiple of 4", len(packed))
			}
			leaf.Dimensions = slices.Grow(leaf.Dimensions, len(packed)/4)
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				leaf.Dimensions = append(leaf.Dimensions, math.Float32frombits(v))
				packed = packed[m:]
			}
			return n, true, nil
		}
		return 0, false, nil
	})
	return leaf, err
}

// consumeUint32s decodes a repeated uint32 field in either packed or
// unpacked form.
func consumeUint32s(dst []uint32, num protowire.Number, typ protowire.Type, b []byte) ([]uint32, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, n, nil
		}
		if v > math.MaxUint32 {
			return dst, 0, fmt.Errorf("value %d overflows uint32", v)
		}
		return append(dst, uint32(v)), n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return dst, n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return dst, 0, protowire.ParseError(m)
			}
			if v > math.MaxUint32 {
				return dst, 0, fmt.Errorf("value %d overflows uint32", v)
			}
			dst = append(dst, uint32(v))
			packed = packed[m:]
		}
		return dst, n, nil
	}
	return dst, protowire.ConsumeFieldValue(num, typ, b), nil
}

// walkFields iterates the top-level fields of a message. fn receives the
// bytes after each tag and reports how many it consumed and whether it
// recognised the field; a negative count is a protowire parse error.
// Unrecognised fields are skipped and, when keep is given, passed to it raw
// with their tag.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error), keep ...func(raw []byte)) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return protowire.ParseError(tagLen)
		}
		n, ok, err := fn(num, typ, b[tagLen:])
		if err != nil {
			return err
		}
		if !ok {
			n = protowire.ConsumeFieldValue(num, typ, b[tagLen:])
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		if !ok && len(keep) > 0 {
			keep[0](b[:tagLen+n])
		}
		b = b[tagLen+n:]
	}
	return nil
}
