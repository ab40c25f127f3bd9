package columnar

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/model/histogram"
)

// Schema describes the column layout of a raw or downsample schema:
// an ordered list of column types. Column 0 is always the timestamp.
type Schema struct {
	ID      int32
	Name    string
	Columns []ColumnType
}

// EncodeChunk writes a chunk's column vectors to a positional wire
// format: a varint row count, then one section per column in schema
// order. This is the minimal concrete codec behind the "wire-level
// codec of columnar vectors" read interface spec.md §1 treats as an
// external collaborator — the read side (DecodeChunk) is the interface
// this repo actually depends on; the encode side exists because this
// repo also produces chunks (downsample output), not just consumes them.
func EncodeChunk(vectors []ColumnVector) ([]byte, error) {
	if len(vectors) == 0 {
		return nil, errors.New("encode chunk: no columns")
	}
	numRows := vectors[0].Len()
	buf := make([]byte, 0, numRows*8*len(vectors)+16)
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(numRows))
	buf = append(buf, scratch[:n]...)

	for _, vec := range vectors {
		if vec.Len() != numRows {
			return nil, errors.Errorf("encode chunk: column length mismatch: want %d got %d", numRows, vec.Len())
		}
		var err error
		buf, err = encodeColumn(buf, vec)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeColumn(buf []byte, vec ColumnVector) ([]byte, error) {
	switch v := vec.(type) {
	case *LongVector:
		for _, x := range v.Values {
			var scratch [8]byte
			binary.LittleEndian.PutUint64(scratch[:], uint64(x))
			buf = append(buf, scratch[:]...)
		}
		return buf, nil
	case *DoubleVector:
		for _, x := range v.Values {
			var scratch [8]byte
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(x))
			buf = append(buf, scratch[:]...)
		}
		return buf, nil
	case *HistogramVector:
		for _, h := range v.Values {
			enc := encodeHistogram(h)
			var lenScratch [binary.MaxVarintLen64]byte
			n := binary.PutUvarint(lenScratch[:], uint64(len(enc)))
			buf = append(buf, lenScratch[:n]...)
			buf = append(buf, enc...)
		}
		return buf, nil
	default:
		return nil, errors.Errorf("encode chunk: unsupported column vector %T", vec)
	}
}

// DecodeChunk reads back a chunk encoded by EncodeChunk, given the
// schema's column type list.
func DecodeChunk(data []byte, columns []ColumnType) ([]ColumnVector, error) {
	numRows, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, errors.New("decode chunk: reading row count failed")
	}
	data = data[n:]

	vectors := make([]ColumnVector, len(columns))
	for i, ct := range columns {
		var (
			vec ColumnVector
			err error
		)
		vec, data, err = decodeColumn(data, ct, int(numRows))
		if err != nil {
			return nil, errors.Wrapf(err, "decode chunk: column %d", i)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func decodeColumn(data []byte, ct ColumnType, numRows int) (ColumnVector, []byte, error) {
	switch ct {
	case ColumnTimestamp:
		if len(data) < numRows*8 {
			return nil, nil, errors.New("truncated long column")
		}
		values := make([]int64, numRows)
		for i := range values {
			values[i] = int64(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
		}
		return NewLongVector(values), data[numRows*8:], nil
	case ColumnDouble:
		if len(data) < numRows*8 {
			return nil, nil, errors.New("truncated double column")
		}
		values := make([]float64, numRows)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
		}
		return NewDoubleVector(values), data[numRows*8:], nil
	case ColumnHistogram:
		values := make([]*histogram.FloatHistogram, numRows)
		for i := range values {
			l, n := binary.Uvarint(data)
			if n <= 0 {
				return nil, nil, errors.New("truncated histogram length")
			}
			data = data[n:]
			if len(data) < int(l) {
				return nil, nil, errors.New("truncated histogram payload")
			}
			h, err := decodeHistogram(data[:l])
			if err != nil {
				return nil, nil, err
			}
			values[i] = h
			data = data[l:]
		}
		return NewHistogramVector(values), data, nil
	default:
		return nil, nil, errors.Errorf("unknown column type %v", ct)
	}
}

// encodeHistogram serializes the fields of a FloatHistogram needed to
// reconstruct it: schema, zero threshold/count, count, sum, and the
// positive/negative bucket spans and counts. This is a bespoke wire
// format (no pack library targets a "histogram column in a downsample
// chunk" format); the arithmetic on the decoded value still goes
// through the real histogram.FloatHistogram type.
func encodeHistogram(h *histogram.FloatHistogram) []byte {
	if h == nil {
		return []byte{0}
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, 1) // present marker
	buf = appendVarint(buf, int64(h.Schema))
	buf = appendFloat(buf, h.ZeroThreshold)
	buf = appendFloat(buf, h.ZeroCount)
	buf = appendFloat(buf, h.Count)
	buf = appendFloat(buf, h.Sum)
	buf = appendSpans(buf, h.PositiveSpans)
	buf = appendFloats(buf, h.PositiveBuckets)
	buf = appendSpans(buf, h.NegativeSpans)
	buf = appendFloats(buf, h.NegativeBuckets)
	return buf
}

func decodeHistogram(data []byte) (*histogram.FloatHistogram, error) {
	if len(data) == 0 || data[0] == 0 {
		return nil, nil
	}
	data = data[1:]
	h := &histogram.FloatHistogram{}
	var err error
	var schema int64
	schema, data, err = readVarint(data)
	if err != nil {
		return nil, err
	}
	h.Schema = int32(schema)
	if h.ZeroThreshold, data, err = readFloat(data); err != nil {
		return nil, err
	}
	if h.ZeroCount, data, err = readFloat(data); err != nil {
		return nil, err
	}
	if h.Count, data, err = readFloat(data); err != nil {
		return nil, err
	}
	if h.Sum, data, err = readFloat(data); err != nil {
		return nil, err
	}
	if h.PositiveSpans, data, err = readSpans(data); err != nil {
		return nil, err
	}
	if h.PositiveBuckets, data, err = readFloats(data); err != nil {
		return nil, err
	}
	if h.NegativeSpans, data, err = readSpans(data); err != nil {
		return nil, err
	}
	if h.NegativeBuckets, data, err = readFloats(data); err != nil {
		return nil, err
	}
	return h, nil
}

func appendVarint(buf []byte, v int64) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutVarint(scratch[:], v)
	return append(buf, scratch[:n]...)
}

func readVarint(data []byte) (int64, []byte, error) {
	v, n := binary.Varint(data)
	if n <= 0 {
		return 0, nil, errors.New("truncated varint")
	}
	return v, data[n:], nil
}

func appendFloat(buf []byte, f float64) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(f))
	return append(buf, scratch[:]...)
}

func readFloat(data []byte) (float64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, errors.New("truncated float")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), data[8:], nil
}

func appendFloats(buf []byte, vs []float64) []byte {
	buf = appendVarint(buf, int64(len(vs)))
	for _, v := range vs {
		buf = appendFloat(buf, v)
	}
	return buf
}

func readFloats(data []byte) ([]float64, []byte, error) {
	n, rest, err := readVarint(data)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i], rest, err = readFloat(rest)
		if err != nil {
			return nil, nil, err
		}
	}
	return out, rest, nil
}

func appendSpans(buf []byte, spans []histogram.Span) []byte {
	buf = appendVarint(buf, int64(len(spans)))
	for _, s := range spans {
		buf = appendVarint(buf, int64(s.Offset))
		buf = appendVarint(buf, int64(s.Length))
	}
	return buf
}

func readSpans(data []byte) ([]histogram.Span, []byte, error) {
	n, rest, err := readVarint(data)
	if err != nil {
		return nil, nil, err
	}
	out := make([]histogram.Span, n)
	for i := range out {
		var off, length int64
		off, rest, err = readVarint(rest)
		if err != nil {
			return nil, nil, err
		}
		length, rest, err = readVarint(rest)
		if err != nil {
			return nil, nil, err
		}
		out[i] = histogram.Span{Offset: int32(off), Length: uint32(length)}
	}
	return out, rest, nil
}
