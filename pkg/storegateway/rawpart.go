// Package storegateway adapts opaque raw partition bytes into a typed,
// columnar read interface, the way the teacher's bucket chunk reader
// adapts remote object-storage bytes into typed chunk iterators — here
// the bytes are already resident (handed to us as a RawPartData), so
// there is no network fetch, only decode-on-demand into arena memory.
package storegateway

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/HimaVarsha94/FiloDB/pkg/columnar"
)

// RawPartData is the opaque, on-the-wire form of one raw partition:
// a partition key (first 4 bytes are the schema id, per spec.md §3)
// followed by an ordered list of chunk infos. The wire-level codec of
// columnar vectors is, per spec.md §1, an external collaborator this
// core only consumes through a read interface; EncodeRawPartData /
// DecodeRawPartData are that interface's concrete (and only) Go
// implementation in this repo, since there is no pack library that
// targets this bespoke format.
type RawPartData struct {
	Bytes []byte
}

// SchemaID reads the first 4 bytes of the partition key.
func (d RawPartData) SchemaID() (int32, error) {
	if len(d.Bytes) < 4 {
		return 0, errors.New("raw partition: truncated key")
	}
	return int32(binary.BigEndian.Uint32(d.Bytes[:4])), nil
}

// EncodeRawPartData serializes a partition key and its chunks using the
// raw schema's column type layout. Used by callers that assemble
// RawPartData programmatically (tests, and any adapter feeding this
// core from an actual store client).
func EncodeRawPartData(key []byte, chunks []columnar.ChunkInfo, columns []columnar.ColumnType) (RawPartData, error) {
	buf := make([]byte, 0, len(key)+64)
	buf = append(buf, key...)

	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(len(chunks)))
	buf = append(buf, scratch[:n]...)

	for _, c := range chunks {
		var hdr [24]byte
		binary.LittleEndian.PutUint64(hdr[0:8], uint64(c.StartTime))
		binary.LittleEndian.PutUint64(hdr[8:16], uint64(c.EndTime))
		binary.LittleEndian.PutUint64(hdr[16:24], uint64(c.NumRows))
		buf = append(buf, hdr[:]...)

		enc, err := columnar.EncodeChunk(c.ColumnVectors)
		if err != nil {
			return RawPartData{}, errors.Wrap(err, "encode raw partition")
		}
		lenScratch := make([]byte, binary.MaxVarintLen64)
		ln := binary.PutUvarint(lenScratch, uint64(len(enc)))
		buf = append(buf, lenScratch[:ln]...)
		buf = append(buf, enc...)
	}
	return RawPartData{Bytes: buf}, nil
}

// DecodeRawPartData parses a RawPartData's chunk infos, given the key
// length (schema-defined) and the raw schema's column types.
func DecodeRawPartData(d RawPartData, keyLen int, columns []columnar.ColumnType) (key []byte, chunks []columnar.ChunkInfo, err error) {
	if len(d.Bytes) < keyLen {
		return nil, nil, errors.New("decode raw partition: truncated key")
	}
	key = d.Bytes[:keyLen]
	rest := d.Bytes[keyLen:]

	numChunks, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, nil, errors.New("decode raw partition: truncated chunk count")
	}
	rest = rest[n:]

	chunks = make([]columnar.ChunkInfo, 0, numChunks)
	for i := uint64(0); i < numChunks; i++ {
		if len(rest) < 24 {
			return nil, nil, errors.New("decode raw partition: truncated chunk header")
		}
		startTime := int64(binary.LittleEndian.Uint64(rest[0:8]))
		endTime := int64(binary.LittleEndian.Uint64(rest[8:16]))
		numRows := int(binary.LittleEndian.Uint64(rest[16:24]))
		rest = rest[24:]

		payloadLen, ln := binary.Uvarint(rest)
		if ln <= 0 {
			return nil, nil, errors.New("decode raw partition: truncated chunk length")
		}
		rest = rest[ln:]
		if uint64(len(rest)) < payloadLen {
			return nil, nil, errors.New("decode raw partition: truncated chunk payload")
		}
		vectors, err := columnar.DecodeChunk(rest[:payloadLen], columns)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decode raw partition: chunk %d", i)
		}
		rest = rest[payloadLen:]

		chunks = append(chunks, columnar.ChunkInfo{
			StartTime:     startTime,
			EndTime:       endTime,
			NumRows:       numRows,
			ColumnVectors: vectors,
		})
	}
	return key, chunks, nil
}
