package embeddings

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// Binary cache file layout, little endian:
//
//	[1]  format version
//	[1]  embedding-type tag length
//	[n]  embedding-type tag (UTF-8)
//	[2]  vector dimension (uint16)
//	then repeated until EOF:
//	[32] content-hash key
//	[4*dim] float32 vector
//
// The dimension is fixed per file; a record with a different dimension
// cannot be written into the same file.
const cacheFormatVersion = 1

type cacheEntry struct {
	Key       hash.Key
	Embedding types.Embedding
}

func encodeCache(w io.Writer, embeddingType types.EmbeddingType, entries []cacheEntry) error {
	if len(embeddingType) > 255 {
		return fmt.Errorf("embedding type tag too long: %d bytes", len(embeddingType))
	}

	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Embedding.Value)
	}
	if dim > math.MaxUint16 {
		return fmt.Errorf("embedding dimension too large: %d", dim)
	}

	header := make([]byte, 0, 4+len(embeddingType))
	header = append(header, cacheFormatVersion, byte(len(embeddingType)))
	header = append(header, embeddingType...)
	header = binary.LittleEndian.AppendUint16(header, uint16(dim))
	if _, err := w.Write(header); err != nil {
		return err
	}

	record := make([]byte, 0, hash.KeySize+4*dim)
	for _, entry := range entries {
		if len(entry.Embedding.Value) != dim {
			return fmt.Errorf("inconsistent embedding dimension: %d != %d", len(entry.Embedding.Value), dim)
		}
		record = record[:0]
		record = append(record, entry.Key[:]...)
		for _, v := range entry.Embedding.Value {
			record = binary.LittleEndian.AppendUint32(record, math.Float32bits(v))
		}
		if _, err := w.Write(record); err != nil {
			return err
		}
	}

	return nil
}

// decodeCache parses a cache file. It returns an error for any structural
// problem (truncation, version mismatch) and for an embedding-type tag that
// does not match expectedType; callers treat every error as a cold start.
func decodeCache(data []byte, expectedType types.EmbeddingType) ([]cacheEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("cache file too short: %d bytes", len(data))
	}
	if data[0] != cacheFormatVersion {
		return nil, fmt.Errorf("unsupported cache format version %d", data[0])
	}

	tagLen := int(data[1])
	data = data[2:]
	if len(data) < tagLen+2 {
		return nil, fmt.Errorf("truncated cache header")
	}
	if tag := types.EmbeddingType(data[:tagLen]); tag != expectedType {
		return nil, fmt.Errorf("%w: file has %q, want %q", types.ErrEmbeddingTypeMismatch, tag, expectedType)
	}
	data = data[tagLen:]

	dim := int(binary.LittleEndian.Uint16(data))
	data = data[2:]

	recordSize := hash.KeySize + 4*dim
	if recordSize == hash.KeySize {
		// Zero-dimension file: header only, no usable records.
		return nil, nil
	}
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("truncated cache record: %d trailing bytes", len(data)%recordSize)
	}

	entries := make([]cacheEntry, 0, len(data)/recordSize)
	for len(data) > 0 {
		var entry cacheEntry
		copy(entry.Key[:], data[:hash.KeySize])
		data = data[hash.KeySize:]

		value := make([]float32, dim)
		for i := range value {
			value[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		data = data[4*dim:]

		entry.Embedding = types.Embedding{Type: expectedType, Value: value}
		entries = append(entries, entry)
	}

	return entries, nil
}
