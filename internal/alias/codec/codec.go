// Package codec serializes an alias index to the compact binary file the
// app keeps next to its other downloaded datasets, and back.
//
// The envelope is fixed-layout, big-endian:
//
//	offset  size  field
//	0       4     magic "TWIX"
//	4       1     format version (currently 1)
//	5       1     dataset kind (KindAliasIndex distinguishes this payload
//	              from sibling datasets in the same storage area)
//	6       1     codec tag (msgpack)
//	7       1     compression tag (gzip)
//	8       4     uncompressed payload length
//	12      4     compressed payload length
//	16      4     record count
//	20      4     CRC32 (IEEE) of the uncompressed payload
//	24      ...   compressed payload
//
// Decoding fails closed: any magic, version, kind, tag, length, or checksum
// mismatch yields an error wrapping [ErrInvalidIndex] so callers fall
// through to an alternate load source instead of crashing.
//
// Encoding is deterministic: records are written in index order and map keys
// are sorted, so encoding the same index twice yields identical bytes.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mboersen/telwerk/internal/alias"
)

// Kind tags the dataset stored in an envelope.
type Kind uint8

const (
	// KindAliasIndex is the species alias index payload.
	KindAliasIndex Kind = 0x01
)

const (
	formatVersion = 1

	codecMsgpack    = 0x01
	compressionGzip = 0x01

	headerSize = 24
)

var magic = [4]byte{'T', 'W', 'I', 'X'}

// ErrInvalidIndex is wrapped by every decode failure. Callers should treat
// it as "no valid index present", never as fatal.
var ErrInvalidIndex = errors.New("codec: not a valid alias index")

// Encode writes index to w in the binary envelope format.
func Encode(w io.Writer, index *alias.Index) error {
	var payload bytes.Buffer
	enc := msgpack.NewEncoder(&payload)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(index.Records()); err != nil {
		return fmt.Errorf("codec: encode records: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("codec: compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("codec: compress payload: %w", err)
	}

	var header [headerSize]byte
	copy(header[0:4], magic[:])
	header[4] = formatVersion
	header[5] = byte(KindAliasIndex)
	header[6] = codecMsgpack
	header[7] = compressionGzip
	binary.BigEndian.PutUint32(header[8:12], uint32(payload.Len()))
	binary.BigEndian.PutUint32(header[12:16], uint32(compressed.Len()))
	binary.BigEndian.PutUint32(header[16:20], uint32(index.Len()))
	binary.BigEndian.PutUint32(header[20:24], crc32.ChecksumIEEE(payload.Bytes()))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("codec: write header: %w", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("codec: write payload: %w", err)
	}
	return nil
}

// Decode reads an alias index from r. All failure modes wrap
// [ErrInvalidIndex].
func Decode(r io.Reader) (*alias.Index, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidIndex, err)
	}
	if !bytes.Equal(header[0:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidIndex, header[0:4])
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidIndex, header[4])
	}
	if Kind(header[5]) != KindAliasIndex {
		return nil, fmt.Errorf("%w: unexpected dataset kind 0x%02x", ErrInvalidIndex, header[5])
	}
	if header[6] != codecMsgpack {
		return nil, fmt.Errorf("%w: unknown codec tag 0x%02x", ErrInvalidIndex, header[6])
	}
	if header[7] != compressionGzip {
		return nil, fmt.Errorf("%w: unknown compression tag 0x%02x", ErrInvalidIndex, header[7])
	}

	uncompressedLen := binary.BigEndian.Uint32(header[8:12])
	compressedLen := binary.BigEndian.Uint32(header[12:16])
	recordCount := binary.BigEndian.Uint32(header[16:20])
	wantCRC := binary.BigEndian.Uint32(header[20:24])

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: short payload: %v", ErrInvalidIndex, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidIndex, err)
	}
	payload, err := io.ReadAll(io.LimitReader(gz, int64(uncompressedLen)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrInvalidIndex, err)
	}
	if uint32(len(payload)) != uncompressedLen {
		return nil, fmt.Errorf("%w: uncompressed length %d, header says %d", ErrInvalidIndex, len(payload), uncompressedLen)
	}
	if got := crc32.ChecksumIEEE(payload); got != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrInvalidIndex, got, wantCRC)
	}

	var records []*alias.Record
	if err := msgpack.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: decode records: %v", ErrInvalidIndex, err)
	}
	if uint32(len(records)) != recordCount {
		return nil, fmt.Errorf("%w: record count %d, header says %d", ErrInvalidIndex, len(records), recordCount)
	}

	ix, err := alias.NewIndex(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	return ix, nil
}
