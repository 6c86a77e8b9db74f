// Package compression implements the block codecs of the Avro object
// container format.
//
// Each container names one codec in its "avro.codec" metadata entry and
// every data block is compressed independently with it:
//   - null: blocks are stored as-is
//   - deflate: raw RFC 1951 deflate, no zlib header or checksum
//   - snappy: a snappy block followed by the big-endian CRC-32 (IEEE) of the
//     uncompressed data
//   - zstandard: one zstd frame per block
//
// Basic usage:
//
//	comp, err := compression.NewCompressor(compression.Deflate)
//	raw, err := comp.Decompress(block)
package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm is an Avro codec name.
type Algorithm string

const (
	// None stores blocks uncompressed
	None Algorithm = "null"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
	// Snappy represents snappy compression with a trailing CRC-32
	Snappy Algorithm = "snappy"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstandard"
)

// maxBlockSize bounds the decompressed size of a single block.
const maxBlockSize = 256 << 20

// ErrUnsupported is returned for codec names with no implementation.
var ErrUnsupported = fmt.Errorf("unsupported codec")

// Compressor compresses and decompresses whole container blocks.
// All implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

// NewCompressor returns the codec named by algorithm. The empty name is the
// null codec, as in a container without an "avro.codec" entry.
func NewCompressor(algorithm Algorithm) (Compressor, error) {
	switch algorithm {
	case None, "":
		return noneCompressor{}, nil
	case Deflate:
		return deflateCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case Zstd:
		return defaultZstd, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupported, string(algorithm))
	}
}

// Supported lists the codec names NewCompressor accepts.
func Supported() []Algorithm {
	return []Algorithm{None, Deflate, Snappy, Zstd}
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }

// Deflate compressor
type deflateCompressor struct{}

func (deflateCompressor) Algorithm() Algorithm { return Deflate }

func (deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxBlockSize+1))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if n > maxBlockSize {
		return nil, fmt.Errorf("deflate: block exceeds %d bytes", maxBlockSize)
	}
	return buf.Bytes(), nil
}

// Snappy compressor
type snappyCompressor struct{}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	out := snappy.Encode(nil, data)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(data)), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("snappy: block shorter than its checksum")
	}
	body, sum := data[:len(data)-4], binary.BigEndian.Uint32(data[len(data)-4:])

	n, err := snappy.DecodedLen(body)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if n > maxBlockSize {
		return nil, fmt.Errorf("snappy: block exceeds %d bytes", maxBlockSize)
	}
	out, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if crc32.ChecksumIEEE(out) != sum {
		return nil, fmt.Errorf("snappy: checksum mismatch")
	}
	return out, nil
}

// Zstd compressor
type zstdCompressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

var defaultZstd = newZstdCompressor()

func newZstdCompressor() *zstdCompressor {
	zc := &zstdCompressor{}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlockSize))
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstandard: %w", err)
	}
	return out, nil
}
