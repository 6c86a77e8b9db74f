package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"
)

const (
	containerMagic = "Obj\x01"
	syncSize       = 16

	metaSchema = "avro.schema"
	metaCodec  = "avro.codec"
)

var (
	headerMetaCodec = mustCodec(`{"type":"map","values":"bytes"}`)
	blockLongCodec  = mustCodec(`"long"`)
)

func mustCodec(schema string) *goavro.Codec {
	c, err := goavro.NewCodec(schema)
	if err != nil {
		panic(err)
	}
	return c
}

// container walks the blocks of an object container payload without
// decoding the records inside them.
type container struct {
	meta map[string][]byte
	sync []byte
	rest []byte
}

func openContainer(data []byte) (*container, error) {
	if len(data) < len(containerMagic) || string(data[:len(containerMagic)]) != containerMagic {
		return nil, fmt.Errorf("not an object container: bad magic")
	}

	v, rest, err := headerMetaCodec.NativeFromBinary(data[len(containerMagic):])
	if err != nil {
		return nil, fmt.Errorf("malformed container metadata: %w", err)
	}
	raw, _ := v.(map[string]interface{})
	meta := make(map[string][]byte, len(raw))
	for k, val := range raw {
		b, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("container metadata %q is not bytes", k)
		}
		meta[k] = b
	}

	if len(rest) < syncSize {
		return nil, fmt.Errorf("container header truncated: %w", io.ErrUnexpectedEOF)
	}
	return &container{meta: meta, sync: rest[:syncSize], rest: rest[syncSize:]}, nil
}

func (c *container) schema() (string, bool) {
	s, ok := c.meta[metaSchema]
	return string(s), ok
}

func (c *container) codec() string {
	return string(c.meta[metaCodec])
}

// next returns the record count and raw (still compressed) bytes of the
// next block, or io.EOF after the last one.
func (c *container) next() (int64, []byte, error) {
	if len(c.rest) == 0 {
		return 0, nil, io.EOF
	}

	v, rest, err := blockLongCodec.NativeFromBinary(c.rest)
	if err != nil {
		return 0, nil, fmt.Errorf("block count: %w", err)
	}
	count := v.(int64)
	v, rest, err = blockLongCodec.NativeFromBinary(rest)
	if err != nil {
		return 0, nil, fmt.Errorf("block size: %w", err)
	}
	size := v.(int64)

	if count < 0 || size < 0 {
		return 0, nil, fmt.Errorf("negative block header: count=%d size=%d", count, size)
	}
	if size > int64(len(rest))-syncSize {
		return 0, nil, fmt.Errorf("block of %d bytes truncated: %w", size, io.ErrUnexpectedEOF)
	}

	block := rest[:size]
	if !bytes.Equal(rest[size:size+syncSize], c.sync) {
		return 0, nil, fmt.Errorf("block sync marker mismatch")
	}
	c.rest = rest[size+syncSize:]
	return count, block, nil
}
