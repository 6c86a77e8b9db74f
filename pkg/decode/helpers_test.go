package decode

import (
	"bytes"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/compression"
	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/schema"
)

// identity keeps canonical text so tests can assert on it directly.
var identity = schema.ParserFunc(func(text string) (any, error) { return text, nil })

func col(name string, t schema.TypeFamily) schema.Column {
	return schema.Column{Name: name, Type: t, Modifier: schema.NoModifier, Parser: identity}
}

func colMod(name string, t schema.TypeFamily, mod int32) schema.Column {
	c := col(name, t)
	c.Modifier = mod
	return c
}

func dropped(name string) schema.Column {
	return schema.Column{Name: name, Type: schema.TypeText, Modifier: schema.NoModifier, Dropped: true}
}

func mustPrepare(t *testing.T, cols []schema.Column, opts *config.Options) *Plan {
	t.Helper()
	p, err := Prepare(cols, opts, Config{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func avroOptions(explicit string) *config.Options {
	o := config.DefaultOptions(format.Avro)
	o.AvroSchema = explicit
	return o
}

// writeOCF encodes records with goavro's own container writer.
func writeOCF(t *testing.T, schemaText, codec string, records ...map[string]interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Schema:          schemaText,
		CompressionName: codec,
	})
	require.NoError(t, err)

	natives := make([]interface{}, len(records))
	for i, r := range records {
		natives[i] = r
	}
	require.NoError(t, w.Append(natives))
	return buf.Bytes()
}

var testSync = []byte("0123456789abcdef")

// buildContainer frames records by hand, one block per element of blocks,
// compressing block bodies with the named codec.
func buildContainer(t *testing.T, schemaText, codec string, blocks ...[]map[string]interface{}) []byte {
	t.Helper()
	rc, err := goavro.NewCodec(schemaText)
	require.NoError(t, err)
	comp, err := compression.NewCompressor(compression.Algorithm(codec))
	require.NoError(t, err)

	meta := map[string]interface{}{metaSchema: []byte(schemaText)}
	if codec != "" {
		meta[metaCodec] = []byte(codec)
	}
	out := []byte(containerMagic)
	out, err = headerMetaCodec.BinaryFromNative(out, meta)
	require.NoError(t, err)
	out = append(out, testSync...)

	for _, records := range blocks {
		var body []byte
		for _, r := range records {
			body, err = rc.BinaryFromNative(body, r)
			require.NoError(t, err)
		}
		body, err = comp.Compress(body)
		require.NoError(t, err)

		out, err = blockLongCodec.BinaryFromNative(out, int64(len(records)))
		require.NoError(t, err)
		out, err = blockLongCodec.BinaryFromNative(out, int64(len(body)))
		require.NoError(t, err)
		out = append(out, body...)
		out = append(out, testSync...)
	}
	return out
}

func csvOptions(mod func(o *config.Options)) *config.Options {
	o := config.DefaultOptions(format.CSV)
	if mod != nil {
		mod(o)
	}
	return o
}

// values flattens a row to its values for compact assertions.
func values(r Row) []any {
	return r.Values
}
