package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

// recorder collects parser output for tokenizer tests. Absent fields are
// recorded as "<nil>".
type recorder struct {
	records [][]string
	cur     []string
}

func (r *recorder) PushField(field []byte, present bool) error {
	if !present {
		r.cur = append(r.cur, "<nil>")
		return nil
	}
	r.cur = append(r.cur, string(field))
	return nil
}

func (r *recorder) PushRecord() error {
	r.records = append(r.records, r.cur)
	r.cur = nil
	return nil
}

func tokenize(t *testing.T, input string, trim bool) [][]string {
	t.Helper()
	r := &recorder{}
	p := NewParser(',', '"', trim, r)
	require.NoError(t, p.Feed([]byte(input)))
	require.NoError(t, p.Finish())
	return r.records
}

func TestParserTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		trim  bool
		want  [][]string
	}{
		{"simple", "a,b\n", true, [][]string{{"a", "b"}}},
		{"no trailing newline", "a,b", true, [][]string{{"a", "b"}}},
		{"blank lines", "\n\na,b\n\n\nc\n", true, [][]string{{"a", "b"}, {"c"}}},
		{"crlf", "a,b\r\nc,d\r\n", true, [][]string{{"a", "b"}, {"c", "d"}}},
		{"bare cr", "a\rb\r", true, [][]string{{"a"}, {"b"}}},
		{"empty fields", ",a,\n", true, [][]string{{"<nil>", "a", "<nil>"}}},
		{"quoted empty is present", `"",x` + "\n", true, [][]string{{"", "x"}}},
		{"quoted delimiter and newline", "\"a,b\",\"c\nd\"\n", true, [][]string{{"a,b", "c\nd"}}},
		{"doubled quote", `"say ""hi"""` + "\n", true, [][]string{{`say "hi"`}}},
		{"quote inside unquoted", `ab"c,d` + "\n", true, [][]string{{`ab"c`, "d"}}},
		{"stray char after closing quote", `"ab"c,d`, true, [][]string{{`ab"c,d`}}},
		{"trim unquoted", "  a b \t,\tc  \n", true, [][]string{{"a b", "c"}}},
		{"trim around quotes", `  "a "  ,b` + "\n", true, [][]string{{"a ", "b"}}},
		{"no trim", `  a  ,  "b"  ` + "\n", false, [][]string{{"  a  ", `  "b"  `}}},
		{"only spaces", "   \n", true, nil},
		{"quote after spaces past closing quote", `"a" "b"` + "\n", true, [][]string{{`a" "b`}}},
		{"unterminated quote", `"abc`, true, [][]string{{"abc"}}},
		{"closing quote at eof", `x,"abc"  `, true, [][]string{{"x", "abc"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(t, tt.input, tt.trim))
		})
	}
}

func TestParserChunkedFeed(t *testing.T) {
	input := "id,\"name, full\"\r\n1,\"a \"\"b\"\"\"\n  2 ,  c  \n\n3"

	whole := tokenize(t, input, true)

	for size := 1; size < len(input); size++ {
		r := &recorder{}
		p := NewParser(',', '"', true, r)
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			require.NoError(t, p.Feed([]byte(input[i:end])))
		}
		require.NoError(t, p.Finish())
		assert.Equal(t, whole, r.records, "chunk size %d", size)
	}
}

func TestParserCustomDelimiterAndQuote(t *testing.T) {
	r := &recorder{}
	p := NewParser(';', '\'', true, r)
	require.NoError(t, p.Feed([]byte("'a;b';c,d\n")))
	require.NoError(t, p.Finish())
	assert.Equal(t, [][]string{{"a;b", "c,d"}}, r.records)
}

func TestParserTabDelimiterIsNotTrimmed(t *testing.T) {
	r := &recorder{}
	p := NewParser('\t', '"', true, r)
	require.NoError(t, p.Feed([]byte("a\t\tb\n")))
	require.NoError(t, p.Finish())
	assert.Equal(t, [][]string{{"a", "<nil>", "b"}}, r.records)
}

func textColumns(n int) []schema.Column {
	cols := make([]schema.Column, n)
	for i := range cols {
		cols[i] = col(string(rune('a'+i)), schema.TypeText)
	}
	return cols
}

func withNull(marker string) func(o *config.Options) {
	return func(o *config.Options) {
		o.CSVNull = marker
		o.HasCSVNull = true
	}
}

func TestCSVNullMarker(t *testing.T) {
	p := mustPrepare(t, textColumns(3), csvOptions(withNull("NULL")))

	rows, err := p.Decode([]byte("a,NULL,b\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"a", nil, "b"}, values(rows[0]))
	assert.Equal(t, []bool{false, true, false}, rows[0].Nulls)
}

func TestCSVFieldCount(t *testing.T) {
	p := mustPrepare(t, textColumns(2), csvOptions(nil))

	rows, err := p.Decode([]byte("a\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"a", nil}, values(rows[0]))
	assert.Equal(t, []bool{false, true}, rows[0].Nulls)

	rows, err = p.Decode([]byte("x,y\na,b,c\n"))
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"x", "y"}, values(rows[0]))

	// The plan is usable again after a failed payload.
	rows, err = p.Decode([]byte("c,d\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"c", "d"}, values(rows[0]))
}

func TestCSVEmptyPayload(t *testing.T) {
	p := mustPrepare(t, textColumns(2), csvOptions(nil))
	rows, err := p.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVHeaderSkipPerPayload(t *testing.T) {
	p := mustPrepare(t, textColumns(2), csvOptions(func(o *config.Options) { o.CSVIgnoreHeader = true }))

	for i := 0; i < 2; i++ {
		rows, err := p.Decode([]byte("h1,h2\na,b\n"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []any{"a", "b"}, values(rows[0]))
	}

	// Header fields are not counted against the table.
	rows, err := p.Decode([]byte("h1,h2,h3\na,b\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestCSVLoneNullRecord(t *testing.T) {
	t.Run("single column drops the row", func(t *testing.T) {
		p := mustPrepare(t, textColumns(1), csvOptions(withNull("NULL")))
		rows, err := p.Decode([]byte("a\nNULL\n\"\"\nb\n"))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "a", rows[0].Values[0])
		assert.Equal(t, "b", rows[1].Values[0])
	})

	t.Run("header is consumed first", func(t *testing.T) {
		p := mustPrepare(t, textColumns(1), csvOptions(func(o *config.Options) {
			withNull("NULL")(o)
			o.CSVIgnoreHeader = true
		}))
		rows, err := p.Decode([]byte("NULL\nx\n"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "x", rows[0].Values[0])
	})

	t.Run("wider tables keep all-null rows", func(t *testing.T) {
		p := mustPrepare(t, textColumns(2), csvOptions(withNull("NULL")))
		rows, err := p.Decode([]byte("NULL\n"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []bool{true, true}, rows[0].Nulls)
	})
}

func TestCSVDroppedColumn(t *testing.T) {
	cols := []schema.Column{col("a", schema.TypeText), dropped("b"), col("c", schema.TypeText)}
	p := mustPrepare(t, cols, csvOptions(nil))

	rows, err := p.Decode([]byte("1,2,3\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"1", nil, "3"}, values(rows[0]))
	assert.Equal(t, []bool{false, true, false}, rows[0].Nulls)
}

func TestCSVTypedValues(t *testing.T) {
	cols := valueparser.Bind([]schema.Column{
		{Name: "id", Type: schema.TypeInt64, Modifier: schema.NoModifier},
		{Name: "ok", Type: schema.TypeBool, Modifier: schema.NoModifier},
		{Name: "name", Type: schema.TypeText, Modifier: schema.NoModifier},
	})
	p := mustPrepare(t, cols, csvOptions(nil))

	rows, err := p.Decode([]byte("1,t,one\n2,false,\"two, too\"\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{int64(1), true, "one"}, values(rows[0]))
	assert.Equal(t, []any{int64(2), false, "two, too"}, values(rows[1]))

	rows, err = p.Decode([]byte("3,t,x\nfour,t,y\n"))
	require.Error(t, err)
	assert.True(t, errors.IsConversion(err))
	require.Len(t, rows, 1)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	text, _ := e.Detail("text")
	assert.Equal(t, "four", text)
	attr, _ := e.Detail("attribute")
	assert.Equal(t, 0, attr)
}

// Every emitted row has exactly the table arity, whatever the input.
func TestCSVRowArity(t *testing.T) {
	inputs := []string{
		"", "\n", "a", "a,b,c", "a,,c\n,,\n", "\"x\"\n\"y\",\"z\"", strings.Repeat("q,", 2) + "\n",
	}
	for arity := 1; arity <= 4; arity++ {
		p := mustPrepare(t, textColumns(arity), csvOptions(withNull("N")))
		for _, in := range inputs {
			rows, _ := p.Decode([]byte(in))
			for _, r := range rows {
				require.Len(t, r.Values, arity)
				require.Len(t, r.Nulls, arity)
				for i := range r.Values {
					assert.Equal(t, r.Values[i] == nil, r.Nulls[i])
				}
			}
		}
	}
}
