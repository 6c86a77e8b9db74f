package decode

import (
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/compression"
	"github.com/ajitpratap0/krow/pkg/errors"
)

// avroState is the Avro payload of a Plan.
type avroState struct {
	// explicit is the schema given in options; it decodes every payload.
	explicit *resolvedSchema
	// last is the most recent writer schema, reused while payloads keep
	// carrying the same schema text.
	last *resolvedSchema
	live int
}

func newAvroState(schemaText string, live int) (*avroState, error) {
	st := &avroState{live: live}
	if schemaText == "" {
		return st, nil
	}

	rs, err := resolveSchema(schemaText)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid avro_schema").
			WithDetail("format", "avro")
	}
	if err := checkShape(rs, live); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "avro_schema does not fit the table")
	}
	st.explicit = rs
	return st, nil
}

// checkShape requires a record with at least one field per live column.
func checkShape(rs *resolvedSchema, live int) *errors.Error {
	if rs.root.kind != kindRecord {
		return errors.New(errors.ErrorTypeSchemaMismatch, "top-level schema is not a record").
			WithDetail("format", "avro").
			WithDetail("expected", kindRecord.String()).
			WithDetail("actual", rs.root.kind.String())
	}
	if len(rs.root.fields) < live {
		return errors.New(errors.ErrorTypeSchemaMismatch, "record has fewer fields than the table has columns").
			WithDetail("format", "avro").
			WithDetail("expected", live).
			WithDetail("actual", len(rs.root.fields))
	}
	return nil
}

// schemaFor picks the schema that decodes the records of c.
func (st *avroState) schemaFor(c *container) (*resolvedSchema, error) {
	if st.explicit != nil {
		return st.explicit, nil
	}

	text, ok := c.schema()
	if !ok {
		return nil, errors.New(errors.ErrorTypeParse, "container has no embedded schema").
			WithDetail("format", "avro")
	}
	if st.last != nil && st.last.text == text {
		return st.last, nil
	}

	rs, err := resolveSchema(text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "invalid embedded schema").
			WithDetail("format", "avro")
	}
	if err := checkShape(rs, st.live); err != nil {
		return nil, err
	}
	st.last = rs
	return rs, nil
}

// decodeAvro returns every record of the payload as a row. On failure the
// rows completed before the failing record are returned with the error.
func (p *Plan) decodeAvro(data []byte) ([]Row, error) {
	if len(data) == 0 {
		return nil, nil
	}

	c, err := openContainer(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read container header").
			WithDetail("format", "avro")
	}
	rs, err := p.avro.schemaFor(c)
	if err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(compression.Algorithm(c.codec()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "unsupported container codec").
			WithDetail("format", "avro").
			WithDetail("codec", c.codec())
	}

	var rows []Row
	record := 0
	for {
		count, block, err := c.next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, errors.Wrap(err, errors.ErrorTypeParse, "malformed container block").
				WithDetail("format", "avro").
				WithDetail("record", record)
		}

		raw, err := comp.Decompress(block)
		if err != nil {
			return rows, errors.Wrap(err, errors.ErrorTypeParse, "failed to decompress block").
				WithDetail("format", "avro").
				WithDetail("codec", c.codec())
		}

		for i := int64(0); i < count; i++ {
			datum, rest, err := rs.codec.NativeFromBinary(raw)
			if err != nil {
				return rows, errors.Wrap(err, errors.ErrorTypeParse, "malformed record").
					WithDetail("format", "avro").
					WithDetail("record", record)
			}
			raw = rest

			row, derr := p.avroRow(rs.root, datum, record)
			if derr != nil {
				return rows, derr
			}
			rows = append(rows, row)
			record++
		}
		if len(raw) != 0 {
			return rows, errors.New(errors.ErrorTypeParse, "trailing bytes after the last record of a block").
				WithDetail("format", "avro").
				WithDetail("record", record).
				WithDetail("bytes", len(raw))
		}
	}
}

// avroRow walks the record fields positionally against the live columns.
func (p *Plan) avroRow(root *wireType, datum interface{}, record int) (Row, error) {
	fields, _ := datum.(map[string]interface{})

	p.row.reset()
	field := 0
	for i := range p.attrs {
		a := &p.attrs[i]
		if a.Dropped {
			continue
		}
		f := root.fields[field]
		if err := p.avroAttribute(i, a, field, f.typ, fields[f.name], record); err != nil {
			return Row{}, err
		}
		field++
	}
	return p.row.emit(), nil
}

func (p *Plan) avroAttribute(i int, a *AttributePlan, field int, t *wireType, v interface{}, record int) error {
	wt, v, err := t.branch(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeParse, "malformed union value").
			WithDetail("format", "avro").
			WithDetail("attribute", field).
			WithDetail("record", record)
	}
	if wt.kind == kindNull {
		p.row.setNull(i)
		return nil
	}

	text, terr := p.avroText(a, wt, v)
	if terr != nil {
		return terr.
			WithDetail("format", "avro").
			WithDetail("attribute", field).
			WithDetail("column", a.Name).
			WithDetail("record", record)
	}

	return p.parseInto(i, a, text, field)
}

func mismatch(expected string, actual *wireType) *errors.Error {
	return errors.New(errors.ErrorTypeSchemaMismatch, "wire type does not match the column").
		WithDetail("expected", expected).
		WithDetail("actual", actual.kind.String())
}

// avroText produces the canonical text of one wire value.
func (p *Plan) avroText(a *AttributePlan, wt *wireType, v interface{}) (string, *errors.Error) {
	switch a.Kind {
	case KindPrimitive:
		if wt.kind != a.Expected {
			return "", mismatch(a.Expected.String(), wt)
		}
		switch x := v.(type) {
		case string:
			return x, nil
		case int32:
			return formatInt(int64(x)), nil
		case int64:
			return formatInt(x), nil
		case float32:
			return formatFloat32(x), nil
		case float64:
			return formatFloat64(x), nil
		case bool:
			return formatBool(x), nil
		}

	case KindBytes, KindDecimal:
		if wt.kind != kindBytes && wt.kind != kindFixed {
			return "", mismatch("bytes or fixed", wt)
		}
		b, _ := v.([]byte)
		if a.Kind == KindBytes {
			if len(b) == 0 {
				p.logger.Debug("zero-length bytes value", zap.String("column", a.Name))
				return "", nil
			}
			return formatBytes(b), nil
		}
		if len(b) == 0 {
			p.logger.Warn("zero-length decimal value converted to 0", zap.String("column", a.Name))
			return "0", nil
		}
		return formatDecimal(b, a.Scale), nil

	case KindDate:
		if wt.kind != kindInt {
			return "", mismatch(kindInt.String(), wt)
		}
		return formatDate(v.(int32)), nil

	case KindTime:
		switch wt.kind {
		case kindInt:
			return formatTime(int64(v.(int32)), millisUnit), nil
		case kindLong:
			return formatTime(v.(int64), microsUnit), nil
		}
		return "", mismatch("int or long", wt)

	case KindTimestamp3, KindTimestamp6:
		if wt.kind != kindLong {
			return "", mismatch(kindLong.String(), wt)
		}
		us := v.(int64)
		if a.Kind == KindTimestamp3 {
			if us > math.MaxInt64/1000 || us < math.MinInt64/1000 {
				return "", errors.New(errors.ErrorTypeConversion, "timestamp-millis value out of range").
					WithDetail("value", us)
			}
			us *= 1000
		}
		return formatTimestamp(us), nil

	case KindDuration:
		if wt.kind != kindFixed {
			return "", mismatch("fixed(12)", wt)
		}
		b, _ := v.([]byte)
		if len(b) != durationSize {
			return "", errors.New(errors.ErrorTypeSchemaMismatch, "duration fixed has the wrong length").
				WithDetail("expected", durationSize).
				WithDetail("actual", len(b))
		}
		return formatDuration(b), nil
	}

	return "", errors.Newf(errors.ErrorTypeInternal, "unexpected %s value %T", wt.kind, v)
}
