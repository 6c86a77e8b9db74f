// Package decode turns raw message payloads into typed rows.
//
// A Plan is compiled once per scan from the target column schema and the
// format options, then reused for every payload of that scan:
//
//	plan, err := decode.Prepare(table.Columns, opts, decode.Config{})
//	if err != nil {
//		return err
//	}
//	defer plan.Release()
//
//	for _, msg := range batch {
//		rows, err := plan.Decode(msg.Value)
//		...
//	}
//
// A Plan is owned by one goroutine. Decode after Release is a programming
// error and panics.
package decode

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/logger"
	"github.com/ajitpratap0/krow/pkg/schema"
)

// Config carries the optional collaborators of a Plan.
type Config struct {
	// Logger receives decode diagnostics. Defaults to the global logger.
	Logger *zap.Logger
}

// Plan is a compiled, reusable decoder for one column schema and format.
type Plan struct {
	format format.Format
	attrs  []AttributePlan
	live   int

	row    *rowAssembler
	logger *zap.Logger

	avro *avroState
	csv  *csvState

	released bool
}

// Prepare compiles a Plan. Option, schema and format problems are reported
// here rather than on the first payload.
func Prepare(cols []schema.Column, opts *config.Options, cfg Config) (*Plan, error) {
	if opts == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "options are required")
	}
	if !opts.Format.Valid() {
		return nil, errors.New(errors.ErrorTypeConfig, "invalid format").
			WithDetail("format", opts.Format.String())
	}

	l := cfg.Logger
	if l == nil {
		l = logger.Get()
	}
	l = l.With(zap.String(string(logger.FormatKey), opts.Format.String()))
	opts.LogWarnings(l)

	attrs, err := buildAttributes(cols, opts.Format)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		format: opts.Format,
		attrs:  attrs,
		row:    newRowAssembler(len(attrs)),
		logger: l,
	}
	for _, a := range attrs {
		if !a.Dropped {
			p.live++
		}
	}

	switch opts.Format {
	case format.Avro:
		p.avro, err = newAvroState(opts.AvroSchema, p.live)
		if err != nil {
			return nil, err
		}
	case format.CSV:
		p.csv = newCSVState(p, opts)
	case format.Text:
		if len(attrs) != 1 || attrs[0].Dropped {
			return nil, errors.New(errors.ErrorTypeUnsupportedSchema, "text format requires exactly one live column").
				WithDetail("format", opts.Format.String()).
				WithDetail("columns", len(attrs)).
				WithDetail("live", p.live)
		}
	}

	l.Debug("decode plan prepared",
		zap.Int("columns", len(attrs)),
		zap.Int("live", p.live))
	return p, nil
}

// PrepareOptions parses raw string options and compiles a Plan.
func PrepareOptions(cols []schema.Column, raw map[string]string, cfg Config) (*Plan, error) {
	opts, err := config.ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	return Prepare(cols, opts, cfg)
}

// Format returns the payload format the plan decodes.
func (p *Plan) Format() format.Format { return p.format }

// Attributes returns the compiled per-column instructions.
func (p *Plan) Attributes() []AttributePlan { return p.attrs }

// Decode converts one payload into rows. Every row has one slot per column
// and dropped columns are always null. On error the rows completed before
// the failing record are returned alongside it.
func (p *Plan) Decode(data []byte) ([]Row, error) {
	if p.released {
		panic("decode: Decode called on a released plan")
	}

	switch p.format {
	case format.Avro:
		return p.decodeAvro(data)
	case format.CSV:
		return p.decodeCSV(data)
	case format.Text:
		return p.decodeText(data)
	}
	return nil, errors.Newf(errors.ErrorTypeInternal, "no decoder for format %s", p.format)
}

// Release frees the format state. Calling it again does nothing.
func (p *Plan) Release() {
	if p.released {
		return
	}
	p.released = true
	p.avro = nil
	if p.csv != nil {
		p.csv.release()
		p.csv = nil
	}
	p.row = nil
}

// parseInto hands canonical text to the column's value parser and stores
// the result.
func (p *Plan) parseInto(i int, a *AttributePlan, text string, attribute int) error {
	v, err := a.Parser.Parse(text)
	if err != nil {
		p.logger.Warn("value rejected by column parser",
			zap.String("column", a.Name),
			zap.Int("attribute", attribute),
			zap.String("text", text),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeConversion, "value rejected by column parser").
			WithDetail("format", p.format.String()).
			WithDetail("attribute", attribute).
			WithDetail("column", a.Name).
			WithDetail("text", text)
	}
	p.row.set(i, v)
	return nil
}
