package decode

import (
	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/errors"
)

// csvState assembles parser output into rows. It is the RecordBuilder of
// the plan's Parser.
type csvState struct {
	plan   *Plan
	parser *Parser

	null       string
	hasNull    bool
	skipHeader bool

	skipping bool
	cursor   int
	rows     []Row
}

func newCSVState(p *Plan, opts *config.Options) *csvState {
	st := &csvState{
		plan:       p,
		null:       opts.CSVNull,
		hasNull:    opts.HasCSVNull,
		skipHeader: opts.CSVIgnoreHeader,
	}
	st.parser = NewParser(opts.CSVDelimiter, opts.CSVQuote, opts.CSVTrimWhitespace, st)
	p.row.reset()
	return st
}

// PushField stores one field at the cursor position.
func (st *csvState) PushField(field []byte, present bool) error {
	p := st.plan
	if st.cursor >= len(p.attrs) {
		return errors.New(errors.ErrorTypeParse, "record has more fields than the table has columns").
			WithDetail("format", p.format.String()).
			WithDetail("expected", len(p.attrs)).
			WithDetail("row", len(st.rows))
	}
	if st.skipping {
		return nil
	}

	i := st.cursor
	st.cursor++
	a := &p.attrs[i]

	if a.Dropped || !present || len(field) == 0 {
		p.row.setNull(i)
		return nil
	}
	text := string(field)
	if st.hasNull && text == st.null {
		p.row.setNull(i)
		return nil
	}
	return p.parseInto(i, a, text, i)
}

// PushRecord closes the current record.
func (st *csvState) PushRecord() error {
	p := st.plan
	if st.skipping {
		st.skipping = false
		st.clear()
		return nil
	}

	// A single-column record holding only null yields no row.
	if len(p.attrs) == 1 && st.cursor == 1 && p.row.nulls[0] {
		st.clear()
		return nil
	}

	// Unreached positions are already null.
	st.rows = append(st.rows, p.row.emit())
	st.clear()
	return nil
}

func (st *csvState) clear() {
	st.cursor = 0
	st.plan.row.reset()
}

func (p *Plan) decodeCSV(data []byte) ([]Row, error) {
	if len(data) == 0 {
		return nil, nil
	}

	st := p.csv
	st.skipping = st.skipHeader
	st.rows = nil
	st.clear()

	err := st.parser.Feed(data)
	if err == nil {
		err = st.parser.Finish()
	}

	rows := st.rows
	st.rows = nil
	if err != nil {
		st.parser.Reset()
		st.clear()
		return rows, err
	}
	return rows, nil
}

func (st *csvState) release() {
	st.parser.Reset()
	st.parser.entry = nil
	st.rows = nil
}
