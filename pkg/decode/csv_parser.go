package decode

// RecordBuilder receives the fields and record boundaries found by a
// Parser. present is false for an unquoted empty field.
type RecordBuilder interface {
	PushField(field []byte, present bool) error
	PushRecord() error
}

type parserState int

const (
	rowNotBegun parserState = iota
	fieldNotBegun
	fieldBegun
	fieldMightHaveEnded
)

// Parser is a streaming delimited-text tokenizer. Input may be fed in any
// number of chunks; Finish flushes a trailing record that has no line
// terminator.
type Parser struct {
	delim byte
	quote byte
	trim  bool

	b RecordBuilder

	state  parserState
	quoted bool
	// spaces counts trailing blanks of the current field, trimmed when the
	// field ends.
	spaces int
	entry  []byte
}

// NewParser returns a Parser pushing into b.
func NewParser(delim, quote byte, trim bool, b RecordBuilder) *Parser {
	return &Parser{delim: delim, quote: quote, trim: trim, b: b}
}

func isTerm(c byte) bool { return c == '\r' || c == '\n' }

func (p *Parser) isSpace(c byte) bool {
	return p.trim && (c == ' ' || c == '\t') && c != p.delim
}

// Feed consumes data, pushing every field and record it completes.
func (p *Parser) Feed(data []byte) error {
	for _, c := range data {
		if err := p.step(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) step(c byte) error {
	switch p.state {
	case rowNotBegun, fieldNotBegun:
		switch {
		case p.isSpace(c):
		case isTerm(c):
			if p.state == fieldNotBegun {
				if err := p.submitField(); err != nil {
					return err
				}
				return p.submitRow()
			}
		case c == p.delim:
			return p.submitField()
		case c == p.quote:
			p.state = fieldBegun
			p.quoted = true
		default:
			p.state = fieldBegun
			p.quoted = false
			p.push(c)
		}

	case fieldBegun:
		switch {
		case c == p.quote:
			if p.quoted {
				p.push(c)
				p.state = fieldMightHaveEnded
			} else {
				p.push(c)
				p.spaces = 0
			}
		case c == p.delim:
			if p.quoted {
				p.push(c)
			} else {
				return p.submitField()
			}
		case isTerm(c):
			if p.quoted {
				p.push(c)
			} else {
				if err := p.submitField(); err != nil {
					return err
				}
				return p.submitRow()
			}
		case !p.quoted && p.isSpace(c):
			p.push(c)
			p.spaces++
		default:
			p.push(c)
			p.spaces = 0
		}

	case fieldMightHaveEnded:
		// The closing quote was pushed; it and any blanks after it are
		// dropped if the field ends here.
		switch {
		case c == p.delim:
			p.cut(p.spaces + 1)
			return p.submitField()
		case isTerm(c):
			p.cut(p.spaces + 1)
			if err := p.submitField(); err != nil {
				return err
			}
			return p.submitRow()
		case p.isSpace(c):
			p.push(c)
			p.spaces++
		case c == p.quote:
			if p.spaces > 0 {
				p.push(c)
				p.spaces = 0
			} else {
				// Doubled quote: the one already pushed is the literal.
				p.state = fieldBegun
			}
		default:
			p.state = fieldBegun
			p.spaces = 0
			p.push(c)
		}
	}
	return nil
}

func (p *Parser) push(c byte) { p.entry = append(p.entry, c) }

func (p *Parser) cut(n int) {
	if n > len(p.entry) {
		n = len(p.entry)
	}
	p.entry = p.entry[:len(p.entry)-n]
}

func (p *Parser) submitField() error {
	if !p.quoted {
		p.cut(p.spaces)
	}
	present := p.quoted || len(p.entry) > 0
	err := p.b.PushField(p.entry, present)

	p.state = fieldNotBegun
	p.entry = p.entry[:0]
	p.quoted = false
	p.spaces = 0
	return err
}

func (p *Parser) submitRow() error {
	p.state = rowNotBegun
	return p.b.PushRecord()
}

// Finish flushes a record left open at the end of the input.
func (p *Parser) Finish() error {
	switch p.state {
	case fieldMightHaveEnded:
		p.cut(p.spaces + 1)
		fallthrough
	case fieldNotBegun, fieldBegun:
		if err := p.submitField(); err != nil {
			return err
		}
		return p.submitRow()
	}
	return nil
}

// Reset discards any partial record.
func (p *Parser) Reset() {
	p.state = rowNotBegun
	p.quoted = false
	p.spaces = 0
	p.entry = p.entry[:0]
}
