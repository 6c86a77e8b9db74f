package decode

// decodeText returns exactly one row holding the whole payload. An empty
// payload is a null value.
func (p *Plan) decodeText(data []byte) ([]Row, error) {
	p.row.reset()
	if len(data) > 0 {
		if err := p.parseInto(0, &p.attrs[0], string(data), 0); err != nil {
			return nil, err
		}
	}
	return []Row{p.row.emit()}, nil
}
