package decode

// Row is one decoded tuple. Values and Nulls always have the schema's arity;
// Values[i] is nil whenever Nulls[i] is set.
type Row struct {
	Values []any
	Nulls  []bool
}

// rowAssembler owns the value and null arrays reused for every row of a
// plan. Emitted rows are copies.
type rowAssembler struct {
	values []any
	nulls  []bool
}

func newRowAssembler(arity int) *rowAssembler {
	r := &rowAssembler{
		values: make([]any, arity),
		nulls:  make([]bool, arity),
	}
	r.reset()
	return r
}

// reset marks every slot null.
func (r *rowAssembler) reset() {
	for i := range r.values {
		r.values[i] = nil
		r.nulls[i] = true
	}
}

func (r *rowAssembler) set(i int, v any) {
	r.values[i] = v
	r.nulls[i] = false
}

func (r *rowAssembler) setNull(i int) {
	r.values[i] = nil
	r.nulls[i] = true
}

func (r *rowAssembler) emit() Row {
	row := Row{
		Values: make([]any, len(r.values)),
		Nulls:  make([]bool, len(r.nulls)),
	}
	copy(row.Values, r.values)
	copy(row.Nulls, r.nulls)
	return row
}
