package decode

import (
	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/schema"
)

// LogicalKind selects how a wire value is turned into canonical text.
type LogicalKind int

const (
	KindPrimitive LogicalKind = iota
	KindBytes
	KindDecimal
	KindDate
	KindTime
	KindTimestamp3
	KindTimestamp6
	KindDuration
)

var kindNames = [...]string{
	KindPrimitive:  "primitive",
	KindBytes:      "bytes",
	KindDecimal:    "decimal",
	KindDate:       "date",
	KindTime:       "time",
	KindTimestamp3: "timestamp-millis",
	KindTimestamp6: "timestamp-micros",
	KindDuration:   "duration",
}

func (k LogicalKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// AttributePlan is the compiled decode instruction for one column.
type AttributePlan struct {
	Name    string
	Dropped bool
	Kind    LogicalKind
	// Expected is the Avro wire type required when Kind is KindPrimitive.
	Expected wireKind
	// Scale applies to KindDecimal only.
	Scale  int
	Parser schema.ValueParser
}

// planAttribute infers the Avro wire expectations of a column.
func planAttribute(c schema.Column) AttributePlan {
	a := AttributePlan{
		Name:     c.Name,
		Dropped:  c.Dropped,
		Kind:     KindPrimitive,
		Expected: kindString,
		Parser:   c.Parser,
	}

	switch c.Type {
	case schema.TypeInt32:
		a.Expected = kindInt
	case schema.TypeInt64:
		a.Expected = kindLong
	case schema.TypeFloat32:
		a.Expected = kindFloat
	case schema.TypeFloat64:
		a.Expected = kindDouble
	case schema.TypeBool:
		a.Expected = kindBoolean
	case schema.TypeBytes:
		a.Kind = KindBytes
	case schema.TypeNumeric:
		a.Kind = KindDecimal
		a.Scale = c.NumericScale()
	case schema.TypeDate:
		a.Kind = KindDate
		a.Expected = kindInt
	case schema.TypeTime:
		a.Kind = KindTime
	case schema.TypeTimestamp:
		// An unqualified timestamp keeps microseconds.
		if c.Modifier != schema.NoModifier && c.Modifier <= 3 {
			a.Kind = KindTimestamp3
		} else {
			a.Kind = KindTimestamp6
		}
		a.Expected = kindLong
	case schema.TypeInterval:
		a.Kind = KindDuration
		a.Expected = kindFixed
	}
	return a
}

// buildAttributes compiles one AttributePlan per column.
func buildAttributes(cols []schema.Column, f format.Format) ([]AttributePlan, error) {
	if len(cols) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "schema has no columns").
			WithDetail("format", f.String())
	}

	attrs := make([]AttributePlan, len(cols))
	for i, c := range cols {
		if !c.Dropped && c.Parser == nil {
			return nil, errors.New(errors.ErrorTypeConfig, "column has no value parser").
				WithDetail("format", f.String()).
				WithDetail("attribute", i).
				WithDetail("column", c.Name)
		}
		attrs[i] = planAttribute(c)
	}
	return attrs, nil
}
