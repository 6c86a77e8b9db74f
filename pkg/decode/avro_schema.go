package decode

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

// wireKind is an Avro schema type as it appears on the wire.
type wireKind int

const (
	kindNull wireKind = iota
	kindBoolean
	kindInt
	kindLong
	kindFloat
	kindDouble
	kindBytes
	kindString
	kindRecord
	kindEnum
	kindArray
	kindMap
	kindFixed
	kindUnion
)

var wireKindNames = [...]string{
	kindNull:    "null",
	kindBoolean: "boolean",
	kindInt:     "int",
	kindLong:    "long",
	kindFloat:   "float",
	kindDouble:  "double",
	kindBytes:   "bytes",
	kindString:  "string",
	kindRecord:  "record",
	kindEnum:    "enum",
	kindArray:   "array",
	kindMap:     "map",
	kindFixed:   "fixed",
	kindUnion:   "union",
}

var primitiveKinds = map[string]wireKind{
	"null":    kindNull,
	"boolean": kindBoolean,
	"int":     kindInt,
	"long":    kindLong,
	"float":   kindFloat,
	"double":  kindDouble,
	"bytes":   kindBytes,
	"string":  kindString,
}

func (k wireKind) String() string {
	if int(k) < len(wireKindNames) {
		return wireKindNames[k]
	}
	return "unknown"
}

// wireType is the subset of a parsed Avro schema needed to classify decoded
// values.
type wireType struct {
	kind wireKind
	// name is the full name of a named type, or the primitive name. Union
	// values are keyed by it.
	name   string
	size   int
	fields []wireField
	// branches of a union, by name.
	branches map[string]*wireType
}

type wireField struct {
	name string
	typ  *wireType
}

var nullType = &wireType{kind: kindNull, name: "null"}

// resolvedSchema is a writer or reader schema ready to decode records.
type resolvedSchema struct {
	text  string
	codec *goavro.Codec
	root  *wireType
}

// resolveSchema parses schema text. Logical type annotations are removed
// before the binary codec is built so that records decode to their raw wire
// values.
func resolveSchema(text string) (*resolvedSchema, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	doc = stripLogicalTypes(doc)

	stripped, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(string(stripped))
	if err != nil {
		return nil, err
	}

	w := &schemaWalker{named: make(map[string]*wireType)}
	root, err := w.walk(doc, "")
	if err != nil {
		return nil, err
	}
	return &resolvedSchema{text: text, codec: codec, root: root}, nil
}

// stripLogicalTypes removes "logicalType" from every type definition.
// Default values are left untouched.
func stripLogicalTypes(node interface{}) interface{} {
	switch n := node.(type) {
	case []interface{}:
		for i := range n {
			n[i] = stripLogicalTypes(n[i])
		}
	case map[string]interface{}:
		if _, ok := n["type"]; !ok {
			return n
		}
		delete(n, "logicalType")
		n["type"] = stripLogicalTypes(n["type"])
		for _, key := range []string{"items", "values"} {
			if v, ok := n[key]; ok {
				n[key] = stripLogicalTypes(v)
			}
		}
		if fields, ok := n["fields"].([]interface{}); ok {
			for _, f := range fields {
				stripLogicalTypes(f)
			}
		}
	}
	return node
}

type schemaWalker struct {
	named map[string]*wireType
}

func (w *schemaWalker) walk(node interface{}, ns string) (*wireType, error) {
	switch n := node.(type) {
	case string:
		if k, ok := primitiveKinds[n]; ok {
			return &wireType{kind: k, name: n}, nil
		}
		return w.lookup(n, ns)
	case []interface{}:
		u := &wireType{kind: kindUnion, name: "union", branches: make(map[string]*wireType, len(n))}
		for _, b := range n {
			bt, err := w.walk(b, ns)
			if err != nil {
				return nil, err
			}
			u.branches[bt.name] = bt
		}
		return u, nil
	case map[string]interface{}:
		return w.walkMap(n, ns)
	default:
		return nil, fmt.Errorf("unexpected schema node %T", node)
	}
}

func (w *schemaWalker) walkMap(m map[string]interface{}, ns string) (*wireType, error) {
	typ, ok := m["type"].(string)
	if !ok {
		// {"type": {...}} or {"type": [...]}
		return w.walk(m["type"], ns)
	}

	switch typ {
	case "record", "error":
		t := &wireType{kind: kindRecord}
		childNS := w.register(t, m, ns)
		fields, _ := m["fields"].([]interface{})
		for _, f := range fields {
			fm, ok := f.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("record %s: malformed field", t.name)
			}
			name, _ := fm["name"].(string)
			ft, err := w.walk(fm["type"], childNS)
			if err != nil {
				return nil, fmt.Errorf("record %s field %s: %w", t.name, name, err)
			}
			t.fields = append(t.fields, wireField{name: name, typ: ft})
		}
		return t, nil
	case "enum":
		t := &wireType{kind: kindEnum}
		w.register(t, m, ns)
		return t, nil
	case "fixed":
		t := &wireType{kind: kindFixed}
		if size, ok := m["size"].(float64); ok {
			t.size = int(size)
		}
		w.register(t, m, ns)
		return t, nil
	case "array":
		if _, err := w.walk(m["items"], ns); err != nil {
			return nil, err
		}
		return &wireType{kind: kindArray, name: "array"}, nil
	case "map":
		if _, err := w.walk(m["values"], ns); err != nil {
			return nil, err
		}
		return &wireType{kind: kindMap, name: "map"}, nil
	default:
		return w.walk(typ, ns)
	}
}

// register computes the full name of a named type and records it. It returns
// the namespace its children inherit.
func (w *schemaWalker) register(t *wireType, m map[string]interface{}, ns string) string {
	name, _ := m["name"].(string)
	if explicit, ok := m["namespace"].(string); ok {
		ns = explicit
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ns = name[:i]
		t.name = name
	} else if ns != "" {
		t.name = ns + "." + name
	} else {
		t.name = name
	}
	w.named[t.name] = t
	return ns
}

func (w *schemaWalker) lookup(name, ns string) (*wireType, error) {
	if !strings.Contains(name, ".") && ns != "" {
		if t, ok := w.named[ns+"."+name]; ok {
			return t, nil
		}
	}
	if t, ok := w.named[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type name %q", name)
}

// branch resolves the active member of a union value. Non-union types
// return themselves.
func (t *wireType) branch(v interface{}) (*wireType, interface{}, error) {
	if t.kind != kindUnion {
		return t, v, nil
	}
	if v == nil {
		return nullType, nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok || len(m) != 1 {
		return nil, nil, fmt.Errorf("malformed union value %T", v)
	}
	for name, inner := range m {
		bt, ok := t.branches[name]
		if !ok {
			return nil, nil, fmt.Errorf("union has no branch %q", name)
		}
		return bt, inner, nil
	}
	return nil, nil, nil
}
