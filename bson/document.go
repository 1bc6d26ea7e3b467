package bson

import "strconv"

// Element is a single key/value pair of a Document.
type Element struct {
	Key   string
	Value Value
}

// E is shorthand for building an Element.
func E(key string, v Value) Element {
	return Element{Key: key, Value: v}
}

// Document is an ordered mapping of field name to value. Field order is part
// of the encoding and is preserved by Encode and Decode.
type Document struct {
	elems []Element
}

// NewDocument creates a document holding elems in order.
func NewDocument(elems ...Element) *Document {
	d := &Document{elems: make([]Element, 0, len(elems))}
	d.elems = append(d.elems, elems...)
	return d
}

// Append adds a field at the end, even if key already exists.
func (d *Document) Append(key string, v Value) *Document {
	d.elems = append(d.elems, Element{Key: key, Value: v})
	return d
}

// Set replaces the first field named key or appends it.
func (d *Document) Set(key string, v Value) *Document {
	for i := range d.elems {
		if d.elems[i].Key == key {
			d.elems[i].Value = v
			return d
		}
	}
	return d.Append(key, v)
}

// Lookup returns the first field named key.
func (d *Document) Lookup(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, e := range d.elems {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// LookupPath walks nested documents by key and arrays by decimal index.
func (d *Document) LookupPath(path ...string) (Value, bool) {
	if len(path) == 0 {
		return Doc(d), d != nil
	}
	cur, ok := d.Lookup(path[0])
	if !ok {
		return Value{}, false
	}
	for _, seg := range path[1:] {
		switch cur.Kind() {
		case KindDocument:
			sub, _ := cur.AsDocument()
			if cur, ok = sub.Lookup(seg); !ok {
				return Value{}, false
			}
		case KindArray:
			arr, _ := cur.AsArray()
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return Value{}, false
			}
			if cur, ok = arr.Index(idx); !ok {
				return Value{}, false
			}
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Elements returns the fields in order. The slice must not be modified.
func (d *Document) Elements() []Element {
	if d == nil {
		return nil
	}
	return d.elems
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

// Keys returns field names in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Len())
	for _, e := range d.Elements() {
		keys = append(keys, e.Key)
	}
	return keys
}

// Equal compares field names, order and values.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	oe := o.Elements()
	for i, e := range d.Elements() {
		if e.Key != oe[i].Key || !e.Value.Equal(oe[i].Value) {
			return false
		}
	}
	return true
}

// String renders the document as relaxed extended JSON.
func (d *Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return "<invalid document: " + err.Error() + ">"
	}
	return string(b)
}

// Array is an ordered sequence of values.
type Array struct {
	vals []Value
}

func NewArray(vals ...Value) *Array {
	a := &Array{vals: make([]Value, 0, len(vals))}
	a.vals = append(a.vals, vals...)
	return a
}

func (a *Array) Append(v Value) *Array {
	a.vals = append(a.vals, v)
	return a
}

func (a *Array) Index(i int) (Value, bool) {
	if a == nil || i < 0 || i >= len(a.vals) {
		return Value{}, false
	}
	return a.vals[i], true
}

// Values returns the elements in order. The slice must not be modified.
func (a *Array) Values() []Value {
	if a == nil {
		return nil
	}
	return a.vals
}

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.vals)
}

func (a *Array) Equal(o *Array) bool {
	if a.Len() != o.Len() {
		return false
	}
	ov := o.Values()
	for i, v := range a.Values() {
		if !v.Equal(ov[i]) {
			return false
		}
	}
	return true
}
