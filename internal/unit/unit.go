// Package unit models packaged compiled units and their binary
// encoding. An archive entry is a compiled unit when its first four
// bytes match Magic; the remainder is a deterministically encoded CBOR
// body. The in-memory model is owned by the archive transformer for
// the duration of one run.
package unit

import "strings"

// RootType is the single type permitted to lack a superclass
// reference. Every other parsed unit must name one.
const RootType = "core.Object"

// EntrySuffix is the archive entry suffix for compiled units.
const EntrySuffix = ".unit"

// Annotation is a declarative marker attached to a unit, field, or
// method, carrying raw key/value pairs.
type Annotation struct {
	Name   string         `cbor:"name"`
	Values map[string]any `cbor:"values,omitempty"`
}

// Field is one declared field of a unit.
type Field struct {
	Name        string       `cbor:"name"`
	Type        string       `cbor:"type"`
	Annotations []Annotation `cbor:"annotations,omitempty"`
}

// Method is one declared method: identifier, signature, ordered
// instruction sequence, and annotations. Guarded methods are mutated
// in place during transformation.
type Method struct {
	Name         string        `cbor:"name"`
	Signature    string        `cbor:"signature"`
	Instructions []Instruction `cbor:"instructions,omitempty"`
	Annotations  []Annotation  `cbor:"annotations,omitempty"`
}

// Unit is one type's structural representation.
type Unit struct {
	Name        string       `cbor:"name"`
	Superclass  string       `cbor:"superclass,omitempty"`
	Fields      []Field      `cbor:"fields,omitempty"`
	Methods     []Method     `cbor:"methods,omitempty"`
	Annotations []Annotation `cbor:"annotations,omitempty"`
}

// WellFormed reports whether the unit carries a superclass reference or
// is the root type.
func (u *Unit) WellFormed() bool {
	return u.Superclass != "" || u.Name == RootType
}

// EntryName returns the archive entry name for a unit name.
func EntryName(unitName string) string {
	return unitName + EntrySuffix
}

// IsUnitEntry reports whether an archive entry name denotes a
// compiled-unit candidate.
func IsUnitEntry(entryName string) bool {
	return strings.HasSuffix(entryName, EntrySuffix)
}

// FindAnnotation returns the index of the first annotation named name,
// or -1.
func (m *Method) FindAnnotation(name string) int {
	for i, a := range m.Annotations {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// RemoveAnnotation deletes the annotation at index i, preserving order.
func (m *Method) RemoveAnnotation(i int) {
	m.Annotations = append(m.Annotations[:i], m.Annotations[i+1:]...)
}

// Prepend splices instructions before every existing instruction of the
// method, including any entry labels or metadata markers.
func (m *Method) Prepend(ins ...Instruction) {
	m.Instructions = append(ins, m.Instructions...)
}

// Qualified returns the "unit#method" identity of a method of owner.
func (m *Method) Qualified(owner *Unit) string {
	return owner.Name + "#" + m.Name
}
