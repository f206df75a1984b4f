package transform

import (
	"github.com/stackwarden/stackwarden/internal/checker"
	"github.com/stackwarden/stackwarden/internal/unit"
)

// Visitor inspects and optionally rewrites archive units during Apply.
// An error from a Visit method marks that one element as failed; the
// transformer logs it and keeps going.
type Visitor interface {
	VisitUnit(u *unit.Unit) error
	VisitField(u *unit.Unit, f *unit.Field) error
	VisitMethod(u *unit.Unit, m *unit.Method) error

	// AnythingModified reports whether any Visit call since the last
	// VisitUnit changed the current unit.
	AnythingModified() bool
}

// restrictedCallVisitor splices a check-function call into every method
// carrying a restriction declaration.
type restrictedCallVisitor struct {
	gen      *checker.Generator
	modified bool
}

func newRestrictedCallVisitor(gen *checker.Generator) *restrictedCallVisitor {
	return &restrictedCallVisitor{gen: gen}
}

func (v *restrictedCallVisitor) VisitUnit(u *unit.Unit) error {
	v.modified = false
	return nil
}

func (v *restrictedCallVisitor) VisitField(u *unit.Unit, f *unit.Field) error {
	return nil
}

func (v *restrictedCallVisitor) VisitMethod(u *unit.Unit, m *unit.Method) error {
	guarded, err := v.gen.Guard(u, m)
	if err != nil {
		return err
	}
	if guarded {
		v.modified = true
	}
	return nil
}

func (v *restrictedCallVisitor) AnythingModified() bool {
	return v.modified
}
