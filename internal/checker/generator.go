// Package checker synthesizes check functions for guarded methods. For
// each method carrying a restricted-call declaration it validates the
// declaration into a policy, emits a uniquely named parameterless check
// function into the run's synthetic checker unit, and splices a call to
// that function at the guarded method's entry.
package checker

import (
	"fmt"

	"github.com/stackwarden/stackwarden/internal/declaration"
	"github.com/stackwarden/stackwarden/internal/policy"
	"github.com/stackwarden/stackwarden/internal/unit"
)

// CheckerUnitName is the reserved name of the synthetic unit holding
// generated check functions. The prefix is collision-proofed against
// real application type names.
const CheckerUnitName = "__stackwarden_generated__.Checker"

// GuardRecord describes one successful method rewrite, for diagnostics
// and the run's audit trail.
type GuardRecord struct {
	Method        string // qualified "unit#method"
	CheckFunction string
	Mode          string // "exact" or "general"
	Preserved     bool
}

// Generator emits check functions into one checker unit per transform
// run. Not safe for concurrent use; one generator serves one run.
type Generator struct {
	checker *unit.Unit
	names   *nameRegistry
	records []GuardRecord
}

// NewGenerator creates the checker-unit shell for a run.
func NewGenerator() *Generator {
	return &Generator{
		checker: &unit.Unit{
			Name:       CheckerUnitName,
			Superclass: unit.RootType,
		},
		names: newNameRegistry(),
	}
}

// Guard inspects a method and, if it carries a restricted-call
// declaration, rewrites it: generates a check function and splices a
// call to it as the method's very first instruction. It reports whether
// the method was modified. A setup failure aborts generation for this
// method only and leaves it untouched.
func (g *Generator) Guard(owner *unit.Unit, m *unit.Method) (bool, error) {
	annoIdx := m.FindAnnotation(declaration.Name)
	if annoIdx < 0 {
		return false, nil
	}

	ext, err := declaration.New(m.Annotations[annoIdx].Values)
	if err != nil {
		return false, fmt.Errorf("checker: %s: %w", m.Qualified(owner), err)
	}

	fields, preserve, err := restrictionFields(ext)
	if err != nil {
		return false, fmt.Errorf("checker: %s: %w", m.Qualified(owner), err)
	}

	pol, serr := policy.New(fields)
	if serr != nil {
		return false, fmt.Errorf("checker: %s: %w", m.Qualified(owner), serr)
	}

	name := g.names.next()
	g.checker.Methods = append(g.checker.Methods, emitCheckFunction(name, pol))

	m.Prepend(
		unit.CallStatic(CheckerUnitName, name),
		unit.Label(),
	)

	if !preserve {
		m.RemoveAnnotation(annoIdx)
	}

	mode := "general"
	if pol.ExactMode() {
		mode = "exact"
	}
	g.records = append(g.records, GuardRecord{
		Method:        m.Qualified(owner),
		CheckFunction: name,
		Mode:          mode,
		Preserved:     preserve,
	})
	return true, nil
}

// Records returns one entry per method rewritten during this run.
func (g *Generator) Records() []GuardRecord {
	return g.records
}

// CheckerUnit returns the synthetic unit accumulated so far.
func (g *Generator) CheckerUnit() *unit.Unit {
	return g.checker
}

// FunctionCount returns how many check functions were emitted.
func (g *Generator) FunctionCount() int {
	return len(g.checker.Methods)
}

func restrictionFields(ext *declaration.Extractor) (policy.Fields, bool, error) {
	var f policy.Fields
	var err error

	if f.ExactExpectedCallStack, err = ext.StringList(declaration.KeyExactExpectedCallStack); err != nil {
		return f, false, err
	}
	if f.ProhibitReflectionTraces, err = ext.Bool(declaration.KeyProhibitReflectionTraces); err != nil {
		return f, false, err
	}
	if f.ProhibitNativeTraces, err = ext.Bool(declaration.KeyProhibitNativeTraces); err != nil {
		return f, false, err
	}
	if f.ProhibitArbitraryInvocation, err = ext.Bool(declaration.KeyProhibitArbitraryInvocation); err != nil {
		return f, false, err
	}
	if f.PermittedSources, err = ext.StringList(declaration.KeyPermittedSources); err != nil {
		return f, false, err
	}
	if f.ProhibitedSources, err = ext.StringList(declaration.KeyProhibitedSources); err != nil {
		return f, false, err
	}

	preserve, err := ext.Bool(declaration.KeyPreserveAnnotation)
	if err != nil {
		return f, false, err
	}
	return f, preserve, nil
}

// emitCheckFunction produces the fixed check template, parameterized
// solely by the policy's field values: rebuild the policy from inline
// constants, resolve with its derived options, discard the resolution
// call site's frame, evaluate, and convert any setup fault into an
// access-denial fault.
func emitCheckFunction(name string, pol *policy.Policy) unit.Method {
	ins := []unit.Instruction{
		{Op: unit.OpTrapSetup},
		unit.Label(),
	}

	if pol.ExactMode() {
		ins = append(ins, unit.PushList(declaration.KeyExactExpectedCallStack, pol.ExactExpectedCallStack()))
	}
	if pol.ProhibitReflectionTraces() {
		ins = append(ins, unit.PushBool(declaration.KeyProhibitReflectionTraces, true))
	}
	if pol.ProhibitNativeTraces() {
		ins = append(ins, unit.PushBool(declaration.KeyProhibitNativeTraces, true))
	}
	if pol.ProhibitArbitraryInvocation() {
		ins = append(ins, unit.PushBool(declaration.KeyProhibitArbitraryInvocation, true))
	}
	if len(pol.PermittedSources()) > 0 {
		ins = append(ins, unit.PushList(declaration.KeyPermittedSources, pol.PermittedSources()))
	}
	if len(pol.ProhibitedSources()) > 0 {
		ins = append(ins, unit.PushList(declaration.KeyProhibitedSources, pol.ProhibitedSources()))
	}

	ins = append(ins,
		unit.Instruction{Op: unit.OpBuildPolicy},
		unit.Instruction{Op: unit.OpResolve},
		unit.Instruction{Op: unit.OpDropFrame},
		unit.Instruction{Op: unit.OpEvaluate},
		unit.Instruction{Op: unit.OpTrapEnd},
		unit.Instruction{Op: unit.OpReturn},
	)

	return unit.Method{
		Name:         name,
		Signature:    "()",
		Instructions: ins,
	}
}
