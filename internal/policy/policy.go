// Package policy builds validated access policies from raw restriction
// declarations. A Policy is immutable once built: construction either
// returns a fully validated value or a *SetupError describing the first
// violation, never a partially valid object.
package policy

import (
	"fmt"

	"github.com/stackwarden/stackwarden/internal/glob"
)

// MaxListSize bounds every list field of a declaration.
const MaxListSize = 1000

// Resolution option bits. The derived bitfield parameterizes call-stack
// capture: which frame kinds are removed before evaluation. Values are
// stable constants baked into generated check functions.
const (
	// FilterResolverFrames removes every frame belonging to the
	// call-stack resolver itself.
	FilterResolverFrames = 0b1

	// FilterReflectionFrames removes every reflective frame.
	FilterReflectionFrames = 0b10

	// FilterNativeFrames removes every native (non-Go) frame.
	FilterNativeFrames = 0b100

	// FilterResolverCaller removes exactly one frame: the first frame
	// past the resolver's own frames, i.e. whatever invoked resolution.
	FilterResolverCaller = 0b1000
)

// Fields carries the raw restriction fields of a declaration, before
// validation. Absent lists are nil, absent booleans false.
type Fields struct {
	ExactExpectedCallStack      []string
	ProhibitReflectionTraces    bool
	ProhibitNativeTraces        bool
	ProhibitArbitraryInvocation bool
	PermittedSources            []string
	ProhibitedSources           []string
}

// Policy is a validated, contradiction-free access policy plus the
// derived resolution options for stack capture.
type Policy struct {
	exactExpectedCallStack      []string
	prohibitReflectionTraces    bool
	prohibitNativeTraces        bool
	prohibitArbitraryInvocation bool
	permittedSources            []string
	prohibitedSources           []string

	resolutionOptions int

	exactMatchers      []*glob.Matcher
	permittedMatchers  []*glob.Matcher
	prohibitedMatchers []*glob.Matcher
}

// New validates raw fields and constructs a Policy. The pipeline runs in
// a fixed order: complete missing fields, reject oversized lists, reject
// contradictory combinations (first violation wins), then derive the
// resolution options.
func New(f Fields) (*Policy, *SetupError) {
	p := &Policy{
		exactExpectedCallStack:      completeList(f.ExactExpectedCallStack),
		prohibitReflectionTraces:    f.ProhibitReflectionTraces,
		prohibitNativeTraces:        f.ProhibitNativeTraces,
		prohibitArbitraryInvocation: f.ProhibitArbitraryInvocation,
		permittedSources:            completeList(f.PermittedSources),
		prohibitedSources:           completeList(f.ProhibitedSources),
	}

	for _, l := range []struct {
		name  string
		items []string
	}{
		{"exactExpectedCallStack", p.exactExpectedCallStack},
		{"permittedSources", p.permittedSources},
		{"prohibitedSources", p.prohibitedSources},
	} {
		if len(l.items) > MaxListSize {
			return nil, Setupf("the %s list is too large (%d > %d)",
				l.name, len(l.items), MaxListSize)
		}
	}

	if err := p.ensureNotContradictory(); err != nil {
		return nil, err
	}
	if err := p.compileMatchers(); err != nil {
		return nil, err
	}
	p.deriveResolutionOptions()

	return p, nil
}

func (p *Policy) ensureNotContradictory() *SetupError {
	if len(p.exactExpectedCallStack) > 0 &&
		(p.prohibitReflectionTraces ||
			p.prohibitNativeTraces ||
			p.prohibitArbitraryInvocation ||
			len(p.permittedSources) > 0 ||
			len(p.prohibitedSources) > 0) {
		return Setupf("contradictory configuration: when exactExpectedCallStack is set, " +
			"every call that does not match it exactly is rejected already; " +
			"remove exactExpectedCallStack or remove all other restriction fields")
	}

	if p.prohibitArbitraryInvocation && len(p.permittedSources) == 0 {
		return Setupf("contradictory configuration: prohibitArbitraryInvocation is true " +
			"but permittedSources is empty - every call would be rejected; " +
			"populate permittedSources or disable prohibitArbitraryInvocation")
	}

	if !p.prohibitArbitraryInvocation && len(p.permittedSources) > 0 {
		return Setupf("contradictory configuration: permittedSources is set " +
			"but prohibitArbitraryInvocation is false - the allow-list would be ignored; " +
			"enable prohibitArbitraryInvocation or move the entries to prohibitedSources")
	}

	return nil
}

func (p *Policy) compileMatchers() *SetupError {
	var err error
	if p.exactMatchers, err = glob.CompileAll(p.exactExpectedCallStack); err != nil {
		return Setupf("exactExpectedCallStack: %v", err)
	}
	if p.permittedMatchers, err = glob.CompileAll(p.permittedSources); err != nil {
		return Setupf("permittedSources: %v", err)
	}
	if p.prohibitedMatchers, err = glob.CompileAll(p.prohibitedSources); err != nil {
		return Setupf("prohibitedSources: %v", err)
	}
	return nil
}

// deriveResolutionOptions computes the capture flags. Resolver-self
// frames and the single resolver-caller frame are always filtered.
// Reflective and native frames stay visible when exact-match mode or an
// explicit prohibition needs to inspect them.
func (p *Policy) deriveResolutionOptions() {
	p.resolutionOptions = FilterResolverFrames | FilterResolverCaller

	if len(p.exactExpectedCallStack) == 0 && !p.prohibitReflectionTraces {
		p.resolutionOptions |= FilterReflectionFrames
	}
	if len(p.exactExpectedCallStack) == 0 && !p.prohibitNativeTraces {
		p.resolutionOptions |= FilterNativeFrames
	}
}

// ExactMode reports whether the policy evaluates in exact-stack mode.
func (p *Policy) ExactMode() bool {
	return len(p.exactExpectedCallStack) > 0
}

// ExactExpectedCallStack returns the expected stack patterns,
// most-recent-first.
func (p *Policy) ExactExpectedCallStack() []string {
	return p.exactExpectedCallStack
}

// ProhibitReflectionTraces reports whether reflective frames are
// forbidden in general mode.
func (p *Policy) ProhibitReflectionTraces() bool {
	return p.prohibitReflectionTraces
}

// ProhibitNativeTraces reports whether native frames are forbidden in
// general mode.
func (p *Policy) ProhibitNativeTraces() bool {
	return p.prohibitNativeTraces
}

// ProhibitArbitraryInvocation reports whether the direct caller must
// match one of the permitted sources.
func (p *Policy) ProhibitArbitraryInvocation() bool {
	return p.prohibitArbitraryInvocation
}

// PermittedSources returns the allow-list patterns for the direct caller.
func (p *Policy) PermittedSources() []string {
	return p.permittedSources
}

// ProhibitedSources returns the deny-list patterns checked against every
// frame.
func (p *Policy) ProhibitedSources() []string {
	return p.prohibitedSources
}

// ResolutionOptions returns the derived capture flag bitfield.
func (p *Policy) ResolutionOptions() int {
	return p.resolutionOptions
}

// ExactMatchers returns the compiled exact-stack patterns, index-aligned
// with ExactExpectedCallStack.
func (p *Policy) ExactMatchers() []*glob.Matcher {
	return p.exactMatchers
}

// PermittedMatchers returns the compiled allow-list patterns.
func (p *Policy) PermittedMatchers() []*glob.Matcher {
	return p.permittedMatchers
}

// ProhibitedMatchers returns the compiled deny-list patterns.
func (p *Policy) ProhibitedMatchers() []*glob.Matcher {
	return p.prohibitedMatchers
}

func completeList(src []string) []string {
	if src == nil {
		return []string{}
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// SetupError reports an invalid or contradictory declaration, or a call
// stack that cannot be analyzed (empty, oversized, or emptied by
// filtering).
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("unexpected setup: %s", e.Reason)
}

// Setupf builds a *SetupError from a format string.
func Setupf(format string, args ...any) *SetupError {
	return &SetupError{Reason: fmt.Sprintf(format, args...)}
}
