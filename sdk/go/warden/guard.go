package warden

import (
	"errors"
	"fmt"

	"github.com/stackwarden/stackwarden/internal/callstack"
	"github.com/stackwarden/stackwarden/internal/policy"
)

// Restriction declares which call stacks may reach a guarded function.
// The zero value permits everything; set at least one field.
type Restriction struct {
	// ExactExpectedCallStack requires the filtered stack to match
	// these patterns frame for frame, most recent first. Exclusive
	// with every other field.
	ExactExpectedCallStack []string

	// ProhibitReflectionTraces denies stacks with reflective frames.
	ProhibitReflectionTraces bool

	// ProhibitNativeTraces denies stacks with native frames.
	ProhibitNativeTraces bool

	// ProhibitArbitraryInvocation denies any direct caller not listed
	// in PermittedSources.
	ProhibitArbitraryInvocation bool

	// PermittedSources are glob patterns for allowed direct callers.
	// Must be set together with ProhibitArbitraryInvocation; a list
	// without the flag is rejected as contradictory at setup.
	PermittedSources []string

	// ProhibitedSources are glob patterns no frame may match.
	ProhibitedSources []string
}

// Guard is a compiled Restriction ready for repeated checks. Safe for
// concurrent use.
type Guard struct {
	policy *policy.Policy
}

// NewGuard validates and compiles a restriction. Contradictory or
// oversized declarations fail here, not at check time.
func NewGuard(r Restriction) (*Guard, error) {
	p, serr := policy.New(policy.Fields{
		ExactExpectedCallStack:      r.ExactExpectedCallStack,
		ProhibitReflectionTraces:    r.ProhibitReflectionTraces,
		ProhibitNativeTraces:        r.ProhibitNativeTraces,
		ProhibitArbitraryInvocation: r.ProhibitArbitraryInvocation,
		PermittedSources:            r.PermittedSources,
		ProhibitedSources:           r.ProhibitedSources,
	})
	if serr != nil {
		return nil, fmt.Errorf("warden: %w", serr)
	}
	return &Guard{policy: p}, nil
}

// MustGuard is NewGuard for package-level variables; it panics on an
// invalid restriction.
func MustGuard(r Restriction) *Guard {
	g, err := NewGuard(r)
	if err != nil {
		panic(err)
	}
	return g
}

// Ensure captures the current call stack and checks it against the
// restriction. Call it first thing inside the function being guarded;
// the guarded function's own frame is excluded, so patterns describe
// its callers. Returns *callstack.AccessDeniedError when the stack is
// not permitted.
func (g *Guard) Ensure() error {
	ctx, serr := callstack.Resolve(g.policy.ResolutionOptions())
	if serr != nil {
		return callstack.DeniedSetup(serr)
	}
	// Drop the guarded function itself.
	ctx, serr = ctx.DropMostRecent()
	if serr != nil {
		return callstack.DeniedSetup(serr)
	}
	if derr := callstack.Evaluate(ctx, g.policy); derr != nil {
		return derr
	}
	return nil
}

// Protect wraps fn so that every invocation runs Ensure first. A
// denied stack returns the denial without calling fn.
func (g *Guard) Protect(fn func() error) func() error {
	return func() error {
		if err := g.Ensure(); err != nil {
			return err
		}
		return fn()
	}
}

// IsDenied reports whether err is an access denial (as opposed to an
// I/O or setup failure elsewhere).
func IsDenied(err error) bool {
	var denial *callstack.AccessDeniedError
	return errors.As(err, &denial)
}
