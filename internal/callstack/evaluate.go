package callstack

import (
	"fmt"

	"github.com/stackwarden/stackwarden/internal/policy"
)

// DenialReason categorizes why a call was rejected.
type DenialReason string

const (
	ReasonReflectionForbidden DenialReason = "reflection traces are prohibited"
	ReasonNativeForbidden     DenialReason = "native traces are prohibited"
	ReasonArbitraryInvocation DenialReason = "arbitrary invocation is prohibited"
	ReasonProhibitedSource    DenialReason = "invocation source is prohibited"
	ReasonStackLengthMismatch DenialReason = "unexpected call stack size"
	ReasonStackFrameMismatch  DenialReason = "unexpected call stack frame"
	ReasonUnexpectedSetup     DenialReason = "unexpected setup"
)

// AccessDeniedError is the fault a guarded method's caller observes
// when the live call stack violates the policy.
type AccessDeniedError struct {
	Reason DenialReason
	Detail string
}

func (e *AccessDeniedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("call not permitted: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("call not permitted: %s", e.Reason)
}

func denied(reason DenialReason, detail string) *AccessDeniedError {
	return &AccessDeniedError{Reason: reason, Detail: detail}
}

// DeniedSetup converts a setup failure observed at check time into the
// uniform access-denial fault carrying the failure's message.
func DeniedSetup(err *policy.SetupError) *AccessDeniedError {
	return denied(ReasonUnexpectedSetup, err.Reason)
}

// Evaluate checks a resolved context against a validated policy. It
// returns nil if the call is permitted and an *AccessDeniedError
// otherwise; there is no silent fallback to allow.
func Evaluate(ctx *Context, p *policy.Policy) *AccessDeniedError {
	if p.ExactMode() {
		return exactStackCheck(ctx, p)
	}
	return generalStackCheck(ctx, p)
}

func generalStackCheck(ctx *Context, p *policy.Policy) *AccessDeniedError {
	if p.ProhibitReflectionTraces() && ctx.ContainsReflective() {
		return denied(ReasonReflectionForbidden, "")
	}

	if p.ProhibitNativeTraces() && ctx.ContainsNative() {
		return denied(ReasonNativeForbidden, "")
	}

	if p.ProhibitArbitraryInvocation() {
		caller, ok := ctx.DirectCaller()
		if !ok {
			return denied(ReasonArbitraryInvocation, "no direct caller in filtered context")
		}

		permitted := false
		for _, m := range p.PermittedMatchers() {
			if m.Match(caller.Function) {
				permitted = true
				break
			}
		}
		if !permitted {
			return denied(ReasonArbitraryInvocation, caller.Function)
		}
	}

	for _, m := range p.ProhibitedMatchers() {
		if f, ok := ctx.MostRecentMatch(func(f Frame) bool { return m.Match(f.Function) }); ok {
			return denied(ReasonProhibitedSource, f.Function)
		}
	}

	return nil
}

func exactStackCheck(ctx *Context, p *policy.Policy) *AccessDeniedError {
	expected := p.ExactMatchers()

	if ctx.Depth() != len(expected) {
		return denied(ReasonStackLengthMismatch,
			fmt.Sprintf("got %d frames, expected %d", ctx.Depth(), len(expected)))
	}

	for i, f := range ctx.Frames() {
		if !expected[i].Match(f.Function) {
			return denied(ReasonStackFrameMismatch,
				fmt.Sprintf("frame %d is %s, expected %s", i, f.Function, expected[i].Pattern()))
		}
	}

	return nil
}

// EnsureCallPermitted resolves the current call stack with the policy's
// derived options and evaluates it. Intended for direct use from the
// guarded function itself: the resolver-caller filter removes the
// guarded function's own frame. Generated check functions and wrapper
// layers use Resolve and Context.DropMostRecent instead.
func EnsureCallPermitted(p *policy.Policy) error {
	ctx, serr := Resolve(p.ResolutionOptions())
	if serr != nil {
		return serr
	}
	if derr := Evaluate(ctx, p); derr != nil {
		return derr
	}
	return nil
}
