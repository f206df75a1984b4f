package callstack

import (
	"fmt"
	"testing"

	"github.com/stackwarden/stackwarden/internal/policy"
)

func frameNamed(fn string) Frame {
	return Frame{Function: fn}
}

func reflectiveFrame(fn string) Frame {
	return Frame{Function: fn, Reflective: true}
}

func nativeFrame(fn string) Frame {
	return Frame{Function: fn, Native: true}
}

func selfFrame(fn string) Frame {
	return Frame{Function: fn, self: true}
}

func mustContext(t *testing.T, frames ...Frame) *Context {
	t.Helper()
	ctx, err := newContext(frames)
	if err != nil {
		t.Fatalf("newContext: %v", err)
	}
	return ctx
}

func mustPolicy(t *testing.T, f policy.Fields) *policy.Policy {
	t.Helper()
	p, err := policy.New(f)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return p
}

func TestQualify(t *testing.T) {
	cases := map[string]string{
		"github.com/acme/app/billing.(*Client).Charge": "billing.Client#Charge",
		"github.com/acme/app/billing.Charge":           "billing#Charge",
		"main.main":                                    "main#main",
		"reflect.Value.Call":                           "reflect.Value#Call",
		"billing.Client.Charge":                        "billing.Client#Charge",
	}
	for in, want := range cases {
		if got := qualify(in); got != want {
			t.Errorf("qualify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterFrames_SelfAndResolverCaller(t *testing.T) {
	raw := []Frame{
		selfFrame("callstack#Resolve"),
		selfFrame("callstack#EnsureCallPermitted"),
		frameNamed("demo.App#guarded"), // resolver caller
		frameNamed("demo.App#first"),
		frameNamed("demo.App#main"),
	}

	got := filterFrames(raw, policy.FilterResolverFrames|policy.FilterResolverCaller)
	want := []string{"demo.App#first", "demo.App#main"}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Function != want[i] {
			t.Errorf("frame %d = %s, want %s", i, got[i].Function, want[i])
		}
	}
}

func TestFilterFrames_DropsExactlyOneCaller(t *testing.T) {
	raw := []Frame{
		selfFrame("callstack#Resolve"),
		frameNamed("a.B#one"),
		frameNamed("a.B#two"),
		frameNamed("a.B#three"),
	}

	got := filterFrames(raw, policy.FilterResolverFrames|policy.FilterResolverCaller)
	if len(got) != 2 || got[0].Function != "a.B#two" || got[1].Function != "a.B#three" {
		t.Fatalf("unexpected frames: %+v", got)
	}
}

func TestFilterFrames_ReflectiveAndNative(t *testing.T) {
	raw := []Frame{
		frameNamed("a.B#caller"),
		reflectiveFrame("reflect.Value#Call"),
		nativeFrame("runtime#cgocall"),
		frameNamed("a.B#main"),
	}

	got := filterFrames(raw, policy.FilterReflectionFrames|policy.FilterNativeFrames)
	if len(got) != 2 || got[0].Function != "a.B#caller" || got[1].Function != "a.B#main" {
		t.Fatalf("unexpected frames: %+v", got)
	}

	// Without the flags, reflective and native frames stay visible.
	got = filterFrames(raw, 0)
	if len(got) != 4 {
		t.Fatalf("expected all frames kept, got %+v", got)
	}
}

func TestNewContext_Bounds(t *testing.T) {
	if _, err := newContext(nil); err == nil {
		t.Error("empty frame list must fail")
	}

	frames := make([]Frame, MaxCallStackSize+1)
	for i := range frames {
		frames[i] = frameNamed(fmt.Sprintf("a.B#f%d", i))
	}
	if _, err := newContext(frames); err == nil {
		t.Error("oversized frame list must fail")
	}

	if _, err := newContext(frames[:MaxCallStackSize]); err != nil {
		t.Errorf("max-size frame list must be accepted: %v", err)
	}
}

func TestContext_Lookups(t *testing.T) {
	ctx := mustContext(t,
		reflectiveFrame("reflect.Value#Call"),
		frameNamed("a.B#direct"),
		nativeFrame("runtime#cgocall"),
		frameNamed("a.B#oldest"),
	)

	if !ctx.ContainsReflective() || !ctx.ContainsNative() {
		t.Error("classification lookups failed")
	}

	direct, ok := ctx.DirectCaller()
	if !ok || direct.Function != "a.B#direct" {
		t.Errorf("DirectCaller = %+v, %v", direct, ok)
	}

	if ctx.MostRecent().Function != "reflect.Value#Call" {
		t.Errorf("MostRecent = %s", ctx.MostRecent().Function)
	}
	if ctx.LeastRecent().Function != "a.B#oldest" {
		t.Errorf("LeastRecent = %s", ctx.LeastRecent().Function)
	}

	oldest, ok := ctx.LeastRecentMatch(func(f Frame) bool { return f.Native })
	if !ok || oldest.Function != "runtime#cgocall" {
		t.Errorf("LeastRecentMatch native = %+v, %v", oldest, ok)
	}
}

func TestContext_DropMostRecent(t *testing.T) {
	ctx := mustContext(t, frameNamed("a.B#guarded"), frameNamed("a.B#caller"))

	dropped, err := ctx.DropMostRecent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped.Depth() != 1 || dropped.MostRecent().Function != "a.B#caller" {
		t.Fatalf("unexpected context: %+v", dropped.Frames())
	}

	if _, err := dropped.DropMostRecent(); err == nil {
		t.Error("dropping the last frame must fail with a setup error")
	}
}

func TestEvaluate_ExactMode(t *testing.T) {
	p := mustPolicy(t, policy.Fields{
		ExactExpectedCallStack: []string{"a.B#x", "a.B#y"},
	})

	if err := Evaluate(mustContext(t, frameNamed("a.B#x"), frameNamed("a.B#y")), p); err != nil {
		t.Errorf("matching stack denied: %v", err)
	}

	err := Evaluate(mustContext(t, frameNamed("a.B#x"), frameNamed("a.B#z")), p)
	if err == nil || err.Reason != ReasonStackFrameMismatch {
		t.Errorf("expected frame mismatch, got %v", err)
	}

	err = Evaluate(mustContext(t, frameNamed("a.B#x")), p)
	if err == nil || err.Reason != ReasonStackLengthMismatch {
		t.Errorf("expected length mismatch, got %v", err)
	}
}

func TestEvaluate_ExactModeGlobs(t *testing.T) {
	p := mustPolicy(t, policy.Fields{
		ExactExpectedCallStack: []string{"demo.App#first*", "demo.App#?ain"},
	})

	ctx := mustContext(t, frameNamed("demo.App#firstCall"), frameNamed("demo.App#main"))
	if err := Evaluate(ctx, p); err != nil {
		t.Errorf("glob patterns must match per index: %v", err)
	}
}

func TestEvaluate_GeneralReflectionAndNative(t *testing.T) {
	refl := mustPolicy(t, policy.Fields{ProhibitReflectionTraces: true})
	err := Evaluate(mustContext(t, reflectiveFrame("reflect.Value#Call"), frameNamed("a.B#m")), refl)
	if err == nil || err.Reason != ReasonReflectionForbidden {
		t.Errorf("expected reflection denial, got %v", err)
	}
	if err := Evaluate(mustContext(t, frameNamed("a.B#m")), refl); err != nil {
		t.Errorf("clean stack denied: %v", err)
	}

	nat := mustPolicy(t, policy.Fields{ProhibitNativeTraces: true})
	err = Evaluate(mustContext(t, nativeFrame("runtime#cgocall"), frameNamed("a.B#m")), nat)
	if err == nil || err.Reason != ReasonNativeForbidden {
		t.Errorf("expected native denial, got %v", err)
	}
}

func TestEvaluate_GeneralPermittedSources(t *testing.T) {
	p := mustPolicy(t, policy.Fields{
		ProhibitArbitraryInvocation: true,
		PermittedSources:            []string{"P#a*"},
	})

	if err := Evaluate(mustContext(t, frameNamed("P#ab"), frameNamed("Q#main")), p); err != nil {
		t.Errorf("permitted direct caller denied: %v", err)
	}

	err := Evaluate(mustContext(t, frameNamed("Q#x"), frameNamed("Q#main")), p)
	if err == nil || err.Reason != ReasonArbitraryInvocation {
		t.Errorf("expected arbitrary invocation denial, got %v", err)
	}

	// The direct caller skips reflective and native frames.
	ctx := mustContext(t,
		reflectiveFrame("reflect.Value#Call"),
		frameNamed("P#allowed"),
		frameNamed("Q#main"),
	)
	if err := Evaluate(ctx, p); err != nil {
		t.Errorf("direct caller lookup must skip reflective frames: %v", err)
	}
}

func TestEvaluate_GeneralProhibitedSources(t *testing.T) {
	p := mustPolicy(t, policy.Fields{
		ProhibitedSources: []string{"demo.App#prohibitTest*", "demo.App#otherProhibitedTest"},
	})

	// Prohibited pattern matched anywhere in the context denies.
	err := Evaluate(mustContext(t,
		frameNamed("demo.App#caller"),
		frameNamed("demo.App#prohibitTest1"),
		frameNamed("demo.App#main"),
	), p)
	if err == nil || err.Reason != ReasonProhibitedSource {
		t.Errorf("expected prohibited source denial, got %v", err)
	}

	if err := Evaluate(mustContext(t, frameNamed("demo.App#fine"), frameNamed("demo.App#main")), p); err != nil {
		t.Errorf("clean stack denied: %v", err)
	}
}

func TestEvaluate_ProhibitedCheckedWithPermitted(t *testing.T) {
	// prohibitedSources applies independently of the allow-list: a
	// permitted direct caller is still denied when a deeper frame is
	// prohibited.
	p := mustPolicy(t, policy.Fields{
		ProhibitArbitraryInvocation: true,
		PermittedSources:            []string{"P#ok"},
		ProhibitedSources:           []string{"evil.*#*"},
	})

	err := Evaluate(mustContext(t, frameNamed("P#ok"), frameNamed("evil.Bot#drive")), p)
	if err == nil || err.Reason != ReasonProhibitedSource {
		t.Errorf("expected prohibited source denial, got %v", err)
	}
}

func TestDeniedSetup(t *testing.T) {
	derr := DeniedSetup(policy.Setupf("filtered call stack is unexpectedly small"))
	if derr.Reason != ReasonUnexpectedSetup {
		t.Errorf("unexpected reason: %v", derr.Reason)
	}
	if derr.Error() != "call not permitted: unexpected setup: filtered call stack is unexpectedly small" {
		t.Errorf("unexpected message: %s", derr.Error())
	}
}
