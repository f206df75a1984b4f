package policy

import (
	"strings"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	p, err := New(Fields{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ExactMode() {
		t.Error("empty declaration must not be in exact mode")
	}
	if len(p.ExactExpectedCallStack()) != 0 || len(p.PermittedSources()) != 0 || len(p.ProhibitedSources()) != 0 {
		t.Error("absent lists must complete to empty")
	}

	want := FilterResolverFrames | FilterResolverCaller | FilterReflectionFrames | FilterNativeFrames
	if p.ResolutionOptions() != want {
		t.Errorf("resolution options = %b, want %b", p.ResolutionOptions(), want)
	}
}

func TestNew_ExactModeExcludesOtherFields(t *testing.T) {
	exact := []string{"demo.App#first", "demo.App#main"}

	cases := []Fields{
		{ExactExpectedCallStack: exact, ProhibitReflectionTraces: true},
		{ExactExpectedCallStack: exact, ProhibitNativeTraces: true},
		{ExactExpectedCallStack: exact, ProhibitArbitraryInvocation: true},
		{ExactExpectedCallStack: exact, PermittedSources: []string{"a.B#c"}},
		{ExactExpectedCallStack: exact, ProhibitedSources: []string{"a.B#c"}},
	}

	for i, f := range cases {
		if _, err := New(f); err == nil {
			t.Errorf("case %d: expected SetupError for exact mode with extra fields", i)
		}
	}

	// Exact mode alone is valid.
	p, err := New(Fields{ExactExpectedCallStack: exact})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ExactMode() {
		t.Error("expected exact mode")
	}
	// Reflective and native frames must stay visible for inspection.
	if p.ResolutionOptions()&FilterReflectionFrames != 0 {
		t.Error("exact mode must not filter reflective frames")
	}
	if p.ResolutionOptions()&FilterNativeFrames != 0 {
		t.Error("exact mode must not filter native frames")
	}
}

func TestNew_ArbitraryInvocationIff(t *testing.T) {
	if _, err := New(Fields{ProhibitArbitraryInvocation: true}); err == nil {
		t.Error("prohibitArbitraryInvocation without permittedSources must fail")
	}
	if _, err := New(Fields{PermittedSources: []string{"a.B#c"}}); err == nil {
		t.Error("permittedSources without prohibitArbitraryInvocation must fail")
	}

	p, err := New(Fields{
		ProhibitArbitraryInvocation: true,
		PermittedSources:            []string{"a.B#c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ProhibitArbitraryInvocation() {
		t.Error("field lost during construction")
	}
}

func TestNew_OversizedListNamesField(t *testing.T) {
	big := make([]string, MaxListSize+1)
	for i := range big {
		big[i] = "a.B#c"
	}

	for _, tc := range []struct {
		name   string
		fields Fields
	}{
		{"exactExpectedCallStack", Fields{ExactExpectedCallStack: big}},
		{"permittedSources", Fields{ProhibitArbitraryInvocation: true, PermittedSources: big}},
		{"prohibitedSources", Fields{ProhibitedSources: big}},
	} {
		_, err := New(tc.fields)
		if err == nil {
			t.Errorf("%s: expected SetupError for oversized list", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.name) {
			t.Errorf("%s: error must name the offending field, got: %v", tc.name, err)
		}
	}
}

func TestNew_DerivedFlagsWithProhibitions(t *testing.T) {
	p, err := New(Fields{ProhibitReflectionTraces: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ResolutionOptions()&FilterReflectionFrames != 0 {
		t.Error("prohibitReflectionTraces must keep reflective frames visible")
	}
	if p.ResolutionOptions()&FilterNativeFrames == 0 {
		t.Error("native frames should still be filtered")
	}

	p, err = New(Fields{ProhibitNativeTraces: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ResolutionOptions()&FilterNativeFrames != 0 {
		t.Error("prohibitNativeTraces must keep native frames visible")
	}
	if p.ResolutionOptions()&FilterReflectionFrames == 0 {
		t.Error("reflective frames should still be filtered")
	}
}

func TestNew_InvalidGlobPattern(t *testing.T) {
	if _, err := New(Fields{ProhibitedSources: []string{""}}); err == nil {
		t.Error("empty glob pattern must fail validation")
	}
}

func TestNew_InputSlicesNotAliased(t *testing.T) {
	src := []string{"a.B#c"}
	p, err := New(Fields{ProhibitedSources: src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src[0] = "mutated"
	if p.ProhibitedSources()[0] != "a.B#c" {
		t.Error("policy must copy list fields at construction")
	}
}
