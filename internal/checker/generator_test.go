package checker

import (
	"strings"
	"testing"

	"github.com/stackwarden/stackwarden/internal/declaration"
	"github.com/stackwarden/stackwarden/internal/unit"
)

func guardedMethod(values map[string]any) (*unit.Unit, *unit.Method) {
	owner := &unit.Unit{Name: "demo.App", Superclass: unit.RootType}
	m := &unit.Method{
		Name:      "launch",
		Signature: "()",
		Instructions: []unit.Instruction{
			unit.Label(),
			{Op: "work"},
			{Op: unit.OpReturn},
		},
		Annotations: []unit.Annotation{
			{Name: declaration.Name, Values: values},
		},
	}
	return owner, m
}

func TestGuard_SplicesCallAndEmitsFunction(t *testing.T) {
	g := NewGenerator()
	owner, m := guardedMethod(map[string]any{
		declaration.KeyProhibitArbitraryInvocation: true,
		declaration.KeyPermittedSources:            []string{"demo.App#first"},
	})

	changed, err := g.Guard(owner, m)
	if err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if !changed {
		t.Fatal("guarded method not reported as changed")
	}

	// The check call must be the very first instruction.
	first := m.Instructions[0]
	if first.Op != unit.OpCallStatic || first.Args[0] != CheckerUnitName {
		t.Fatalf("first instruction is %+v, want callstatic into checker unit", first)
	}
	fnName := first.Args[1]
	if !strings.HasPrefix(fnName, "__check_") || !strings.HasSuffix(fnName, "__") {
		t.Errorf("unexpected check-function name: %s", fnName)
	}

	// The original body follows, untouched.
	if m.Instructions[len(m.Instructions)-1].Op != unit.OpReturn {
		t.Error("original instructions disturbed")
	}

	// Default: the declaration is stripped after transformation.
	if m.FindAnnotation(declaration.Name) != -1 {
		t.Error("declaration must be removed when preserveAnnotation is absent")
	}

	if g.FunctionCount() != 1 {
		t.Fatalf("FunctionCount = %d, want 1", g.FunctionCount())
	}
	fn := g.CheckerUnit().Methods[0]
	if fn.Name != fnName {
		t.Errorf("checker function name %s does not match spliced call %s", fn.Name, fnName)
	}
}

func TestGuard_CheckFunctionTemplate(t *testing.T) {
	g := NewGenerator()
	owner, m := guardedMethod(map[string]any{
		declaration.KeyProhibitReflectionTraces: true,
		declaration.KeyProhibitedSources:        []string{"evil.Bot#*"},
	})

	if _, err := g.Guard(owner, m); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	fn := g.CheckerUnit().Methods[0]
	var ops []string
	for _, ins := range fn.Instructions {
		ops = append(ops, ins.Op)
	}

	want := []string{
		unit.OpTrapSetup, unit.OpLabel,
		unit.OpPushBool, unit.OpPushList,
		unit.OpBuildPolicy, unit.OpResolve, unit.OpDropFrame, unit.OpEvaluate,
		unit.OpTrapEnd, unit.OpReturn,
	}
	if strings.Join(ops, " ") != strings.Join(want, " ") {
		t.Errorf("template ops = %v, want %v", ops, want)
	}

	// Constants are reconstructed inline from the validated policy.
	for _, ins := range fn.Instructions {
		if ins.Op == unit.OpPushList {
			if ins.Args[0] != declaration.KeyProhibitedSources || ins.Args[1] != "evil.Bot#*" {
				t.Errorf("unexpected list constant: %v", ins.Args)
			}
		}
		if ins.Op == unit.OpPushBool {
			if ins.Args[0] != declaration.KeyProhibitReflectionTraces || ins.Args[1] != "true" {
				t.Errorf("unexpected bool constant: %v", ins.Args)
			}
		}
	}
}

func TestGuard_PreserveAnnotation(t *testing.T) {
	g := NewGenerator()
	owner, m := guardedMethod(map[string]any{
		declaration.KeyPreserveAnnotation: true,
		declaration.KeyProhibitedSources:  []string{"evil.Bot#*"},
	})

	if _, err := g.Guard(owner, m); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if m.FindAnnotation(declaration.Name) == -1 {
		t.Error("declaration must be kept when preserveAnnotation is true")
	}
}

func TestGuard_UnguardedMethodUntouched(t *testing.T) {
	g := NewGenerator()
	owner := &unit.Unit{Name: "demo.App", Superclass: unit.RootType}
	m := &unit.Method{Name: "plain", Instructions: []unit.Instruction{{Op: unit.OpReturn}}}

	changed, err := g.Guard(owner, m)
	if err != nil || changed {
		t.Fatalf("unguarded method: changed=%v err=%v", changed, err)
	}
	if len(m.Instructions) != 1 || g.FunctionCount() != 0 {
		t.Error("unguarded method must not be modified")
	}
}

func TestGuard_ContradictoryDeclarationLeavesMethodUntouched(t *testing.T) {
	g := NewGenerator()
	owner, m := guardedMethod(map[string]any{
		declaration.KeyExactExpectedCallStack: []string{"a.B#c"},
		declaration.KeyProhibitNativeTraces:   true,
	})
	before := len(m.Instructions)

	changed, err := g.Guard(owner, m)
	if err == nil {
		t.Fatal("contradictory declaration must fail")
	}
	if changed || len(m.Instructions) != before {
		t.Error("failed generation must leave the method untouched")
	}
	if m.FindAnnotation(declaration.Name) == -1 {
		t.Error("failed generation must not strip the declaration")
	}
	if g.FunctionCount() != 0 {
		t.Error("failed generation must not emit a check function")
	}
}

func TestGuard_ExactModeConstants(t *testing.T) {
	g := NewGenerator()
	owner, m := guardedMethod(map[string]any{
		declaration.KeyExactExpectedCallStack: []string{"demo.App#first", "demo.App#main"},
	})

	if _, err := g.Guard(owner, m); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	fn := g.CheckerUnit().Methods[0]
	var lists [][]string
	for _, ins := range fn.Instructions {
		if ins.Op == unit.OpPushList {
			lists = append(lists, ins.Args)
		}
	}
	if len(lists) != 1 {
		t.Fatalf("expected one list constant, got %v", lists)
	}
	if lists[0][0] != declaration.KeyExactExpectedCallStack ||
		lists[0][1] != "demo.App#first" || lists[0][2] != "demo.App#main" {
		t.Errorf("exact stack constant wrong or out of order: %v", lists[0])
	}
}

func TestNameRegistry_RegeneratesOnCollision(t *testing.T) {
	ids := []string{"aaaa", "aaaa", "bbbb"}
	r := &nameRegistry{used: make(map[string]struct{})}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first := r.next()
	second := r.next()
	if first == second {
		t.Fatalf("collision not retried: %s == %s", first, second)
	}
	if first != "__check_aaaa__" || second != "__check_bbbb__" {
		t.Errorf("unexpected names: %s, %s", first, second)
	}
}

func TestNameRegistry_UniqueAcrossRun(t *testing.T) {
	r := newNameRegistry()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		name := r.next()
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate name: %s", name)
		}
		seen[name] = struct{}{}
	}
}
