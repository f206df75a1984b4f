package unit

// Instruction is one operation of a method body: a symbolic opcode and
// its string arguments. The rewriter understands a small, fixed
// vocabulary; every other opcode is carried through untouched.
type Instruction struct {
	Op   string   `cbor:"op"`
	Args []string `cbor:"args,omitempty"`
}

// Opcodes the rewriter emits. Everything else in a method body is
// opaque payload.
const (
	// OpLabel marks a position in the instruction stream.
	OpLabel = "label"

	// OpCallStatic invokes a parameterless static function:
	// args[0] is the unit name, args[1] the function name.
	OpCallStatic = "callstatic"

	// OpTrapSetup opens a region whose setup faults are converted
	// into access-denial faults carrying the original message.
	OpTrapSetup = "trapsetup"

	// OpTrapEnd closes the innermost trap region.
	OpTrapEnd = "trapend"

	// OpPushBool pushes a named boolean policy constant:
	// args[0] is the field name, args[1] "true" or "false".
	OpPushBool = "pushbool"

	// OpPushList pushes a named string-list policy constant:
	// args[0] is the field name, args[1:] the elements.
	OpPushList = "pushlist"

	// OpBuildPolicy validates the pushed constants into a policy.
	OpBuildPolicy = "buildpolicy"

	// OpResolve captures the call stack with the built policy's
	// derived resolution options.
	OpResolve = "resolve"

	// OpDropFrame discards the most recent resolved frame: the call
	// site of resolution itself.
	OpDropFrame = "dropframe"

	// OpEvaluate evaluates the resolved context against the policy.
	OpEvaluate = "evaluate"

	// OpReturn returns from a parameterless function.
	OpReturn = "return"
)

// Label returns a label instruction.
func Label() Instruction {
	return Instruction{Op: OpLabel}
}

// CallStatic returns a static call instruction.
func CallStatic(unitName, function string) Instruction {
	return Instruction{Op: OpCallStatic, Args: []string{unitName, function}}
}

// PushBool returns a named boolean constant push.
func PushBool(field string, value bool) Instruction {
	v := "false"
	if value {
		v = "true"
	}
	return Instruction{Op: OpPushBool, Args: []string{field, v}}
}

// PushList returns a named string-list constant push.
func PushList(field string, items []string) Instruction {
	args := make([]string, 0, len(items)+1)
	args = append(args, field)
	args = append(args, items...)
	return Instruction{Op: OpPushList, Args: args}
}
