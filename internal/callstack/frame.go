// Package callstack resolves the live call stack under a set of filter
// flags and evaluates it against an access policy. Resolution produces
// a Context of qualified frames, most-recent-first; evaluation either
// allows the call or returns an *AccessDeniedError naming the reason.
package callstack

import (
	"runtime"
	"strings"
)

// resolverPkg identifies frames belonging to this package. Those frames
// are implementation noise of resolution itself and are filtered when
// FilterResolverFrames is set.
const resolverPkg = "github.com/stackwarden/stackwarden/internal/callstack."

// Frame is one resolved call-stack entry. Function is the qualified
// caller identity of the form "qualified.Type#method" (or
// "package#function" for plain functions).
type Frame struct {
	Function string
	File     string
	Line     int

	// Reflective marks frames that originate from reflective call
	// machinery rather than a direct source-level call.
	Reflective bool

	// Native marks frames without Go source positions: cgo and
	// assembly trampolines.
	Native bool

	// self marks frames of the resolver package itself.
	self bool
}

func frameOf(rf runtime.Frame) Frame {
	name := rf.Function
	return Frame{
		Function:   qualify(name),
		File:       rf.File,
		Line:       rf.Line,
		Reflective: isReflective(name),
		Native:     isNative(name, rf.File),
		self:       strings.HasPrefix(name, resolverPkg),
	}
}

// qualify rewrites a runtime function name into the canonical
// "qualified.Type#method" identity matched by restriction patterns.
// "pkg/path.(*Type).Method" becomes "path.Type#Method" and
// "pkg/path.Function" becomes "path#Function".
func qualify(fn string) string {
	// Keep only the last path segment; the import path prefix is not
	// part of the declared pattern space.
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	fn = strings.ReplaceAll(fn, "(*", "")
	fn = strings.ReplaceAll(fn, ")", "")

	if i := strings.LastIndex(fn, "."); i >= 0 {
		fn = fn[:i] + "#" + fn[i+1:]
	}
	return fn
}

func isReflective(fn string) bool {
	return strings.HasPrefix(fn, "reflect.") ||
		strings.HasPrefix(fn, "runtime.call")
}

func isNative(fn, file string) bool {
	if strings.HasPrefix(fn, "runtime.cgocall") || strings.Contains(fn, "_Cfunc_") {
		return true
	}
	return file == "" || strings.HasSuffix(file, ".s")
}
