package callstack

import (
	"runtime"

	"github.com/stackwarden/stackwarden/internal/policy"
)

// maxRawCapture bounds the raw capture buffer. Anything beyond it would
// exceed MaxCallStackSize after filtering anyway.
const maxRawCapture = MaxCallStackSize + 64

// Resolve captures the current call stack and filters it according to
// the resolution option bits derived by the policy package. Frames are
// visited most-recent-first; survivors keep their order.
//
// It fails with a *policy.SetupError if the raw stack is empty, if
// filtering removes every frame, or if the result exceeds
// MaxCallStackSize.
func Resolve(options int) (*Context, *policy.SetupError) {
	raw := capture()
	if len(raw) == 0 {
		return nil, policy.Setupf("call stack cannot be empty")
	}
	return newContext(filterFrames(raw, options))
}

func capture() []Frame {
	pcs := make([]uintptr, 128)
	for {
		n := runtime.Callers(2, pcs)
		if n < len(pcs) || len(pcs) >= maxRawCapture {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}

	frames := make([]Frame, 0, len(pcs))
	it := runtime.CallersFrames(pcs)
	for {
		rf, more := it.Next()
		if rf.Function != "" || rf.File != "" {
			frames = append(frames, frameOf(rf))
		}
		if !more {
			break
		}
	}
	return frames
}

// filterFrames applies the option bits to a raw most-recent-first frame
// list. The resolver-caller frame is the first frame past the last
// resolver-self frame; exactly one such frame is dropped when
// FilterResolverCaller is set.
func filterFrames(raw []Frame, options int) []Frame {
	filterSelf := options&policy.FilterResolverFrames != 0
	filterReflection := options&policy.FilterReflectionFrames != 0
	filterNative := options&policy.FilterNativeFrames != 0
	filterResCaller := options&policy.FilterResolverCaller != 0

	framesPastSelf := 0
	kept := make([]Frame, 0, len(raw))

	for _, f := range raw {
		if f.self {
			if filterSelf {
				continue
			}
		} else {
			framesPastSelf++
		}

		if filterResCaller && framesPastSelf == 1 {
			continue
		}

		if (filterReflection && f.Reflective) || (filterNative && f.Native) {
			continue
		}

		kept = append(kept, f)
	}
	return kept
}
