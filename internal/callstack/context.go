package callstack

import (
	"github.com/stackwarden/stackwarden/internal/policy"
)

// MaxCallStackSize caps how many frames a resolved context may hold.
// A deeper stack is treated as unanalyzable.
const MaxCallStackSize = 5000

// Context is an ordered, filtered view of a captured call stack,
// most-recent-first. A Context always holds at least one frame.
type Context struct {
	frames []Frame
}

func newContext(frames []Frame) (*Context, *policy.SetupError) {
	if len(frames) == 0 {
		return nil, policy.Setupf("call stack cannot be empty")
	}
	if len(frames) > MaxCallStackSize {
		return nil, policy.Setupf("call stack cannot contain more than %d frames", MaxCallStackSize)
	}
	return &Context{frames: frames}, nil
}

// Frames returns the resolved frames, most-recent-first. The returned
// slice is shared; callers must not mutate it.
func (c *Context) Frames() []Frame {
	return c.frames
}

// Depth returns the number of frames in the context.
func (c *Context) Depth() int {
	return len(c.frames)
}

// MostRecent returns the most recent frame.
func (c *Context) MostRecent() Frame {
	return c.frames[0]
}

// LeastRecent returns the oldest frame.
func (c *Context) LeastRecent() Frame {
	return c.frames[len(c.frames)-1]
}

// MostRecentMatch returns the most recent frame satisfying pred.
func (c *Context) MostRecentMatch(pred func(Frame) bool) (Frame, bool) {
	for _, f := range c.frames {
		if pred(f) {
			return f, true
		}
	}
	return Frame{}, false
}

// LeastRecentMatch returns the oldest frame satisfying pred.
func (c *Context) LeastRecentMatch(pred func(Frame) bool) (Frame, bool) {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if pred(c.frames[i]) {
			return c.frames[i], true
		}
	}
	return Frame{}, false
}

// DirectCaller returns the most recent frame that is neither reflective
// nor native: the effective source-level caller.
func (c *Context) DirectCaller() (Frame, bool) {
	return c.MostRecentMatch(func(f Frame) bool {
		return !f.Reflective && !f.Native
	})
}

// ContainsReflective reports whether any frame is reflective.
func (c *Context) ContainsReflective() bool {
	_, ok := c.MostRecentMatch(func(f Frame) bool { return f.Reflective })
	return ok
}

// ContainsNative reports whether any frame is native.
func (c *Context) ContainsNative() bool {
	_, ok := c.MostRecentMatch(func(f Frame) bool { return f.Native })
	return ok
}

// DropMostRecent returns a new Context without the most recent frame.
// Check functions use it to discard the frame of the call site that
// invoked resolution.
func (c *Context) DropMostRecent() (*Context, *policy.SetupError) {
	if len(c.frames) <= 1 {
		return nil, policy.Setupf("filtered call stack is unexpectedly small")
	}
	return &Context{frames: c.frames[1:]}, nil
}
