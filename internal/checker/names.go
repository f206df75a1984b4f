package checker

import (
	"strings"

	"github.com/google/uuid"
)

// nameRegistry hands out check-function names unique within one
// transform run. Identifiers are high-entropy so a rewritten archive
// cannot collide with application symbols.
type nameRegistry struct {
	used  map[string]struct{}
	newID func() string
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{
		used:  make(map[string]struct{}),
		newID: randomID,
	}
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (r *nameRegistry) next() string {
	for {
		name := "__check_" + r.newID() + "__"
		if _, taken := r.used[name]; !taken {
			r.used[name] = struct{}{}
			return name
		}
	}
}
