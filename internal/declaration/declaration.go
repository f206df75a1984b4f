// Package declaration reads the raw key/value pairs of a restricted-call
// declaration and exposes typed accessors with strict validation. The
// extractor normalizes decoded values once at construction; accessors
// never coerce between types.
package declaration

import "fmt"

// Name is the annotation identifying a guarded method.
const Name = "warden.RestrictedCall"

// Declaration field keys.
const (
	KeyPreserveAnnotation          = "preserveAnnotation"
	KeyExactExpectedCallStack      = "exactExpectedCallStack"
	KeyProhibitReflectionTraces    = "prohibitReflectionTraces"
	KeyProhibitNativeTraces        = "prohibitNativeTraces"
	KeyProhibitArbitraryInvocation = "prohibitArbitraryInvocation"
	KeyPermittedSources            = "permittedSources"
	KeyProhibitedSources           = "prohibitedSources"
)

// Extractor provides typed access to a declaration's raw fields.
type Extractor struct {
	values map[string]any
}

// New validates the raw value map of a declaration. Every value must be
// a bool, a string, or a list of strings; anything else is a malformed
// declaration. Decoded []any lists are normalized to []string here so
// accessors stay trivial.
func New(values map[string]any) (*Extractor, error) {
	normalized := make(map[string]any, len(values))

	for key, val := range values {
		switch v := val.(type) {
		case bool, string:
			normalized[key] = v
		case []string:
			normalized[key] = v
		case []any:
			list := make([]string, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf(
						"declaration: field %q: list element %d is %T, want string", key, i, item)
				}
				list[i] = s
			}
			normalized[key] = list
		default:
			return nil, fmt.Errorf(
				"declaration: field %q: unsupported value type %T", key, val)
		}
	}

	return &Extractor{values: normalized}, nil
}

// Bool returns the boolean field for key, or false if absent.
func (e *Extractor) Bool(key string) (bool, error) {
	val, ok := e.values[key]
	if !ok {
		return false, nil
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("declaration: field %q is %T, want bool", key, val)
	}
	return b, nil
}

// String returns the string field for key, or "" if absent.
func (e *Extractor) String(key string) (string, error) {
	val, ok := e.values[key]
	if !ok {
		return "", nil
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("declaration: field %q is %T, want string", key, val)
	}
	return s, nil
}

// StringList returns the string-list field for key, or nil if absent.
func (e *Extractor) StringList(key string) ([]string, error) {
	val, ok := e.values[key]
	if !ok {
		return nil, nil
	}
	list, ok := val.([]string)
	if !ok {
		return nil, fmt.Errorf("declaration: field %q is %T, want string list", key, val)
	}
	return list, nil
}

// Has reports whether the declaration carries a field named key.
func (e *Extractor) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}
