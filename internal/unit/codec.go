package unit

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Magic is the four-byte format signature every compiled-unit entry
// begins with. An entry without it is not a compiled unit.
var Magic = [4]byte{0xC0, 0xDE, 0xCA, 0x11}

// FormatVersion is the encoded body version this codec reads and
// writes.
const FormatVersion = 1

// ErrNotUnit reports that an entry's leading bytes fail the format
// signature check.
var ErrNotUnit = errors.New("unit: missing format signature")

// body is the on-disk shape: the version travels inside the CBOR body,
// after the raw magic prefix.
type body struct {
	Version int  `cbor:"version"`
	Unit    Unit `cbor:"unit"`
}

// encMode uses Core Deterministic Encoding so the same logical unit
// always serializes to identical bytes.
var encMode cbor.EncMode

// decMode decodes annotation values into map[string]any rather than
// the CBOR default map[any]any.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("unit: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("unit: CBOR decoder initialization failed: " + err.Error())
	}
}

// HasSignature reports whether data begins with the unit format
// signature.
func HasSignature(data []byte) bool {
	return len(data) >= len(Magic) && bytes.Equal(data[:len(Magic)], Magic[:])
}

// Encode serializes a unit: magic prefix followed by the CBOR body.
func Encode(u *Unit) ([]byte, error) {
	encoded, err := encMode.Marshal(body{Version: FormatVersion, Unit: *u})
	if err != nil {
		return nil, fmt.Errorf("unit: encode %s: %w", u.Name, err)
	}
	return append(append(make([]byte, 0, len(Magic)+len(encoded)), Magic[:]...), encoded...), nil
}

// Decode parses an entry's bytes into a Unit. It fails with ErrNotUnit
// when the signature is absent, and with a descriptive error for a
// corrupt body or an unsupported version.
func Decode(data []byte) (*Unit, error) {
	if !HasSignature(data) {
		return nil, ErrNotUnit
	}

	var b body
	if err := decMode.Unmarshal(data[len(Magic):], &b); err != nil {
		return nil, fmt.Errorf("unit: decode body: %w", err)
	}
	if b.Version != FormatVersion {
		return nil, fmt.Errorf("unit: unsupported format version %d", b.Version)
	}
	if b.Unit.Name == "" {
		return nil, fmt.Errorf("unit: decoded unit has no name")
	}
	return &b.Unit, nil
}
