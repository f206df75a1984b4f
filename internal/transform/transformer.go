// Package transform rewrites one packaged archive: it loads compiled
// units, drives the restricted-call visitor over every method, and
// re-emits the archive with modified units replaced and the synthetic
// checker unit appended.
//
// A Transformer moves through Created → Read → Transformed → Saved,
// with Error reachable from any active state. Calling an operation out
// of its required predecessor state is a programming-contract violation
// and panics. An instance serves exactly one run; on failure the caller
// starts over with a new instance.
package transform

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/stackwarden/stackwarden/internal/checker"
	"github.com/stackwarden/stackwarden/internal/unit"
)

// State is the transformer's lifecycle position.
type State int

const (
	Created State = iota
	Read
	Transformed
	Saved
	Error
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Read:
		return "read"
	case Transformed:
		return "transformed"
	case Saved:
		return "saved"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StructuralError reports an archive or compiled-unit read/write
// failure. Always fatal for the current run.
type StructuralError struct {
	Op  string
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("transform: %s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

func structural(op string, err error) *StructuralError {
	return &StructuralError{Op: op, Err: err}
}

// tempSuffix names the temporary output archive next to the original.
const tempSuffix = ".stackwarden-temp.out"

// ownedUnit pairs a parsed unit with its archive entry name. The
// transformer exclusively owns these for the run's duration.
type ownedUnit struct {
	entryName string
	unit      *unit.Unit
}

// Transformer rewrites a single archive through read → apply → save.
type Transformer struct {
	archivePath string
	tempPath    string

	state  State
	reader *zip.ReadCloser

	units    []ownedUnit
	modified map[string]*unit.Unit

	gen *checker.Generator
}

// New creates a transformer for the archive at path. No I/O happens
// until Read.
func New(archivePath string) *Transformer {
	return &Transformer{
		archivePath: archivePath,
		state:       Created,
		modified:    make(map[string]*unit.Unit),
	}
}

// State returns the current lifecycle state.
func (t *Transformer) State() State {
	return t.state
}

func (t *Transformer) require(op string, want State) {
	if t.state != want {
		panic(fmt.Sprintf("transform: %s() in illegal state: %s", op, t.state))
	}
}

// Read opens the archive, identifies compiled units by their format
// signature, builds the in-memory unit set, and prepares the temporary
// output path. Entries failing the signature check and parsed units
// without a superclass reference (other than the root type) are
// rejected and skipped; a corrupt unit body is fatal.
func (t *Transformer) Read() error {
	t.require("read", Created)

	fmt.Fprintf(os.Stderr, "transform: reading input archive %s\n", t.archivePath)

	reader, err := zip.OpenReader(t.archivePath)
	if err != nil {
		t.state = Error
		return structural("open archive", err)
	}
	t.reader = reader

	if err := t.loadUnits(); err != nil {
		t.state = Error
		return err
	}

	t.tempPath = t.archivePath + tempSuffix
	if err := os.Remove(t.tempPath); err != nil && !os.IsNotExist(err) {
		t.state = Error
		return structural("delete stale temp file", err)
	}

	t.state = Read
	return nil
}

func (t *Transformer) loadUnits() error {
	for _, entry := range t.reader.File {
		if !unit.IsUnitEntry(entry.Name) {
			continue
		}

		data, err := readEntry(entry)
		if err != nil {
			return structural("read entry "+entry.Name, err)
		}
		if !unit.HasSignature(data) {
			continue
		}

		u, err := unit.Decode(data)
		if err != nil {
			return structural("parse unit "+entry.Name, err)
		}
		if !u.WellFormed() {
			continue
		}

		t.units = append(t.units, ownedUnit{entryName: entry.Name, unit: u})
	}
	return nil
}

// Apply creates the checker-unit shell and runs every visitor over
// every unit. Per-unit, per-field, and per-method failures are logged
// and skipped; a single broken method never aborts the rest of the
// archive.
func (t *Transformer) Apply() error {
	t.require("apply", Read)

	t.gen = checker.NewGenerator()
	visitors := []Visitor{newRestrictedCallVisitor(t.gen)}

	fmt.Fprintf(os.Stderr, "transform: applying %d visitors to %d units\n",
		len(visitors), len(t.units))

	for _, owned := range t.units {
		for _, v := range visitors {
			if err := v.VisitUnit(owned.unit); err != nil {
				fmt.Fprintf(os.Stderr, "transform: visit unit %s: %v\n", owned.unit.Name, err)
			}

			for i := range owned.unit.Fields {
				if err := v.VisitField(owned.unit, &owned.unit.Fields[i]); err != nil {
					fmt.Fprintf(os.Stderr, "transform: visit field %s.%s: %v\n",
						owned.unit.Name, owned.unit.Fields[i].Name, err)
				}
			}

			for i := range owned.unit.Methods {
				if err := v.VisitMethod(owned.unit, &owned.unit.Methods[i]); err != nil {
					fmt.Fprintf(os.Stderr, "transform: visit method %s#%s: %v\n",
						owned.unit.Name, owned.unit.Methods[i].Name, err)
				}
			}

			if v.AnythingModified() {
				fmt.Fprintf(os.Stderr, "transform: modified unit %s\n", owned.unit.Name)
				t.modified[owned.entryName] = owned.unit
			}
		}
	}

	t.state = Transformed
	return nil
}

// Save writes the rewritten archive. With no modified units it closes
// resources and finishes without touching the original. Otherwise every
// original entry streams into a new archive, modified units replaced by
// their re-encoded bytes, the checker unit appended, and the new file
// swapped into the original's place. The delete-then-rename swap is not
// crash-atomic; a crash between the two steps loses the original.
func (t *Transformer) Save() error {
	t.require("save", Transformed)

	if len(t.modified) == 0 {
		t.Close()
		fmt.Fprintf(os.Stderr, "transform: no units modified\n")
		t.state = Saved
		return nil
	}

	fmt.Fprintf(os.Stderr, "transform: saving %d modified units\n", len(t.modified))

	if err := t.writeArchive(); err != nil {
		t.state = Error
		return err
	}

	t.Close()

	if err := os.Remove(t.archivePath); err != nil {
		t.state = Error
		return structural("delete original archive", err)
	}
	if err := os.Rename(t.tempPath, t.archivePath); err != nil {
		t.state = Error
		return structural("move new archive into place", err)
	}

	t.state = Saved
	return nil
}

func (t *Transformer) writeArchive() error {
	out, err := os.Create(t.tempPath)
	if err != nil {
		return structural("create temp archive", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	for _, entry := range t.reader.File {
		if modified, ok := t.modified[entry.Name]; ok {
			data, err := unit.Encode(modified)
			if err != nil {
				return structural("serialize unit "+modified.Name, err)
			}
			if err := writeEntry(w, entry.Name, data); err != nil {
				return err
			}
			continue
		}

		if err := copyEntry(w, entry); err != nil {
			return err
		}
	}

	checkerData, err := unit.Encode(t.gen.CheckerUnit())
	if err != nil {
		return structural("serialize checker unit", err)
	}
	if err := writeEntry(w, unit.EntryName(checker.CheckerUnitName), checkerData); err != nil {
		return err
	}

	if err := w.Close(); err != nil {
		return structural("finalize new archive", err)
	}
	return out.Close()
}

// Close releases the open archive handle. Idempotent; calling it in the
// initial state is a contract violation.
func (t *Transformer) Close() {
	if t.state == Created {
		panic(fmt.Sprintf("transform: close() in illegal state: %s", t.state))
	}
	if t.reader != nil {
		_ = t.reader.Close()
		t.reader = nil
	}
}

// Records returns one entry per method rewritten during Apply.
func (t *Transformer) Records() []checker.GuardRecord {
	if t.gen == nil {
		return nil
	}
	return t.gen.Records()
}

// Modified reports whether Apply changed at least one unit.
func (t *Transformer) Modified() bool {
	return len(t.modified) > 0
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeEntry(w *zip.Writer, name string, data []byte) error {
	ew, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return structural("create entry "+name, err)
	}
	if _, err := ew.Write(data); err != nil {
		return structural("write entry "+name, err)
	}
	return nil
}

// copyEntry transfers an entry's raw stored bytes without a
// decompress-recompress cycle, keeping untouched entries byte-identical
// to the input archive.
func copyEntry(w *zip.Writer, f *zip.File) error {
	if err := w.Copy(f); err != nil {
		return structural("copy entry "+f.Name, err)
	}
	return nil
}
