package transform

import "github.com/stackwarden/stackwarden/internal/checker"

// Result summarizes one completed archive rewrite.
type Result struct {
	ArchivePath string
	Modified    bool
	Records     []checker.GuardRecord
}

// Run performs the full read, apply, save sequence on one archive and
// returns what changed. The first failing stage wins; later stages are
// not attempted.
func Run(archivePath string) (*Result, error) {
	t := New(archivePath)
	defer func() {
		if t.State() != Created {
			t.Close()
		}
	}()

	if err := t.Read(); err != nil {
		return nil, err
	}
	if err := t.Apply(); err != nil {
		return nil, err
	}
	if err := t.Save(); err != nil {
		return nil, err
	}

	return &Result{
		ArchivePath: archivePath,
		Modified:    t.Modified(),
		Records:     t.Records(),
	}, nil
}
