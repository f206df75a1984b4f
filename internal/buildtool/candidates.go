// Package buildtool locates packaged build outputs and runs the
// rewrite over them, either once or continuously as a build directory
// changes. It encodes the conventions build pipelines use for naming
// their archives so callers can point at an output directory instead
// of a specific file.
package buildtool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackwarden/stackwarden/internal/transform"
)

// Candidates returns archive names to try in preference order. Bundled
// archives carrying all dependencies come first since those are what
// actually ships; the unversioned spelling of each wins over the
// versioned one.
func Candidates(name, version string) []string {
	out := []string{name + "-all.zip"}
	if version != "" {
		out = append(out, name+"-all-"+version+".zip")
	}
	out = append(out, name+".zip")
	if version != "" {
		out = append(out, name+"-"+version+".zip")
	}
	return out
}

// TransformFirst tries each candidate archive under dir in preference
// order and rewrites the first one that transforms successfully. A
// candidate that is missing or fails is logged and the next one tried.
// It fails only when no candidate succeeds.
func TransformFirst(dir, name, version string) (*transform.Result, error) {
	var lastErr error
	tried := 0

	for _, candidate := range Candidates(name, version) {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		tried++

		res, err := transform.Run(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "buildtool: candidate %s: %v\n", candidate, err)
			lastErr = err
			continue
		}
		return res, nil
	}

	if tried == 0 {
		return nil, fmt.Errorf("buildtool: no candidate archive for %q found in %s", name, dir)
	}
	return nil, fmt.Errorf("buildtool: all %d candidate archives failed: %w", tried, lastErr)
}
