package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/checker"
	"github.com/stackwarden/stackwarden/internal/declaration"
	"github.com/stackwarden/stackwarden/internal/unit"
)

var inspectFormat string

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format (text|json)")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "List compiled units and their restriction state",
	Long: "Reads an archive without modifying it and reports every compiled\n" +
		"unit: declared restrictions still pending, and check calls already\n" +
		"spliced by a previous rewrite.",
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

// inspectedMethod is one method's restriction state in the report.
type inspectedMethod struct {
	Name     string `json:"name"`
	Declared bool   `json:"declared,omitempty"`
	Guarded  bool   `json:"guarded,omitempty"`
}

// inspectedUnit is one compiled unit in the report.
type inspectedUnit struct {
	Name    string            `json:"name"`
	Digest  string            `json:"digest"`
	Checker bool              `json:"checker,omitempty"`
	Methods []inspectedMethod `json:"methods,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	units, err := inspectArchive(args[0])
	if err != nil {
		return err
	}

	switch inspectFormat {
	case "json":
		out, err := json.MarshalIndent(units, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "text":
		printInspectText(args[0], units)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", inspectFormat)
	}
	return nil
}

func inspectArchive(path string) ([]inspectedUnit, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("stackwarden: open archive: %w", err)
	}
	defer r.Close()

	var out []inspectedUnit
	for _, entry := range r.File {
		if !unit.IsUnitEntry(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("stackwarden: read entry %s: %w", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("stackwarden: read entry %s: %w", entry.Name, err)
		}
		if !unit.HasSignature(data) {
			continue
		}
		u, err := unit.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("stackwarden: parse unit %s: %w", entry.Name, err)
		}

		sum := sha256.Sum256(data)
		iu := inspectedUnit{
			Name:    u.Name,
			Digest:  "sha256:" + hex.EncodeToString(sum[:]),
			Checker: u.Name == checker.CheckerUnitName,
		}
		for i := range u.Methods {
			m := &u.Methods[i]
			im := inspectedMethod{
				Name:     m.Name,
				Declared: m.FindAnnotation(declaration.Name) >= 0,
				Guarded:  callsChecker(m),
			}
			iu.Methods = append(iu.Methods, im)
		}
		out = append(out, iu)
	}
	return out, nil
}

// callsChecker reports whether the method's first instruction is a
// spliced check-function call.
func callsChecker(m *unit.Method) bool {
	if len(m.Instructions) == 0 {
		return false
	}
	in := m.Instructions[0]
	return in.Op == unit.OpCallStatic && len(in.Args) > 0 && in.Args[0] == checker.CheckerUnitName
}

// shortDigest trims a digest to a readable prefix for text output.
func shortDigest(d string) string {
	if len(d) > 19 {
		return d[:19]
	}
	return d
}

func printInspectText(path string, units []inspectedUnit) {
	fmt.Printf("%s: %d compiled units\n", path, len(units))
	for _, u := range units {
		tag := ""
		if u.Checker {
			tag = "  [generated checker]"
		}
		fmt.Printf("  %-40s %s%s\n", u.Name, shortDigest(u.Digest), tag)
		for _, m := range u.Methods {
			var marks []string
			if m.Declared {
				marks = append(marks, "restricted")
			}
			if m.Guarded {
				marks = append(marks, "guarded")
			}
			if len(marks) == 0 {
				continue
			}
			fmt.Printf("    #%-30s %s\n", m.Name, strings.Join(marks, ", "))
		}
	}
}
