// Package cli wires the stackwarden commands: one-shot archive
// rewriting, archive inspection, continuous watch mode, and audit log
// queries.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/audit"
	"github.com/stackwarden/stackwarden/internal/config"
	"github.com/stackwarden/stackwarden/internal/transform"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stackwarden",
	Short: "Call-stack access control for packaged archives",
	Long: "Rewrites packaged compiled units so that methods declared restricted\n" +
		"verify their runtime call stack before executing. Enforcement is baked\n" +
		"into the archive; no agent or classpath trickery required at runtime.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.stackwarden/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openAuditLog opens the configured rewrite log, or returns nil when
// auditing is disabled.
func openAuditLog(cfg *config.Config) (*audit.Log, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	return audit.Open(cfg.Audit.Path)
}

// recordResult appends one audit entry per guarded method, or a single
// unchanged entry when the run touched nothing.
func recordResult(log *audit.Log, res *transform.Result) {
	if log == nil {
		return
	}
	if !res.Modified {
		if err := log.Record(audit.Entry{
			Event:   audit.EventUnchanged,
			Archive: res.ArchivePath,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "stackwarden: audit: %v\n", err)
		}
		return
	}
	for _, r := range res.Records {
		if err := log.Record(audit.Entry{
			Event:         audit.EventRewrite,
			Archive:       res.ArchivePath,
			Method:        r.Method,
			CheckFunction: r.CheckFunction,
			Mode:          r.Mode,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "stackwarden: audit: %v\n", err)
		}
	}
}

// recordFailure appends a failure entry for an aborted run.
func recordFailure(log *audit.Log, archive string, runErr error) {
	if log == nil {
		return
	}
	if err := log.Record(audit.Entry{
		Event:   audit.EventFailure,
		Archive: archive,
		Detail:  runErr.Error(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "stackwarden: audit: %v\n", err)
	}
}
