package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/buildtool"
	"github.com/stackwarden/stackwarden/internal/transform"
)

var (
	rewriteName    string
	rewriteVersion string
)

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.Flags().StringVar(&rewriteName, "name", "", "Archive base name for directory mode")
	rewriteCmd.Flags().StringVar(&rewriteVersion, "version", "", "Archive version for directory mode")
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <archive-or-dir>",
	Short: "Inject call-stack checks into a packaged archive",
	Long: "Reads every compiled unit in the archive, splices a check-function\n" +
		"call at the entry of each method declared restricted, and writes the\n" +
		"rewritten archive in place. Given a directory, picks the preferred\n" +
		"build output by naming convention.",
	RunE: runRewrite,
}

func runRewrite(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		os.Exit(2)
	}

	// Build scripts pass unquoted paths; everything after the command
	// is one path, spaces included.
	target := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stackwarden: %w", err)
	}

	var res *transform.Result
	if info.IsDir() {
		name := rewriteName
		if name == "" {
			name = cfg.Archive.Name
		}
		if name == "" {
			return fmt.Errorf("stackwarden: directory mode needs --name or archive.name in config")
		}
		version := rewriteVersion
		if version == "" {
			version = cfg.Archive.Version
		}
		res, err = buildtool.TransformFirst(target, name, version)
	} else {
		res, err = transform.Run(target)
	}
	if err != nil {
		recordFailure(log, target, err)
		return err
	}

	recordResult(log, res)
	printRewriteSummary(res)
	return nil
}

func printRewriteSummary(res *transform.Result) {
	if !res.Modified {
		fmt.Printf("%s: no restricted methods found, archive unchanged\n", res.ArchivePath)
		return
	}
	fmt.Printf("%s: %d methods guarded\n", res.ArchivePath, len(res.Records))
	for _, r := range res.Records {
		fmt.Printf("  %-40s mode=%s check=%s\n", r.Method, r.Mode, r.CheckFunction)
	}
}
