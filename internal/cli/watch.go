package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/buildtool"
	"github.com/stackwarden/stackwarden/internal/transform"
)

var watchOnce bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchOnce, "scan-only", false, "Process archives already present, then exit")
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Continuously rewrite archives as a build directory changes",
	Long: "Watches a build output directory and rewrites every archive the\n" +
		"build drops there. Archives already present at startup are processed\n" +
		"first. Runs until interrupted. Without an argument the directory\n" +
		"comes from archive.dir in the config file.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var dir string
	if len(args) == 1 {
		dir = args[0]
	} else {
		dir = cfg.Archive.Dir
	}
	if dir == "" {
		return fmt.Errorf("stackwarden: no directory given and archive.dir not configured")
	}
	log, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	if log != nil {
		defer log.Close()
	}

	handler := func(path string) {
		res, err := transform.Run(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stackwarden: %s: %v\n", path, err)
			recordFailure(log, path, err)
			return
		}
		recordResult(log, res)
		printRewriteSummary(res)
	}

	if err := buildtool.ScanExisting(dir, handler); err != nil {
		return fmt.Errorf("stackwarden: initial scan: %w", err)
	}
	if watchOnce {
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "stackwarden: watching %s\n", dir)
	if cfg.Watch.UsePolling {
		w := buildtool.NewPollWatcher(dir, handler, cfg.Watch.PollInterval())
		return w.Run(ctx)
	}
	w := buildtool.NewDirWatcher(dir, handler, cfg.Watch.Debounce())
	return w.Run(ctx)
}
