package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/audit"
)

var (
	historyLog    string
	historyFrom   string
	historyTo     string
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyLog, "log", "l", "", "Path to rewrite log (default from config)")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "Start time filter (RFC3339)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "End time filter (RFC3339)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var historyCmd = &cobra.Command{
	Use:   "history [archive]",
	Short: "Show past rewrites from the audit log",
	Long: "Reads the rewrite log, filters by archive and optional time range,\n" +
		"and renders a timeline of guarded methods with summary.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter := audit.HistoryFilter{}
	if len(args) == 1 {
		filter.Archive = args[0]
	}

	if historyFrom != "" {
		from, err := time.Parse(time.RFC3339, historyFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", historyFrom, err)
		}
		filter.From = from
	}
	if historyTo != "" {
		to, err := time.Parse(time.RFC3339, historyTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", historyTo, err)
		}
		filter.To = to
	}

	logPath := historyLog
	if logPath == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logPath = cfg.Audit.Path
	}

	result, err := audit.History(logPath, filter)
	if err != nil {
		return err
	}

	switch historyFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "text":
		fmt.Print(audit.FormatTimeline(result))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", historyFormat)
	}
	return nil
}
