package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackwarden/stackwarden/internal/audit"
)

var verifyLog string

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&verifyLog, "log", "l", "", "Path to rewrite log (default from config)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the rewrite log's hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath := verifyLog
		if logPath == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logPath = cfg.Audit.Path
		}

		result := audit.Verify(logPath)
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))

		if !result.Valid {
			return fmt.Errorf("rewrite log chain is broken")
		}
		return nil
	},
}
