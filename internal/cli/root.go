package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the photocheck command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photocheck",
		Short: "Check whether plant photos are good enough for diagnosis",
		Long: `photocheck runs the plant photo admission gate locally.

Each photo is normalized, measured and judged with the same rules the
upload service applies, so thresholds can be tuned on a folder of samples.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newAnalyzeCmd())

	return cmd
}
