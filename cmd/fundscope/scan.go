package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundscope/fundscope/internal/scanner"
)

var (
	scanOrgID int64
	scanLimit int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan person entities for duplicates",
	Long: `Run one batch duplicate-detection pass over canonical person
entities.

People are bucketed by normalized last name and compared pairwise.
Confident matches with shared employment context merge automatically;
uncertain matches queue for review ('fundscope pending'). Pairs already
evaluated are skipped, so re-running a scan is cheap and converges to a
no-op.

Example:
  fundscope scan
  fundscope scan --org 42       # only people currently at entity 42`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		res, err := eng.Scan(ctx, scanner.Options{
			OrgEntityID: scanOrgID,
			Limit:       scanLimit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Scan Complete ==="))
		fmt.Printf("  Scan ID:        %s\n", gray(res.ScanID))
		fmt.Printf("  Compared:       %d pairs\n", res.TotalCompared)
		fmt.Printf("  Auto-merged:    %s\n", green(fmt.Sprintf("%d", res.AutoMerged)))
		fmt.Printf("  Review queued:  %s\n", yellow(fmt.Sprintf("%d", res.ReviewQueued)))
		fmt.Printf("  Skipped:        %d\n", res.Skipped)
		fmt.Printf("  Elapsed:        %s\n\n", res.Elapsed.Round(time.Millisecond))

		if res.ReviewQueued > 0 {
			fmt.Printf("Run '%s' to review queued candidates\n", cyan("fundscope review"))
		}
	},
}

func init() {
	scanCmd.Flags().Int64Var(&scanOrgID, "org", 0, "restrict the scan to one organization's current roster")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "max entities to load (default from config)")
	rootCmd.AddCommand(scanCmd)
}
