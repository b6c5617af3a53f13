package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundscope/fundscope/internal/types"
)

var (
	pendingLimit  int
	pendingOffset int
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List merge candidates awaiting review",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		candidates, err := eng.ListPending(ctx, pendingLimit, pendingOffset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(candidates) == 0 {
			fmt.Printf("%s\n", gray("No pending candidates"))
			return
		}

		for _, pc := range candidates {
			printPendingCandidate(pc)
		}
		fmt.Printf("%d pending candidate(s)\n", len(candidates))
	},
}

func printPendingCandidate(pc *types.PendingCandidate) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	c := pc.Candidate
	fmt.Printf("%s  %s  similarity %s\n",
		cyan(fmt.Sprintf("#%d", c.ID)),
		yellow(string(c.MatchType)),
		yellow(fmt.Sprintf("%.3f", c.Similarity)))
	fmt.Printf("  [%d] %s%s\n", pc.EntityA.ID, pc.EntityA.DisplayName, summaryDetail(&pc.EntityA))
	fmt.Printf("  [%d] %s%s\n", pc.EntityB.ID, pc.EntityB.DisplayName, summaryDetail(&pc.EntityB))
	if c.Evidence != "" {
		fmt.Printf("  %s\n", gray(c.Evidence))
	}
	fmt.Printf("  %s\n\n", gray("queued "+c.CreatedAt.Format("2006-01-02 15:04")))
}

func summaryDetail(s *types.Summary) string {
	detail := ""
	if s.Location != "" {
		detail += ", " + s.Location
	}
	if s.RoleCount > 0 {
		detail += fmt.Sprintf(", %d role(s)", s.RoleCount)
	}
	return detail
}

func init() {
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 50, "max candidates to list")
	pendingCmd.Flags().IntVar(&pendingOffset, "offset", 0, "offset into the queue")
	rootCmd.AddCommand(pendingCmd)
}
