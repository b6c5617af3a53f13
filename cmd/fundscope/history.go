package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundscope/fundscope/internal/types"
)

var (
	historyLimit  int
	historyOffset int
	historyEvents bool
)

var historyCmd = &cobra.Command{
	Use:   "history [entity-id]",
	Short: "Show merge decisions, optionally for one entity",
	Long: `Show merge candidates newest first, in every status. With an entity
id, only candidates involving that entity are shown; add --events to
also print the entity's audit trail.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var entityID *int64
		if len(args) > 0 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid entity id %q\n", args[0])
				os.Exit(1)
			}
			entityID = &id
		}

		candidates, err := eng.History(ctx, entityID, historyLimit, historyOffset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(candidates) == 0 {
			fmt.Printf("%s\n", gray("No candidates"))
		}
		for _, c := range candidates {
			printCandidate(c)
		}

		if historyEvents && entityID != nil {
			events, err := eng.Events(ctx, *entityID, historyLimit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s\n", yellow("Events:"))
			for _, ev := range events {
				fmt.Printf("  %s  %-18s %s", ev.CreatedAt.Format("2006-01-02 15:04"), ev.EventType, ev.Actor)
				if ev.Detail != "" {
					fmt.Printf("  %s", gray(ev.Detail))
				}
				fmt.Println()
			}
		}
	},
}

func printCandidate(c *types.MergeCandidate) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	statusColor := color.New(color.FgYellow).SprintFunc()
	switch c.Status {
	case types.StatusAutoMerged, types.StatusApproved:
		statusColor = color.New(color.FgGreen).SprintFunc()
	case types.StatusRejected:
		statusColor = color.New(color.FgRed).SprintFunc()
	}

	canonical := ""
	if c.CanonicalEntityID != nil {
		canonical = fmt.Sprintf(" -> #%d", *c.CanonicalEntityID)
	}
	fmt.Printf("%s  (%d, %d)  %s %.3f  %s%s  %s\n",
		cyan(fmt.Sprintf("#%d", c.ID)),
		c.EntityAID, c.EntityBID,
		c.MatchType, c.Similarity,
		statusColor(string(c.Status)), canonical,
		gray(c.CreatedAt.Format("2006-01-02 15:04")))
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "max rows to list")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "offset into the listing")
	historyCmd.Flags().BoolVar(&historyEvents, "events", false, "also print the entity's audit trail")
	rootCmd.AddCommand(historyCmd)
}
