package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fundscope/fundscope/internal/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively review pending merge candidates",
	Long: `Walk the review queue one candidate at a time.

Commands at the prompt:
  a          approve, canonical side chosen by policy
  a <id>     approve with the given entity as the surviving side
  r          reject
  s          skip to the next candidate
  q          quit`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := runReview(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runReview(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("review> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}
	defer rl.Close()

	offset := 0
	for {
		candidates, err := eng.ListPending(ctx, 1, offset)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No more pending candidates"))
			return nil
		}

		pc := candidates[0]
		fmt.Println()
		printPendingCandidate(pc)

		done, err := reviewOne(ctx, rl, pc)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		// Decided candidates drop out of the pending listing; only
		// skips advance the offset.
		if pc.Candidate.Status == types.StatusPending {
			offset++
		}
	}
}

// reviewOne prompts until the candidate is decided or skipped. Returns
// done=true when the reviewer quits.
func reviewOne(ctx context.Context, rl *readline.Instance, pc *types.PendingCandidate) (bool, error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "a", "approve":
			var canonical int64
			if len(fields) > 1 {
				canonical, err = strconv.ParseInt(fields[1], 10, 64)
				if err != nil || !pc.Candidate.Involves(canonical) {
					fmt.Printf("%s pick one of %d or %d\n", red("✗"), pc.EntityA.ID, pc.EntityB.ID)
					continue
				}
			}
			dec, err := eng.Approve(ctx, pc.Candidate.ID, canonical, actor)
			if err != nil {
				if errors.Is(err, types.ErrAlreadyDecided) {
					fmt.Printf("%s already decided elsewhere\n", red("✗"))
					pc.Candidate.Status = types.StatusApproved
					return false, nil
				}
				fmt.Printf("%s %v\n", red("✗"), err)
				continue
			}
			fmt.Printf("%s merged #%d into #%d\n", green("✓"), *dec.DuplicateID, *dec.CanonicalID)
			pc.Candidate.Status = types.StatusApproved
			return false, nil

		case "r", "reject":
			if _, err := eng.Reject(ctx, pc.Candidate.ID, actor); err != nil {
				if errors.Is(err, types.ErrAlreadyDecided) {
					fmt.Printf("%s already decided elsewhere\n", red("✗"))
					pc.Candidate.Status = types.StatusRejected
					return false, nil
				}
				fmt.Printf("%s %v\n", red("✗"), err)
				continue
			}
			fmt.Printf("%s rejected\n", green("✓"))
			pc.Candidate.Status = types.StatusRejected
			return false, nil

		case "s", "skip":
			return false, nil

		case "q", "quit", "exit":
			return true, nil

		default:
			fmt.Println("commands: a [entity-id], r, s, q")
		}
	}
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
