package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var approveCanonical int64

var approveCmd = &cobra.Command{
	Use:   "approve <candidate-id>",
	Short: "Approve a pending merge candidate",
	Long: `Approve a pending merge candidate and execute the merge.

By default the richer side survives (more roles, then profile, email
and bio presence, then the older id). Pass --canonical to designate the
surviving entity explicitly.

Example:
  fundscope approve 17
  fundscope approve 17 --canonical 42`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid candidate id %q\n", args[0])
			os.Exit(1)
		}

		dec, err := eng.Approve(ctx, id, approveCanonical, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s candidate #%d approved: merged #%d into #%d\n",
			green("✓"), dec.CandidateID, *dec.DuplicateID, *dec.CanonicalID)
	},
}

func init() {
	approveCmd.Flags().Int64Var(&approveCanonical, "canonical", 0, "entity id that should survive the merge")
	rootCmd.AddCommand(approveCmd)
}
