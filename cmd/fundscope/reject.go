package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rejectCmd = &cobra.Command{
	Use:   "reject <candidate-id>",
	Short: "Reject a pending merge candidate",
	Long: `Reject a pending merge candidate. The pair is remembered so future
scans never propose it again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid candidate id %q\n", args[0])
			os.Exit(1)
		}

		dec, err := eng.Reject(ctx, id, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s candidate #%d rejected\n", green("✓"), dec.CandidateID)
	},
}

func init() {
	rootCmd.AddCommand(rejectCmd)
}
