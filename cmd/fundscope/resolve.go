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
	resolveKind     string
	resolveWebsite  string
	resolveLocation string
	resolveEmail    string
	resolveProfile  string
	resolveSource   string
	resolveDomain   string
	resolveCIK      string
	resolveLinkedIn string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a raw record against existing entities",
	Long: `Resolve a raw record, creating a new canonical entity when nothing
matches.

Company and investor records go through staged matching: shared
identifiers, website domain, normalized name plus location, then fuzzy
name. Person records are always created; duplicates among people are
found by 'fundscope scan', which has the employment context a single
record lacks.

Example:
  fundscope resolve "Acme Corp" --kind company --website https://acme.com
  fundscope resolve "Jane Smith" --kind person --source crunchbase`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		rec := &types.RawRecord{
			Name:       args[0],
			Kind:       types.EntityKind(resolveKind),
			Website:    resolveWebsite,
			Location:   resolveLocation,
			Email:      resolveEmail,
			ProfileURL: resolveProfile,
			Source:     resolveSource,
		}
		identifiers := map[types.IdentifierKind]string{
			types.IdentDomain:   resolveDomain,
			types.IdentSECCIK:   resolveCIK,
			types.IdentLinkedIn: resolveLinkedIn,
		}
		for kind, value := range identifiers {
			if value != "" {
				if rec.Identifiers == nil {
					rec.Identifiers = make(map[types.IdentifierKind]string)
				}
				rec.Identifiers[kind] = value
			}
		}

		res, err := eng.Resolve(ctx, rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		if res.Created {
			fmt.Printf("%s created entity %s\n", green("✓"), cyan(fmt.Sprintf("#%d", res.EntityID)))
			return
		}
		fmt.Printf("%s matched entity %s (%s, similarity %.3f)\n",
			green("✓"), cyan(fmt.Sprintf("#%d", res.EntityID)), res.MatchType, res.Similarity)
		if res.Evidence != "" {
			fmt.Printf("  %s\n", res.Evidence)
		}
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveKind, "kind", "company", "record kind (company, investor, person)")
	resolveCmd.Flags().StringVar(&resolveWebsite, "website", "", "website URL")
	resolveCmd.Flags().StringVar(&resolveLocation, "location", "", "coarse location (state or country)")
	resolveCmd.Flags().StringVar(&resolveEmail, "email", "", "contact email")
	resolveCmd.Flags().StringVar(&resolveProfile, "profile", "", "profile URL")
	resolveCmd.Flags().StringVar(&resolveSource, "source", "", "data source tag")
	resolveCmd.Flags().StringVar(&resolveDomain, "domain", "", "domain identifier")
	resolveCmd.Flags().StringVar(&resolveCIK, "sec-cik", "", "SEC CIK identifier")
	resolveCmd.Flags().StringVar(&resolveLinkedIn, "linkedin", "", "LinkedIn slug identifier")
	rootCmd.AddCommand(resolveCmd)
}
