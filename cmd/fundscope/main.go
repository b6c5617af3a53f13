// fundscope is the command-line front end for the entity resolution
// engine: resolve incoming records, scan for duplicate people, and work
// the merge review queue.
package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/engine"
	"github.com/fundscope/fundscope/internal/storage/sqlite"
)

var (
	dbPath     string
	configPath string
	verbose    bool
	actor      string

	cfg    *config.Config
	store  *sqlite.Store
	eng    *engine.Engine
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fundscope",
	Short: "Entity resolution and deduplication engine",
	Long: `fundscope resolves raw company, investor, and person records into
canonical entities and consolidates duplicates.

Records are resolved through staged matching (shared identifiers,
website domains, normalized names, fuzzy names). Duplicate people are
found by batch scans; confident matches merge automatically, uncertain
ones queue for human review. Every merge is transactional, reversible
in audit terms (aliases are kept forever), and recorded in an event
trail.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}

		logger, err = buildLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		store, err = sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
		}

		eng, err = engine.New(store, cfg, logger)
		if err != nil {
			return err
		}

		if actor == "" {
			actor = currentUser()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
		if logger != nil {
			logger.Sync()
		}
	},
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", os.Getenv("FUNDSCOPE_DB"), "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("FUNDSCOPE_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "actor recorded in the audit trail (default: current user)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
