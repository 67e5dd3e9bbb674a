package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anglish/wordbook/pkg/config"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/anglish/wordbook/pkg/sources"
	"github.com/anglish/wordbook/pkg/wordbook"
	"github.com/spf13/cobra"
)

type options struct {
	configPath         string
	save               string
	compile            bool
	matchSenses        bool
	retryErrors        bool
	populateDatabase   bool
	rebuildSearchIndex bool
	interactive        bool
	verbose            bool
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:   "wordbook",
		Short: "Compile the Anglish wordbook from WordNet, Wiktionary and the Moot",
		Long: `wordbook merges the Moot wordbook, the curated wordbook CSV and the
Wiktionary dump with WordNet into one dictionary, links free-text senses
to WordNet synsets, and loads the result into SQLite and Redis.

Stages run in the order save, compile, match, retry, populate, index.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := rootCmd.Flags()
	f.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to the YAML configuration")
	f.StringVar(&opts.save, "save", "", "Re-derive and cache these sources (comma-separated: wiktionary,wordbook,moot or all)")
	f.BoolVar(&opts.compile, "compile", false, "Compile the sources into the partitioned dictionary")
	f.BoolVar(&opts.matchSenses, "match-senses", false, "Link free-text senses to WordNet synsets")
	f.BoolVar(&opts.retryErrors, "retry-errors", false, "Retry the pairs recorded in the match error log")
	f.BoolVar(&opts.populateDatabase, "populate-database", false, "Load the compiled dictionary into SQLite")
	f.BoolVar(&opts.rebuildSearchIndex, "rebuild-search-index", false, "Rebuild the Redis prefix search index")
	f.BoolVar(&opts.interactive, "interactive", false, "Open a lookup prompt after the other stages")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wordbook: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Format, opts.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	stages := wordbook.Stages{
		Compile:            opts.compile,
		MatchSenses:        opts.matchSenses,
		RetryErrors:        opts.retryErrors,
		PopulateDatabase:   opts.populateDatabase,
		RebuildSearchIndex: opts.rebuildSearchIndex,
	}
	if opts.save != "" {
		stages.Save, err = sources.ParseSourceList(opts.save)
		if err != nil {
			return err
		}
	}
	if !stages.Any() && !opts.interactive {
		return fmt.Errorf("nothing to do, pass --compile or another stage flag (see --help)")
	}

	p := &wordbook.Pipeline{Config: cfg, Log: log}
	start := time.Now()
	if stages.Any() {
		if err := p.Run(ctx, stages); err != nil {
			log.Error("pipeline failed", "error", err)
			return err
		}
		log.Info("pipeline complete", "elapsed", time.Since(start).Round(time.Millisecond))
	}
	if opts.interactive {
		return interactive(ctx, p, os.Stdin, os.Stdout)
	}
	return nil
}
