// Package wordbook runs the pipeline stages selected on the command line.
package wordbook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/anglish/wordbook/pkg/compiler"
	"github.com/anglish/wordbook/pkg/config"
	"github.com/anglish/wordbook/pkg/db"
	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/anglish/wordbook/pkg/matcher"
	"github.com/anglish/wordbook/pkg/search"
	"github.com/anglish/wordbook/pkg/sources"
	"github.com/anglish/wordbook/pkg/wordnet"
)

// Stages selects what a run does. Stages always run in the order
// save, compile, match, retry, populate, index.
type Stages struct {
	// Save re-derives these sources from their raw input.
	Save               map[lexicon.Source]bool
	Compile            bool
	MatchSenses        bool
	RetryErrors        bool
	PopulateDatabase   bool
	RebuildSearchIndex bool
}

// Any reports whether at least one stage is selected.
func (s Stages) Any() bool {
	return len(s.Save) > 0 || s.Compile || s.MatchSenses || s.RetryErrors || s.PopulateDatabase || s.RebuildSearchIndex
}

// Pipeline holds what the stages share. WordNet and the compiled entries
// are loaded at most once per run.
type Pipeline struct {
	Config *config.Config
	Log    *logger.Logger
	// Oracle answers sense-matching queries; nil builds the GenAI oracle
	// from the configuration.
	Oracle matcher.Oracle
	// HTTPClient fetches Moot pages; nil uses a client with the
	// configured timeout.
	HTTPClient *http.Client

	wordnet *wordnet.Data
	entries lexicon.CompiledEntries
}

// Run executes the selected stages.
func (p *Pipeline) Run(ctx context.Context, stages Stages) error {
	if !stages.Any() {
		return errors.New("no stage selected")
	}

	var loaded map[lexicon.Source]lexicon.AnglishEntries
	if stages.Compile || len(stages.Save) > 0 {
		var err error
		loaded, err = p.loadSources(ctx, stages)
		if err != nil {
			return err
		}
	}
	if stages.Compile {
		if err := p.compile(ctx, loaded); err != nil {
			return err
		}
	}
	if stages.MatchSenses {
		if err := p.match(ctx, false); err != nil {
			return err
		}
	}
	if stages.RetryErrors {
		if err := p.match(ctx, true); err != nil {
			return err
		}
	}
	if stages.PopulateDatabase {
		if err := p.populate(ctx); err != nil {
			return err
		}
	}
	if stages.RebuildSearchIndex {
		if err := p.index(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) wiktionaryLoader() *sources.WiktionaryLoader {
	cfg := p.Config
	return &sources.WiktionaryLoader{
		Path:      cfg.Wiktionary.Path,
		URL:       cfg.Wiktionary.URL,
		CacheDir:  cfg.CacheDir,
		BatchSize: cfg.Wiktionary.BatchSize,
		Workers:   cfg.Wiktionary.Workers,
		Log:       p.Log.With("source", lexicon.SourceWiktionary),
	}
}

// Loaders returns every source loader built from the configuration, in
// merge order.
func (p *Pipeline) Loaders() []sources.Loader {
	cfg := p.Config
	client := p.HTTPClient
	timeout := config.Duration(cfg.Moot.Timeout)
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return []sources.Loader{
		p.wiktionaryLoader(),
		&sources.WordbookLoader{
			Path:     cfg.Wordbook.Path,
			CacheDir: cfg.CacheDir,
			Log:      p.Log.With("source", lexicon.SourceWordbook),
		},
		&sources.MootLoader{
			EnglishURL: cfg.Moot.EnglishURL,
			AnglishURL: cfg.Moot.AnglishURL,
			CacheDir:   cfg.CacheDir,
			Timeout:    timeout,
			Client:     client,
			Log:        p.Log.With("source", lexicon.SourceMoot),
		},
	}
}

// loadSources runs the save stage alone, or loads every source for
// compilation with the selected ones re-derived.
func (p *Pipeline) loadSources(ctx context.Context, stages Stages) (map[lexicon.Source]lexicon.AnglishEntries, error) {
	loaders := p.Loaders()
	if !stages.Compile {
		var selected []sources.Loader
		for _, l := range loaders {
			if stages.Save[l.Source()] {
				selected = append(selected, l)
			}
		}
		loaders = selected
	}
	loaded, err := sources.LoadAll(ctx, loaders, stages.Save)
	if err != nil {
		return nil, err
	}
	for _, src := range sources.MergeOrder {
		if entries, ok := loaded[src]; ok {
			p.Log.Info("source ready", "source", src, "words", len(entries), "saved", stages.Save[src])
		}
	}
	return loaded, nil
}

func (p *Pipeline) WordNet(ctx context.Context) (*wordnet.Data, error) {
	if p.wordnet != nil {
		return p.wordnet, nil
	}
	l := &wordnet.Loader{
		Dir:      p.Config.WordNet.Dir,
		CacheDir: p.Config.CacheDir,
		Workers:  p.Config.WordNet.Workers,
		Log:      p.Log.With("source", "wordnet"),
	}
	data, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wordnet: %w", err)
	}
	p.wordnet = data
	return data, nil
}

// Entries returns the entries of this run's compile stage, or reads the
// partitions of an earlier one.
func (p *Pipeline) Entries() (lexicon.CompiledEntries, error) {
	if p.entries != nil {
		return p.entries, nil
	}
	entries, err := lexicon.ReadPartitions(p.Config.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("read compiled entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no compiled entries in %s, run --compile first", p.Config.OutputDir)
	}
	p.entries = entries
	return entries, nil
}

func (p *Pipeline) compile(ctx context.Context, loaded map[lexicon.Source]lexicon.AnglishEntries) error {
	data, err := p.WordNet(ctx)
	if err != nil {
		return err
	}
	c := &compiler.Compiler{
		WordNet:      data,
		Sources:      loaded,
		MatchLogPath: p.Config.Matcher.MatchLog,
		Log:          p.Log.With("stage", "compile"),
	}
	if p.dumpAvailable() {
		c.Wiktionary = p.wiktionaryLoader()
	}
	entries, err := c.Compile(ctx)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := c.Write(p.Config.OutputDir, entries); err != nil {
		return err
	}
	p.entries = entries
	return nil
}

func (p *Pipeline) dumpAvailable() bool {
	if p.Config.Wiktionary.URL != "" {
		return true
	}
	_, err := os.Stat(p.Config.Wiktionary.Path)
	return err == nil
}

func (p *Pipeline) match(ctx context.Context, retry bool) error {
	entries, err := p.Entries()
	if err != nil {
		return err
	}
	data, err := p.WordNet(ctx)
	if err != nil {
		return err
	}
	oracle := p.Oracle
	if oracle == nil {
		if p.Config.Matcher.APIKey == "" {
			return errors.New("sense matching needs matcher.api_key or GEMINI_API_KEY")
		}
		g, err := matcher.NewGenAIOracle(ctx, p.Config.Matcher.APIKey, p.Config.Matcher.Model)
		if err != nil {
			return err
		}
		oracle = g
	}
	m := &matcher.Matcher{
		Oracle:        oracle,
		Index:         matcher.NewCandidateIndex(data),
		MatchLogPath:  p.Config.Matcher.MatchLog,
		ErrorLogPath:  p.Config.Matcher.ErrorLog,
		MaxCandidates: p.Config.Matcher.MaxCandidates,
		MaxCalls:      p.Config.Matcher.MaxCalls,
		Timeout:       config.Duration(p.Config.Matcher.Timeout),
		Log:           p.Log.With("stage", "match"),
	}

	var stats matcher.RunStats
	if retry {
		stats, err = m.Remediate(ctx, entries)
	} else {
		stats, err = m.Run(ctx, entries)
	}
	if err != nil {
		return fmt.Errorf("match senses: %w", err)
	}
	if stats.Matched > 0 {
		p.Log.Info("new sense matches recorded, run --compile to apply them", "matched", stats.Matched)
	}
	return nil
}

func (p *Pipeline) populate(ctx context.Context) error {
	entries, err := p.Entries()
	if err != nil {
		return err
	}
	data, err := p.WordNet(ctx)
	if err != nil {
		return err
	}
	conn, err := db.Open(p.Config.Database.Path)
	if err != nil {
		return fmt.Errorf("populate database: %w", err)
	}
	defer conn.Close()

	store := db.NewStore(conn, p.Config.Database.BatchSize, p.Log.With("stage", "populate"))
	if _, err := store.PopulateSynsets(ctx, data.Synsets); err != nil {
		return fmt.Errorf("populate synsets: %w", err)
	}
	if _, err := store.PopulateWords(ctx, entries); err != nil {
		return fmt.Errorf("populate words: %w", err)
	}
	return nil
}

func (p *Pipeline) index(ctx context.Context) error {
	entries, err := p.Entries()
	if err != nil {
		return err
	}
	ix, err := search.NewRedisIndex(ctx, p.Config.Search.RedisAddr, p.Config.Search.Key, p.Log.With("stage", "index"))
	if err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	defer ix.Close()
	if _, err := ix.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	return nil
}
