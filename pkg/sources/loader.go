// Package sources loads the Anglish wordlists (Wiktionary, the curated
// wordbook CSV and the Moot wiki tables) into lexicon.AnglishEntries.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// LoadOptions controls cache use.
type LoadOptions struct {
	// Save forces re-derivation from the raw source and rewrites the cache.
	Save bool
}

// Loader produces one source's entries.
type Loader interface {
	Source() lexicon.Source
	Load(ctx context.Context, opts LoadOptions) (lexicon.AnglishEntries, error)
}

// MergeOrder is the fixed precedence in which the compiler merges sources,
// most comprehensive first.
var MergeOrder = []lexicon.Source{
	lexicon.SourceWiktionary,
	lexicon.SourceWordbook,
	lexicon.SourceMoot,
}

// CachePath is the normalized cache file of a source.
func CachePath(cacheDir string, src lexicon.Source) string {
	return filepath.Join(cacheDir, string(src)+".json")
}

// ParseSourceList parses a comma separated list of source names. "all"
// selects every source.
func ParseSourceList(list string) (map[lexicon.Source]bool, error) {
	out := map[lexicon.Source]bool{}
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
		case "all":
			for _, s := range MergeOrder {
				out[s] = true
			}
		case string(lexicon.SourceWiktionary), string(lexicon.SourceWordbook), string(lexicon.SourceMoot):
			out[lexicon.Source(name)] = true
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return out, nil
}

// LoadAll runs the loaders concurrently. They share no state and write
// disjoint cache files.
func LoadAll(ctx context.Context, loaders []Loader, save map[lexicon.Source]bool) (map[lexicon.Source]lexicon.AnglishEntries, error) {
	var mu sync.Mutex
	out := make(map[lexicon.Source]lexicon.AnglishEntries, len(loaders))
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loaders {
		l := l
		g.Go(func() error {
			entries, err := l.Load(gctx, LoadOptions{Save: save[l.Source()]})
			if err != nil {
				return fmt.Errorf("load %s: %w", l.Source(), err)
			}
			mu.Lock()
			out[l.Source()] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// loadCached implements the cache contract shared by the loaders: with
// Save, derive and persist; otherwise read the cache and fall back to a
// full derivation when it is missing or unreadable.
func loadCached(ctx context.Context, log *logger.Logger, path string, opts LoadOptions, derive func(context.Context) (lexicon.AnglishEntries, error)) (lexicon.AnglishEntries, error) {
	if !opts.Save {
		entries, err := readCache(path)
		if err == nil {
			log.Info("loaded cache", "path", path, "words", len(entries))
			return entries, nil
		}
		if os.IsNotExist(err) {
			log.Info("no cache, deriving from source", "path", path)
		} else {
			log.Warn("unreadable cache, deriving from source", "path", path, "error", err)
		}
	}
	entries, err := derive(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeCache(path, entries); err != nil {
		return nil, err
	}
	log.Info("saved cache", "path", path, "words", len(entries))
	return entries, nil
}

func readCache(path string) (lexicon.AnglishEntries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries lexicon.AnglishEntries
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("decode %s: empty cache", path)
	}
	return entries, nil
}

func writeCache(path string, entries lexicon.AnglishEntries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
