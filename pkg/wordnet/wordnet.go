// Package wordnet loads the english-wordnet YAML release: entries
// (word → POS → senses) and synsets (id → definition, members, relations).
//
// Parsing the YAML is slow, so every file is also kept as zstd-compressed
// JSON under the cache directory and read from there when present.
package wordnet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const cacheExt = ".json.zst"

var synsetPrefixes = []string{"noun.", "verb.", "adj.", "adv."}

// Data is the loaded lexicon graph.
type Data struct {
	Entries map[string]*lexicon.WordnetEntry
	Synsets map[string]*lexicon.WordnetSynset
}

// Loader reads WordNet files from Dir, caching them under CacheDir.
type Loader struct {
	Dir      string
	CacheDir string
	Workers  int
	Log      *logger.Logger
}

type fileKind int

const (
	entriesFile fileKind = iota
	synsetFile
)

type decoded struct {
	entries map[string]map[string]*lexicon.WordnetPOS
	synsets map[string]*lexicon.WordnetSynset
}

func kindOf(name string) (fileKind, bool) {
	if strings.HasPrefix(name, "entries-") {
		return entriesFile, true
	}
	for _, p := range synsetPrefixes {
		if strings.HasPrefix(name, p) {
			return synsetFile, true
		}
	}
	return 0, false
}

// files lists the WordNet file names (without directory) in sorted order.
// When Dir has none, the names are taken from the cache.
func (l *Loader) files() ([]string, error) {
	names, err := listFiles(l.Dir, ".yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names, err = listFiles(l.cacheDir(), ".yaml"+cacheExt)
		if err != nil {
			return nil, err
		}
		for i, n := range names {
			names[i] = strings.TrimSuffix(n, cacheExt)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no wordnet files in %s or %s", l.Dir, l.cacheDir())
	}
	return names, nil
}

func listFiles(dir, suffix string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		if _, ok := kindOf(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Loader) cacheDir() string {
	return filepath.Join(l.CacheDir, "wordnet")
}

// Load decodes every file concurrently and merges them in file name order.
// A file that cannot be decoded is skipped with a warning.
func (l *Loader) Load(ctx context.Context) (*Data, error) {
	names, err := l.files()
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	results := make([]*decoded, len(names))
	g, gctx := errgroup.WithContext(ctx)
	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := l.loadFile(name, encoder, decoder)
			if err != nil {
				l.Log.Warn("skipping wordnet file", "file", name, "error", err)
				return nil
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &Data{
		Entries: map[string]*lexicon.WordnetEntry{},
		Synsets: map[string]*lexicon.WordnetSynset{},
	}
	for _, d := range results {
		if d == nil {
			continue
		}
		data.merge(d)
	}
	l.Log.Info("loaded wordnet", "files", len(names), "entries", len(data.Entries), "synsets", len(data.Synsets))
	return data, nil
}

func (d *Data) merge(src *decoded) {
	for word, byPOS := range src.entries {
		entry, ok := d.Entries[word]
		if !ok {
			entry = &lexicon.WordnetEntry{POS: map[string]*lexicon.WordnetPOS{}}
			d.Entries[word] = entry
		}
		for pos, p := range byPOS {
			if p == nil {
				continue
			}
			existing, ok := entry.POS[pos]
			if !ok {
				entry.POS[pos] = p
				continue
			}
			existing.Senses = append(existing.Senses, p.Senses...)
			existing.Pronunciation = append(existing.Pronunciation, p.Pronunciation...)
			existing.Forms = append(existing.Forms, p.Forms...)
			if existing.Rhymes == "" {
				existing.Rhymes = p.Rhymes
			}
		}
	}
	for id, s := range src.synsets {
		if s != nil {
			d.Synsets[id] = s
		}
	}
}

// loadFile reads name from the cache, or parses the YAML and writes the
// cache.
func (l *Loader) loadFile(name string, enc *zstd.Encoder, dec *zstd.Decoder) (*decoded, error) {
	kind, _ := kindOf(name)
	cachePath := filepath.Join(l.cacheDir(), name+cacheExt)
	if raw, err := os.ReadFile(cachePath); err == nil {
		d, err := decodeCache(raw, kind, dec)
		if err == nil {
			return d, nil
		}
		l.Log.Warn("unreadable wordnet cache, parsing yaml", "file", cachePath, "error", err)
	}

	raw, err := os.ReadFile(filepath.Join(l.Dir, name))
	if err != nil {
		return nil, err
	}
	var d decoded
	switch kind {
	case entriesFile:
		err = yaml.Unmarshal(raw, &d.entries)
	case synsetFile:
		err = yaml.Unmarshal(raw, &d.synsets)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := writeCache(cachePath, &d, kind, enc); err != nil {
		l.Log.Warn("could not write wordnet cache", "file", cachePath, "error", err)
	}
	return &d, nil
}

func decodeCache(raw []byte, kind fileKind, dec *zstd.Decoder) (*decoded, error) {
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, err
	}
	var d decoded
	switch kind {
	case entriesFile:
		err = json.Unmarshal(plain, &d.entries)
	case synsetFile:
		err = json.Unmarshal(plain, &d.synsets)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func writeCache(path string, d *decoded, kind fileKind, enc *zstd.Encoder) error {
	var v any = d.entries
	if kind == synsetFile {
		v = d.synsets
	}
	plain, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, enc.EncodeAll(plain, nil), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
