package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anglish/wordbook/pkg/ingest"
	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
)

// WiktionaryRecord is one line of the kaikki.org English dump.
type WiktionaryRecord struct {
	Word               string              `json:"word"`
	POS                string              `json:"pos"`
	LangCode           string              `json:"lang_code"`
	Senses             []WiktionarySense   `json:"senses"`
	EtymologyText      string              `json:"etymology_text"`
	EtymologyTemplates []EtymologyTemplate `json:"etymology_templates"`
	Sounds             []WiktionarySound   `json:"sounds"`
}

type WiktionarySense struct {
	Glosses []string `json:"glosses"`
}

type WiktionarySound struct {
	IPA    string   `json:"ipa"`
	Rhymes string   `json:"rhymes"`
	Tags   []string `json:"tags"`
}

// WiktionaryWord is the normalized form of a record.
type WiktionaryWord struct {
	Word string
	// POS is the lexicon tag; empty for affix records.
	POS string
	// Affix is set for prefix and suffix records, which carry no POS but
	// are classified like words.
	Affix   bool
	Anglish bool
	// Ancestry is set when the record carries direct ancestry markers
	// (inh, der, bor).
	Ancestry  bool
	Glosses   []string
	Etymology string
	Sounds    []string
	Rhyme     string
	Parts     []string
}

var affixPOS = map[string]bool{
	"prefix": true, "suffix": true, "infix": true, "interfix": true, "circumfix": true, "affix": true,
}

// errUnmappedPOS marks records skipped for their part of speech.
var errUnmappedPOS = errors.New("unmapped part of speech")

// ParseWiktionaryLine decodes and normalizes one dump line.
func ParseWiktionaryLine(line []byte) (WiktionaryWord, error) {
	var rec WiktionaryRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return WiktionaryWord{}, err
	}
	return rec.Normalize()
}

// Normalize converts a record to a WiktionaryWord. Records with an unmapped
// part of speech return an error wrapping errUnmappedPOS.
func (rec WiktionaryRecord) Normalize() (WiktionaryWord, error) {
	word := strings.TrimSpace(rec.Word)
	if word == "" {
		return WiktionaryWord{}, errors.New("record has no word")
	}
	if rec.LangCode != "" && rec.LangCode != "en" {
		return WiktionaryWord{}, fmt.Errorf("%w: language %q", errUnmappedPOS, rec.LangCode)
	}
	out := WiktionaryWord{
		Word:      word,
		Anglish:   ClassifyEtymology(rec.EtymologyTemplates),
		Ancestry:  HasAncestry(rec.EtymologyTemplates),
		Etymology: strings.TrimSpace(rec.EtymologyText),
		Parts:     CompoundParts(rec.EtymologyTemplates),
	}
	if tag, ok := lexicon.WiktionaryPOS(rec.POS); ok {
		out.POS = tag
	} else if affixPOS[rec.POS] {
		out.Affix = true
	} else {
		return WiktionaryWord{}, fmt.Errorf("%w: %q", errUnmappedPOS, rec.POS)
	}
	for _, s := range rec.Senses {
		for _, g := range s.Glosses {
			if g = strings.TrimSpace(g); g != "" {
				out.Glosses = append(out.Glosses, g)
			}
		}
	}
	for _, s := range rec.Sounds {
		if s.IPA != "" {
			out.Sounds = append(out.Sounds, s.IPA)
		}
		if out.Rhyme == "" && s.Rhymes != "" {
			out.Rhyme = s.Rhymes
		}
	}
	return out, nil
}

// WiktionaryLoader loads native words from the Wiktionary dump.
type WiktionaryLoader struct {
	Path      string
	URL       string
	CacheDir  string
	BatchSize int
	Workers   int
	Log       *logger.Logger
}

func (l *WiktionaryLoader) Source() lexicon.Source { return lexicon.SourceWiktionary }

func (l *WiktionaryLoader) Load(ctx context.Context, opts LoadOptions) (lexicon.AnglishEntries, error) {
	return loadCached(ctx, l.Log, CachePath(l.CacheDir, l.Source()), opts, l.derive)
}

func (l *WiktionaryLoader) derive(ctx context.Context) (lexicon.AnglishEntries, error) {
	entries := lexicon.AnglishEntries{}
	err := l.Stream(ctx, func(w WiktionaryWord) {
		if !w.Anglish || w.Affix {
			return
		}
		if len(w.Glosses) == 0 {
			entries.Add(w.Word, w.POS, lexicon.AnglishSense{}, "")
			return
		}
		for _, g := range w.Glosses {
			entries.Add(w.Word, w.POS, lexicon.AnglishSense{English: g, Source: lexicon.SourceWiktionary}, "")
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Stream passes every usable record of the dump to fn, in file order, in
// bounded batches. Records with an unmapped part of speech are skipped at
// debug level, malformed lines at warn level.
func (l *WiktionaryLoader) Stream(ctx context.Context, fn func(WiktionaryWord)) error {
	if err := EnsureDump(ctx, l.Log, l.Path, l.URL); err != nil {
		return err
	}
	f, err := openDump(l.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var unmapped, malformed int
	opts := ingest.StreamOptions{
		BatchSize: l.BatchSize,
		Workers:   l.Workers,
		OnSkip: func(line int, err error) {
			if errors.Is(err, errUnmappedPOS) {
				unmapped++
				l.Log.Debug("skipping record", "line", line, "reason", err)
				return
			}
			malformed++
			l.Log.Warn("skipping malformed record", "line", line, "error", err)
		},
		OnBatch: func(s ingest.StreamStats) {
			l.Log.Debug("wiktionary batch", "batch", s.Batches, "read", s.Read)
		},
	}
	parse := func(_ context.Context, line []byte) (WiktionaryWord, error) {
		return ParseWiktionaryLine(line)
	}
	stats, err := ingest.StreamBatches(ctx, f, opts, parse, fn)
	if err != nil {
		return fmt.Errorf("stream %s: %w", l.Path, err)
	}
	if stats.Read != stats.Processed {
		l.Log.Warn("wiktionary lines read and processed differ", "read", stats.Read, "processed", stats.Processed)
	}
	l.Log.Info("streamed wiktionary dump", "lines", stats.Read, "batches", stats.Batches, "unmapped", unmapped, "malformed", malformed)
	return nil
}
