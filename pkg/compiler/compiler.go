// Package compiler merges WordNet with the Anglish sources into one
// dictionary keyed by word.
//
// The passes run in a fixed order and each one sees the completed result
// of the previous:
//
//  1. seed every WordNet word, not Anglish
//  2. read the match log
//  3. merge the sources in precedence order
//  4. re-stream Wiktionary for etymology, sounds and classification
//  5. classify recorded compounds from their parts
//  6. classify separator and concatenation compounds
//  7. deduplicate senses and origins
//
// Write then sorts and partitions the result.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/anglish/wordbook/pkg/matcher"
	"github.com/anglish/wordbook/pkg/sources"
	"github.com/anglish/wordbook/pkg/wordnet"
)

// ErrIntegrity reports a match log that does not fit the entries or the
// synsets, usually a log kept across a change of sources.
var ErrIntegrity = errors.New("data integrity violation")

// WiktionaryStreamer replays the Wiktionary dump in file order.
type WiktionaryStreamer interface {
	Stream(ctx context.Context, fn func(sources.WiktionaryWord)) error
}

// Compiler holds the inputs of one compilation.
type Compiler struct {
	WordNet *wordnet.Data
	Sources map[lexicon.Source]lexicon.AnglishEntries
	// Wiktionary is re-read for step 4; nil skips the step.
	Wiktionary   WiktionaryStreamer
	MatchLogPath string
	Log          *logger.Logger
}

// state is the working set threaded through the passes.
type state struct {
	entries  lexicon.CompiledEntries
	wordnet  map[string]bool
	matches  matcher.Matches
	affixes  map[string]bool
	compound map[string][]string
	// derived holds words whose own etymology was found not native. Step 6
	// does not split them into closed-compound pieces.
	derived map[string]bool
}

// Compile runs steps 1 to 7.
func (c *Compiler) Compile(ctx context.Context) (lexicon.CompiledEntries, error) {
	st := &state{
		entries:  lexicon.CompiledEntries{},
		wordnet:  map[string]bool{},
		affixes:  map[string]bool{},
		compound: map[string][]string{},
		derived:  map[string]bool{},
	}

	c.seed(st)
	c.Log.Info("seeded from wordnet", "entries", len(st.entries))

	matches, err := matcher.ReadMatchLog(c.MatchLogPath, c.Log)
	if err != nil {
		return nil, fmt.Errorf("read match log: %w", err)
	}
	st.matches = matches
	c.Log.Info("loaded match log", "words", len(matches))

	c.merge(st)
	if err := c.checkIntegrity(st); err != nil {
		return nil, err
	}
	c.Log.Info("merged sources", "entries", len(st.entries), "anglish", st.entries.CountAnglish())

	if c.Wiktionary != nil {
		if err := c.annotate(ctx, st); err != nil {
			return nil, err
		}
		c.Log.Info("annotated from wiktionary", "anglish", st.entries.CountAnglish(), "compounds", len(st.compound))
	} else {
		c.Log.Warn("no wiktionary dump, skipping etymology pass")
	}

	n := classifyRecordedCompounds(st)
	c.Log.Info("classified recorded compounds", "flipped", n)

	n = classifySplitCompounds(st.entries, st.derived)
	c.Log.Info("classified split compounds", "flipped", n)

	dedupe(st.entries)
	c.Log.Info("compiled entries", "entries", len(st.entries), "anglish", st.entries.CountAnglish())
	return st.entries, nil
}

// Write sorts and partitions entries into dir.
func (c *Compiler) Write(dir string, entries lexicon.CompiledEntries) error {
	if err := lexicon.WritePartitions(dir, entries); err != nil {
		return fmt.Errorf("write partitions: %w", err)
	}
	c.Log.Info("wrote compiled entries", "dir", dir, "total", len(entries), "anglish", entries.CountAnglish())
	return nil
}

// seed is step 1.
func (c *Compiler) seed(st *state) {
	for word, we := range c.WordNet.Entries {
		entry := &lexicon.CompiledEntry{POS: map[string]*lexicon.CompiledPOS{}}
		for pos, p := range we.POS {
			senses := make([]lexicon.WordnetSense, len(p.Senses))
			copy(senses, p.Senses)
			entry.POS[pos] = &lexicon.CompiledPOS{
				Senses:        senses,
				Pronunciation: append([]lexicon.Pronunciation(nil), p.Pronunciation...),
				Rhyme:         p.Rhymes,
				Forms:         append([]string(nil), p.Forms...),
			}
		}
		st.entries[word] = entry
		st.wordnet[word] = true
	}
}

// merge is step 3. WordNet words are only flagged; other words gain the
// matched synsets of a (word, pos), or its raw senses when there are none.
func (c *Compiler) merge(st *state) {
	for _, src := range sources.MergeOrder {
		source, ok := c.Sources[src]
		if !ok {
			continue
		}
		added := 0
		for word, ae := range source {
			if st.wordnet[word] {
				st.entries[word].IsAnglish = true
				continue
			}
			entry, ok := st.entries[word]
			if !ok {
				entry = &lexicon.CompiledEntry{POS: map[string]*lexicon.CompiledPOS{}}
				st.entries[word] = entry
				added++
			}
			entry.IsAnglish = entry.IsAnglish || ae.IsAnglish
			for pos, ap := range ae.POS {
				cp, ok := entry.POS[pos]
				if !ok {
					cp = &lexicon.CompiledPOS{Senses: []lexicon.WordnetSense{}}
					entry.POS[pos] = cp
				}
				cp.Origins = append(cp.Origins, ap.Origins...)
				if ids := st.matches.Get(word, pos); len(ids) > 0 {
					addSynsets(cp, ids)
					continue
				}
				if related := relatedSenses(word, pos, ap); len(related) > 0 {
					cp.Senses = append(cp.Senses, related...)
					continue
				}
				for _, s := range ap.Senses {
					if s.English == "" {
						continue
					}
					cp.Senses = append(cp.Senses, lexicon.WordnetSense{English: s.English, Source: s.Source})
				}
			}
		}
		c.Log.Debug("merged source", "source", src, "words", len(source), "added", added)
	}
}

// addSynsets appends the matched synsets not already present. A matched
// (word, pos) carries no free-text senses.
func addSynsets(cp *lexicon.CompiledPOS, ids []string) {
	have := map[string]bool{}
	for _, s := range cp.Senses {
		if s.Synset != "" {
			have[s.Synset] = true
		}
	}
	for _, id := range ids {
		if !have[id] {
			have[id] = true
			cp.Senses = append(cp.Senses, lexicon.WordnetSense{Synset: id})
		}
	}
}

// relatedSenses would derive synsets from the relations of senses already
// matched. It is disabled: it produced too many false positives.
func relatedSenses(word, pos string, ap *lexicon.AnglishPOS) []lexicon.WordnetSense {
	return nil
}

// checkIntegrity verifies that every match log word is an entry and every
// matched synset exists.
func (c *Compiler) checkIntegrity(st *state) error {
	for _, p := range st.matches.Pairs() {
		if _, ok := st.entries[p.Word]; !ok {
			return fmt.Errorf("%w: match log word %q is not in the entries", ErrIntegrity, p.Word)
		}
		for _, id := range st.matches.Get(p.Word, p.POS) {
			if _, ok := c.WordNet.Synsets[id]; !ok {
				return fmt.Errorf("%w: match log synset %q for %s is unknown", ErrIntegrity, id, p)
			}
		}
	}
	return nil
}

// annotate is step 4.
func (c *Compiler) annotate(ctx context.Context, st *state) error {
	flipped := 0
	err := c.Wiktionary.Stream(ctx, func(w sources.WiktionaryWord) {
		if w.Affix {
			st.affixes[w.Word] = st.affixes[w.Word] || w.Anglish
			return
		}
		entry, ok := st.entries[w.Word]
		if !ok {
			return
		}
		if cp := lookupPOS(entry, w.POS); cp != nil {
			if w.Etymology != "" {
				cp.Origins = append(cp.Origins, w.Etymology)
			}
			cp.Sounds = append(cp.Sounds, w.Sounds...)
			if cp.Rhyme == "" {
				cp.Rhyme = w.Rhyme
			}
		}
		if !entry.IsAnglish && w.Anglish {
			entry.IsAnglish = true
			flipped++
		}
		if !w.Anglish && len(w.Parts) == 0 && (w.Ancestry || w.Etymology != "") {
			st.derived[w.Word] = true
		}
		if _, seen := st.compound[w.Word]; !seen && len(w.Parts) > 1 {
			st.compound[w.Word] = w.Parts
		}
	})
	if err != nil {
		return fmt.Errorf("wiktionary pass: %w", err)
	}
	c.Log.Debug("wiktionary classification", "flipped", flipped)
	return nil
}

// lookupPOS finds pos in entry, treating adjective satellites as
// adjectives.
func lookupPOS(entry *lexicon.CompiledEntry, pos string) *lexicon.CompiledPOS {
	if cp, ok := entry.POS[pos]; ok {
		return cp
	}
	if pos == lexicon.Adjective {
		return entry.POS[lexicon.Satellite]
	}
	return nil
}

// classifyRecordedCompounds is step 5. Every compound is judged against
// the classification left by step 4, so the outcome does not depend on
// iteration order.
func classifyRecordedCompounds(st *state) int {
	var flip []string
	for word, parts := range st.compound {
		entry, ok := st.entries[word]
		if !ok || entry.IsAnglish {
			continue
		}
		all := true
		for _, part := range parts {
			if !st.affixes[part] && !isAnglish(st.entries, part) {
				all = false
				break
			}
		}
		if all {
			flip = append(flip, word)
		}
	}
	for _, w := range flip {
		st.entries[w].IsAnglish = true
	}
	return len(flip)
}

func isAnglish(entries lexicon.CompiledEntries, word string) bool {
	if e, ok := entries[word]; ok && e.IsAnglish {
		return true
	}
	if lower := strings.ToLower(word); lower != word {
		if e, ok := entries[lower]; ok && e.IsAnglish {
			return true
		}
	}
	return false
}

// dedupe is step 7.
func dedupe(entries lexicon.CompiledEntries) {
	for _, entry := range entries {
		for _, cp := range entry.POS {
			cp.Senses = dedupeSenses(cp.Senses)
			cp.Origins = dedupeStrings(cp.Origins)
			cp.Sounds = dedupeStrings(cp.Sounds)
		}
	}
}

// dedupeSenses keeps the first sense of each synset and, for unresolved
// senses, of each english text.
func dedupeSenses(senses []lexicon.WordnetSense) []lexicon.WordnetSense {
	out := senses[:0]
	synsets := map[string]bool{}
	texts := map[string]bool{}
	for _, s := range senses {
		if s.Resolved() {
			if synsets[s.Synset] {
				continue
			}
			synsets[s.Synset] = true
		} else if s.English != "" {
			if texts[s.English] {
				continue
			}
			texts[s.English] = true
		}
		out = append(out, s)
	}
	return out
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := in[:0]
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// sortedKeys returns the keys of m in byte order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
