package matcher

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/wordnet"
)

type indexed struct {
	pos    string
	synset string
}

// CandidateIndex finds synsets whose WordNet words appear in free-text
// senses.
type CandidateIndex struct {
	// index is read by the matcher while a remediation pass may run; the
	// lock keeps later mutation safe.
	mu      sync.RWMutex
	index   map[string][]indexed
	synsets map[string]*lexicon.WordnetSynset
}

// NewCandidateIndex builds an in-memory index of the WordNet entries, keyed
// by lower-cased word.
func NewCandidateIndex(data *wordnet.Data) *CandidateIndex {
	words := make([]string, 0, len(data.Entries))
	for w := range data.Entries {
		words = append(words, w)
	}
	sort.Strings(words)

	idx := make(map[string][]indexed)
	for _, w := range words {
		entry := data.Entries[w]
		poses := make([]string, 0, len(entry.POS))
		for pos := range entry.POS {
			poses = append(poses, pos)
		}
		sort.Strings(poses)
		key := strings.ToLower(w)
		for _, pos := range poses {
			for _, s := range entry.POS[pos].Senses {
				if s.Synset != "" {
					idx[key] = append(idx[key], indexed{pos: pos, synset: s.Synset})
				}
			}
		}
	}
	return &CandidateIndex{index: idx, synsets: data.Synsets}
}

// Candidates returns up to limit synsets of part of speech pos for the
// senses. Whole sense texts are looked up first, then their words, so the
// closest matches come first.
func (ci *CandidateIndex) Candidates(pos string, senses []string, limit int) []Candidate {
	var out []Candidate
	seen := map[string]bool{}
	search := func(term string) {
		if term == "" || (limit > 0 && len(out) >= limit) {
			return
		}
		ci.mu.RLock()
		hits := ci.index[term]
		ci.mu.RUnlock()
		for _, h := range hits {
			if limit > 0 && len(out) >= limit {
				return
			}
			if seen[h.synset] || !lexicon.SameWordNetPOS(h.pos, pos) {
				continue
			}
			seen[h.synset] = true
			out = append(out, Candidate{ID: h.synset, Gloss: ci.synsets[h.synset].Gloss()})
		}
	}
	for _, s := range senses {
		search(normalizeSense(s))
	}
	for _, s := range senses {
		for _, tok := range tokens(s) {
			search(tok)
		}
	}
	return out
}

// Gloss returns the primary definition of a synset.
func (ci *CandidateIndex) Gloss(id string) string {
	return ci.synsets[id].Gloss()
}

func normalizeSense(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?;:")
	for _, article := range []string{"to ", "a ", "an ", "the "} {
		s = strings.TrimPrefix(s, article)
	}
	return strings.TrimSpace(s)
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"which": true, "who": true, "one": true, "something": true, "someone": true, "being": true,
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-' && r != '\''
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
