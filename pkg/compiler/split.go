package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anglish/wordbook/pkg/lexicon"
)

// minPiece is the shortest piece a closed compound is split into.
const minPiece = 3

// splitResolver decides whether a word is made only of Anglish words. It
// reads a snapshot of the classification and memoizes every answer.
type splitResolver struct {
	anglish map[string]bool
	// derived words have a non-native etymology of their own and are never
	// read as closed compounds.
	derived map[string]bool
	memo    map[string]bool
}

func newSplitResolver(entries lexicon.CompiledEntries, derived map[string]bool) *splitResolver {
	r := &splitResolver{anglish: map[string]bool{}, derived: derived, memo: map[string]bool{}}
	for w, e := range entries {
		if e.IsAnglish {
			r.anglish[w] = true
		}
	}
	return r
}

func (r *splitResolver) isAnglish(word string) bool {
	return r.anglish[word] || r.anglish[strings.ToLower(word)]
}

// resolves reports whether word is Anglish or splits into parts that all
// resolve. Open compounds split at whitespace and hyphens; a single token
// splits into a leading Anglish word of at least minPiece runes and a
// resolving remainder of at least minPiece runes.
func (r *splitResolver) resolves(word string) bool {
	if r.isAnglish(word) {
		return true
	}
	if v, ok := r.memo[word]; ok {
		return v
	}
	r.memo[word] = false
	v := r.split(word)
	r.memo[word] = v
	return v
}

func (r *splitResolver) split(word string) bool {
	parts := splitParts(word)
	if len(parts) >= 2 {
		for _, p := range parts {
			if !r.resolves(p) {
				return false
			}
		}
		return true
	}
	if len(parts) == 0 {
		return false
	}
	token := parts[0]
	if r.derived[token] || r.derived[strings.ToLower(token)] {
		return false
	}
	if utf8.RuneCountInString(token) < 2*minPiece {
		return false
	}
	runes := 0
	for i := range token {
		if runes >= minPiece && utf8.RuneCountInString(token[i:]) >= minPiece {
			if r.isAnglish(token[:i]) && r.resolves(token[i:]) {
				return true
			}
		}
		runes++
	}
	return false
}

func splitParts(word string) []string {
	return strings.FieldsFunc(word, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
}

// classifySplitCompounds is step 6: every entry still not Anglish is
// flipped when it resolves through its parts. Decisions are taken against
// the classification at the start of the step. Words in derived only
// resolve through whitespace and hyphen splits.
func classifySplitCompounds(entries lexicon.CompiledEntries, derived map[string]bool) int {
	r := newSplitResolver(entries, derived)
	var flip []string
	for _, word := range sortedKeys(entries) {
		if entries[word].IsAnglish {
			continue
		}
		if r.split(word) {
			flip = append(flip, word)
		}
	}
	for _, w := range flip {
		entries[w].IsAnglish = true
	}
	return len(flip)
}
