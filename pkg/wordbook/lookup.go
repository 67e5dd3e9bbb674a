package wordbook

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/anglish/wordbook/pkg/lexicon"
)

// Gloss returns the primary definition of a synset id.
type Gloss func(id string) string

// Lookup finds word in entries, trying the exact spelling first and then
// the lower-cased one.
func Lookup(entries lexicon.CompiledEntries, word string) (string, *lexicon.CompiledEntry, bool) {
	word = strings.TrimSpace(word)
	if e, ok := entries[word]; ok {
		return word, e, true
	}
	lower := strings.ToLower(word)
	if e, ok := entries[lower]; ok {
		return lower, e, true
	}
	return "", nil, false
}

// Describe writes a readable view of entry.
func Describe(w io.Writer, word string, entry *lexicon.CompiledEntry, gloss Gloss) {
	tag := "english"
	if entry.IsAnglish {
		tag = "anglish"
	}
	fmt.Fprintf(w, "%s (%s)\n", word, tag)

	poses := make([]string, 0, len(entry.POS))
	for pos := range entry.POS {
		poses = append(poses, pos)
	}
	sort.Strings(poses)
	for _, pos := range poses {
		p := entry.POS[pos]
		fmt.Fprintf(w, "  %s\n", pos)
		if len(p.Sounds) > 0 {
			fmt.Fprintf(w, "    sounds: %s\n", strings.Join(p.Sounds, ", "))
		}
		for i, s := range p.Senses {
			switch {
			case s.Resolved() && gloss != nil && gloss(s.Synset) != "":
				fmt.Fprintf(w, "    %d. %s [%s]\n", i+1, gloss(s.Synset), s.Synset)
			case s.Resolved():
				fmt.Fprintf(w, "    %d. [%s]\n", i+1, s.Synset)
			default:
				fmt.Fprintf(w, "    %d. %s (%s)\n", i+1, s.English, s.Source)
			}
		}
		for _, o := range p.Origins {
			fmt.Fprintf(w, "    from: %s\n", o)
		}
	}
}
