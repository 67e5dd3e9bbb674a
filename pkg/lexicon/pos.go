package lexicon

import (
	"strings"
	"unicode"
)

// Part-of-speech tags. The first five are WordNet's; the rest only occur on
// words that come from Anglish sources.
const (
	Noun         = "n"
	Verb         = "v"
	Adjective    = "a"
	Satellite    = "s"
	Adverb       = "r"
	Preposition  = "prep"
	Conjunction  = "conj"
	Pronoun      = "pron"
	Interjection = "intj"
	Determiner   = "det"
)

var kindAliases = map[string]string{
	"n": Noun, "noun": Noun, "nouns": Noun, "name": Noun, "proper noun": Noun, "pn": Noun,
	"v": Verb, "verb": Verb, "verbs": Verb, "vb": Verb, "vt": Verb, "vi": Verb,
	"a": Adjective, "adj": Adjective, "adjective": Adjective, "aj": Adjective,
	"s": Satellite,
	"r": Adverb, "adv": Adverb, "adverb": Adverb, "av": Adverb,
	"prep": Preposition, "preposition": Preposition, "pp": Preposition,
	"conj": Conjunction, "conjunction": Conjunction, "cj": Conjunction,
	"pron": Pronoun, "pronoun": Pronoun, "pr": Pronoun,
	"intj": Interjection, "interj": Interjection, "interjection": Interjection, "int": Interjection,
	"det": Determiner, "determiner": Determiner, "article": Determiner,
}

// ParsePOS maps a single kind label ("noun", "adj.", "N") to a tag.
func ParsePOS(kind string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(kind))
	k = strings.TrimFunc(k, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	tag, ok := kindAliases[k]
	return tag, ok
}

// ParseKinds splits a multi-value kind cell ("n, v", "adj/adv") into tags,
// dropping labels it does not recognize. Order is kept, duplicates removed.
func ParseKinds(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == '/' || r == ';' || r == '&' || r == '|' || r == '\n'
	})
	var out []string
	seen := map[string]bool{}
	for _, f := range fields {
		tag, ok := ParsePOS(f)
		if !ok {
			// "noun and verb"
			for _, part := range strings.Split(f, " and ") {
				if t, ok := ParsePOS(part); ok && !seen[t] {
					seen[t] = true
					out = append(out, t)
				}
			}
			continue
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

var wiktionaryPOS = map[string]string{
	"noun":    Noun,
	"name":    Noun,
	"verb":    Verb,
	"adj":     Adjective,
	"adv":     Adverb,
	"prep":    Preposition,
	"conj":    Conjunction,
	"pron":    Pronoun,
	"intj":    Interjection,
	"det":     Determiner,
	"article": Determiner,
}

// WiktionaryPOS maps a Wiktionary dump pos label to a tag. Labels such as
// "suffix", "phrase" or "symbol" are unmapped.
func WiktionaryPOS(pos string) (string, bool) {
	tag, ok := wiktionaryPOS[pos]
	return tag, ok
}

// SameWordNetPOS reports whether a and b name the same WordNet category;
// adjective satellites count as adjectives.
func SameWordNetPOS(a, b string) bool {
	norm := func(p string) string {
		if p == Satellite {
			return Adjective
		}
		return p
	}
	return norm(a) == norm(b)
}
