// Package lexicon defines the entry shapes shared by the loaders, the
// compiler and the persistence stage.
package lexicon

// Source identifies the Anglish source a free-text sense came from.
type Source string

const (
	SourceWiktionary Source = "wiktionary"
	SourceWordbook   Source = "wordbook"
	SourceMoot       Source = "moot"
)

// AnglishSense is one unresolved meaning given by an Anglish source.
type AnglishSense struct {
	English string `json:"english"`
	Source  Source `json:"source"`
}

// AnglishPOS holds a source's senses and origin notes for one part of speech.
type AnglishPOS struct {
	Senses  []AnglishSense `json:"senses"`
	Origins []string       `json:"origins,omitempty"`
}

// AnglishEntry is one source's view of a word.
type AnglishEntry struct {
	POS       map[string]*AnglishPOS `json:"pos"`
	IsAnglish bool                   `json:"isAnglish"`
}

// AnglishEntries maps word to entry.
type AnglishEntries map[string]*AnglishEntry

// Add records a sense (and optional origin note) for word under pos. The
// same english text from the same source is stored once per (word, pos).
func (e AnglishEntries) Add(word, pos string, sense AnglishSense, origin string) {
	entry, ok := e[word]
	if !ok {
		entry = &AnglishEntry{POS: map[string]*AnglishPOS{}, IsAnglish: true}
		e[word] = entry
	}
	p, ok := entry.POS[pos]
	if !ok {
		p = &AnglishPOS{Senses: []AnglishSense{}}
		entry.POS[pos] = p
	}
	if sense.English != "" {
		dup := false
		for _, s := range p.Senses {
			if s.English == sense.English && s.Source == sense.Source {
				dup = true
				break
			}
		}
		if !dup {
			p.Senses = append(p.Senses, sense)
		}
	}
	if origin != "" {
		for _, o := range p.Origins {
			if o == origin {
				return
			}
		}
		p.Origins = append(p.Origins, origin)
	}
}

// Pronunciation is a WordNet pronunciation with an optional variety (GB, US).
type Pronunciation struct {
	Value   string `yaml:"value" json:"value"`
	Variety string `yaml:"variety,omitempty" json:"variety,omitempty"`
}

// WordnetSense is one meaning of a word under one POS. A resolved sense
// carries Synset; an unresolved one carries English free text instead.
type WordnetSense struct {
	ID      string `yaml:"id" json:"id,omitempty"`
	Synset  string `yaml:"synset" json:"synset,omitempty"`
	English string `yaml:"-" json:"english,omitempty"`
	Source  Source `yaml:"-" json:"source,omitempty"`

	Antonym         []string `yaml:"antonym" json:"antonym,omitempty"`
	Also            []string `yaml:"also" json:"also,omitempty"`
	Derivation      []string `yaml:"derivation" json:"derivation,omitempty"`
	Participle      []string `yaml:"participle" json:"participle,omitempty"`
	Pertainym       []string `yaml:"pertainym" json:"pertainym,omitempty"`
	Similar         []string `yaml:"similar" json:"similar,omitempty"`
	Exemplifies     []string `yaml:"exemplifies" json:"exemplifies,omitempty"`
	IsExemplifiedBy []string `yaml:"is_exemplified_by" json:"is_exemplified_by,omitempty"`
	DomainTopic     []string `yaml:"domain_topic" json:"domain_topic,omitempty"`
	DomainRegion    []string `yaml:"domain_region" json:"domain_region,omitempty"`

	// Subcat lists the verb frame ids of the sense.
	Subcat []string `yaml:"subcat" json:"subcat,omitempty"`
}

// Resolved reports whether the sense is linked to a synset.
func (s WordnetSense) Resolved() bool { return s.Synset != "" }

// Relation is a typed edge from a sense or synset to a target id.
type Relation struct {
	Type   string
	Target string
}

// Relations lists the sense-to-sense edges in a fixed order.
func (s WordnetSense) Relations() []Relation {
	return collectRelations([]namedIDs{
		{"antonym", s.Antonym},
		{"also", s.Also},
		{"derivation", s.Derivation},
		{"participle", s.Participle},
		{"pertainym", s.Pertainym},
		{"similar", s.Similar},
		{"exemplifies", s.Exemplifies},
		{"is_exemplified_by", s.IsExemplifiedBy},
		{"domain_topic", s.DomainTopic},
		{"domain_region", s.DomainRegion},
	})
}

// WordnetPOS is the WordNet data of one word under one POS.
type WordnetPOS struct {
	Senses        []WordnetSense  `yaml:"sense" json:"senses"`
	Pronunciation []Pronunciation `yaml:"pronunciation" json:"pronunciation,omitempty"`
	Rhymes        string          `yaml:"rhymes" json:"rhymes,omitempty"`
	Forms         []string        `yaml:"form" json:"forms,omitempty"`
}

// WordnetEntry is the baseline lexicon's view of a word.
type WordnetEntry struct {
	POS map[string]*WordnetPOS `json:"pos"`
}

// WordnetSynset is a concept node.
type WordnetSynset struct {
	Definition   []string `yaml:"definition" json:"definition"`
	Members      []string `yaml:"members" json:"members"`
	PartOfSpeech string   `yaml:"partOfSpeech" json:"partOfSpeech"`
	ILI          string   `yaml:"ili" json:"ili,omitempty"`

	Hypernym         []string `yaml:"hypernym" json:"hypernym,omitempty"`
	InstanceHypernym []string `yaml:"instance_hypernym" json:"instance_hypernym,omitempty"`
	Similar          []string `yaml:"similar" json:"similar,omitempty"`
	Attribute        []string `yaml:"attribute" json:"attribute,omitempty"`
	Also             []string `yaml:"also" json:"also,omitempty"`
	Entails          []string `yaml:"entails" json:"entails,omitempty"`
	Causes           []string `yaml:"causes" json:"causes,omitempty"`
	MeroMember       []string `yaml:"mero_member" json:"mero_member,omitempty"`
	MeroPart         []string `yaml:"mero_part" json:"mero_part,omitempty"`
	MeroSubstance    []string `yaml:"mero_substance" json:"mero_substance,omitempty"`
}

// Gloss returns the primary definition, or "" when there is none.
func (s *WordnetSynset) Gloss() string {
	if s == nil || len(s.Definition) == 0 {
		return ""
	}
	return s.Definition[0]
}

// Relations lists the synset-to-synset edges in a fixed order.
func (s *WordnetSynset) Relations() []Relation {
	return collectRelations([]namedIDs{
		{"hypernym", s.Hypernym},
		{"instance_hypernym", s.InstanceHypernym},
		{"similar", s.Similar},
		{"attribute", s.Attribute},
		{"also", s.Also},
		{"entails", s.Entails},
		{"causes", s.Causes},
		{"mero_member", s.MeroMember},
		{"mero_part", s.MeroPart},
		{"mero_substance", s.MeroSubstance},
	})
}

type namedIDs struct {
	name string
	ids  []string
}

func collectRelations(groups []namedIDs) []Relation {
	var out []Relation
	for _, g := range groups {
		for _, id := range g.ids {
			out = append(out, Relation{Type: g.name, Target: id})
		}
	}
	return out
}

// CompiledPOS is the merged data of one word under one POS.
type CompiledPOS struct {
	Senses        []WordnetSense  `json:"senses"`
	Pronunciation []Pronunciation `json:"pronunciation,omitempty"`
	Rhyme         string          `json:"rhyme,omitempty"`
	Forms         []string        `json:"forms,omitempty"`
	Sounds        []string        `json:"sounds,omitempty"`
	Origins       []string        `json:"origins,omitempty"`
}

// CompiledEntry is the merged output unit, one per distinct word.
type CompiledEntry struct {
	POS       map[string]*CompiledPOS `json:"pos"`
	IsAnglish bool                    `json:"isAnglish"`
}

// CompiledEntries maps word to compiled entry.
type CompiledEntries map[string]*CompiledEntry

// CountAnglish returns the number of entries marked Anglish.
func (e CompiledEntries) CountAnglish() int {
	n := 0
	for _, entry := range e {
		if entry.IsAnglish {
			n++
		}
	}
	return n
}

// Unresolved returns the english texts of the unresolved senses of pos.
func (p *CompiledPOS) Unresolved() []string {
	var out []string
	for _, s := range p.Senses {
		if !s.Resolved() && s.English != "" {
			out = append(out, s.English)
		}
	}
	return out
}
