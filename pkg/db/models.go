package db

// Word is a compiled dictionary word.
type Word struct {
	ID        int64
	Word      string
	IsAnglish bool
}

// WordPOS holds a word's data for one part of speech. The list fields are
// stored as JSON arrays.
type WordPOS struct {
	ID            int64
	WordID        int64
	POS           string
	Pronunciation string
	Rhyme         string
	Forms         string
	Sounds        string
	Origins       string
}

// Sense is one meaning of a word under one POS: either linked to a synset
// or carrying free english text.
type Sense struct {
	ID        int64
	WordPOSID int64
	Position  int
	SenseKey  string
	SynsetID  string
	English   string
	Source    string
}

// Synset is a WordNet concept node.
type Synset struct {
	ID          string
	POS         string
	Definition  string
	Definitions string
	Members     string
	ILI         string
}
