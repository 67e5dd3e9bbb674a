package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/anglish/wordbook/pkg/sources"
	"github.com/anglish/wordbook/pkg/wordnet"
	"github.com/google/go-cmp/cmp"
)

type fakeDump []sources.WiktionaryWord

func (f fakeDump) Stream(_ context.Context, fn func(sources.WiktionaryWord)) error {
	for _, w := range f {
		fn(w)
	}
	return nil
}

func testWordnet() *wordnet.Data {
	return &wordnet.Data{
		Entries: map[string]*lexicon.WordnetEntry{
			"light": {POS: map[string]*lexicon.WordnetPOS{
				"n": {
					Senses:        []lexicon.WordnetSense{{ID: "light%1:19:00::", Synset: "11473954-n"}},
					Pronunciation: []lexicon.Pronunciation{{Value: "laɪt"}},
				},
			}},
			"lamp": {POS: map[string]*lexicon.WordnetPOS{
				"n": {Senses: []lexicon.WordnetSense{{ID: "lamp%1:06:00::", Synset: "03636248-n"}}},
			}},
			"nation": {POS: map[string]*lexicon.WordnetPOS{
				"n": {Senses: []lexicon.WordnetSense{{ID: "nation%1:14:00::", Synset: "08168978-n"}}},
			}},
			"dark": {POS: map[string]*lexicon.WordnetPOS{
				"s": {Senses: []lexicon.WordnetSense{{ID: "dark%5:00:00::", Synset: "00273082-s"}}},
			}},
			"darkness": {POS: map[string]*lexicon.WordnetPOS{
				"n": {Senses: []lexicon.WordnetSense{{ID: "darkness%1:19:00::", Synset: "14006945-n"}}},
			}},
			"Light": {POS: map[string]*lexicon.WordnetPOS{
				"n": {Senses: []lexicon.WordnetSense{{ID: "Light%1:18:00::", Synset: "10000001-n"}}},
			}},
		},
		Synsets: map[string]*lexicon.WordnetSynset{
			"11473954-n": {Definition: []string{"electromagnetic radiation"}},
			"03636248-n": {Definition: []string{"an artificial source of visible illumination"}},
			"08168978-n": {Definition: []string{"a politically organized body of people"}},
			"00273082-s": {Definition: []string{"devoid of or deficient in light"}},
			"14006945-n": {Definition: []string{"absence of light"}},
			"10000001-n": {Definition: []string{"a proper name"}},
		},
	}
}

func testSources() map[lexicon.Source]lexicon.AnglishEntries {
	wikt := lexicon.AnglishEntries{}
	wikt.Add("light", "n", lexicon.AnglishSense{English: "brightness", Source: lexicon.SourceWiktionary}, "")
	wikt.Add("wort", "n", lexicon.AnglishSense{English: "plant", Source: lexicon.SourceWiktionary}, "")

	wb := lexicon.AnglishEntries{}
	wb.Add("bookhoard", "n", lexicon.AnglishSense{English: "library", Source: lexicon.SourceWordbook}, "Old English bōchord")
	wb.Add("wale", "n", lexicon.AnglishSense{English: "choice", Source: lexicon.SourceWordbook}, "")
	wb.Add("lightfat", "n", lexicon.AnglishSense{English: "lamp", Source: lexicon.SourceWordbook}, "")

	moot := lexicon.AnglishEntries{}
	moot.Add("light", "n", lexicon.AnglishSense{English: "lamp", Source: lexicon.SourceMoot}, "")
	moot.Add("bookhoard", "n", lexicon.AnglishSense{English: "library", Source: lexicon.SourceMoot}, "")
	moot.Add("bookhoard", "n", lexicon.AnglishSense{English: "book room", Source: lexicon.SourceMoot}, "")
	moot.Add("lightfat", "n", lexicon.AnglishSense{English: "lantern", Source: lexicon.SourceMoot}, "")
	moot.Add("wortwale", "n", lexicon.AnglishSense{English: "herb choice", Source: lexicon.SourceMoot}, "")

	return map[lexicon.Source]lexicon.AnglishEntries{
		lexicon.SourceWiktionary: wikt,
		lexicon.SourceWordbook:   wb,
		lexicon.SourceMoot:       moot,
	}
}

func testDump() fakeDump {
	return fakeDump{
		{Word: "light", POS: "n", Anglish: true, Etymology: "From Old English lēoht.", Sounds: []string{"/laɪt/", "/laɪt/"}, Rhyme: "-aɪt"},
		{Word: "nation", POS: "n", Anglish: false, Etymology: "From Old French nacion."},
		// The compound comes before its parts are classified.
		{Word: "darkness", POS: "n", Parts: []string{"dark", "-ness"}},
		{Word: "-ness", Affix: true, Anglish: true},
		{Word: "dark", POS: "a", Anglish: true, Etymology: "From Old English deorc."},
		{Word: "unknownword", POS: "n", Anglish: true},
	}
}

func newCompiler(t *testing.T, matchLog string) *Compiler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matches.jsonl")
	if matchLog != "" {
		if err := os.WriteFile(path, []byte(matchLog), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &Compiler{
		WordNet:      testWordnet(),
		Sources:      testSources(),
		Wiktionary:   testDump(),
		MatchLogPath: path,
		Log:          logger.Nop(),
	}
}

func TestCompileWordNetSensesWin(t *testing.T) {
	c := newCompiler(t, "")
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	light := entries["light"]
	if !light.IsAnglish {
		t.Error("light should be Anglish")
	}
	want := []lexicon.WordnetSense{{ID: "light%1:19:00::", Synset: "11473954-n"}}
	if diff := cmp.Diff(want, light.POS["n"].Senses); diff != "" {
		t.Errorf("light senses mismatch (-want +got):\n%s", diff)
	}

	// Every WordNet word keeps exactly its WordNet senses.
	for word, we := range testWordnet().Entries {
		for pos, p := range we.POS {
			if diff := cmp.Diff(p.Senses, entries[word].POS[pos].Senses); diff != "" {
				t.Errorf("%s/%s senses changed (-wordnet +compiled):\n%s", word, pos, diff)
			}
		}
		if len(entries[word].POS) != len(we.POS) {
			t.Errorf("%s gained parts of speech: %v", word, entries[word].POS)
		}
	}
	if entries["lamp"].IsAnglish {
		t.Error("lamp is in no Anglish source and should not be Anglish")
	}
	if entries["Light"].IsAnglish {
		t.Error("Light is a distinct word from light")
	}
}

func TestCompileAnglishOnlyWords(t *testing.T) {
	c := newCompiler(t, "")
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	bookhoard := entries["bookhoard"]
	if bookhoard == nil || !bookhoard.IsAnglish {
		t.Fatalf("bookhoard missing or not Anglish: %+v", bookhoard)
	}
	want := &lexicon.CompiledPOS{
		Senses: []lexicon.WordnetSense{
			{English: "library", Source: lexicon.SourceWordbook},
			{English: "book room", Source: lexicon.SourceMoot},
		},
		Origins: []string{"Old English bōchord"},
	}
	if diff := cmp.Diff(want, bookhoard.POS["n"]); diff != "" {
		t.Errorf("bookhoard mismatch (-want +got):\n%s", diff)
	}
	if unresolved := entries["lightfat"].POS["n"].Unresolved(); len(unresolved) != 2 {
		t.Errorf("lightfat unresolved senses = %v", unresolved)
	}
}

func TestCompileUsesMatchLog(t *testing.T) {
	c := newCompiler(t, `{"word":"lightfat","n":["03636248-n","03636248-n"]}
{"word":"wortwale","n":[]}
`)
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []lexicon.WordnetSense{{Synset: "03636248-n"}}
	if diff := cmp.Diff(want, entries["lightfat"].POS["n"].Senses); diff != "" {
		t.Errorf("lightfat senses mismatch (-want +got):\n%s", diff)
	}
	// An empty match keeps the raw senses.
	if got := entries["wortwale"].POS["n"].Unresolved(); len(got) != 1 || got[0] != "herb choice" {
		t.Errorf("wortwale senses = %v", got)
	}
}

func TestCompileIntegrity(t *testing.T) {
	for name, log := range map[string]string{
		"unknown word":   `{"word":"nosuchword","n":["03636248-n"]}`,
		"unknown synset": `{"word":"lightfat","n":["99999999-n"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newCompiler(t, log+"\n")
			if _, err := c.Compile(context.Background()); !errors.Is(err, ErrIntegrity) {
				t.Fatalf("expected ErrIntegrity, got %v", err)
			}
		})
	}
}

func TestCompileWiktionaryPass(t *testing.T) {
	c := newCompiler(t, "")
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	n := entries["light"].POS["n"]
	if diff := cmp.Diff([]string{"From Old English lēoht."}, n.Origins); diff != "" {
		t.Errorf("light origins mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/laɪt/"}, n.Sounds); diff != "" {
		t.Errorf("light sounds mismatch (-want +got):\n%s", diff)
	}
	if n.Rhyme != "-aɪt" {
		t.Errorf("light rhyme = %q", n.Rhyme)
	}

	// Adjectives attach to WordNet satellites.
	if diff := cmp.Diff([]string{"From Old English deorc."}, entries["dark"].POS["s"].Origins); diff != "" {
		t.Errorf("dark origins mismatch (-want +got):\n%s", diff)
	}
	if !entries["dark"].IsAnglish {
		t.Error("dark should be Anglish from its etymology")
	}
	if entries["nation"].IsAnglish {
		t.Error("nation should not be Anglish")
	}
	if !entries["darkness"].IsAnglish {
		t.Error("darkness should be Anglish from dark + -ness")
	}
	if _, ok := entries["unknownword"]; ok {
		t.Error("the wiktionary pass must not add words")
	}
	if _, ok := entries["-ness"]; ok {
		t.Error("affixes must not become entries")
	}
}

func TestCompileWithoutWiktionary(t *testing.T) {
	c := newCompiler(t, "")
	c.Wiktionary = nil
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if entries["dark"].IsAnglish {
		t.Error("dark is only classified by the wiktionary pass")
	}
	if !entries["wortwale"].IsAnglish {
		t.Error("wortwale comes from an Anglish source")
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	var outputs []string
	for i := 0; i < 2; i++ {
		c := newCompiler(t, `{"word":"lightfat","n":["03636248-n"]}`+"\n")
		entries, err := c.Compile(context.Background())
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		dir := t.TempDir()
		if err := c.Write(dir, entries); err != nil {
			t.Fatalf("Write: %v", err)
		}
		outputs = append(outputs, dir)
	}
	for _, b := range lexicon.Buckets() {
		name := lexicon.PartitionFile(b)
		first, err := os.ReadFile(filepath.Join(outputs[0], name))
		if err != nil {
			t.Fatal(err)
		}
		second, err := os.ReadFile(filepath.Join(outputs[1], name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%s differs between runs", name)
		}
	}

	back, err := lexicon.ReadPartitions(outputs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 11 || back.CountAnglish() != 8 {
		t.Errorf("read back %d entries, %d Anglish", len(back), back.CountAnglish())
	}
}

func TestDedupeSenses(t *testing.T) {
	in := []lexicon.WordnetSense{
		{ID: "a1", Synset: "1-n"},
		{English: "lamp", Source: lexicon.SourceMoot},
		{ID: "a2", Synset: "1-n"},
		{English: "lamp", Source: lexicon.SourceWordbook},
		{Synset: "2-n"},
		{English: "lantern", Source: lexicon.SourceMoot},
	}
	want := []lexicon.WordnetSense{
		{ID: "a1", Synset: "1-n"},
		{English: "lamp", Source: lexicon.SourceMoot},
		{Synset: "2-n"},
		{English: "lantern", Source: lexicon.SourceMoot},
	}
	if diff := cmp.Diff(want, dedupeSenses(in)); diff != "" {
		t.Errorf("dedupeSenses mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileKeepsRomanceWordsWhole(t *testing.T) {
	noun := func(id string) *lexicon.WordnetEntry {
		return &lexicon.WordnetEntry{POS: map[string]*lexicon.WordnetPOS{
			"n": {Senses: []lexicon.WordnetSense{{Synset: id}}},
		}}
	}
	c := &Compiler{
		WordNet: &wordnet.Data{
			Entries: map[string]*lexicon.WordnetEntry{
				"sea": noun("1-n"), "son": noun("2-n"), "season": noun("3-n"),
				"ten": noun("4-n"), "ant": noun("5-n"), "tenant": noun("6-n"),
				"seaten": noun("7-n"),
			},
			Synsets: map[string]*lexicon.WordnetSynset{},
		},
		Sources: map[lexicon.Source]lexicon.AnglishEntries{},
		Wiktionary: fakeDump{
			{Word: "sea", POS: "n", Anglish: true, Ancestry: true, Etymology: "From Old English sǣ."},
			{Word: "son", POS: "n", Anglish: true, Ancestry: true, Etymology: "From Old English sunu."},
			{Word: "ten", POS: "n", Anglish: true, Ancestry: true, Etymology: "From Old English tīen."},
			{Word: "ant", POS: "n", Anglish: true, Ancestry: true, Etymology: "From Old English ǣmete."},
			{Word: "season", POS: "n", Anglish: false, Ancestry: true, Etymology: "From Old French saison."},
			{Word: "tenant", POS: "n", Anglish: false, Etymology: "From Old French tenant."},
		},
		MatchLogPath: filepath.Join(t.TempDir(), "matches.jsonl"),
		Log:          logger.Nop(),
	}
	entries, err := c.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, w := range []string{"season", "tenant"} {
		if entries[w].IsAnglish {
			t.Errorf("%s has a Romance etymology and should not be Anglish", w)
		}
	}
	// A word with no record of its own may still be read as a compound.
	if !entries["seaten"].IsAnglish {
		t.Error("seaten should split into sea + ten")
	}
}
