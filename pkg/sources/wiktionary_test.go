package sources

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func TestParseWiktionaryLine(t *testing.T) {
	got, err := ParseWiktionaryLine([]byte(`{"word":" light ","pos":"noun","senses":[{"glosses":["Brightness."]}],"etymology_text":" From Old English. ","etymology_templates":[{"name":"inh","args":{"1":"en","2":"ang","3":"lēoht"}}],"sounds":[{"ipa":"/laɪt/"},{"rhymes":"-aɪt"},{"ipa":"[ɫaɪt]","rhymes":"-aɪd"}]}`))
	if err != nil {
		t.Fatalf("ParseWiktionaryLine: %v", err)
	}
	want := WiktionaryWord{
		Word:      "light",
		POS:       lexicon.Noun,
		Anglish:   true,
		Ancestry:  true,
		Glosses:   []string{"Brightness."},
		Etymology: "From Old English.",
		Sounds:    []string{"/laɪt/", "[ɫaɪt]"},
		Rhyme:     "-aɪt",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseWiktionaryLine mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWiktionaryLineSkips(t *testing.T) {
	if _, err := ParseWiktionaryLine([]byte(`{"word":"ok","pos":"phrase"}`)); !errors.Is(err, errUnmappedPOS) {
		t.Errorf("phrase: expected errUnmappedPOS, got %v", err)
	}
	if _, err := ParseWiktionaryLine([]byte(`{"word":"Haus","pos":"noun","lang_code":"de"}`)); !errors.Is(err, errUnmappedPOS) {
		t.Errorf("german record: expected errUnmappedPOS, got %v", err)
	}
	if _, err := ParseWiktionaryLine([]byte(`{"pos":"noun"}`)); err == nil {
		t.Error("expected error for record without word")
	}
	if _, err := ParseWiktionaryLine([]byte(`{"word":`)); err == nil {
		t.Error("expected error for truncated line")
	}

	w, err := ParseWiktionaryLine([]byte(`{"word":"-ness","pos":"suffix","etymology_templates":[{"name":"inh","args":{"1":"en","2":"ang"}}]}`))
	if err != nil {
		t.Fatalf("suffix: %v", err)
	}
	if !w.Affix || w.POS != "" || !w.Anglish {
		t.Errorf("suffix parsed as %+v", w)
	}
}

func newWiktionaryLoader(t *testing.T, dump string) *WiktionaryLoader {
	t.Helper()
	return &WiktionaryLoader{
		Path:      dump,
		CacheDir:  filepath.Join(t.TempDir(), "cache"),
		BatchSize: 2,
		Workers:   3,
		Log:       logger.Nop(),
	}
}

func wantWiktionaryEntries() lexicon.AnglishEntries {
	return lexicon.AnglishEntries{
		"light": {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{
			"n": {Senses: []lexicon.AnglishSense{{English: "Illumination or brightness.", Source: lexicon.SourceWiktionary}}},
		}},
		"wortwale": {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{
			"n": {Senses: []lexicon.AnglishSense{{English: "A plant root.", Source: lexicon.SourceWiktionary}}},
		}},
	}
}

func TestWiktionaryLoaderDerivesAndCaches(t *testing.T) {
	l := newWiktionaryLoader(t, "testdata/wiktionary.jsonl")
	got, err := l.Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(wantWiktionaryEntries(), got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(CachePath(l.CacheDir, lexicon.SourceWiktionary)); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	// The cache is preferred: the dump is no longer needed.
	l.Path = filepath.Join(t.TempDir(), "missing.jsonl")
	got, err = l.Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load from cache: %v", err)
	}
	if diff := cmp.Diff(wantWiktionaryEntries(), got); diff != "" {
		t.Errorf("cached entries mismatch (-want +got):\n%s", diff)
	}

	// Save forces re-derivation, which now fails without a dump or url.
	if _, err := l.Load(context.Background(), LoadOptions{Save: true}); err == nil {
		t.Error("expected Save to re-read the missing dump")
	}
}

func TestWiktionaryLoaderReadsGzip(t *testing.T) {
	raw, err := os.ReadFile("testdata/wiktionary.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()
	path := filepath.Join(t.TempDir(), "dump.jsonl.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newWiktionaryLoader(t, path)
	got, err := l.Load(context.Background(), LoadOptions{Save: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(wantWiktionaryEntries(), got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestWiktionaryStreamKeepsFileOrder(t *testing.T) {
	l := newWiktionaryLoader(t, "testdata/wiktionary.jsonl")
	var words []string
	var parts []string
	err := l.Stream(context.Background(), func(w WiktionaryWord) {
		words = append(words, w.Word)
		if w.Word == "wortwale" {
			parts = w.Parts
		}
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if diff := cmp.Diff([]string{"light", "nation", "-ness", "wortwale"}, words); diff != "" {
		t.Errorf("stream order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"wort", "wale"}, parts); diff != "" {
		t.Errorf("compound parts mismatch (-want +got):\n%s", diff)
	}
}
