package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/google/go-cmp/cmp"
)

func TestScrapeRows(t *testing.T) {
	html, err := os.ReadFile("testdata/moot.html")
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ScrapeRows(html)
	if err != nil {
		t.Fatalf("ScrapeRows: %v", err)
	}
	want := []MootRow{
		{Direction: EnglishToAnglish, Word: "lamp", Kind: "noun", Glosses: []string{"lightfat", "glowvat", "leam"}},
		{Direction: EnglishToAnglish, Word: "library", Kind: "n", Glosses: []string{"bookhoard"}},
		{Direction: EnglishToAnglish, Word: "lexicon", Kind: "unknown", Glosses: []string{"wordhoard"}},
		{Direction: AnglishToEnglish, Word: "leam", Kind: "noun, verb", Glosses: []string{"gleam", "light"}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("ScrapeRows mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		"word (note)\n\n":     "word",
		"[1]  two   words":    "two words",
		"plain":               "plain",
		"(only annotation)\n": "",
	}
	for in, want := range tests {
		if got := cleanCell(in); got != want {
			t.Errorf("cleanCell(%q) = %q, want %q", in, got, want)
		}
	}
}

func mootSense(s string) lexicon.AnglishSense {
	return lexicon.AnglishSense{English: s, Source: lexicon.SourceMoot}
}

func wantMootEntries() lexicon.AnglishEntries {
	return lexicon.AnglishEntries{
		"lightfat":  {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{"n": {Senses: []lexicon.AnglishSense{mootSense("lamp")}}}},
		"glowvat":   {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{"n": {Senses: []lexicon.AnglishSense{mootSense("lamp")}}}},
		"bookhoard": {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{"n": {Senses: []lexicon.AnglishSense{mootSense("library")}}}},
		"leam": {IsAnglish: true, POS: map[string]*lexicon.AnglishPOS{
			"n": {Senses: []lexicon.AnglishSense{mootSense("lamp"), mootSense("gleam"), mootSense("light")}},
			"v": {Senses: []lexicon.AnglishSense{mootSense("gleam"), mootSense("light")}},
		}},
	}
}

func TestMootEntriesReversesEnglishTable(t *testing.T) {
	html, err := os.ReadFile("testdata/moot.html")
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ScrapeRows(html)
	if err != nil {
		t.Fatal(err)
	}
	var skipped []string
	got := MootEntries(rows, func(row MootRow) { skipped = append(skipped, row.Word) })
	if diff := cmp.Diff(wantMootEntries(), got); diff != "" {
		t.Errorf("MootEntries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lexicon"}, skipped); diff != "" {
		t.Errorf("skipped rows mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got["lamp"]; ok {
		t.Error("english word must not become an entry")
	}
}

func TestMootLoaderUsesCachedHTML(t *testing.T) {
	cache := t.TempDir()
	html, err := os.ReadFile("testdata/moot.html")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(cache, "moot"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"english-all.html", "anglish-all.html"} {
		if err := os.WriteFile(filepath.Join(cache, "moot", name), html, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	l := &MootLoader{
		EnglishURL: "http://moot.invalid/english",
		AnglishURL: "http://moot.invalid/anglish",
		CacheDir:   cache,
		Log:        logger.Nop(),
	}
	got, err := l.Load(context.Background(), LoadOptions{Save: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(wantMootEntries(), got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestMootLoaderFetchesPerLetter(t *testing.T) {
	html, err := os.ReadFile("testdata/moot.html")
	if err != nil {
		t.Fatal(err)
	}
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("missing user agent on %s", r.URL.Path)
		}
		if r.URL.Path != "/english/L" {
			http.NotFound(w, r)
			return
		}
		w.Write(html)
	}))
	defer srv.Close()

	cache := t.TempDir()
	l := &MootLoader{
		EnglishURL: srv.URL + "/english/{letter}",
		CacheDir:   cache,
		Client:     srv.Client(),
		Log:        logger.Nop(),
	}
	got, err := l.Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := requests.Load(); n != 26 {
		t.Errorf("expected 26 requests, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(cache, "moot", "english-l.html")); err != nil {
		t.Errorf("fetched page not cached: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cache, "moot", "english-a.html")); !os.IsNotExist(err) {
		t.Errorf("missing page must not be cached, stat err = %v", err)
	}
	leam := got["leam"]
	if leam == nil || len(leam.POS) != 1 {
		t.Fatalf("expected leam from the english table only, got %+v", leam)
	}
}

func TestCheckPageRejectsChallenge(t *testing.T) {
	page := `<html><head><title>Just a moment...</title></head><body><div><p>` +
		strings.Repeat("Checking your browser before accessing the wiki. ", 20) +
		`</p></div></body></html>`
	if err := checkPage([]byte(page), "https://moot.example/wiki/A"); err == nil {
		t.Error("expected challenge page to be rejected")
	}

	html, err := os.ReadFile("testdata/moot.html")
	if err != nil {
		t.Fatal(err)
	}
	if err := checkPage(html, "https://moot.example/wiki/L"); err != nil {
		t.Errorf("wordbook page rejected: %v", err)
	}
}
