package search

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/google/go-cmp/cmp"
)

func testEntries() lexicon.CompiledEntries {
	return lexicon.CompiledEntries{
		"light": {IsAnglish: true, POS: map[string]*lexicon.CompiledPOS{
			"v": {Senses: []lexicon.WordnetSense{{ID: "light%2:30:00::", Synset: "00000001-v"}}},
			"n": {Senses: []lexicon.WordnetSense{{ID: "light%1:19:00::", Synset: "11473954-n"}}},
		}},
		"Light": {POS: map[string]*lexicon.CompiledPOS{
			"n": {Senses: []lexicon.WordnetSense{{ID: "Light%1:18:00::", Synset: "10000001-n"}}},
		}},
		"leam": {IsAnglish: true, POS: map[string]*lexicon.CompiledPOS{
			"n": {Senses: []lexicon.WordnetSense{{English: "a gleam", Source: lexicon.SourceMoot}}},
		}},
		"lamp": {POS: map[string]*lexicon.CompiledPOS{
			"n": {Senses: []lexicon.WordnetSense{{ID: "lamp%1:06:00::", Synset: "03636248-n"}}},
		}},
	}
}

func TestKey(t *testing.T) {
	entries := testEntries()
	tests := []struct {
		word string
		want string
	}{
		{"light", "light\x00light\x00n,v\x00en,an"},
		{"Light", "light\x00Light\x00n\x00en"},
		{"leam", "leam\x00leam\x00n\x00an"},
		{"lamp", "lamp\x00lamp\x00n\x00en"},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := Key(tt.word, entries[tt.word]); got != tt.want {
				t.Fatalf("Key(%q) = %q, want %q", tt.word, got, tt.want)
			}
		})
	}
}

func TestKeysSortedBytewise(t *testing.T) {
	got := Keys(testEntries())
	want := []string{
		"lamp\x00lamp\x00n\x00en",
		"leam\x00leam\x00n\x00an",
		"light\x00Light\x00n\x00en",
		"light\x00light\x00n,v\x00en,an",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKey(t *testing.T) {
	h, err := ParseKey("light\x00light\x00n,v\x00en,an")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Hit{Word: "light", POS: []string{"n", "v"}, Langs: []string{"en", "an"}}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("hit mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseKey("light"); err == nil {
		t.Fatalf("expected error for malformed member")
	}
}

func TestRedisIndex(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "wordbook:test:" + t.Name()
	ix, err := NewRedisIndex(ctx, addr, key, logger.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer ix.Close()
	defer ix.rdb.Del(ctx, key)

	n, err := ix.Rebuild(ctx, testEntries())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 members, got %d", n)
	}

	hits, err := ix.Prefix(ctx, "Li", 10)
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	var words []string
	for _, h := range hits {
		words = append(words, h.Word)
	}
	if diff := cmp.Diff([]string{"Light", "light"}, words); diff != "" {
		t.Fatalf("prefix mismatch (-want +got):\n%s", diff)
	}

	// A second rebuild replaces the set.
	entries := testEntries()
	delete(entries, "lamp")
	if _, err := ix.Rebuild(ctx, entries); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	card, err := ix.rdb.ZCard(ctx, key).Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if card != 3 {
		t.Fatalf("expected 3 members after rebuild, got %d", card)
	}
	left, err := ix.rdb.Exists(ctx, key+":building").Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected temporary key to be renamed away")
	}
}
