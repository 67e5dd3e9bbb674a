package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/anglish/wordbook/pkg/config"
	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/anglish/wordbook/pkg/wordbook"
)

func TestInteractive(t *testing.T) {
	dir := t.TempDir()
	entries := lexicon.CompiledEntries{
		"leam": {IsAnglish: true, POS: map[string]*lexicon.CompiledPOS{
			"n": {Senses: []lexicon.WordnetSense{{English: "a gleam", Source: lexicon.SourceMoot}}},
		}},
	}
	if err := lexicon.WritePartitions(dir, entries); err != nil {
		t.Fatalf("write partitions: %v", err)
	}
	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.CacheDir = t.TempDir()
	cfg.WordNet.Dir = t.TempDir()
	p := &wordbook.Pipeline{Config: cfg, Log: logger.Nop()}

	in := strings.NewReader("Leam\nblorp\n\nquit\nleam\n")
	var out bytes.Buffer
	if err := interactive(context.Background(), p, in, &out); err != nil {
		t.Fatalf("interactive: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "1 entries loaded") || !strings.Contains(got, "leam (anglish)") || !strings.Contains(got, "blorp: not found") {
		t.Fatalf("unexpected output:\n%s", got)
	}
	if strings.Count(got, "leam (anglish)") != 1 {
		t.Fatalf("expected quit to stop the prompt:\n%s", got)
	}
}
