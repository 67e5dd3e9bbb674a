package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anglish/wordbook/pkg/wordbook"
)

// interactive reads one word per line and prints its entry until EOF or
// "quit".
func interactive(ctx context.Context, p *wordbook.Pipeline, in io.Reader, out io.Writer) error {
	entries, err := p.Entries()
	if err != nil {
		return err
	}
	var gloss wordbook.Gloss
	if data, err := p.WordNet(ctx); err == nil {
		gloss = func(id string) string { return data.Synsets[id].Gloss() }
	} else {
		p.Log.Warn("wordnet unavailable, showing synset ids only", "error", err)
	}

	fmt.Fprintf(out, "%d entries loaded. Type a word, or \"quit\".\n", len(entries))
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		word, entry, ok := wordbook.Lookup(entries, line)
		if !ok {
			fmt.Fprintf(out, "%s: not found\n", line)
			continue
		}
		wordbook.Describe(out, word, entry, gloss)
	}
}
