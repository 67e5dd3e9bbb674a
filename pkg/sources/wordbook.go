package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
)

// WordbookRow is one row of the curated wordbook CSV.
type WordbookRow struct {
	Line     int
	Word     string
	Kind     string
	Meaning  string
	Forebear string
	From     string
	Notes    string
}

var wordbookColumns = []string{"WORD", "KIND", "MEANING", "FOREBEAR", "FROM", "NOTES"}

var (
	meaningSplit   = regexp.MustCompile(`[,;:/()\[\]{}]+`)
	leadingArticle = regexp.MustCompile(`(?i)^(a|an|to)\s+`)
	innerSpace     = regexp.MustCompile(`\s+`)
)

// ReadWordbook reads the CSV rows addressed by header name. The header
// must name WORD, KIND and MEANING; the others are optional. Rows the CSV
// reader rejects are reported to onSkip and skipped.
func ReadWordbook(r io.Reader, onSkip func(line int, err error)) ([]WordbookRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range wordbookColumns[:3] {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("wordbook header has no %s column", col)
		}
	}
	cell := func(rec []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []WordbookRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if onSkip != nil {
					onSkip(perr.StartLine, err)
				}
				continue
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, WordbookRow{
			Line:     line,
			Word:     cell(rec, "WORD"),
			Kind:     cell(rec, "KIND"),
			Meaning:  cell(rec, "MEANING"),
			Forebear: cell(rec, "FOREBEAR"),
			From:     cell(rec, "FROM"),
			Notes:    cell(rec, "NOTES"),
		})
	}
	return rows, nil
}

// SplitMeaning splits a gloss cell into senses at punctuation and
// parenthesis boundaries, dropping leading "a", "an" and "to".
func SplitMeaning(cell string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range meaningSplit.Split(cell, -1) {
		part = innerSpace.ReplaceAllString(strings.TrimSpace(part), " ")
		part = strings.TrimSpace(leadingArticle.ReplaceAllString(part, ""))
		part = strings.Trim(part, ".!?\"' ")
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// Origin joins the non-empty forebear, from and notes cells.
func (r WordbookRow) Origin() string {
	var parts []string
	for _, s := range []string{r.Forebear, r.From, r.Notes} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// WordbookEntries normalizes rows. Rows without a word or a recognized
// kind are reported to onSkip.
func WordbookEntries(rows []WordbookRow, onSkip func(row WordbookRow, reason string)) lexicon.AnglishEntries {
	entries := lexicon.AnglishEntries{}
	for _, row := range rows {
		if row.Word == "" {
			if onSkip != nil {
				onSkip(row, "no word")
			}
			continue
		}
		kinds := lexicon.ParseKinds(row.Kind)
		if len(kinds) == 0 {
			if onSkip != nil {
				onSkip(row, fmt.Sprintf("unknown kind %q", row.Kind))
			}
			continue
		}
		origin := row.Origin()
		senses := SplitMeaning(row.Meaning)
		for _, pos := range kinds {
			if len(senses) == 0 {
				entries.Add(row.Word, pos, lexicon.AnglishSense{}, origin)
			}
			for _, s := range senses {
				entries.Add(row.Word, pos, lexicon.AnglishSense{English: s, Source: lexicon.SourceWordbook}, origin)
			}
		}
	}
	return entries
}

// WordbookLoader loads the curated wordbook CSV.
type WordbookLoader struct {
	Path     string
	CacheDir string
	Log      *logger.Logger
}

func (l *WordbookLoader) Source() lexicon.Source { return lexicon.SourceWordbook }

func (l *WordbookLoader) Load(ctx context.Context, opts LoadOptions) (lexicon.AnglishEntries, error) {
	return loadCached(ctx, l.Log, CachePath(l.CacheDir, l.Source()), opts, l.derive)
}

func (l *WordbookLoader) derive(_ context.Context) (lexicon.AnglishEntries, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open wordbook: %w", err)
	}
	defer f.Close()

	rows, err := ReadWordbook(f, func(line int, err error) {
		l.Log.Warn("skipping malformed wordbook row", "line", line, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.Path, err)
	}
	entries := WordbookEntries(rows, func(row WordbookRow, reason string) {
		l.Log.Warn("skipping wordbook row", "line", row.Line, "word", row.Word, "reason", reason)
	})
	l.Log.Info("read wordbook", "rows", len(rows), "words", len(entries))
	return entries, nil
}
