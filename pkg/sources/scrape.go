package sources

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anglish/wordbook/pkg/lexicon"
)

// Direction tells which way a Moot table translates.
type Direction string

const (
	// EnglishToAnglish rows are word|kind|attested|unattested.
	EnglishToAnglish Direction = "english"
	// AnglishToEnglish rows are word|kind|meaning.
	AnglishToEnglish Direction = "anglish"
)

// MootRow is one cleaned table row.
type MootRow struct {
	Direction Direction
	Word      string
	Kind      string
	// Glosses are Anglish words for EnglishToAnglish rows and English
	// meanings for AnglishToEnglish rows.
	Glosses []string
}

var (
	reParen      = regexp.MustCompile(`\([^)]*\)`)
	reBracket    = regexp.MustCompile(`\[[^\]]*\]`)
	reNewlines   = regexp.MustCompile(`\n+$`)
	reSpaces     = regexp.MustCompile(`[ \t\x{a0}]+`)
	reGlossSplit = regexp.MustCompile(`[,;/\n]+`)
)

// cleanCell strips parenthetical and bracket annotations and trailing
// newlines, and collapses runs of spaces.
func cleanCell(s string) string {
	s = reParen.ReplaceAllString(s, "")
	s = reBracket.ReplaceAllString(s, "")
	s = reNewlines.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func splitGlosses(cells ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range cells {
		for _, g := range reGlossSplit.Split(cleanCell(c), -1) {
			g = strings.Trim(strings.TrimSpace(g), ".*")
			if g == "" || g == "-" || g == "—" || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// ScrapeRows extracts the rows of every table in a Moot wordbook page.
// Rows with four or more cells are English to Anglish, rows with three are
// Anglish to English; header rows and shorter rows are ignored.
func ScrapeRows(html []byte) ([]MootRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	var rows []MootRow
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		if tds.Length() < 3 {
			return
		}
		cells := make([]string, tds.Length())
		tds.Each(func(i int, td *goquery.Selection) {
			cells[i] = td.Text()
		})
		row := MootRow{
			Word: cleanCell(cells[0]),
			Kind: cleanCell(cells[1]),
		}
		if row.Word == "" {
			return
		}
		if len(cells) >= 4 {
			row.Direction = EnglishToAnglish
			row.Glosses = splitGlosses(cells[2], cells[3])
		} else {
			row.Direction = AnglishToEnglish
			row.Glosses = splitGlosses(cells[2])
		}
		rows = append(rows, row)
	})
	return rows, nil
}

// MootEntries normalizes scraped rows. EnglishToAnglish rows are reversed:
// each Anglish gloss word becomes an entry whose sense is the English
// word. Rows with no recognized kind are reported to onSkip.
func MootEntries(rows []MootRow, onSkip func(row MootRow)) lexicon.AnglishEntries {
	entries := lexicon.AnglishEntries{}
	for _, row := range rows {
		kinds := lexicon.ParseKinds(row.Kind)
		if len(kinds) == 0 {
			if onSkip != nil {
				onSkip(row)
			}
			continue
		}
		for _, pos := range kinds {
			switch row.Direction {
			case EnglishToAnglish:
				for _, english := range splitGlosses(row.Word) {
					for _, word := range row.Glosses {
						entries.Add(word, pos, lexicon.AnglishSense{English: english, Source: lexicon.SourceMoot}, "")
					}
				}
			default:
				if len(row.Glosses) == 0 {
					entries.Add(row.Word, pos, lexicon.AnglishSense{}, "")
				}
				for _, meaning := range row.Glosses {
					entries.Add(row.Word, pos, lexicon.AnglishSense{English: meaning, Source: lexicon.SourceMoot}, "")
				}
			}
		}
	}
	return entries
}
