package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	"github.com/go-shiori/go-readability"
)

const (
	letterPlaceholder = "{letter}"
	maxPageSize       = 10 * 1024 * 1024
)

var errPageMissing = errors.New("page not found")

// MootLoader scrapes the two Moot wordbook tables. Fetched HTML is cached
// under <CacheDir>/moot and only fetched again when the cached copy is
// missing.
type MootLoader struct {
	EnglishURL string
	AnglishURL string
	CacheDir   string
	Timeout    time.Duration
	Client     *http.Client
	Log        *logger.Logger
}

type mootPage struct {
	name string
	url  string
}

func (l *MootLoader) Source() lexicon.Source { return lexicon.SourceMoot }

func (l *MootLoader) Load(ctx context.Context, opts LoadOptions) (lexicon.AnglishEntries, error) {
	return loadCached(ctx, l.Log, CachePath(l.CacheDir, l.Source()), opts, l.derive)
}

func (l *MootLoader) derive(ctx context.Context) (lexicon.AnglishEntries, error) {
	var rows []MootRow
	for _, table := range []struct {
		dir Direction
		url string
	}{
		{EnglishToAnglish, l.EnglishURL},
		{AnglishToEnglish, l.AnglishURL},
	} {
		if table.url == "" {
			continue
		}
		for _, p := range expandPages(table.url) {
			html, err := l.page(ctx, table.dir, p)
			if errors.Is(err, errPageMissing) {
				l.Log.Warn("moot page missing, skipping", "url", p.url)
				continue
			}
			if err != nil {
				return nil, err
			}
			pageRows, err := ScrapeRows(html)
			if err != nil {
				l.Log.Warn("unparseable moot page, skipping", "url", p.url, "error", err)
				continue
			}
			n := 0
			for _, r := range pageRows {
				// Pages sometimes embed tables of the other direction.
				if r.Direction == table.dir {
					rows = append(rows, r)
					n++
				}
			}
			l.Log.Debug("scraped moot page", "url", p.url, "rows", n)
		}
	}
	entries := MootEntries(rows, func(row MootRow) {
		l.Log.Debug("skipping moot row", "word", row.Word, "kind", row.Kind)
	})
	l.Log.Info("scraped moot wordbook", "rows", len(rows), "words", len(entries))
	return entries, nil
}

// expandPages returns one page per letter when raw has a {letter}
// placeholder and a single page otherwise.
func expandPages(raw string) []mootPage {
	if !strings.Contains(raw, letterPlaceholder) {
		return []mootPage{{name: "all", url: raw}}
	}
	pages := make([]mootPage, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		letter := string(c)
		pages = append(pages, mootPage{
			name: letter,
			url:  strings.ReplaceAll(raw, letterPlaceholder, strings.ToUpper(letter)),
		})
	}
	return pages
}

func (l *MootLoader) htmlPath(dir Direction, p mootPage) string {
	return filepath.Join(l.CacheDir, "moot", fmt.Sprintf("%s-%s.html", dir, p.name))
}

// page returns the cached HTML of p, fetching and caching it if needed.
func (l *MootLoader) page(ctx context.Context, dir Direction, p mootPage) ([]byte, error) {
	path := l.htmlPath(dir, p)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	data, err := l.fetch(ctx, p.url)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *MootLoader) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: l.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	l.Log.Info("fetching moot page", "url", pageURL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errPageMissing
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", pageURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	if err := checkPage(data, pageURL); err != nil {
		return nil, err
	}
	return data, nil
}

var blockedTitles = []string{"just a moment", "attention required", "access denied", "too many requests"}

// checkPage rejects interstitial pages (bot challenges, rate limits) so
// they are never cached in place of a wordbook table.
func checkPage(data []byte, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return err
	}
	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil {
		// Table-only pages may have no readable article.
		return nil
	}
	title := strings.ToLower(article.Title)
	for _, b := range blockedTitles {
		if strings.Contains(title, b) {
			return fmt.Errorf("fetch %s: got interstitial page %q", pageURL, article.Title)
		}
	}
	return nil
}
