package matcher

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/anglish/wordbook/pkg/logger"
)

// Matches maps word → POS → synset ids, as recorded in the match log.
type Matches map[string]map[string][]string

// Has reports whether (word, pos) was matched, possibly to no synset.
func (m Matches) Has(word, pos string) bool {
	_, ok := m[word][pos]
	return ok
}

// Get returns the synset ids recorded for (word, pos).
func (m Matches) Get(word, pos string) []string {
	return m[word][pos]
}

func (m Matches) set(word, pos string, ids []string) {
	byPOS, ok := m[word]
	if !ok {
		byPOS = map[string][]string{}
		m[word] = byPOS
	}
	byPOS[pos] = ids
}

// Pairs returns the recorded pairs sorted by word and POS.
func (m Matches) Pairs() []Pair {
	var out []Pair
	for w, byPOS := range m {
		for pos := range byPOS {
			out = append(out, Pair{Word: w, POS: pos})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Word != out[j].Word {
			return out[i].Word < out[j].Word
		}
		return out[i].POS < out[j].POS
	})
	return out
}

// Pair is a (word, pos) unit of matching work.
type Pair struct {
	Word string
	POS  string
}

// String renders the error log form "word:pos".
func (p Pair) String() string { return p.Word + ":" + p.POS }

// ParsePair parses "word:pos". The word may itself contain colons.
func ParsePair(s string) (Pair, bool) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Pair{}, false
	}
	return Pair{Word: s[:i], POS: s[i+1:]}, true
}

// decodeMatchLine decodes {"word": w, "<pos>": [ids], ...}.
func decodeMatchLine(line []byte) (string, map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return "", nil, err
	}
	var word string
	if err := json.Unmarshal(raw["word"], &word); err != nil || word == "" {
		return "", nil, errors.New("missing word")
	}
	byPOS := map[string][]string{}
	for k, v := range raw {
		if k == "word" {
			continue
		}
		var ids []string
		if err := json.Unmarshal(v, &ids); err != nil {
			return "", nil, fmt.Errorf("pos %q: %w", k, err)
		}
		if ids == nil {
			ids = []string{}
		}
		byPOS[k] = ids
	}
	if len(byPOS) == 0 {
		return "", nil, errors.New("no parts of speech")
	}
	return word, byPOS, nil
}

func encodeMatchLine(word, pos string, ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	// Field order is fixed: word first.
	w, err := json.Marshal(word)
	if err != nil {
		return nil, err
	}
	p, err := json.Marshal(pos)
	if err != nil {
		return nil, err
	}
	v, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(`{"word":`)
	b.Write(w)
	b.WriteByte(',')
	b.Write(p)
	b.WriteByte(':')
	b.Write(v)
	b.WriteByte('}')
	return b.Bytes(), nil
}

// ReadMatchLog reads the match log at path. A missing file is an empty
// log. Lines that do not decode, such as a line torn by a crash, are
// skipped with a warning; exactly the valid lines count.
func ReadMatchLog(path string, log *logger.Logger) (Matches, error) {
	m := Matches{}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	lineNo := 0
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				word, byPOS, derr := decodeMatchLine(trimmed)
				if derr != nil {
					log.Warn("skipping invalid match log line", "path", path, "line", lineNo, "error", derr)
				} else {
					for pos, ids := range byPOS {
						m.set(word, pos, ids)
					}
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return m, nil
}

// ReadErrorLog reads the word:pos lines of the error log in order,
// without duplicates. A missing file is an empty log.
func ReadErrorLog(path string, log *logger.Logger) ([]Pair, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Pair
	seen := map[Pair]bool{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, ok := ParsePair(text)
		if !ok {
			log.Warn("skipping invalid error log line", "path", path, "line", lineNo)
			continue
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// appendLog appends lines to a file, syncing after each one so a crash
// loses at most the line being written.
type appendLog struct {
	mu sync.Mutex
	f  *os.File
}

func openAppendLog(path string) (*appendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	// Terminate a line torn by an earlier crash so the next line stays
	// intact.
	if st, err := f.Stat(); err == nil && st.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, st.Size()-1); err == nil && last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	return &appendLog{f: f}, nil
}

func (a *appendLog) writeLine(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := a.f.Write(buf); err != nil {
		return err
	}
	return a.f.Sync()
}

func (a *appendLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

// MatchLog appends successful matches.
type MatchLog struct{ w *appendLog }

// OpenMatchLog opens path for appending, creating it if needed.
func OpenMatchLog(path string) (*MatchLog, error) {
	w, err := openAppendLog(path)
	if err != nil {
		return nil, err
	}
	return &MatchLog{w: w}, nil
}

// Append records ids for (word, pos) as one line.
func (l *MatchLog) Append(word, pos string, ids []string) error {
	line, err := encodeMatchLine(word, pos, ids)
	if err != nil {
		return err
	}
	return l.w.writeLine(line)
}

func (l *MatchLog) Close() error { return l.w.Close() }

// ErrorLog appends failed pairs.
type ErrorLog struct{ w *appendLog }

// OpenErrorLog opens path for appending, creating it if needed.
func OpenErrorLog(path string) (*ErrorLog, error) {
	w, err := openAppendLog(path)
	if err != nil {
		return nil, err
	}
	return &ErrorLog{w: w}, nil
}

func (l *ErrorLog) Append(p Pair) error { return l.w.writeLine([]byte(p.String())) }

func (l *ErrorLog) Close() error { return l.w.Close() }

// RewriteErrorLog atomically replaces the error log with pairs.
func RewriteErrorLog(path string, pairs []Pair) error {
	var b bytes.Buffer
	for _, p := range pairs {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(b.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
