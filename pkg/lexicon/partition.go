package lexicon

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// OtherBucket collects words that do not start with a letter a-z.
const OtherBucket = "0"

// Buckets lists the 27 partition keys in file order.
func Buckets() []string {
	out := make([]string, 0, 27)
	for c := 'a'; c <= 'z'; c++ {
		out = append(out, string(c))
	}
	return append(out, OtherBucket)
}

// Bucket returns the partition key of word.
func Bucket(word string) string {
	r, _ := utf8.DecodeRuneInString(strings.ToLower(word))
	if r >= 'a' && r <= 'z' {
		return string(r)
	}
	return OtherBucket
}

// PartitionFile is the file name of a bucket.
func PartitionFile(bucket string) string {
	return "entries-" + bucket + ".json"
}

// LessWord orders words case-insensitively, breaking ties bytewise so the
// order is total.
func LessWord(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// SortedWords returns the keys of entries in LessWord order.
func SortedWords(entries CompiledEntries) []string {
	words := make([]string, 0, len(entries))
	for w := range entries {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool { return LessWord(words[i], words[j]) })
	return words
}

// WritePartitions serializes entries into one JSON object per bucket under
// dir. Every bucket file is written, empty ones as "{}". Keys keep the
// sorted order; POS maps are sorted by encoding/json.
func WritePartitions(dir string, entries CompiledEntries) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	byBucket := map[string][]string{}
	for _, w := range SortedWords(entries) {
		b := Bucket(w)
		byBucket[b] = append(byBucket[b], w)
	}
	for _, b := range Buckets() {
		if err := writeBucket(filepath.Join(dir, PartitionFile(b)), byBucket[b], entries); err != nil {
			return err
		}
	}
	return nil
}

func writeBucket(path string, words []string, entries CompiledEntries) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteString("{")
	for i, w := range words {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
		if err := enc.Encode(w); err != nil {
			return fmt.Errorf("encode word %q: %w", w, err)
		}
		trimNewline(&buf)
		buf.WriteString(":")
		if err := enc.Encode(entries[w]); err != nil {
			return fmt.Errorf("encode entry %q: %w", w, err)
		}
		trimNewline(&buf)
	}
	if len(words) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}

// ReadPartitions loads every bucket file found in dir into one map.
func ReadPartitions(dir string) (CompiledEntries, error) {
	out := CompiledEntries{}
	found := 0
	for _, b := range Buckets() {
		path := filepath.Join(dir, PartitionFile(b))
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var part CompiledEntries
		err = json.NewDecoder(bufio.NewReader(f)).Decode(&part)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for w, e := range part {
			out[w] = e
		}
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("no compiled partitions in %s", dir)
	}
	return out, nil
}
