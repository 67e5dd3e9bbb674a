// Package search builds the prefix search index over compiled entries.
//
// Every word is one member of a sorted set where all scores are zero, so
// Redis orders members bytewise and ZRANGEBYLEX answers prefix queries.
// A member reads
//
//	lower(word) SEP word SEP pos,pos SEP lang,lang
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
)

// Sep separates the fields of an index member.
const Sep = "\x00"

const (
	LangEnglish = "en"
	LangAnglish = "an"
)

// chunkSize is the number of members sent per pipeline round trip.
const chunkSize = 1000

// Key returns the index member of word.
func Key(word string, entry *lexicon.CompiledEntry) string {
	pos := make([]string, 0, len(entry.POS))
	english := false
	for p, data := range entry.POS {
		pos = append(pos, p)
		for _, s := range data.Senses {
			if s.ID != "" {
				english = true
			}
		}
	}
	sort.Strings(pos)

	var langs []string
	if english {
		langs = append(langs, LangEnglish)
	}
	if entry.IsAnglish {
		langs = append(langs, LangAnglish)
	}
	return strings.Join([]string{
		strings.ToLower(word),
		word,
		strings.Join(pos, ","),
		strings.Join(langs, ","),
	}, Sep)
}

// Keys returns the members of all entries sorted bytewise.
func Keys(entries lexicon.CompiledEntries) []string {
	keys := make([]string, 0, len(entries))
	for word, entry := range entries {
		keys = append(keys, Key(word, entry))
	}
	sort.Strings(keys)
	return keys
}

// Hit is a decoded index member.
type Hit struct {
	Word  string
	POS   []string
	Langs []string
}

// ParseKey decodes a member built by Key.
func ParseKey(key string) (Hit, error) {
	parts := strings.Split(key, Sep)
	if len(parts) != 4 {
		return Hit{}, fmt.Errorf("malformed index member %q", key)
	}
	return Hit{Word: parts[1], POS: splitList(parts[2]), Langs: splitList(parts[3])}, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// RedisIndex keeps the members in one Redis sorted set.
type RedisIndex struct {
	rdb goredis.UniversalClient
	key string
	log *logger.Logger
}

// NewRedisIndex connects to addr and checks the connection.
func NewRedisIndex(ctx context.Context, addr, key string, log *logger.Logger) (*RedisIndex, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisIndexWithClient(rdb, key, log), nil
}

// NewRedisIndexWithClient wraps an existing client.
func NewRedisIndexWithClient(rdb goredis.UniversalClient, key string, log *logger.Logger) *RedisIndex {
	return &RedisIndex{rdb: rdb, key: key, log: log.With("service", "RedisIndex")}
}

// Close closes the client.
func (ix *RedisIndex) Close() error {
	return ix.rdb.Close()
}

// Rebuild replaces the index with the members of entries. Members are
// written to a temporary key which is then renamed over the live one, so
// readers see either the old or the new index.
func (ix *RedisIndex) Rebuild(ctx context.Context, entries lexicon.CompiledEntries) (int, error) {
	keys := Keys(entries)
	tmp := ix.key + ":building"
	if err := ix.rdb.Del(ctx, tmp).Err(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", tmp, err)
	}
	if len(keys) == 0 {
		if err := ix.rdb.Del(ctx, ix.key).Err(); err != nil {
			return 0, fmt.Errorf("clear %s: %w", ix.key, err)
		}
		ix.log.Info("search index emptied", "key", ix.key)
		return 0, nil
	}

	for start := 0; start < len(keys); start += chunkSize {
		end := min(start+chunkSize, len(keys))
		members := make([]goredis.Z, 0, end-start)
		for _, k := range keys[start:end] {
			members = append(members, goredis.Z{Score: 0, Member: k})
		}
		_, err := ix.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
			p.ZAdd(ctx, tmp, members...)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("write chunk at %d: %w", start, err)
		}
		ix.log.Debug("search chunk written", "from", start, "to", end)
	}

	if err := ix.rdb.Rename(ctx, tmp, ix.key).Err(); err != nil {
		return 0, fmt.Errorf("rename %s to %s: %w", tmp, ix.key, err)
	}
	ix.log.Info("search index rebuilt", "key", ix.key, "members", len(keys))
	return len(keys), nil
}

// Prefix returns up to n hits whose lower-cased word starts with prefix.
func (ix *RedisIndex) Prefix(ctx context.Context, prefix string, n int) ([]Hit, error) {
	p := strings.ToLower(prefix)
	members, err := ix.rdb.ZRangeByLex(ctx, ix.key, &goredis.ZRangeBy{
		Min:   "[" + p,
		Max:   "[" + p + "\xff",
		Count: int64(n),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("prefix %q: %w", prefix, err)
	}
	hits := make([]Hit, 0, len(members))
	for _, m := range members {
		h, err := ParseKey(m)
		if err != nil {
			ix.log.Warn("skipping index member", "error", err)
			continue
		}
		hits = append(hits, h)
	}
	return hits, nil
}

