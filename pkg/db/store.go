package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/anglish/wordbook/pkg/ingest"
	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store bulk-loads compiled entries and synsets. Every pass goes through
// an ingest.BatchWriter and finishes before the next pass starts, so later
// passes can look up the rows of earlier ones.
type Store struct {
	db        *sql.DB
	batchSize int
	log       *logger.Logger
}

// NewStore returns a Store committing batchSize writes per transaction.
func NewStore(db *sql.DB, batchSize int, log *logger.Logger) *Store {
	return &Store{db: db, batchSize: batchSize, log: log}
}

// SynsetStats counts a PopulateSynsets run.
type SynsetStats struct {
	Synsets   int
	Relations int64
	Dangling  int64
}

// WordStats counts a PopulateWords run.
type WordStats struct {
	Words     int
	POS       int
	Senses    int
	Relations int64
	Frames    int64
	Dangling  int64
}

// pass submits every write of one pass and waits for the last commit.
// Errors of the writer already name the pass.
func (s *Store) pass(ctx context.Context, name string, submit func(bw *ingest.BatchWriter) error) error {
	bw := ingest.NewBatchWriter(ctx, s.db, name, s.batchSize)
	bw.OnError = func(err error) {
		s.log.Error("batch rolled back", "pass", name, "error", err)
	}
	submitErr := submit(bw)
	closeErr := bw.Close()
	if submitErr != nil {
		return fmt.Errorf("%s: %w", name, submitErr)
	}
	if closeErr != nil {
		s.log.Warn("pass incomplete", "pass", name, "committed", bw.Committed(), "failed", bw.Failed())
		return closeErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Debug("pass committed", "pass", name, "writes", bw.Committed(), "batches", bw.Batches())
	return nil
}

func exec(query string, args ...interface{}) ingest.WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
}

// execCount runs query and adds the affected rows to inserted, or one to
// dangling when nothing was inserted.
func execCount(inserted, dangling *int64, query string, args ...interface{}) ingest.WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			atomic.AddInt64(dangling, 1)
		}
		atomic.AddInt64(inserted, n)
		return nil
	}
}

func jsonList[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PopulateSynsets replaces the synsets: pass 1 inserts the synsets, pass 2
// their relations. Relations to unknown synsets are counted and skipped.
func (s *Store) PopulateSynsets(ctx context.Context, synsets map[string]*lexicon.WordnetSynset) (SynsetStats, error) {
	var stats SynsetStats
	if _, err := s.db.ExecContext(ctx, `DELETE FROM synset_relations`); err != nil {
		return stats, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM synsets`); err != nil {
		return stats, err
	}
	ids := sortedKeys(synsets)

	err := s.pass(ctx, "synsets", func(bw *ingest.BatchWriter) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			ss := synsets[id]
			var ili interface{}
			if ss.ILI != "" {
				ili = ss.ILI
			}
			if err := bw.Submit(exec(
				`INSERT INTO synsets (id, pos, definition, definitions, members, ili) VALUES (?, ?, ?, ?, ?, ?)`,
				id, ss.PartOfSpeech, ss.Gloss(), jsonList(ss.Definition), jsonList(ss.Members), ili,
			)); err != nil {
				return err
			}
			stats.Synsets++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = s.pass(ctx, "synset relations", func(bw *ingest.BatchWriter) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, rel := range synsets[id].Relations() {
				if err := bw.Submit(execCount(&stats.Relations, &stats.Dangling,
					`INSERT OR IGNORE INTO synset_relations (synset_id, type, target_id)
					 SELECT ?, ?, id FROM synsets WHERE id = ?`,
					id, rel.Type, rel.Target,
				)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	s.log.Info("populated synsets", "synsets", stats.Synsets, "relations", stats.Relations, "dangling", stats.Dangling)
	return stats, nil
}

// PopulateWords replaces the words: pass 1 inserts words and their
// per-POS data, pass 2 the senses, pass 3 sense relations and verb frames.
// Each pass finds the ids of the previous one by natural key.
func (s *Store) PopulateWords(ctx context.Context, entries lexicon.CompiledEntries) (WordStats, error) {
	var stats WordStats
	for _, table := range []string{"sense_frames", "sense_relations", "senses", "word_pos", "words"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return stats, err
		}
	}
	words := lexicon.SortedWords(entries)

	err := s.pass(ctx, "words", func(bw *ingest.BatchWriter) error {
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := entries[w]
			if err := bw.Submit(exec(`INSERT INTO words (word, is_anglish) VALUES (?, ?)`, w, entry.IsAnglish)); err != nil {
				return err
			}
			stats.Words++
			for _, pos := range sortedKeys(entry.POS) {
				p := entry.POS[pos]
				if err := bw.Submit(exec(
					`INSERT INTO word_pos (word_id, pos, pronunciation, rhyme, forms, sounds, origins)
					 SELECT id, ?, ?, ?, ?, ?, ? FROM words WHERE word = ?`,
					pos, jsonList(p.Pronunciation), p.Rhyme, jsonList(p.Forms), jsonList(p.Sounds), jsonList(p.Origins), w,
				)); err != nil {
					return err
				}
				stats.POS++
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = s.pass(ctx, "senses", func(bw *ingest.BatchWriter) error {
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := entries[w]
			for _, pos := range sortedKeys(entry.POS) {
				for i, sense := range entry.POS[pos].Senses {
					if err := bw.Submit(exec(
						`INSERT INTO senses (word_pos_id, position, sense_key, synset_id, english, source)
						 SELECT wp.id, ?, ?, ?, ?, ? FROM word_pos wp JOIN words w ON w.id = wp.word_id
						 WHERE w.word = ? AND wp.pos = ?`,
						i, nullable(sense.ID), nullable(sense.Synset), nullable(sense.English), nullable(string(sense.Source)), w, pos,
					)); err != nil {
						return err
					}
					stats.Senses++
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = s.pass(ctx, "sense relations", func(bw *ingest.BatchWriter) error {
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := entries[w]
			for _, pos := range sortedKeys(entry.POS) {
				for _, sense := range entry.POS[pos].Senses {
					if sense.ID == "" {
						continue
					}
					for _, rel := range sense.Relations() {
						if err := bw.Submit(execCount(&stats.Relations, &stats.Dangling,
							`INSERT OR IGNORE INTO sense_relations (sense_id, type, target_id)
							 SELECT s.id, ?, t.id FROM senses s, senses t WHERE s.sense_key = ? AND t.sense_key = ?`,
							rel.Type, sense.ID, rel.Target,
						)); err != nil {
							return err
						}
					}
					for _, frame := range sense.Subcat {
						var ignored int64
						if err := bw.Submit(execCount(&stats.Frames, &ignored,
							`INSERT OR IGNORE INTO sense_frames (sense_id, frame) SELECT id, ? FROM senses WHERE sense_key = ?`,
							frame, sense.ID,
						)); err != nil {
							return err
						}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	s.log.Info("populated words",
		"words", stats.Words, "pos", stats.POS, "senses", stats.Senses,
		"relations", stats.Relations, "frames", stats.Frames, "dangling", stats.Dangling)
	return stats, nil
}

// nullable returns nil for "" else the value.
func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// GetWord returns the word row for word.
func GetWord(db DBExecutor, word string) (Word, error) {
	var w Word
	err := db.QueryRow(`SELECT id, word, is_anglish FROM words WHERE word = ?`, word).Scan(&w.ID, &w.Word, &w.IsAnglish)
	if err != nil {
		return Word{}, err
	}
	return w, nil
}

// GetWordPOS returns the per-POS rows of a word, ordered by POS.
func GetWordPOS(db DBExecutor, wordID int64) ([]WordPOS, error) {
	rows, err := db.Query(`SELECT id, word_id, pos, pronunciation, rhyme, forms, sounds, origins FROM word_pos WHERE word_id = ? ORDER BY pos`, wordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WordPOS
	for rows.Next() {
		var p WordPOS
		if err := rows.Scan(&p.ID, &p.WordID, &p.POS, &p.Pronunciation, &p.Rhyme, &p.Forms, &p.Sounds, &p.Origins); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSenses returns the senses of a word under pos, in order.
func GetSenses(db DBExecutor, wordID int64, pos string) ([]Sense, error) {
	rows, err := db.Query(`SELECT s.id, s.word_pos_id, s.position, s.sense_key, s.synset_id, s.english, s.source
		FROM senses s JOIN word_pos wp ON wp.id = s.word_pos_id
		WHERE wp.word_id = ? AND wp.pos = ? ORDER BY s.position`, wordID, pos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sense
	for rows.Next() {
		var s Sense
		var key, synset, english, source sql.NullString
		if err := rows.Scan(&s.ID, &s.WordPOSID, &s.Position, &key, &synset, &english, &source); err != nil {
			return nil, err
		}
		if key.Valid {
			s.SenseKey = key.String
		}
		if synset.Valid {
			s.SynsetID = synset.String
		}
		if english.Valid {
			s.English = english.String
		}
		if source.Valid {
			s.Source = source.String
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSynset returns a synset row.
func GetSynset(db DBExecutor, id string) (Synset, error) {
	var s Synset
	var ili sql.NullString
	err := db.QueryRow(`SELECT id, pos, definition, definitions, members, ili FROM synsets WHERE id = ?`, id).
		Scan(&s.ID, &s.POS, &s.Definition, &s.Definitions, &s.Members, &ili)
	if err != nil {
		return Synset{}, err
	}
	if ili.Valid {
		s.ILI = ili.String
	}
	return s, nil
}

// CountRows returns the number of rows of table.
func CountRows(db DBExecutor, table string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
	return n, err
}
