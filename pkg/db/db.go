package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS synsets (
	id TEXT PRIMARY KEY,
	pos TEXT NOT NULL,
	definition TEXT NOT NULL DEFAULT '',
	definitions TEXT NOT NULL DEFAULT '[]',
	members TEXT NOT NULL DEFAULT '[]',
	ili TEXT
);

CREATE TABLE IF NOT EXISTS synset_relations (
	synset_id TEXT NOT NULL REFERENCES synsets(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	target_id TEXT NOT NULL REFERENCES synsets(id) ON DELETE CASCADE,
	PRIMARY KEY (synset_id, type, target_id)
);

CREATE TABLE IF NOT EXISTS words (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	word TEXT NOT NULL UNIQUE,
	is_anglish INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS word_pos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	word_id INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
	pos TEXT NOT NULL,
	pronunciation TEXT NOT NULL DEFAULT '[]',
	rhyme TEXT NOT NULL DEFAULT '',
	forms TEXT NOT NULL DEFAULT '[]',
	sounds TEXT NOT NULL DEFAULT '[]',
	origins TEXT NOT NULL DEFAULT '[]',
	UNIQUE (word_id, pos)
);

CREATE TABLE IF NOT EXISTS senses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	word_pos_id INTEGER NOT NULL REFERENCES word_pos(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	sense_key TEXT UNIQUE,
	synset_id TEXT REFERENCES synsets(id),
	english TEXT,
	source TEXT,
	UNIQUE (word_pos_id, position)
);

CREATE INDEX IF NOT EXISTS idx_senses_synset ON senses(synset_id);

CREATE TABLE IF NOT EXISTS sense_relations (
	sense_id INTEGER NOT NULL REFERENCES senses(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	target_id INTEGER NOT NULL REFERENCES senses(id) ON DELETE CASCADE,
	PRIMARY KEY (sense_id, type, target_id)
);

CREATE TABLE IF NOT EXISTS sense_frames (
	sense_id INTEGER NOT NULL REFERENCES senses(id) ON DELETE CASCADE,
	frame TEXT NOT NULL,
	PRIMARY KEY (sense_id, frame)
);
`

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Open opens the SQLite database at path, checks the connection and runs
// the migrations.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	switch {
	case path == ":memory:":
		dsn = path
	case strings.Contains(path, "?"):
		dsn = path + "&_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting per connection.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if err := InitDB(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return conn, nil
}
