// Package history persists evaluation outcomes to a local SQLite log so
// operators can audit how a parameter set trended before deployment.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ariafx/session-validator/internal/scoring"
)

type Entry struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Source    string          `json:"source"`
	Score     float64         `json:"score"`
	RawScore  float64         `json:"raw_score"`
	Verdict   scoring.Verdict `json:"verdict"`
	Sessions  int             `json:"sessions"`
	Accepted  bool            `json:"accepted"`
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL,
	source TEXT NOT NULL,
	score REAL NOT NULL,
	raw_score REAL NOT NULL,
	verdict TEXT NOT NULL,
	sessions INTEGER NOT NULL,
	accepted INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

// Open opens (creating if needed) the evaluation log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one evaluation outcome.
func (s *Store) Record(e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO evaluations (created_at, source, score, raw_score, verdict, sessions, accepted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		createdAt, e.Source, e.Score, e.RawScore, string(e.Verdict), e.Sessions, boolToInt(e.Accepted),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, source, score, raw_score, verdict, sessions, accepted
		 FROM evaluations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var verdict string
		var accepted int
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Source, &e.Score, &e.RawScore, &verdict, &e.Sessions, &accepted); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Verdict = scoring.Verdict(verdict)
		e.Accepted = accepted != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
