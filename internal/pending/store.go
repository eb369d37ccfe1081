// Package pending provides SQLite-backed storage for proofs awaiting a
// Bitcoin attestation: every digest stamped through a calendar is kept
// here until Upgrade confirms it, so a daemon can retry upgrades across
// restarts without resubmitting to a calendar.
package pending

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_proofs (
    digest          BLOB PRIMARY KEY,
    algo            INTEGER NOT NULL,
    steps           BLOB NOT NULL,
    submitted_at    INTEGER NOT NULL,
    last_checked_at INTEGER,
    attempts        INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pending_submitted ON pending_proofs(submitted_at);
`

// Record is one digest's pending proof and its upgrade-polling state.
type Record struct {
	Digest        [32]byte
	Algo          ops.HashOp
	Steps         proof.Steps
	SubmittedAt   int64
	LastCheckedAt *int64
	Attempts      int
}

// Store is the SQLite-backed pending-proof cache.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("pending: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("pending: open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pending: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put inserts or replaces the pending record for digest.
func (s *Store) Put(r Record) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pending_proofs (digest, algo, steps, submitted_at, last_checked_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Digest[:], byte(r.Algo), r.Steps.Bytes(), r.SubmittedAt, r.LastCheckedAt, r.Attempts,
	)
	if err != nil {
		return fmt.Errorf("pending: put record: %w", err)
	}
	return nil
}

// Get retrieves the pending record for digest, or nil if none exists.
func (s *Store) Get(digest [32]byte) (*Record, error) {
	var r Record
	var rawDigest, stepsBytes []byte
	var algo byte

	err := s.db.QueryRow(`
		SELECT digest, algo, steps, submitted_at, last_checked_at, attempts
		FROM pending_proofs WHERE digest = ?`, digest[:],
	).Scan(&rawDigest, &algo, &stepsBytes, &r.SubmittedAt, &r.LastCheckedAt, &r.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pending: get record: %w", err)
	}

	steps, err := decodeSteps(stepsBytes)
	if err != nil {
		return nil, err
	}

	copy(r.Digest[:], rawDigest)
	r.Algo = ops.HashOp(algo)
	r.Steps = steps
	return &r, nil
}

// ListAll returns every pending record, oldest submission first.
func (s *Store) ListAll() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT digest, algo, steps, submitted_at, last_checked_at, attempts
		FROM pending_proofs ORDER BY submitted_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("pending: list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var rawDigest, stepsBytes []byte
		var algo byte

		if err := rows.Scan(&rawDigest, &algo, &stepsBytes, &r.SubmittedAt, &r.LastCheckedAt, &r.Attempts); err != nil {
			return nil, fmt.Errorf("pending: scan record: %w", err)
		}

		steps, err := decodeSteps(stepsBytes)
		if err != nil {
			return nil, err
		}

		copy(r.Digest[:], rawDigest)
		r.Algo = ops.HashOp(algo)
		r.Steps = steps
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending: iterate records: %w", err)
	}
	return out, nil
}

// Touch updates a record's polling state after an upgrade attempt.
func (s *Store) Touch(digest [32]byte, checkedAt int64, steps proof.Steps) error {
	_, err := s.db.Exec(`
		UPDATE pending_proofs
		SET steps = ?, last_checked_at = ?, attempts = attempts + 1
		WHERE digest = ?`,
		steps.Bytes(), checkedAt, digest[:],
	)
	if err != nil {
		return fmt.Errorf("pending: touch record: %w", err)
	}
	return nil
}

// Delete removes digest's pending record, typically once it has been
// confirmed and no longer needs polling.
func (s *Store) Delete(digest [32]byte) error {
	if _, err := s.db.Exec(`DELETE FROM pending_proofs WHERE digest = ?`, digest[:]); err != nil {
		return fmt.Errorf("pending: delete record: %w", err)
	}
	return nil
}

func decodeSteps(b []byte) (proof.Steps, error) {
	steps, err := proof.Deserialize(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("pending: decode steps: %w", err)
	}
	return steps, nil
}
