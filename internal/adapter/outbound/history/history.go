// Package history implements port.HistoryStore against a local SQLite
// database (pure-Go driver, modernc.org/sqlite), recording every
// prove/compile invocation. No CLI command reads the records back;
// LastForPolicy and Recent are the store's query side.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/port"
)

// Store is a SQLite-backed port.HistoryStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &apperr.LoaderError{Source: "history", Cause: err}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, &apperr.LoaderError{Source: "history", Cause: err}
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	policy_name TEXT NOT NULL,
	policy_hash TEXT NOT NULL,
	verdict_json TEXT NOT NULL,
	artifact_sha TEXT NOT NULL DEFAULT '',
	command TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_policy_hash ON runs(policy_hash);
CREATE INDEX IF NOT EXISTS idx_runs_policy_name ON runs(policy_name);
`

// Append records one run, returning its assigned row id.
func (s *Store) Append(ctx context.Context, record port.RunRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (policy_name, policy_hash, verdict_json, artifact_sha, command) VALUES (?, ?, ?, ?, ?)`,
		record.PolicyName, record.PolicyHash, record.VerdictJSON, record.ArtifactSHA, record.Command,
	)
	if err != nil {
		return 0, &apperr.LoaderError{Source: "history", Cause: err}
	}
	return res.LastInsertId()
}

// LastForPolicy returns the most recent run recorded for a given policy
// content hash, if any.
func (s *Store) LastForPolicy(ctx context.Context, policyHash string) (port.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, policy_name, policy_hash, verdict_json, artifact_sha, command FROM runs WHERE policy_hash = ? ORDER BY id DESC LIMIT 1`,
		policyHash,
	)
	var r port.RunRecord
	if err := row.Scan(&r.ID, &r.PolicyName, &r.PolicyHash, &r.VerdictJSON, &r.ArtifactSHA, &r.Command); err != nil {
		if err == sql.ErrNoRows {
			return port.RunRecord{}, false, nil
		}
		return port.RunRecord{}, false, &apperr.LoaderError{Source: "history", Cause: err}
	}
	return r, true, nil
}

// Recent returns up to limit runs for policyName, most recent first.
func (s *Store) Recent(ctx context.Context, policyName string, limit int) ([]port.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, policy_name, policy_hash, verdict_json, artifact_sha, command FROM runs WHERE policy_name = ? ORDER BY id DESC LIMIT ?`,
		policyName, limit,
	)
	if err != nil {
		return nil, &apperr.LoaderError{Source: "history", Cause: err}
	}
	defer rows.Close()

	var out []port.RunRecord
	for rows.Next() {
		var r port.RunRecord
		if err := rows.Scan(&r.ID, &r.PolicyName, &r.PolicyHash, &r.VerdictJSON, &r.ArtifactSHA, &r.Command); err != nil {
			return nil, &apperr.LoaderError{Source: "history", Cause: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
