// Package pgstore implements port.HistoryStore against Postgres via bun,
// as an alternate backend to the sqlite-based history package — for
// deployments that want run history centralized rather than local to the
// machine that ran `policyproof prove`.
package pgstore

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/policyproof/policyproof/internal/apperr"
	"github.com/policyproof/policyproof/internal/port"
)

// Store is a Postgres-backed port.HistoryStore.
type Store struct {
	db *bun.DB
}

// Open connects to dsn and returns a Store. It does not verify
// connectivity: the first query (such as InitSchema) is the first call
// that reaches the server.
func Open(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}
}

// RunModel is the bun row model backing a port.RunRecord.
type RunModel struct {
	bun.BaseModel `bun:"table:policyproof_runs,alias:r"`

	ID          int64  `bun:"id,pk,autoincrement"`
	PolicyName  string `bun:"policy_name,notnull"`
	PolicyHash  string `bun:"policy_hash,notnull"`
	VerdictJSON string `bun:"verdict_json,notnull"`
	ArtifactSHA string `bun:"artifact_sha,notnull"`
	Command     string `bun:"command,notnull"`
}

func (m *RunModel) toRecord() port.RunRecord {
	return port.RunRecord{
		ID:          m.ID,
		PolicyName:  m.PolicyName,
		PolicyHash:  m.PolicyHash,
		VerdictJSON: m.VerdictJSON,
		ArtifactSHA: m.ArtifactSHA,
		Command:     m.Command,
	}
}

func newModel(r port.RunRecord) *RunModel {
	return &RunModel{
		PolicyName:  r.PolicyName,
		PolicyHash:  r.PolicyHash,
		VerdictJSON: r.VerdictJSON,
		ArtifactSHA: r.ArtifactSHA,
		Command:     r.Command,
	}
}

// InitSchema creates the runs table if it does not already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*RunModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return &apperr.LoaderError{Source: "pgstore", Cause: err}
	}
	return nil
}

// Append records one run, returning its assigned row id.
func (s *Store) Append(ctx context.Context, record port.RunRecord) (int64, error) {
	model := newModel(record)
	if _, err := s.db.NewInsert().Model(model).Returning("id").Exec(ctx); err != nil {
		return 0, &apperr.LoaderError{Source: "pgstore", Cause: err}
	}
	return model.ID, nil
}

// LastForPolicy returns the most recent run recorded for a given policy
// content hash, if any.
func (s *Store) LastForPolicy(ctx context.Context, policyHash string) (port.RunRecord, bool, error) {
	model := new(RunModel)
	err := s.db.NewSelect().Model(model).
		Where("policy_hash = ?", policyHash).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return port.RunRecord{}, false, nil
		}
		return port.RunRecord{}, false, &apperr.LoaderError{Source: "pgstore", Cause: err}
	}
	return model.toRecord(), true, nil
}

// Recent returns up to limit runs for policyName, most recent first.
func (s *Store) Recent(ctx context.Context, policyName string, limit int) ([]port.RunRecord, error) {
	var models []RunModel
	err := s.db.NewSelect().Model(&models).
		Where("policy_name = ?", policyName).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, &apperr.LoaderError{Source: "pgstore", Cause: err}
	}
	out := make([]port.RunRecord, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
