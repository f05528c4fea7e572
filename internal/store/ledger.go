package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/govtag/internal/model"
)

const timeLayout = time.RFC3339Nano

// Record appends a run to the ledger. Implements engine.Recorder.
// Uses ON CONFLICT(run_id) DO NOTHING so a retried write is a no-op.
func (s *Store) Record(ctx context.Context, rec model.RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, started_at, commit_sha, status, state, code, tag, version, tier, sinphase, threshold, checksum, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		rec.RunID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Commit,
		string(rec.Status),
		rec.State,
		string(rec.Code),
		rec.TagName,
		rec.Version,
		rec.Tier,
		rec.Sinphase,
		rec.Threshold,
		rec.Checksum,
		rec.DryRun,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT run_id, started_at, commit_sha, status, state, code, tag, version, tier, sinphase, threshold, checksum, dry_run
	FROM runs`

// List returns the most recent runs, newest first. limit <= 0 means all.
//
// Returns an empty slice (not nil) if the ledger is empty.
func (s *Store) List(ctx context.Context, limit int) ([]model.RunRecord, error) {
	query := selectRuns + ` ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindByTag returns the run that created tag. Dry runs never match.
// The bool is false if no such run was recorded.
func (s *Store) FindByTag(ctx context.Context, tag string) (model.RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+`
		WHERE tag = ? AND status != 'fatal' AND dry_run = 0
		ORDER BY seq DESC
		LIMIT 1
	`, tag)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, false, nil
	}
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.RunRecord, error) {
	var (
		rec       model.RunRecord
		startedAt string
		status    string
		code      string
	)
	err := sc.Scan(
		&rec.RunID,
		&startedAt,
		&rec.Commit,
		&status,
		&rec.State,
		&code,
		&rec.TagName,
		&rec.Version,
		&rec.Tier,
		&rec.Sinphase,
		&rec.Threshold,
		&rec.Checksum,
		&rec.DryRun,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}

	rec.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return rec, fmt.Errorf("scan run %s: started_at: %w", rec.RunID, err)
	}
	rec.Status = model.Status(status)
	rec.Code = model.ErrorCode(code)
	return rec, nil
}
