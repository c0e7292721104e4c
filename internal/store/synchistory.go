package store

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/skillsync/skillsync/internal/db"
	"github.com/skillsync/skillsync/internal/model"
)

// SyncHistoryRepository is the append-only log of sync runs. Entries
// are created at run start, finalized once at run end, and never
// touched afterward.
type SyncHistoryRepository struct {
	db      *db.DB
	entropy *rand.Rand
}

// NewSyncHistoryRepository creates the repository.
func NewSyncHistoryRepository(d *db.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{
		db:      d,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewRunID mints a ULID run id.
func (r *SyncHistoryRepository) NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
}

// RecordStart inserts the entry for a run that has just begun.
func (r *SyncHistoryRepository) RecordStart(ctx context.Context, run *model.SyncRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_history (run_id, started_at, status) VALUES (?, ?, ?)`,
		run.RunID, run.StartedAt.UTC().Format(time.RFC3339), model.StatusRunning)
	return err
}

// Finalize writes the run's outcome. This is the single allowed
// mutation of a history row.
func (r *SyncHistoryRepository) Finalize(ctx context.Context, run *model.SyncRun) error {
	var finished *string
	if run.FinishedAt != nil {
		v := run.FinishedAt.UTC().Format(time.RFC3339)
		finished = &v
	}
	var errMsg *string
	if run.ErrorMessage != "" {
		errMsg = &run.ErrorMessage
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_history
		 SET finished_at = ?, status = ?, added = ?, updated = ?, unchanged = ?, failed = ?, error_message = ?
		 WHERE run_id = ?`,
		finished, run.Status, run.Added, run.Updated, run.Unchanged, run.Failed, errMsg, run.RunID)
	return err
}

// ListRecent returns the most recent runs, newest first.
func (r *SyncHistoryRepository) ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, status, added, updated, unchanged, failed, error_message
		 FROM sync_history ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		var run model.SyncRun
		var started string
		var finished, errMsg sql.NullString

		err := rows.Scan(&run.RunID, &started, &finished, &run.Status,
			&run.Added, &run.Updated, &run.Unchanged, &run.Failed, &errMsg)
		if err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			t, _ := time.Parse(time.RFC3339, finished.String)
			run.FinishedAt = &t
		}
		if errMsg.Valid {
			run.ErrorMessage = errMsg.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
