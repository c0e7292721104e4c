package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skillsync/skillsync/internal/db"
	"github.com/skillsync/skillsync/internal/model"
)

// SyncConfigRepository persists the singleton scheduling config.
// Pure persistence: no scheduling logic lives here beyond the
// side-effect-free due-ness predicate.
type SyncConfigRepository struct {
	db *db.DB
}

// NewSyncConfigRepository creates the repository.
func NewSyncConfigRepository(d *db.DB) *SyncConfigRepository {
	return &SyncConfigRepository{db: d}
}

// ConfigPatch holds optional fields for UpdateConfig. Only non-nil
// fields are applied.
type ConfigPatch struct {
	Enabled   *bool
	Frequency *string
}

// GetConfig returns the current config, creating defaults on first
// access (enabled, daily).
func (r *SyncConfigRepository) GetConfig(ctx context.Context) (*model.SyncConfig, error) {
	cfg, err := r.read(ctx)
	if err == sql.ErrNoRows {
		def := &model.SyncConfig{
			Enabled:    true,
			Frequency:  model.FrequencyDaily,
			IntervalMS: model.IntervalForFrequency(model.FrequencyDaily).Milliseconds(),
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO sync_config (id, enabled, frequency, interval_ms, last_sync_at)
			 VALUES (1, 1, ?, ?, NULL)`,
			def.Frequency, def.IntervalMS)
		if err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		return def, nil
	}
	return cfg, err
}

// UpdateConfig merges the patch into the persisted config.
func (r *SyncConfigRepository) UpdateConfig(ctx context.Context, p ConfigPatch) (*model.SyncConfig, error) {
	cfg, err := r.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.Frequency != nil {
		if !model.ValidFrequencies[*p.Frequency] {
			return nil, fmt.Errorf("invalid frequency %q", *p.Frequency)
		}
		cfg.Frequency = *p.Frequency
		cfg.IntervalMS = model.IntervalForFrequency(cfg.Frequency).Milliseconds()
	}

	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE sync_config SET enabled = ?, frequency = ?, interval_ms = ? WHERE id = 1`,
		enabled, cfg.Frequency, cfg.IntervalMS)
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	return cfg, nil
}

// MarkSynced records a completed (or good-enough partial) run.
func (r *SyncConfigRepository) MarkSynced(ctx context.Context, t time.Time) error {
	if _, err := r.GetConfig(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_config SET last_sync_at = ? WHERE id = 1`,
		t.UTC().Format(time.RFC3339))
	return err
}

// Reset restores the default config. The singleton row is never
// deleted, only reset.
func (r *SyncConfigRepository) Reset(ctx context.Context) error {
	if _, err := r.GetConfig(ctx); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_config SET enabled = 1, frequency = ?, interval_ms = ?, last_sync_at = NULL WHERE id = 1`,
		model.FrequencyDaily, model.IntervalForFrequency(model.FrequencyDaily).Milliseconds())
	return err
}

// IsSyncDue reports whether a sync is due at the given instant:
// true when the config is enabled and either no sync has ever run or
// now - lastSyncAt >= interval. Manual frequency is never due.
func (r *SyncConfigRepository) IsSyncDue(ctx context.Context, now time.Time) (bool, error) {
	cfg, err := r.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.Enabled || cfg.Frequency == model.FrequencyManual {
		return false, nil
	}
	if cfg.LastSyncAt == nil {
		return true, nil
	}
	interval := time.Duration(cfg.IntervalMS) * time.Millisecond
	return now.Sub(*cfg.LastSyncAt) >= interval, nil
}

func (r *SyncConfigRepository) read(ctx context.Context) (*model.SyncConfig, error) {
	var cfg model.SyncConfig
	var enabled int
	var lastSync sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT enabled, frequency, interval_ms, last_sync_at FROM sync_config WHERE id = 1`).
		Scan(&enabled, &cfg.Frequency, &cfg.IntervalMS, &lastSync)
	if err != nil {
		return nil, err
	}
	cfg.Enabled = enabled != 0
	if lastSync.Valid {
		t, err := time.Parse(time.RFC3339, lastSync.String)
		if err == nil {
			cfg.LastSyncAt = &t
		}
	}
	return &cfg, nil
}
