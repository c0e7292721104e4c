package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skillsync/skillsync/internal/db"
	"github.com/skillsync/skillsync/internal/model"
)

// SkillRepository persists cached skill metadata.
type SkillRepository struct {
	db *db.DB
}

// NewSkillRepository creates a repository over an opened database.
func NewSkillRepository(d *db.DB) *SkillRepository {
	return &SkillRepository{db: d}
}

// UpsertBatch applies adds/updates in a single transaction so a
// failure midway leaves the page unapplied as a whole. Rows whose
// content hash already matches are skipped entirely (no timestamp
// churn for unchanged skills).
func (r *SkillRepository) UpsertBatch(ctx context.Context, skills []model.Skill) error {
	if len(skills) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range skills {
		var existingHash string
		err := tx.QueryRowContext(ctx,
			`SELECT content_hash FROM skills WHERE id = ?`, s.ID).Scan(&existingHash)
		if err == nil && existingHash == s.ContentHash {
			continue
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("check skill %s: %w", s.ID, err)
		}

		var tagsJSON *string
		if len(s.Tags) > 0 {
			b, _ := json.Marshal(s.Tags)
			v := string(b)
			tagsJSON = &v
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO skills (id, name, description, content_hash, version, tags, updated_at, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   description = excluded.description,
			   content_hash = excluded.content_hash,
			   version = excluded.version,
			   tags = excluded.tags,
			   updated_at = excluded.updated_at,
			   synced_at = excluded.synced_at`,
			s.ID, s.Name, s.Description, s.ContentHash, s.Version, tagsJSON,
			s.UpdatedAt.UTC().Format(time.RFC3339), s.SyncedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("upsert skill %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// Get returns one skill by id, or nil if absent.
func (r *SkillRepository) Get(ctx context.Context, id string) (*model.Skill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, content_hash, version, tags, updated_at, synced_at
		 FROM skills WHERE id = ?`, id)
	s, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns skills ordered by name.
func (r *SkillRepository) List(ctx context.Context, limit int) ([]model.Skill, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, content_hash, version, tags, updated_at, synced_at
		 FROM skills ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// HashesByID returns the full id -> content_hash map used by the sync
// engine to classify remote descriptors.
func (r *SkillRepository) HashesByID(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, content_hash FROM skills`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}

// Delete removes a skill row. Returns false if the id was absent.
func (r *SkillRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteNotIn removes skills absent from keep and returns their ids.
// Used after a completed full enumeration of the registry.
func (r *SkillRepository) DeleteNotIn(ctx context.Context, keep map[string]bool) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM skills`)
	if err != nil {
		return nil, err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range stale {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete skill %s: %w", id, err)
		}
	}
	return stale, nil
}

// Count returns the number of cached skills.
func (r *SkillRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM skills`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSkill(row scanner) (model.Skill, error) {
	var s model.Skill
	var tagsJSON sql.NullString
	var updatedAt, syncedAt string

	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.ContentHash, &s.Version,
		&tagsJSON, &updatedAt, &syncedAt)
	if err != nil {
		return s, err
	}

	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	s.SyncedAt, _ = time.Parse(time.RFC3339, syncedAt)
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &s.Tags)
	}
	return s, nil
}

// SearchText returns skills whose name or description contains the
// query substring. Keyword complement to vector search; used by the
// CLI when no embedder is configured.
func (r *SkillRepository) SearchText(ctx context.Context, query string, limit int) ([]model.Skill, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + strings.ToLower(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, content_hash, version, tags, updated_at, synced_at
		 FROM skills
		 WHERE lower(name) LIKE ? OR lower(description) LIKE ?
		 ORDER BY name LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}
