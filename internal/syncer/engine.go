// Package syncer reconciles the local skill cache with the remote
// registry: the Engine performs one bounded fetch-diff-apply pass, the
// Service schedules passes in the background.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/skillsync/skillsync/internal/embedding"
	"github.com/skillsync/skillsync/internal/model"
	"github.com/skillsync/skillsync/internal/registry"
	"github.com/skillsync/skillsync/internal/store"
	"github.com/skillsync/skillsync/internal/vectorstore"
)

const defaultPageSize = 100

// RegistryClient fetches skill descriptor pages.
type RegistryClient interface {
	ListSkills(ctx context.Context, page, perPage int) (*registry.Page, error)
}

// Options tunes one reconciliation pass.
type Options struct {
	PageSize int
}

// Engine performs reconciliation passes. Vectors and embedder are
// optional: without them the engine syncs metadata only.
type Engine struct {
	registry RegistryClient
	skills   *store.SkillRepository
	config   *store.SyncConfigRepository
	history  *store.SyncHistoryRepository
	vectors  *vectorstore.Store
	embedder embedding.Embedder
	now      func() time.Time
}

// NewEngine wires the engine. vectors and embedder may be nil.
func NewEngine(
	rc RegistryClient,
	skills *store.SkillRepository,
	config *store.SyncConfigRepository,
	history *store.SyncHistoryRepository,
	vectors *vectorstore.Store,
	embedder embedding.Embedder,
) *Engine {
	return &Engine{
		registry: rc,
		skills:   skills,
		config:   config,
		history:  history,
		vectors:  vectors,
		embedder: embedder,
		now:      time.Now,
	}
}

// Sync runs one reconciliation pass. It never panics or leaks network
// errors to the caller: every outcome, including total failure, is a
// SyncResult. Pages are applied transactionally one at a time, so a
// fetch failure midway leaves previously committed pages intact.
//
// lastSyncAt advances when the run completed, or when at least one
// page was applied (good-enough partial); a run that applied nothing
// leaves it untouched so the next due-check retries promptly.
func (e *Engine) Sync(ctx context.Context, opts Options) *model.SyncResult {
	start := e.now()
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	run := &model.SyncRun{RunID: e.history.NewRunID(), StartedAt: start}
	if err := e.history.RecordStart(ctx, run); err != nil {
		// A storage failure this early is not recoverable by retrying
		// pages; report and bail.
		return e.finish(ctx, run, start, &model.SyncResult{Err: "record run: " + err.Error()}, 0)
	}

	result := &model.SyncResult{}

	localHashes, err := e.skills.HashesByID(ctx)
	if err != nil {
		result.Err = "read local skills: " + err.Error()
		return e.finish(ctx, run, start, result, 0)
	}

	seen := make(map[string]bool, len(localHashes))
	pagesApplied := 0

	for page := 1; ; page++ {
		p, err := e.registry.ListSkills(ctx, page, pageSize)
		if err != nil {
			// Transient by definition: recorded, retried on the next
			// scheduled tick, never thrown at the scheduler.
			result.Err = err.Error()
			slog.Warn("sync fetch failed", "page", page, "error", err)
			break
		}

		if err := e.applyPage(ctx, p.Skills, seen, localHashes, result); err != nil {
			result.Err = err.Error()
			break
		}
		pagesApplied++

		if page >= p.TotalPages {
			result.Completed = true
			break
		}
	}

	// Deletions need a complete view of the remote catalog: pruning on
	// a partial enumeration would drop skills that merely fell on an
	// unfetched page.
	if result.Completed {
		stale, err := e.skills.DeleteNotIn(ctx, seen)
		if err != nil {
			result.Err = "prune stale skills: " + err.Error()
			result.Completed = false
		} else {
			result.SkillsRemoved = len(stale)
			if e.vectors != nil {
				for _, id := range stale {
					if _, err := e.vectors.RemoveEmbedding(ctx, id); err != nil {
						slog.Warn("remove embedding failed", "skill", id, "error", err)
					}
				}
			}
		}
	}

	result.Success = result.Completed && result.Err == ""
	return e.finish(ctx, run, start, result, pagesApplied)
}

// applyPage classifies and applies one page inside a single metadata
// transaction, then updates vectors for added/updated skills.
func (e *Engine) applyPage(ctx context.Context, descriptors []registry.SkillDescriptor,
	seen map[string]bool, localHashes map[string]string, result *model.SyncResult) error {

	now := e.now().UTC()
	var changed []model.Skill

	for _, d := range descriptors {
		seen[d.ID] = true
		local, exists := localHashes[d.ID]
		switch {
		case !exists:
			result.SkillsAdded++
		case local != d.ContentHash:
			result.SkillsUpdated++
		default:
			result.SkillsUnchanged++
			continue
		}
		localHashes[d.ID] = d.ContentHash
		changed = append(changed, model.Skill{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			ContentHash: d.ContentHash,
			Version:     d.Version,
			Tags:        d.Tags,
			UpdatedAt:   d.UpdatedAt,
			SyncedAt:    now,
		})
	}

	if err := e.skills.UpsertBatch(ctx, changed); err != nil {
		return err
	}

	if e.vectors != nil && e.embedder != nil {
		for _, s := range changed {
			if err := e.embedSkill(ctx, s); err != nil {
				// One bad embedding never aborts the run.
				result.SkillsFailed++
				slog.Warn("embed skill failed", "skill", s.ID, "error", err)
			}
		}
	}
	return nil
}

func (e *Engine) embedSkill(ctx context.Context, s model.Skill) error {
	text := s.Name + "\n" + s.Description
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return e.vectors.StoreEmbedding(ctx, s.ID, vec, text)
}

// finish finalizes the history entry, advances lastSyncAt when earned,
// and stamps the duration.
func (e *Engine) finish(ctx context.Context, run *model.SyncRun, start time.Time,
	result *model.SyncResult, pagesApplied int) *model.SyncResult {

	end := e.now()
	result.DurationMS = end.Sub(start).Milliseconds()

	if result.Completed || pagesApplied > 0 {
		if err := e.config.MarkSynced(ctx, end); err != nil {
			slog.Warn("mark synced failed", "error", err)
		}
	}

	run.FinishedAt = &end
	run.Added = result.SkillsAdded
	run.Updated = result.SkillsUpdated
	run.Unchanged = result.SkillsUnchanged
	run.Failed = result.SkillsFailed
	run.ErrorMessage = result.Err
	switch {
	case result.Success && result.SkillsFailed == 0:
		run.Status = model.StatusSuccess
	case pagesApplied > 0 || result.Completed:
		run.Status = model.StatusPartial
	default:
		run.Status = model.StatusFailure
	}
	if err := e.history.Finalize(ctx, run); err != nil {
		slog.Warn("finalize run failed", "run", run.RunID, "error", err)
	}

	slog.Info("sync finished",
		"run", run.RunID,
		"status", run.Status,
		"added", result.SkillsAdded,
		"updated", result.SkillsUpdated,
		"unchanged", result.SkillsUnchanged,
		"removed", result.SkillsRemoved,
		"failed", result.SkillsFailed,
		"duration_ms", result.DurationMS)
	return result
}
