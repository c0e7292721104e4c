package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillsync/skillsync/internal/db"
	"github.com/skillsync/skillsync/internal/model"
	"github.com/skillsync/skillsync/internal/registry"
	"github.com/skillsync/skillsync/internal/store"
	"github.com/skillsync/skillsync/internal/vectorstore"
)

// fakeRegistry serves canned pages and can fail a specific page.
type fakeRegistry struct {
	pages    [][]registry.SkillDescriptor
	failPage int // 1-based, 0 = never fail
	calls    int
}

func (f *fakeRegistry) ListSkills(ctx context.Context, page, perPage int) (*registry.Page, error) {
	f.calls++
	if f.failPage != 0 && page == f.failPage {
		return nil, errors.New("registry unreachable")
	}
	if page < 1 || page > len(f.pages) {
		return &registry.Page{Page: page, TotalPages: len(f.pages)}, nil
	}
	return &registry.Page{
		Skills:     f.pages[page-1],
		Page:       page,
		TotalPages: len(f.pages),
	}, nil
}

type testEnv struct {
	skills  *store.SkillRepository
	config  *store.SyncConfigRepository
	history *store.SyncHistoryRepository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := store.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return testEnv{
		skills:  store.NewSkillRepository(d),
		config:  store.NewSyncConfigRepository(d),
		history: store.NewSyncHistoryRepository(d),
	}
}

func descriptor(id, hash string) registry.SkillDescriptor {
	return registry.SkillDescriptor{
		ID:          id,
		Name:        "Skill " + id,
		Description: "description of " + id,
		ContentHash: hash,
		UpdatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSyncAddsSkills(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
		{descriptor("c", "h3")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)

	result := e.Sync(ctx, Options{})
	if !result.Success || !result.Completed {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.SkillsAdded != 3 || result.SkillsUpdated != 0 || result.SkillsUnchanged != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}

	n, _ := env.skills.Count(ctx)
	if n != 3 {
		t.Errorf("expected 3 cached skills, got %d", n)
	}

	cfg, _ := env.config.GetConfig(ctx)
	if cfg.LastSyncAt == nil {
		t.Error("expected lastSyncAt set after completed sync")
	}

	runs, _ := env.history.ListRecent(ctx, 1)
	if len(runs) != 1 || runs[0].Status != model.StatusSuccess {
		t.Errorf("expected one success run, got %v", runs)
	}
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)

	e.Sync(ctx, Options{})
	result := e.Sync(ctx, Options{})

	if result.SkillsAdded != 0 || result.SkillsUpdated != 0 {
		t.Errorf("second sync changed skills: %+v", result)
	}
	if result.SkillsUnchanged != 2 {
		t.Errorf("expected 2 unchanged, got %d", result.SkillsUnchanged)
	}
}

func TestSyncDetectsUpdates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)
	e.Sync(ctx, Options{})

	// Content changed upstream for a only.
	reg.pages[0][0] = descriptor("a", "h1-revised")
	result := e.Sync(ctx, Options{})

	if result.SkillsUpdated != 1 || result.SkillsUnchanged != 1 || result.SkillsAdded != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}

	got, _ := env.skills.Get(ctx, "a")
	if got.ContentHash != "h1-revised" {
		t.Errorf("expected updated hash, got %q", got.ContentHash)
	}
}

func TestSyncPartialOnFetchFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{
		pages: [][]registry.SkillDescriptor{
			{descriptor("a", "h1")},
			{descriptor("b", "h2")},
		},
		failPage: 2,
	}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)

	result := e.Sync(ctx, Options{})
	if result.Success || result.Completed {
		t.Fatalf("expected partial failure, got %+v", result)
	}
	if result.Err == "" {
		t.Error("expected error message")
	}
	if result.SkillsAdded != 1 {
		t.Errorf("expected page 1 applied, got %+v", result)
	}

	// Page 1 committed despite the page 2 failure.
	got, _ := env.skills.Get(ctx, "a")
	if got == nil {
		t.Fatal("expected skill a from applied page")
	}

	// One applied page is good enough to advance the schedule.
	cfg, _ := env.config.GetConfig(ctx)
	if cfg.LastSyncAt == nil {
		t.Error("expected lastSyncAt set after partial sync")
	}

	runs, _ := env.history.ListRecent(ctx, 1)
	if runs[0].Status != model.StatusPartial {
		t.Errorf("expected partial status, got %q", runs[0].Status)
	}
}

func TestSyncTotalFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{
		pages:    [][]registry.SkillDescriptor{{descriptor("a", "h1")}},
		failPage: 1,
	}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)

	result := e.Sync(ctx, Options{})
	if result.Success || result.Err == "" {
		t.Fatalf("expected failure, got %+v", result)
	}

	// Nothing applied: the schedule must not advance.
	cfg, _ := env.config.GetConfig(ctx)
	if cfg.LastSyncAt != nil {
		t.Error("expected lastSyncAt untouched after total failure")
	}

	runs, _ := env.history.ListRecent(ctx, 1)
	if runs[0].Status != model.StatusFailure {
		t.Errorf("expected failure status, got %q", runs[0].Status)
	}
}

func TestSyncPrunesRemovedSkills(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)
	e.Sync(ctx, Options{})

	// b disappeared from the catalog.
	reg.pages[0] = []registry.SkillDescriptor{descriptor("a", "h1")}
	result := e.Sync(ctx, Options{})

	if result.SkillsRemoved != 1 {
		t.Errorf("expected 1 removed, got %+v", result)
	}
	got, _ := env.skills.Get(ctx, "b")
	if got != nil {
		t.Error("expected b pruned")
	}
}

func TestSyncPrunesEmbeddingsWithSkills(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	vs := newTestVectors(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, vs, &stubEmbedder{dims: 4})
	e.Sync(ctx, Options{})

	if vs.Stats().VectorCount != 2 {
		t.Fatalf("expected 2 embeddings before prune, got %d", vs.Stats().VectorCount)
	}

	// b left the catalog: its metadata and its embedding both go.
	reg.pages[0] = []registry.SkillDescriptor{descriptor("a", "h1")}
	result := e.Sync(ctx, Options{})

	if result.SkillsRemoved != 1 {
		t.Fatalf("expected 1 removed, got %+v", result)
	}
	if vs.Stats().VectorCount != 1 {
		t.Errorf("expected 1 embedding after prune, got %d", vs.Stats().VectorCount)
	}
	vec, _ := vs.GetEmbedding(ctx, "b")
	if vec != nil {
		t.Error("expected b's embedding deleted")
	}
}

func TestSyncDoesNotPruneOnPartial(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1")},
		{descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)
	e.Sync(ctx, Options{})

	// b's page fails this time; it must survive locally.
	reg.failPage = 2
	result := e.Sync(ctx, Options{})

	if result.SkillsRemoved != 0 {
		t.Errorf("expected no pruning on partial sync, got %+v", result)
	}
	got, _ := env.skills.Get(ctx, "b")
	if got == nil {
		t.Error("expected b kept after partial enumeration")
	}
}

// stubEmbedder returns a fixed vector per text hash position.
type stubEmbedder struct {
	dims int
	fail bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("embedder down")
	}
	vec := make([]float32, s.dims)
	for i, r := range text {
		vec[i%s.dims] += float32(r) / 1000
	}
	return vec, nil
}

func (s *stubEmbedder) Dims() int { return s.dims }

func newTestVectors(t *testing.T) *vectorstore.Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "vec.db"))
	if err != nil {
		t.Fatalf("open vec db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	vs, err := vectorstore.Open(context.Background(), d, vectorstore.Options{
		Dimensions: 4, M: 16, EfConstruction: 200, EfSearch: 50, MaxElements: 100, UseHNSW: true,
	})
	if err != nil {
		t.Fatalf("open vectors: %v", err)
	}
	return vs
}

func TestSyncEmbedsChangedSkills(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	vs := newTestVectors(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, vs, &stubEmbedder{dims: 4})

	result := e.Sync(ctx, Options{})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if vs.Stats().VectorCount != 2 {
		t.Errorf("expected 2 embeddings, got %d", vs.Stats().VectorCount)
	}

	// Unchanged skills are not re-embedded.
	vec1, _ := vs.GetEmbedding(ctx, "a")
	e.Sync(ctx, Options{})
	vec2, _ := vs.GetEmbedding(ctx, "a")
	for i := range vec1 {
		if vec1[i] != vec2[i] {
			t.Fatal("unchanged skill was re-embedded")
		}
	}
}

func TestSyncEmbedFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	vs := newTestVectors(t)

	reg := &fakeRegistry{pages: [][]registry.SkillDescriptor{
		{descriptor("a", "h1"), descriptor("b", "h2")},
	}}
	e := NewEngine(reg, env.skills, env.config, env.history, vs, &stubEmbedder{dims: 4, fail: true})

	result := e.Sync(ctx, Options{})
	if !result.Completed {
		t.Fatalf("expected completed run, got %+v", result)
	}
	if result.SkillsFailed != 2 {
		t.Errorf("expected 2 failed embeddings, got %d", result.SkillsFailed)
	}

	// Metadata still landed.
	n, _ := env.skills.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 skills despite embed failures, got %d", n)
	}
}

func TestSyncPaginates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var pages [][]registry.SkillDescriptor
	for p := 0; p < 3; p++ {
		var page []registry.SkillDescriptor
		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("p%d-s%d", p, i)
			page = append(page, descriptor(id, "h-"+id))
		}
		pages = append(pages, page)
	}
	reg := &fakeRegistry{pages: pages}
	e := NewEngine(reg, env.skills, env.config, env.history, nil, nil)

	result := e.Sync(ctx, Options{PageSize: 4})
	if result.SkillsAdded != 12 {
		t.Errorf("expected 12 added, got %+v", result)
	}
	if reg.calls != 3 {
		t.Errorf("expected 3 page fetches, got %d", reg.calls)
	}
}
