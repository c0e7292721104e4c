package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/skillsync/skillsync/internal/model"
	"github.com/skillsync/skillsync/internal/store"
)

// ErrSyncInProgress is returned by ManualSync when a sync is already
// running. Background ticks skip silently; a manual trigger implies an
// expectation of execution, so it gets an explicit answer.
var ErrSyncInProgress = errors.New("sync already in progress")

const defaultCheckInterval = 60 * time.Second

// SyncEngine is the slice of Engine the service drives. Narrowed to an
// interface so tests can count invocations with a stub.
type SyncEngine interface {
	Sync(ctx context.Context, opts Options) *model.SyncResult
}

// ServiceOptions configures the background service.
type ServiceOptions struct {
	CheckInterval time.Duration
	SyncOnStart   bool

	// SyncOptions is passed through to every engine run the service
	// triggers.
	SyncOptions Options

	// OnSyncResult and OnSyncError are invoked after each background
	// run. Both may be nil.
	OnSyncResult func(*model.SyncResult)
	OnSyncError  func(error)
}

// State is a read-only snapshot of the service. It is always a copy;
// callers cannot reach internal counters through it.
type State struct {
	IsStarted       bool              `json:"is_started"`
	IsRunning       bool              `json:"is_running"`
	LastResult      *model.SyncResult `json:"last_result,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
	ChecksPerformed uint64            `json:"checks_performed"`
	SyncsTriggered  uint64            `json:"syncs_triggered"`
}

// Service drives the engine on a schedule during an active session.
// At most one sync runs at a time; ticks are short and the loop
// goroutine is joined deterministically on Stop.
type Service struct {
	engine SyncEngine
	config *store.SyncConfigRepository
	opts   ServiceOptions
	now    func() time.Time

	mu       sync.Mutex
	started  bool
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	lastResult *model.SyncResult
	lastError  error
	checks     uint64
	syncs      uint64
}

// NewService creates the background sync service.
func NewService(engine SyncEngine, config *store.SyncConfigRepository, opts ServiceOptions) *Service {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaultCheckInterval
	}
	return &Service{
		engine: engine,
		config: config,
		opts:   opts,
		now:    time.Now,
	}
}

// Start arms the periodic due-check. Idempotent: a second Start is a
// logged no-op. When auto-sync is disabled in config the service stays
// un-started; re-enabling requires another Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		slog.Info("background sync already started")
		return nil
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !cfg.Enabled {
		s.mu.Unlock()
		slog.Info("background sync disabled, not starting")
		return nil
	}

	s.started = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(s.stopChan)

	slog.Info("background sync started", "check_interval", s.opts.CheckInterval)
	return nil
}

// Stop cancels the loop and joins it. Safe to call when not started.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("background sync stopped")
}

func (s *Service) loop(stop chan struct{}) {
	defer s.wg.Done()

	if s.opts.SyncOnStart {
		s.tick(true)
	}

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(false)
		}
	}
}

// tick re-reads configuration every time so a live change (say,
// disabling auto-sync) takes effect on the next check without a
// restart.
func (s *Service) tick(initial bool) {
	s.mu.Lock()
	s.checks++
	s.mu.Unlock()

	ctx := context.Background()
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		s.recordError(err)
		return
	}
	if !cfg.Enabled {
		return
	}

	due, err := s.config.IsSyncDue(ctx, s.now())
	if err != nil {
		s.recordError(err)
		return
	}
	if !due {
		return
	}

	if initial {
		slog.Info("sync due on start, triggering")
	}
	s.runSync(ctx)
}

// runSync is the background-tick path: if a sync is already running
// the tick is a silent no-op (logged), never queued.
func (s *Service) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Debug("sync already running, skipping tick")
		return
	}
	s.running = true
	s.syncs++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := s.engine.Sync(ctx, s.opts.SyncOptions)
	s.record(result)
}

// ManualSync runs a sync inline for an explicit caller. Unlike a tick,
// an overlapping manual trigger is answered with ErrSyncInProgress.
func (s *Service) ManualSync(ctx context.Context) (*model.SyncResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.syncs++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := s.engine.Sync(ctx, s.opts.SyncOptions)
	s.record(result)
	return result, nil
}

func (s *Service) record(result *model.SyncResult) {
	s.mu.Lock()
	s.lastResult = result
	if result.Err != "" {
		s.lastError = errors.New(result.Err)
	} else {
		s.lastError = nil
	}
	s.mu.Unlock()

	if result.Err != "" && s.opts.OnSyncError != nil {
		s.opts.OnSyncError(errors.New(result.Err))
	}
	if s.opts.OnSyncResult != nil {
		s.opts.OnSyncResult(result)
	}
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()

	slog.Warn("background sync check failed", "error", err)
	if s.opts.OnSyncError != nil {
		s.opts.OnSyncError(err)
	}
}

// State returns a snapshot copy of the service's observable state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		IsStarted:       s.started,
		IsRunning:       s.running,
		ChecksPerformed: s.checks,
		SyncsTriggered:  s.syncs,
	}
	if s.lastResult != nil {
		copied := *s.lastResult
		st.LastResult = &copied
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
