package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autograder/internal/api"
	"autograder/pkg/logging"

	"golang.org/x/sync/errgroup"
)

const managerSubsystem = "SandboxManager"

// sweepInterval is the period of the background TTL/replenishment sweep.
const sweepInterval = 10 * time.Second

// Manager owns one sandbox pool per supported language. It is constructed
// once per process and passed explicitly into the pipelines that need it;
// there is no package-level singleton.
type Manager struct {
	runtime ContainerRuntime
	pools   map[api.Language]*pool

	mu      sync.Mutex
	started bool

	sweeperCancel context.CancelFunc
	sweeperDone   chan struct{}
}

// NewManager creates a pool manager for the given per-language configs.
// The runtime must already be verified (NewDockerRuntime fails when Docker
// is missing, which callers treat as fatal).
func NewManager(runtime ContainerRuntime, configs []PoolConfig) (*Manager, error) {
	if runtime == nil {
		return nil, fmt.Errorf("container runtime is required")
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one pool config is required")
	}

	pools := make(map[api.Language]*pool, len(configs))
	for _, cfg := range configs {
		if cfg.Language == "" {
			return nil, fmt.Errorf("pool config has empty language")
		}
		if _, exists := pools[cfg.Language]; exists {
			return nil, fmt.Errorf("duplicate pool config for language %s", cfg.Language)
		}
		if cfg.MaxTotal <= 0 {
			return nil, fmt.Errorf("pool %s: max_total must be positive", cfg.Language)
		}
		if cfg.MinIdle > cfg.MaxTotal {
			return nil, fmt.Errorf("pool %s: min_idle %d exceeds max_total %d", cfg.Language, cfg.MinIdle, cfg.MaxTotal)
		}
		pools[cfg.Language] = newPool(cfg, runtime)
	}

	return &Manager{
		runtime: runtime,
		pools:   pools,
	}, nil
}

// Initialize brings the fleet online: removes orphaned containers from a
// previous ungraceful shutdown, pre-warms every pool to its MinIdle and
// starts the background sweeper.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("pool manager already initialized")
	}
	m.started = true
	m.mu.Unlock()

	m.cleanupOrphans(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for lang, p := range m.pools {
		lang, p := lang, p
		g.Go(func() error {
			if err := m.runtime.EnsureImage(gctx, p.config.Image); err != nil {
				return fmt.Errorf("pool %s: %w", lang, err)
			}
			if err := p.warm(gctx); err != nil {
				return fmt.Errorf("pool %s: %w", lang, err)
			}
			logging.Info(managerSubsystem, "Pool %s warmed to %d idle sandboxes", lang, p.config.MinIdle)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to initialize sandbox fleet: %w", err)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.sweeperCancel = cancel
	m.sweeperDone = done
	m.mu.Unlock()
	go m.runSweeper(sweepCtx, done)

	logging.Info(managerSubsystem, "Sandbox fleet online with %d pools", len(m.pools))
	return nil
}

// cleanupOrphans removes containers left behind by a previous process.
func (m *Manager) cleanupOrphans(ctx context.Context) {
	ids, err := m.runtime.ListContainers(ctx, FleetLabel)
	if err != nil {
		logging.Warn(managerSubsystem, "Orphan enumeration failed: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	logging.Info(managerSubsystem, "Removing %d orphaned sandbox containers", len(ids))
	for _, id := range ids {
		if err := m.runtime.RemoveContainer(ctx, id); err != nil {
			logging.Warn(managerSubsystem, "Failed to remove orphan %s: %v", id, err)
		}
	}
}

// runSweeper periodically enforces TTLs and replenishes idle sets across
// all pools. Sweeper errors are logged inside the pools, never surfaced.
func (m *Manager) runSweeper(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range m.pools {
				p.sweep(ctx)
			}
		}
	}
}

// Acquire hands out an active sandbox for the language. It may block while
// the pool is saturated, bounded by the pool's AcquireWait.
func (m *Manager) Acquire(ctx context.Context, language api.Language) (*Sandbox, error) {
	p, ok := m.pools[language]
	if !ok {
		return nil, &api.UnsupportedLanguageError{Language: language}
	}
	return p.acquire(ctx)
}

// Release returns a sandbox to its pool. Infallible: internal failures
// destroy the handle instead of surfacing.
func (m *Manager) Release(ctx context.Context, sb *Sandbox) {
	if sb == nil {
		return
	}
	p, ok := m.pools[sb.Language()]
	if !ok {
		sb.destroy(ctx)
		return
	}
	p.release(ctx, sb)
}

// Discard removes a sandbox from its pool and destroys it without reuse.
// Pipelines use this after an interrupted execution, where the container
// state is untrusted.
func (m *Manager) Discard(ctx context.Context, sb *Sandbox) {
	if sb == nil {
		return
	}
	p, ok := m.pools[sb.Language()]
	if !ok {
		sb.destroy(ctx)
		return
	}
	p.discard(ctx, sb)
}

// Shutdown stops the sweeper and destroys every sandbox in the fleet.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	cancel := m.sweeperCancel
	done := m.sweeperDone
	m.sweeperCancel = nil
	m.sweeperDone = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	for _, p := range m.pools {
		p.shutdown(ctx)
	}
	logging.Info(managerSubsystem, "Sandbox fleet shut down")
}

// Languages returns the languages with a configured pool.
func (m *Manager) Languages() []api.Language {
	langs := make([]api.Language, 0, len(m.pools))
	for lang := range m.pools {
		langs = append(langs, lang)
	}
	return langs
}

// Supports reports whether a pool exists for the language.
func (m *Manager) Supports(language api.Language) bool {
	_, ok := m.pools[language]
	return ok
}

// Status snapshots every pool.
func (m *Manager) Status() []api.PoolStatus {
	statuses := make([]api.PoolStatus, 0, len(m.pools))
	for _, p := range m.pools {
		statuses = append(statuses, p.status())
	}
	return statuses
}
