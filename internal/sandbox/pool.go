package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autograder/internal/api"
	"autograder/pkg/logging"

	"github.com/google/uuid"
)

const poolSubsystem = "SandboxPool"

// PoolConfig holds the per-language pool parameters.
type PoolConfig struct {
	Language api.Language
	Image    string

	// MinIdle is the number of pre-warmed containers kept ready; MaxTotal
	// caps the pool's total (idle + active) size.
	MinIdle  int
	MaxTotal int

	// IdleTTL destroys surplus idle containers; RunningTTL forcibly
	// destroys active containers stuck past the deadline.
	IdleTTL    time.Duration
	RunningTTL time.Duration

	// AcquireWait bounds how long a saturated acquire blocks for a
	// release before failing.
	AcquireWait time.Duration

	// Isolation constraints applied to every container.
	Runtime   string
	Memory    string
	CPUs      string
	PidsLimit int
}

// pool manages the sandboxes of a single language. All membership
// transitions happen under one mutex; the sweeper participates in the same
// discipline.
type pool struct {
	config  PoolConfig
	runtime ContainerRuntime

	mu           sync.Mutex
	idle         []*Sandbox // FIFO ordered by release time
	active       map[*Sandbox]struct{}
	provisioning int
	resetting    int
	waiters      []chan *Sandbox
	closed       bool
}

func newPool(config PoolConfig, runtime ContainerRuntime) *pool {
	return &pool{
		config:  config,
		runtime: runtime,
		active:  make(map[*Sandbox]struct{}),
	}
}

// totalLocked counts every container the pool owns: idle, active,
// in-flight provisions and sandboxes mid-reset during a release. Callers
// hold p.mu.
func (p *pool) totalLocked() int {
	return len(p.idle) + len(p.active) + p.provisioning + p.resetting
}

// acquire hands out a sandbox: idle reuse first, then synchronous
// provisioning while below MaxTotal, then blocking on a release up to
// AcquireWait.
func (p *pool) acquire(ctx context.Context) (*Sandbox, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, &api.NoSandboxAvailableError{Language: p.config.Language, Cause: fmt.Errorf("pool is shut down")}
	}

	if len(p.idle) > 0 {
		sb := p.idle[0]
		p.idle = p.idle[1:]
		p.active[sb] = struct{}{}
		p.mu.Unlock()

		sb.markActive()
		logging.Debug(poolSubsystem, "Reusing idle sandbox %s", sb.Name())
		return sb, nil
	}

	if p.totalLocked() < p.config.MaxTotal {
		p.provisioning++
		p.mu.Unlock()

		sb, err := p.provision(ctx)

		p.mu.Lock()
		p.provisioning--
		if err != nil {
			p.mu.Unlock()
			return nil, &api.NoSandboxAvailableError{Language: p.config.Language, Cause: err}
		}
		p.active[sb] = struct{}{}
		p.mu.Unlock()

		sb.markActive()
		return sb, nil
	}

	// Saturated: wait for a release or the configured timeout.
	waiter := make(chan *Sandbox, 1)
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	logging.Debug(poolSubsystem, "Pool %s saturated, waiting for a release", p.config.Language)

	timeout := p.config.AcquireWait
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sb := <-waiter:
		if sb == nil {
			return nil, &api.NoSandboxAvailableError{Language: p.config.Language, Cause: fmt.Errorf("pool is shut down")}
		}
		return sb, nil
	case <-timer.C:
		p.abandonWaiter(waiter)
		return nil, &api.NoSandboxAvailableError{Language: p.config.Language, Cause: fmt.Errorf("no sandbox released within %s", timeout)}
	case <-ctx.Done():
		p.abandonWaiter(waiter)
		return nil, &api.NoSandboxAvailableError{Language: p.config.Language, Cause: ctx.Err()}
	}
}

// abandonWaiter removes a waiter after timeout or cancellation. A release
// may have handed a sandbox over concurrently; that sandbox is re-released
// rather than leaked.
func (p *pool) abandonWaiter(waiter chan *Sandbox) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == waiter {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	select {
	case sb := <-waiter:
		if sb != nil {
			p.release(context.Background(), sb)
		}
	default:
	}
}

// release returns a sandbox to the pool. Release is infallible from the
// caller's perspective: a failed reset destroys the container instead and
// the sweeper replenishes the pool.
func (p *pool) release(ctx context.Context, sb *Sandbox) {
	p.mu.Lock()
	delete(p.active, sb)
	closed := p.closed
	if !closed {
		// The sandbox stays counted against MaxTotal while it resets, so
		// a concurrent acquire cannot provision past the cap.
		p.resetting++
	}
	p.mu.Unlock()

	if closed {
		sb.destroy(ctx)
		return
	}

	if err := sb.reset(ctx); err != nil {
		logging.Warn(poolSubsystem, "Reset of sandbox %s failed, destroying: %v", sb.Name(), err)
		p.mu.Lock()
		p.resetting--
		p.mu.Unlock()
		sb.destroy(ctx)
		return
	}

	p.mu.Lock()
	p.resetting--
	if p.closed {
		// Shutdown raced with the reset; the drained pool must not regain
		// a member.
		p.mu.Unlock()
		sb.destroy(ctx)
		return
	}
	// Hand the sandbox straight to the oldest waiter when one is blocked.
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.active[sb] = struct{}{}
		p.mu.Unlock()

		sb.markActive()
		waiter <- sb
		logging.Debug(poolSubsystem, "Handed sandbox %s to blocked acquire", sb.Name())
		return
	}

	sb.markIdle()
	p.idle = append(p.idle, sb)
	p.mu.Unlock()
}

// discard removes a sandbox from the pool and destroys it. Used after an
// interrupted execution, where the container state is untrusted.
func (p *pool) discard(ctx context.Context, sb *Sandbox) {
	p.mu.Lock()
	delete(p.active, sb)
	p.mu.Unlock()
	sb.destroy(ctx)
}

// provision creates one container. Called without holding p.mu.
func (p *pool) provision(ctx context.Context) (*Sandbox, error) {
	name := fmt.Sprintf("autograder-%s-%s", p.config.Language, uuid.New().String()[:8])

	id, err := p.runtime.CreateContainer(ctx, ContainerConfig{
		Name:  name,
		Image: p.config.Image,
		Labels: map[string]string{
			FleetLabel:    "true",
			LanguageLabel: string(p.config.Language),
		},
		Runtime:   p.config.Runtime,
		Memory:    p.config.Memory,
		CPUs:      p.config.CPUs,
		PidsLimit: p.config.PidsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision sandbox for %s: %w", p.config.Language, err)
	}

	return newSandbox(name, id, p.config.Language, p.runtime), nil
}

// warm pre-provisions idle sandboxes up to MinIdle without exceeding
// MaxTotal. Used at initialization and by the sweeper.
func (p *pool) warm(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed || len(p.idle) >= p.config.MinIdle || p.totalLocked() >= p.config.MaxTotal {
			p.mu.Unlock()
			return nil
		}
		p.provisioning++
		p.mu.Unlock()

		sb, err := p.provision(ctx)

		p.mu.Lock()
		p.provisioning--
		if err != nil {
			p.mu.Unlock()
			return err
		}
		p.idle = append(p.idle, sb)
		p.mu.Unlock()
	}
}

// sweep enforces the TTLs and replenishes the idle set. Errors are logged,
// never surfaced.
func (p *pool) sweep(ctx context.Context) {
	now := time.Now()

	// Collect expired handles under the lock, destroy outside it.
	var expired []*Sandbox

	p.mu.Lock()
	for sb := range p.active {
		if p.config.RunningTTL > 0 && now.Sub(sb.LastActivity()) > p.config.RunningTTL {
			logging.Warn(poolSubsystem, "Sandbox %s exceeded running TTL, destroying", sb.Name())
			delete(p.active, sb)
			expired = append(expired, sb)
		}
	}

	// Only handles beyond MinIdle are eligible for idle expiry; the idle
	// list is FIFO so the oldest releases are considered first.
	allowance := len(p.idle) - p.config.MinIdle
	var kept []*Sandbox
	for _, sb := range p.idle {
		if allowance > 0 && p.config.IdleTTL > 0 && now.Sub(sb.LastActivity()) > p.config.IdleTTL {
			logging.Debug(poolSubsystem, "Idle sandbox %s expired, destroying", sb.Name())
			expired = append(expired, sb)
			allowance--
			continue
		}
		kept = append(kept, sb)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, sb := range expired {
		if sb.State() == api.SandboxActive {
			if err := p.runtime.KillContainer(ctx, sb.id); err != nil {
				logging.Warn(poolSubsystem, "Failed to kill container %s: %v", sb.Name(), err)
			}
		}
		sb.destroy(ctx)
	}

	if err := p.warm(ctx); err != nil {
		logging.Warn(poolSubsystem, "Replenishing pool %s failed: %v", p.config.Language, err)
	}
}

// shutdown destroys every sandbox and wakes blocked acquires.
func (p *pool) shutdown(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	waiters := p.waiters
	p.waiters = nil

	all := make([]*Sandbox, 0, len(p.idle)+len(p.active))
	all = append(all, p.idle...)
	p.idle = nil
	for sb := range p.active {
		all = append(all, sb)
	}
	p.active = make(map[*Sandbox]struct{})
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, sb := range all {
		sb.destroy(ctx)
	}
}

// status snapshots the pool for the check command and health endpoint.
func (p *pool) status() api.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.PoolStatus{
		Language: p.config.Language,
		Idle:     len(p.idle),
		Active:   len(p.active),
		Total:    p.totalLocked(),
		MaxTotal: p.config.MaxTotal,
		Image:    p.config.Image,
		Checked:  time.Now(),
	}
}
