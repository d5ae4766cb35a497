package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autograder/internal/api"
	"autograder/pkg/logging"
)

const sandboxSubsystem = "Sandbox"

// Sandbox is a pooled execution container. It implements api.SandboxHandle
// for test functions and the preflight stage; the pool-side lifecycle
// methods (reset, destroy) are package-internal.
//
// A sandbox is exclusively owned by one pipeline execution between Acquire
// and Release; the pool owns it while idle.
type Sandbox struct {
	name     string
	id       string
	language api.Language
	runtime  ContainerRuntime

	mu           sync.Mutex
	state        api.SandboxState
	createdAt    time.Time
	lastActivity time.Time
}

func newSandbox(name, id string, language api.Language, runtime ContainerRuntime) *Sandbox {
	now := time.Now()
	return &Sandbox{
		name:         name,
		id:           id,
		language:     language,
		runtime:      runtime,
		state:        api.SandboxIdle,
		createdAt:    now,
		lastActivity: now,
	}
}

// Name returns the container name assigned by the pool.
func (s *Sandbox) Name() string {
	return s.name
}

// Language returns the pool language the sandbox belongs to.
func (s *Sandbox) Language() api.Language {
	return s.language
}

// State returns the current lifecycle state.
func (s *Sandbox) State() api.SandboxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the last state transition or command.
func (s *Sandbox) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CopyFiles writes the given files into the container working area.
func (s *Sandbox) CopyFiles(ctx context.Context, files map[string][]byte) error {
	if err := s.ensureUsable(); err != nil {
		return err
	}
	s.touch()
	return s.runtime.WriteFiles(ctx, s.id, files)
}

// RunCommand runs a shell command in the working area and blocks until it
// exits. When the sweeper destroys the container mid-command (running TTL),
// the command returns an error which the grader contains as a test failure.
func (s *Sandbox) RunCommand(ctx context.Context, command string, stdin string) (api.CommandResult, error) {
	if err := s.ensureUsable(); err != nil {
		return api.CommandResult{}, err
	}
	s.touch()
	result, err := s.runtime.Exec(ctx, s.id, command, stdin)
	s.touch()
	return result, err
}

// ReadFile reads an artifact back out of the working area.
func (s *Sandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := s.ensureUsable(); err != nil {
		return nil, err
	}
	s.touch()
	return s.runtime.ReadFile(ctx, s.id, path)
}

func (s *Sandbox) ensureUsable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == api.SandboxDestroyed {
		return fmt.Errorf("sandbox %s has been destroyed", s.name)
	}
	return nil
}

func (s *Sandbox) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// markActive transitions the sandbox to active on acquire.
func (s *Sandbox) markActive() {
	s.mu.Lock()
	s.state = api.SandboxActive
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// markIdle transitions the sandbox back to idle on release.
func (s *Sandbox) markIdle() {
	s.mu.Lock()
	s.state = api.SandboxIdle
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// reset clears the working area so the next submission starts clean.
func (s *Sandbox) reset(ctx context.Context) error {
	return s.runtime.ResetWorkDir(ctx, s.id)
}

// destroy kills and removes the underlying container. Safe to call more
// than once.
func (s *Sandbox) destroy(ctx context.Context) {
	s.mu.Lock()
	if s.state == api.SandboxDestroyed {
		s.mu.Unlock()
		return
	}
	s.state = api.SandboxDestroyed
	s.mu.Unlock()

	if err := s.runtime.RemoveContainer(ctx, s.id); err != nil {
		logging.Warn(sandboxSubsystem, "Failed to remove container %s: %v", s.name, err)
	}
}
