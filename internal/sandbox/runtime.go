package sandbox

import (
	"context"

	"autograder/internal/api"
)

// FleetLabel marks every container provisioned by this process's pool
// manager. Orphan cleanup on startup enumerates and removes containers
// carrying it.
const FleetLabel = "autograder.fleet"

// LanguageLabel records the owning pool's language on each container.
const LanguageLabel = "autograder.language"

// WorkDir is the ephemeral working area inside every sandbox container.
// Submission files are copied here and commands run with it as their
// working directory.
const WorkDir = "/workspace"

// ContainerRuntime defines the container operations the pool manager needs.
// The production implementation shells out to the Docker CLI; tests use a
// fake.
type ContainerRuntime interface {
	// EnsureImage pulls a container image if not already present.
	EnsureImage(ctx context.Context, image string) error

	// CreateContainer starts a long-lived sandbox container and returns
	// its ID. The container must come up with the isolation constraints
	// from the config applied.
	CreateContainer(ctx context.Context, config ContainerConfig) (string, error)

	// Exec runs a shell command inside the container working area and
	// blocks until it exits.
	Exec(ctx context.Context, containerID string, command string, stdin string) (api.CommandResult, error)

	// WriteFiles places the given files into the container working area.
	WriteFiles(ctx context.Context, containerID string, files map[string][]byte) error

	// ReadFile reads a file from the container, resolving relative paths
	// against the working area.
	ReadFile(ctx context.Context, containerID string, path string) ([]byte, error)

	// ResetWorkDir removes everything from the container working area.
	ResetWorkDir(ctx context.Context, containerID string) error

	// KillContainer forcibly terminates the container's processes.
	KillContainer(ctx context.Context, containerID string) error

	// RemoveContainer removes a container, killing it if necessary.
	RemoveContainer(ctx context.Context, containerID string) error

	// ListContainers returns the IDs of all containers carrying the given
	// label, running or not.
	ListContainers(ctx context.Context, label string) ([]string, error)
}

// ContainerConfig holds the provisioning parameters for one sandbox
// container.
type ContainerConfig struct {
	Name      string            // Container name
	Image     string            // Container image
	Labels    map[string]string // Labels for fleet identification
	Runtime   string            // Optional kernel-isolation runtime (e.g. runsc)
	Memory    string            // Memory cap (e.g. "256m")
	CPUs      string            // CPU cap (e.g. "0.5")
	PidsLimit int               // Process count cap
}
