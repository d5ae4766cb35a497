package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"

	"autograder/internal/api"
	"autograder/pkg/logging"
)

const dockerSubsystem = "Docker"

// DockerRuntime implements ContainerRuntime using the Docker CLI.
type DockerRuntime struct{}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// NewDockerRuntime creates a new Docker runtime instance. It fails when the
// docker binary is missing or the daemon is unreachable; the pool manager
// treats that as fatal at initialization.
func NewDockerRuntime() (*DockerRuntime, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker command not found in PATH: %w", err)
	}

	ctx := context.Background()
	cmd := execCommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}

	return &DockerRuntime{}, nil
}

// InspectImage reports whether an image is present locally.
func (d *DockerRuntime) InspectImage(ctx context.Context, image string) error {
	cmd := execCommandContext(ctx, "docker", "image", "inspect", image)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("image %s not present: %w", image, err)
	}
	return nil
}

// EnsureImage pulls a container image if not already present.
func (d *DockerRuntime) EnsureImage(ctx context.Context, image string) error {
	if err := d.InspectImage(ctx, image); err == nil {
		logging.Debug(dockerSubsystem, "Image %s already exists", image)
		return nil
	}

	logging.Info(dockerSubsystem, "Pulling image %s", image)
	pullCmd := execCommandContext(ctx, "docker", "pull", image)
	pullCmd.Stdout = os.Stdout
	pullCmd.Stderr = os.Stderr

	if err := pullCmd.Run(); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}

	return nil
}

// CreateContainer starts a long-lived sandbox container with the isolation
// constraints applied: no network, dropped capabilities, capped memory,
// CPU and process count, and a read-only root with ephemeral tmpfs storage
// for the working area.
//
// When a kernel-isolation runtime is configured and unavailable on the
// host, creation falls back to the default runtime.
func (d *DockerRuntime) CreateContainer(ctx context.Context, config ContainerConfig) (string, error) {
	id, err := d.createContainer(ctx, config, config.Runtime)
	if err != nil && config.Runtime != "" {
		logging.Warn(dockerSubsystem, "Runtime %s unavailable for %s, falling back to default: %v",
			config.Runtime, config.Name, err)
		id, err = d.createContainer(ctx, config, "")
	}
	return id, err
}

func (d *DockerRuntime) createContainer(ctx context.Context, config ContainerConfig, runtime string) (string, error) {
	args := []string{"run", "-d", "--name", config.Name}

	for k, v := range config.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args,
		"--network", "none",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--read-only",
		"--tmpfs", WorkDir+":rw,size=64m",
		"--tmpfs", "/tmp:rw,size=16m",
	)

	if config.Memory != "" {
		args = append(args, "--memory", config.Memory)
	}
	if config.CPUs != "" {
		args = append(args, "--cpus", config.CPUs)
	}
	if config.PidsLimit > 0 {
		args = append(args, "--pids-limit", fmt.Sprintf("%d", config.PidsLimit))
	}
	if runtime != "" {
		args = append(args, "--runtime", runtime)
	}

	// The container idles until commands are exec'd into it.
	args = append(args, config.Image, "sleep", "infinity")

	logging.Debug(dockerSubsystem, "Starting container with command: docker %s", strings.Join(args, " "))

	cmd := execCommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to start container: %w\nOutput: %s", err, string(output))
	}

	containerID := strings.TrimSpace(string(output))
	logging.Info(dockerSubsystem, "Started container %s with ID %s", config.Name, shortID(containerID))

	return containerID, nil
}

// Exec runs a shell command in the container working area. The returned
// CommandResult always carries the exit code, stdout and stderr; err is
// reserved for failures of docker itself (daemon gone, container killed).
func (d *DockerRuntime) Exec(ctx context.Context, containerID string, command string, stdin string) (api.CommandResult, error) {
	args := []string{"exec", "-i", "-w", WorkDir, containerID, "sh", "-c", command}

	cmd := execCommandContext(ctx, "docker", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := api.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to exec in container %s: %w", shortID(containerID), err)
	}

	return result, nil
}

// WriteFiles streams each file into the working area through exec stdin.
// The working area is a tmpfs mount, which docker cp cannot target, so
// files go through cat instead.
func (d *DockerRuntime) WriteFiles(ctx context.Context, containerID string, files map[string][]byte) error {
	for name, content := range files {
		target := path.Join(WorkDir, name)
		if !strings.HasPrefix(target, WorkDir+"/") {
			return fmt.Errorf("file name %q escapes the working area", name)
		}

		script := fmt.Sprintf("mkdir -p %q && cat > %q", path.Dir(target), target)
		cmd := execCommandContext(ctx, "docker", "exec", "-i", containerID, "sh", "-c", script)
		cmd.Stdin = bytes.NewReader(content)

		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to write %s into container %s: %w\nOutput: %s",
				name, shortID(containerID), err, string(output))
		}
	}
	return nil
}

// ReadFile reads an artifact back out of the container.
func (d *DockerRuntime) ReadFile(ctx context.Context, containerID string, filePath string) ([]byte, error) {
	if !path.IsAbs(filePath) {
		filePath = path.Join(WorkDir, filePath)
	}

	cmd := execCommandContext(ctx, "docker", "exec", containerID, "cat", filePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from container %s: %w", filePath, shortID(containerID), err)
	}
	return output, nil
}

// ResetWorkDir clears the container working area between submissions.
func (d *DockerRuntime) ResetWorkDir(ctx context.Context, containerID string) error {
	script := fmt.Sprintf("find %s -mindepth 1 -delete", WorkDir)
	cmd := execCommandContext(ctx, "docker", "exec", containerID, "sh", "-c", script)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to reset working area of container %s: %w\nOutput: %s",
			shortID(containerID), err, string(output))
	}
	return nil
}

// KillContainer forcibly terminates the container's processes.
func (d *DockerRuntime) KillContainer(ctx context.Context, containerID string) error {
	logging.Info(dockerSubsystem, "Killing container %s", shortID(containerID))

	cmd := execCommandContext(ctx, "docker", "kill", containerID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", shortID(containerID), err)
	}
	return nil
}

// RemoveContainer removes a container.
func (d *DockerRuntime) RemoveContainer(ctx context.Context, containerID string) error {
	logging.Debug(dockerSubsystem, "Removing container %s", shortID(containerID))

	cmd := execCommandContext(ctx, "docker", "rm", "-f", containerID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", shortID(containerID), err)
	}
	return nil
}

// ListContainers returns all container IDs carrying the given label,
// running or stopped.
func (d *DockerRuntime) ListContainers(ctx context.Context, label string) ([]string, error) {
	cmd := execCommandContext(ctx, "docker", "ps", "-aq", "--filter", "label="+label)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list containers with label %s: %w", label, err)
	}

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

func shortID(containerID string) string {
	if len(containerID) > 12 {
		return containerID[:12]
	}
	return containerID
}
