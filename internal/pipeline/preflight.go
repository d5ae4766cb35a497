package pipeline

import (
	"context"
	"fmt"

	"autograder/internal/api"
	"autograder/internal/sandbox"
	"autograder/pkg/logging"
)

// preflight resolves the setup block for the submission language, checks
// required files, and when the template needs one acquires a sandbox,
// copies the submission in and runs the setup commands.
//
// On failure the returned details carry the structured payload for the
// trace. The acquired sandbox is returned even on failure so the caller's
// finalization path releases it.
func (p *Pipeline) preflight(ctx context.Context, sub *api.Submission) (*sandbox.Sandbox, api.ErrorDetails, error) {
	block := p.setup.ForLanguage(sub.Language)
	if block == nil {
		logging.Debug(pipelineSubsystem, "No setup block for language %q, preflight is a no-op", sub.Language)
		return nil, nil, nil
	}

	for _, name := range block.RequiredFiles {
		if _, ok := sub.Files[name]; !ok {
			details := api.ErrorDetails{
				"error_type":   api.ErrorTypeRequiredFileMissing,
				"missing_file": name,
			}
			return nil, details, fmt.Errorf("required file %s is missing from the submission", name)
		}
	}

	if !p.template.RequiresSandbox() {
		return nil, nil, nil
	}

	sb, details, err := p.acquireSandbox(ctx, sub)
	if err != nil {
		return sb, details, err
	}

	for _, command := range block.SetupCommands {
		result, err := sb.RunCommand(ctx, command.Command, "")
		if err != nil {
			details := api.ErrorDetails{
				"error_type":   api.ErrorTypeSetupCommandFailed,
				"command_name": command.Name,
				"command":      command.Command,
				"exit_code":    -1,
				"stdout":       "",
				"stderr":       err.Error(),
			}
			return sb, details, fmt.Errorf("setup command %s did not run: %w", command.Name, err)
		}
		if result.ExitCode != 0 {
			details := api.ErrorDetails{
				"error_type":   api.ErrorTypeSetupCommandFailed,
				"command_name": command.Name,
				"command":      command.Command,
				"exit_code":    result.ExitCode,
				"stdout":       result.Stdout,
				"stderr":       result.Stderr,
			}
			return sb, details, fmt.Errorf("setup command %s exited with code %d", command.Name, result.ExitCode)
		}
		logging.Debug(pipelineSubsystem, "Setup command %s succeeded", command.Name)
	}

	return sb, nil, nil
}

// acquireSandbox takes a container from the pool and copies the submission
// in. The sandbox is returned even on copy failure so the caller's
// finalization path releases it.
func (p *Pipeline) acquireSandbox(ctx context.Context, sub *api.Submission) (*sandbox.Sandbox, api.ErrorDetails, error) {
	sb, err := p.pool.Acquire(ctx, sub.Language)
	if err != nil {
		details := api.ErrorDetails{
			"error_type": api.ErrorTypeSandboxUnavailable,
			"language":   string(sub.Language),
		}
		return nil, details, err
	}

	if err := sb.CopyFiles(ctx, sub.Files); err != nil {
		details := api.ErrorDetails{
			"error_type": api.ErrorTypeSandboxUnavailable,
			"language":   string(sub.Language),
		}
		return sb, details, fmt.Errorf("failed to copy submission into sandbox: %w", err)
	}

	return sb, nil, nil
}
