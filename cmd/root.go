package cmd

import (
	"os"

	"autograder/internal/api"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates a configuration problem (bad rubric document,
	// unknown template, malformed service config).
	ExitCodeConfig = 2
	// ExitCodeSubmissionFailed indicates the grade command ran a pipeline
	// whose execution did not succeed.
	ExitCodeSubmissionFailed = 3
)

// rootCmd represents the base command for the autograder application.
var rootCmd = &cobra.Command{
	Use:   "autograder",
	Short: "Automated grading service for programmer-submitted source files",
	Long: `autograder executes deterministic grading pipelines against student
submissions: rubric-driven scoring, sandboxed program execution and
feedback rendering. It runs either as a long-lived HTTP service
('autograder serve') or as a one-shot grader ('autograder grade').`,
	// SilenceUsage prevents cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "autograder version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error classes to semantic exit codes for scripting.
func getExitCode(err error) int {
	if api.IsNotFound(err) || api.IsConfigurationError(err) {
		return ExitCodeConfig
	}
	if failed, ok := err.(*submissionFailedError); ok {
		return failed.code
	}
	return ExitCodeError
}

// submissionFailedError carries the exit code for a non-success grading
// execution out of the grade command.
type submissionFailedError struct {
	message string
	code    int
}

func (e *submissionFailedError) Error() string {
	return e.message
}
