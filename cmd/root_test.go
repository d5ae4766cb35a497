package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"autograder/internal/api"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
	if GetVersion() != testVersion {
		t.Errorf("Expected GetVersion to return %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "autograder" {
		t.Errorf("Expected Use to be 'autograder', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	// Same template as Execute() installs on the root command.
	testCmd.SetVersionTemplate(`{{printf "autograder version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "autograder version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestSubcommands(t *testing.T) {
	commands := rootCmd.Commands()

	expectedCommands := []string{"serve", "grade", "check", "list", "version"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "generic error",
			err:  errors.New("something broke"),
			want: ExitCodeError,
		},
		{
			name: "not found error",
			err:  api.NewPipelineNotFoundError("exercise-1"),
			want: ExitCodeConfig,
		},
		{
			name: "configuration error",
			err:  &api.InvalidRubricError{Path: "base", Reason: "category is required"},
			want: ExitCodeConfig,
		},
		{
			name: "submission failed",
			err:  &submissionFailedError{message: "execution failed", code: ExitCodeSubmissionFailed},
			want: ExitCodeSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSubmissionFailedErrorMessage(t *testing.T) {
	err := &submissionFailedError{message: "execution interrupted", code: ExitCodeSubmissionFailed}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("Expected error message to mention the status, got %q", err.Error())
	}
}
