// Package program is the built-in template for runnable-program
// assignments: stdin/stdout checks, exit codes and source inspection.
// Its execution tests run inside a sandbox; command parameters arrive
// already resolved for the submission language.
package program

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"autograder/internal/api"
	"autograder/internal/template"
)

// Name is the registry name of this template.
const Name = "program"

// New builds the program template. The template requires a sandbox; the
// source_contains test tolerates running without one.
func New() (*template.Template, error) {
	return template.New(Name, true,
		expectOutput(),
		exitCodeIs(),
		sourceContains(),
	)
}

// paramString reads a string parameter, empty when absent or mistyped.
func paramString(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

// paramStringList reads a list-of-strings parameter. JSON arrays arrive
// as []interface{}.
func paramStringList(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func paramInt(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// expectOutput runs the program with the given stdin lines and compares
// trimmed stdout against the expectation.
func expectOutput() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "program_command", Description: "command to run, per-language map or CMD placeholder", Type: "string"},
		{Name: "input", Description: "stdin lines fed to the program", Type: "[]string"},
		{Name: "expected", Description: "expected stdout, compared after trimming", Type: "string"},
	}
	return template.NewFunc("expect_output", api.FileKindNone, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			if sb == nil {
				return api.TestOutcome{Report: "no sandbox available for execution"}, nil
			}

			command := paramString(params, "program_command")
			if command == "" {
				return api.TestOutcome{Report: "no execution command for this language"}, nil
			}

			stdin := ""
			if lines := paramStringList(params, "input"); len(lines) > 0 {
				stdin = strings.Join(lines, "\n") + "\n"
			}

			result, err := sb.RunCommand(ctx, command, stdin)
			if err != nil {
				return api.TestOutcome{Report: fmt.Sprintf("program did not run: %v", err)}, nil
			}
			if result.ExitCode != 0 {
				return api.TestOutcome{Report: fmt.Sprintf("program exited with code %d: %s",
					result.ExitCode, strings.TrimSpace(result.Stderr))}, nil
			}

			expected := strings.TrimSpace(paramString(params, "expected"))
			actual := strings.TrimSpace(result.Stdout)
			if actual != expected {
				return api.TestOutcome{Report: fmt.Sprintf("expected output %q, got %q", expected, actual)}, nil
			}
			return api.TestOutcome{Score: 100}, nil
		})
}

// exitCodeIs runs the program and checks its exit code.
func exitCodeIs() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "program_command", Description: "command to run", Type: "string"},
		{Name: "input", Description: "stdin lines fed to the program", Type: "[]string"},
		{Name: "expected_code", Description: "expected exit code", Type: "int"},
	}
	return template.NewFunc("exit_code_is", api.FileKindNone, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			if sb == nil {
				return api.TestOutcome{Report: "no sandbox available for execution"}, nil
			}

			command := paramString(params, "program_command")
			if command == "" {
				return api.TestOutcome{Report: "no execution command for this language"}, nil
			}

			stdin := ""
			if lines := paramStringList(params, "input"); len(lines) > 0 {
				stdin = strings.Join(lines, "\n") + "\n"
			}

			result, err := sb.RunCommand(ctx, command, stdin)
			if err != nil {
				return api.TestOutcome{Report: fmt.Sprintf("program did not run: %v", err)}, nil
			}

			expected := paramInt(params, "expected_code", 0)
			if result.ExitCode != expected {
				return api.TestOutcome{Report: fmt.Sprintf("expected exit code %d, got %d", expected, result.ExitCode)}, nil
			}
			return api.TestOutcome{Score: 100}, nil
		})
}

// sourceContains inspects the selected source files for a substring or a
// regular expression. Runs without a sandbox.
func sourceContains() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "text", Description: "substring that must appear in the source", Type: "string"},
		{Name: "pattern", Description: "regular expression alternative to text", Type: "string"},
	}
	return template.NewFunc("source_contains", api.FileKindNone, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			text := paramString(params, "text")
			pattern := paramString(params, "pattern")
			if text == "" && pattern == "" {
				return api.TestOutcome{Report: "no text or pattern configured"}, nil
			}

			var re *regexp.Regexp
			if pattern != "" {
				var err error
				re, err = regexp.Compile(pattern)
				if err != nil {
					return api.TestOutcome{Report: fmt.Sprintf("invalid pattern: %v", err)}, nil
				}
			}

			for _, f := range files {
				source := string(f.Content)
				if re != nil {
					if re.MatchString(source) {
						return api.TestOutcome{Score: 100}, nil
					}
					continue
				}
				if strings.Contains(source, text) {
					return api.TestOutcome{Score: 100}, nil
				}
			}

			if re != nil {
				return api.TestOutcome{Report: fmt.Sprintf("no file matches pattern %q", pattern)}, nil
			}
			return api.TestOutcome{Report: fmt.Sprintf("%q not found in the submission", text)}, nil
		})
}
