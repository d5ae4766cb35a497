package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource with contextual information.
// It is used for template and pipeline lookups so callers can distinguish
// "does not exist" from genuine failures.
type NotFoundError struct {
	// ResourceType categorizes the resource (e.g. "template", "pipeline").
	ResourceType string

	// ResourceName is the identifier that was looked up.
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// NewTemplateNotFoundError creates a NotFoundError for a template lookup.
func NewTemplateNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "template", ResourceName: name}
}

// NewPipelineNotFoundError creates a NotFoundError for a pipeline lookup.
func NewPipelineNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "pipeline", ResourceName: name}
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// InvalidRubricError indicates a rubric configuration whose shape is
// malformed. Path locates the offending node ("base.subjects[2]").
type InvalidRubricError struct {
	Path   string
	Reason string
}

func (e *InvalidRubricError) Error() string {
	return fmt.Sprintf("invalid rubric at %s: %s", e.Path, e.Reason)
}

// MissingSubjectsWeightError indicates a rubric level carrying both tests
// and subjects without the mandatory subjects_weight split.
type MissingSubjectsWeightError struct {
	Path string
}

func (e *MissingSubjectsWeightError) Error() string {
	return fmt.Sprintf("rubric level %s has both tests and subjects but no subjects_weight", e.Path)
}

// TestNotInTemplateError indicates a rubric test name that does not resolve
// in the template's function registry.
type TestNotInTemplateError struct {
	TestName string
	Template string
}

func (e *TestNotInTemplateError) Error() string {
	return fmt.Sprintf("test %q is not provided by template %q", e.TestName, e.Template)
}

// IsConfigurationError checks whether an error belongs to the configuration
// class, i.e. is fatal at pipeline build time.
func IsConfigurationError(err error) bool {
	var invalid *InvalidRubricError
	var missing *MissingSubjectsWeightError
	var unknown *TestNotInTemplateError
	return errors.As(err, &invalid) || errors.As(err, &missing) || errors.As(err, &unknown) || IsNotFound(err)
}

// UnsupportedLanguageError indicates an acquire for a language without a
// configured pool.
type UnsupportedLanguageError struct {
	Language Language
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("no sandbox pool configured for language %q", e.Language)
}

// NoSandboxAvailableError indicates that a sandbox could not be acquired:
// the pool is saturated and no release happened within the configured wait,
// or provisioning a fresh container failed.
type NoSandboxAvailableError struct {
	Language Language
	Cause    error
}

func (e *NoSandboxAvailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no sandbox available for language %q: %v", e.Language, e.Cause)
	}
	return fmt.Sprintf("no sandbox available for language %q", e.Language)
}

func (e *NoSandboxAvailableError) Unwrap() error {
	return e.Cause
}

// IsSandboxUnavailable checks for either sandbox acquisition failure mode.
func IsSandboxUnavailable(err error) bool {
	var noSandbox *NoSandboxAvailableError
	var unsupported *UnsupportedLanguageError
	return errors.As(err, &noSandbox) || errors.As(err, &unsupported)
}
