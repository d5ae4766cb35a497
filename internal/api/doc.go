// Package api defines the shared types and error taxonomy of the autograder
// core. It is the contract layer between the grading pipeline and its
// external collaborators: test-function templates, the sandbox pool, the
// feedback reporters and the HTTP surface.
//
// The package deliberately contains no behavior beyond error formatting and
// small helpers. Components depend on api instead of on each other, which
// keeps the pipeline, grader, sandbox and template packages free of import
// cycles.
//
// # Error taxonomy
//
// Errors fall into four classes, mirrored by the types in errors.go:
//
//   - Configuration errors (InvalidRubricError, TestNotInTemplateError,
//     MissingSubjectsWeightError, NotFoundError): surfaced synchronously at
//     pipeline build time. No submission is graded.
//   - Preflight errors: per-submission, recorded as structured ErrorDetails
//     in the execution trace; the submission is not graded.
//   - Test execution errors: contained to the affected test, which scores 0
//     with an explanatory report; grading proceeds.
//   - Catastrophic errors: recovered at the orchestrator boundary, the
//     execution becomes interrupted and the sandbox is destroyed.
package api
