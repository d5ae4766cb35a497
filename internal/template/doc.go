// Package template models grading templates: named, read-only registries of
// test functions that rubrics resolve against.
//
// A template couples a test library (e.g. the static web checks or the
// sandboxed program checks under internal/templates) with the declaration
// of whether grading needs an execution sandbox. Templates are immutable
// after construction, so they are shared freely between concurrent pipeline
// executions.
package template
