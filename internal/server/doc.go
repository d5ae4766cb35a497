// Package server exposes the grading service over HTTP: submit a
// submission against a registered pipeline, list pipelines, health. The
// API layer is deliberately thin; all grading semantics live in the
// pipeline package.
package server
