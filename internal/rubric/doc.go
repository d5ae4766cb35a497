// Package rubric models grading criteria: the instructor-authored JSON
// document (Config) and its validated, weight-normalised derived form
// (Tree).
//
// Build is the only way to obtain a Tree. It resolves every test name
// against the grading template exactly once and normalises sibling weights
// so that every sibling group sums to 100 (zero-sum groups stay all-zero).
// Heterogeneous levels, carrying both nested subjects and direct tests,
// keep two explicit group factors derived from subjects_weight.
//
// Trees are immutable after Build and shared read-only across concurrent
// pipeline executions.
package rubric
