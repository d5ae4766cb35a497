// Package pipeline choreographs the grading of one submission: template
// lookup, rubric tree construction, preflight, grading, focus ranking,
// feedback rendering and export.
//
// A Pipeline is built once per rubric document; configuration errors
// surface at build time. Run is safe for concurrent calls, records every
// attempted stage in a trace, converts graceful stage failures into a
// failed execution and recovered panics into an interrupted one, and
// releases any acquired sandbox on every exit path.
package pipeline
