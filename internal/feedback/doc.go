// Package feedback renders student-facing reports from grading results.
//
// Two built-in reporters exist: the structured renderer (default) and a
// template-driven renderer for instructor-authored report layouts. Both sit
// behind the Reporter interface, which is also the seam external feedback
// generators plug into.
package feedback
