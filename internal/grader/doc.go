// Package grader executes rubric trees against submissions.
//
// Grade traverses the tree depth-first in declaration order, invokes each
// embedded test function with its rubric-selected files and materialised
// parameters, and aggregates scores bottom-up into a result tree that
// mirrors the rubric's structure. Test failures, returned errors and panics
// are all contained to the affected test, which scores 0 with an
// explanatory report.
//
// The final score is base + bonus points - penalty points, clamped to
// [0, 100], where bonus and penalty category weights act as point budgets.
// ComputeFocus then ranks failed tests by the number of final-score points
// their failure cost.
package grader
