package grader

import (
	"sort"

	"autograder/internal/api"
	"autograder/internal/rubric"
)

// FocusEntry pairs one failed test result with its impact: the absolute
// number of final-score points lost because of that test.
type FocusEntry struct {
	Category rubric.Category
	Test     *api.ResultNode
	Impact   float64
}

// Focus ranks failed tests per category by impact, descending. Ties keep
// the tree's in-order position.
type Focus struct {
	Entries map[rubric.Category][]FocusEntry
}

// ComputeFocus derives the focus ranking from a grading result. A test is
// failed when its score is below 100.
//
// Impact is (100 - score) scaled by the test's weight fraction, the product
// of its ancestor weight fractions and group factors, and the category
// budget multiplier (1 for base, weight/100 for bonus and penalty).
func ComputeFocus(result *Result) *Focus {
	focus := &Focus{
		Entries: make(map[rubric.Category][]FocusEntry),
	}

	for _, category := range []rubric.Category{rubric.CategoryBase, rubric.CategoryBonus, rubric.CategoryPenalty} {
		node, ok := result.Categories[category]
		if !ok {
			continue
		}

		multiplier := 1.0
		if category != rubric.CategoryBase {
			multiplier = node.Weight / 100
		}

		var entries []FocusEntry
		collectFailed(node, multiplier, category, &entries)

		// Stable: equal impacts keep traversal order.
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Impact > entries[j].Impact
		})
		focus.Entries[category] = entries
	}

	return focus
}

// collectFailed walks a result subtree in order, accumulating the weight
// fraction along the path. fraction is the product of all factors above the
// current node's children.
func collectFailed(node *api.ResultNode, fraction float64, category rubric.Category, entries *[]FocusEntry) {
	subjectsFactor, testsFactor := groupFactors(node)

	for _, child := range node.Subjects {
		collectFailed(child, fraction*subjectsFactor*child.Weight/100, category, entries)
	}
	for _, test := range node.Tests {
		if test.Score >= 100 {
			continue
		}
		*entries = append(*entries, FocusEntry{
			Category: category,
			Test:     test,
			Impact:   (100 - test.Score) * fraction * testsFactor * test.Weight / 100,
		})
	}
}

// groupFactors reconstructs the heterogeneous split from the serialised
// node: subjects_weight/100 and its complement, or 1 for the single present
// group.
func groupFactors(node *api.ResultNode) (subjects, tests float64) {
	if node.SubjectsWeight != nil {
		sw := *node.SubjectsWeight / 100
		return sw, 1 - sw
	}
	return 1, 1
}

// Failed reports whether any category has at least one failed test.
func (f *Focus) Failed() bool {
	for _, entries := range f.Entries {
		if len(entries) > 0 {
			return true
		}
	}
	return false
}

// AllTests walks a category's result subtree in order and returns every
// test leaf, passed or failed. Used by renderers that show passing tests.
func AllTests(node *api.ResultNode) []*api.ResultNode {
	var tests []*api.ResultNode
	var walk func(n *api.ResultNode)
	walk = func(n *api.ResultNode) {
		for _, child := range n.Subjects {
			walk(child)
		}
		tests = append(tests, n.Tests...)
	}
	walk(node)
	return tests
}
