package grader

import (
	"context"
	"testing"

	"autograder/internal/rubric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFocusRanksByImpact(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"big_fail": 0, "small_fail": 0, "pass": 100})

	// big_fail sits under a 75% subject, small_fail under a 25% subject.
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Subjects: []*rubric.NodeConfig{
			{Name: "minor", Weight: fw(25), Tests: []rubric.TestConfig{{Name: "small_fail"}}},
			{Name: "major", Weight: fw(75), Tests: []rubric.TestConfig{{Name: "big_fail"}, {Name: "pass"}}},
		},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	focus := ComputeFocus(result)

	entries := focus.Entries[rubric.CategoryBase]
	require.Len(t, entries, 2, "passed tests are excluded from focus")

	assert.Equal(t, "big_fail", entries[0].Test.Name)
	// big_fail: 100 lost * 0.75 subject * 0.5 test weight = 37.5 points.
	assert.InDelta(t, 37.5, entries[0].Impact, 1e-9)

	assert.Equal(t, "small_fail", entries[1].Test.Name)
	assert.InDelta(t, 25, entries[1].Impact, 1e-9)

	assert.True(t, focus.Failed())
}

func TestComputeFocusCategoryMultiplier(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100, "fail": 0})
	tree := buildTree(t, &rubric.Config{
		Base:    &rubric.NodeConfig{Tests: []rubric.TestConfig{{Name: "pass"}}},
		Bonus:   &rubric.NodeConfig{Weight: fw(20), Tests: []rubric.TestConfig{{Name: "fail"}}},
		Penalty: &rubric.NodeConfig{Weight: fw(10), Tests: []rubric.TestConfig{{Name: "fail"}}},
	}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	focus := ComputeFocus(result)

	assert.Empty(t, focus.Entries[rubric.CategoryBase])

	bonusEntries := focus.Entries[rubric.CategoryBonus]
	require.Len(t, bonusEntries, 1)
	// A fully failed bonus test can cost at most the bonus budget.
	assert.InDelta(t, 20, bonusEntries[0].Impact, 1e-9)

	penaltyEntries := focus.Entries[rubric.CategoryPenalty]
	require.Len(t, penaltyEntries, 1)
	assert.InDelta(t, 10, penaltyEntries[0].Impact, 1e-9)
}

func TestComputeFocusTieKeepsOrder(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"first": 50, "second": 50})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests: []rubric.TestConfig{{Name: "first"}, {Name: "second"}},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	focus := ComputeFocus(result)

	entries := focus.Entries[rubric.CategoryBase]
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Test.Name)
	assert.Equal(t, "second", entries[1].Test.Name)
	assert.Equal(t, entries[0].Impact, entries[1].Impact)
}

func TestComputeFocusHeterogeneousFractions(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"fail": 0, "pass": 100})

	// Direct test group carries 40% of base (subjects_weight 60).
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests:          []rubric.TestConfig{{Name: "fail"}},
		Subjects:       []*rubric.NodeConfig{{Name: "s", Tests: []rubric.TestConfig{{Name: "pass"}}}},
		SubjectsWeight: fw(60),
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	focus := ComputeFocus(result)

	entries := focus.Entries[rubric.CategoryBase]
	require.Len(t, entries, 1)
	assert.InDelta(t, 40, entries[0].Impact, 1e-9)
}

func TestAllTests(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"a": 100, "b": 0, "c": 100})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests:          []rubric.TestConfig{{Name: "c"}},
		Subjects:       []*rubric.NodeConfig{{Name: "s", Tests: []rubric.TestConfig{{Name: "a"}, {Name: "b"}}}},
		SubjectsWeight: fw(50),
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	tests := AllTests(result.Categories[rubric.CategoryBase])
	require.Len(t, tests, 3)
	assert.Equal(t, "a", tests[0].Name)
	assert.Equal(t, "b", tests[1].Name)
	assert.Equal(t, "c", tests[2].Name)
}
