package rubric

import "autograder/internal/api"

// Category identifies one of the three top-level rubric categories.
type Category string

const (
	CategoryBase    Category = "base"
	CategoryBonus   Category = "bonus"
	CategoryPenalty Category = "penalty"
)

// Tree is the immutable, weight-normalised form of a rubric. It embeds
// resolved test functions in its leaves, so grading never touches the
// template registry again. A tree is built once per pipeline and shared
// read-only by every concurrent execution.
type Tree struct {
	TemplateName string

	Base    *Node
	Bonus   *Node
	Penalty *Node
}

// Categories returns the present categories in fixed base, bonus, penalty
// order together with their tags.
func (t *Tree) Categories() []CategoryNode {
	cats := []CategoryNode{{CategoryBase, t.Base}}
	if t.Bonus != nil {
		cats = append(cats, CategoryNode{CategoryBonus, t.Bonus})
	}
	if t.Penalty != nil {
		cats = append(cats, CategoryNode{CategoryPenalty, t.Penalty})
	}
	return cats
}

// CategoryNode pairs a category tag with its root node.
type CategoryNode struct {
	Category Category
	Node     *Node
}

// Node is one internal level of the rubric tree: a category root or a
// nested subject. Fields are exported for traversal but must be treated as
// read-only after Build returns.
type Node struct {
	Name string

	// Weight is the normalised sibling weight (sum 100 per sibling group,
	// or all zero). For category roots it is the raw configured weight:
	// base ignores it, bonus and penalty read it as a point budget.
	Weight float64

	Subjects []*Node
	Tests    []*TestNode

	// SubjectsFactor and TestsFactor split a heterogeneous level between
	// its two groups (subjects_weight/100 and the complement). Homogeneous
	// levels carry 1 for the present group and 0 for the absent one.
	SubjectsFactor float64
	TestsFactor    float64

	// SubjectsWeight is the raw configured percentage, kept for result
	// serialisation. Nil on homogeneous levels.
	SubjectsWeight *float64
}

// IsHeterogeneous reports whether the level carries both groups.
func (n *Node) IsHeterogeneous() bool {
	return len(n.Subjects) > 0 && len(n.Tests) > 0
}

// TestNode is a leaf of the rubric tree. It always carries a resolved test
// function.
type TestNode struct {
	Name string

	// Weight is the normalised sibling weight within the level's tests
	// group.
	Weight float64

	Fn     api.TestFunc
	File   *FileSelector
	Params map[string]interface{}
}

// CountTests returns the number of test leaves under the node.
func (n *Node) CountTests() int {
	count := len(n.Tests)
	for _, s := range n.Subjects {
		count += s.CountTests()
	}
	return count
}
