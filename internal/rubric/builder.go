package rubric

import (
	"fmt"

	"autograder/internal/api"
	"autograder/internal/template"
	"autograder/pkg/logging"
)

const builderSubsystem = "RubricBuilder"

// defaultWeight is applied to nodes and tests whose weight is absent from
// the document, so that siblings without explicit weights share the level
// evenly.
const defaultWeight = 1.0

// Build validates a rubric configuration against a template and produces
// the immutable, weight-normalised rubric tree.
//
// Validation, test resolution and weight normalisation all happen here,
// once; executions reuse the returned tree without further checks. Build
// fails with api.InvalidRubricError, api.MissingSubjectsWeightError or
// api.TestNotInTemplateError.
func Build(cfg *Config, tmpl *template.Template) (*Tree, error) {
	if cfg == nil {
		return nil, &api.InvalidRubricError{Path: ".", Reason: "rubric document is empty"}
	}
	if cfg.Base == nil {
		return nil, &api.InvalidRubricError{Path: ".", Reason: "base category is required"}
	}

	tree := &Tree{TemplateName: tmpl.Name()}

	base, err := buildNode(cfg.Base, tmpl, string(CategoryBase))
	if err != nil {
		return nil, err
	}
	tree.Base = base

	if cfg.Bonus != nil {
		bonus, err := buildNode(cfg.Bonus, tmpl, string(CategoryBonus))
		if err != nil {
			return nil, err
		}
		tree.Bonus = bonus
	}

	if cfg.Penalty != nil {
		penalty, err := buildNode(cfg.Penalty, tmpl, string(CategoryPenalty))
		if err != nil {
			return nil, err
		}
		tree.Penalty = penalty
	}

	logging.Debug(builderSubsystem, "Built rubric tree for template %s: %d base tests, bonus=%v, penalty=%v",
		tmpl.Name(), tree.Base.CountTests(), tree.Bonus != nil, tree.Penalty != nil)

	return tree, nil
}

// buildNode recursively constructs and validates one rubric level. path
// locates the node for error reporting.
func buildNode(cfg *NodeConfig, tmpl *template.Template, path string) (*Node, error) {
	if len(cfg.Tests) == 0 && len(cfg.Subjects) == 0 {
		return nil, &api.InvalidRubricError{Path: path, Reason: "level has neither tests nor subjects"}
	}
	if cfg.Weight != nil && *cfg.Weight < 0 {
		return nil, &api.InvalidRubricError{Path: path, Reason: fmt.Sprintf("negative weight %v", *cfg.Weight)}
	}

	node := &Node{
		Name:   cfg.Name,
		Weight: weightOrDefault(cfg.Weight),
	}
	if node.Name == "" {
		node.Name = path
	}

	heterogeneous := len(cfg.Tests) > 0 && len(cfg.Subjects) > 0
	switch {
	case heterogeneous:
		if cfg.SubjectsWeight == nil {
			return nil, &api.MissingSubjectsWeightError{Path: path}
		}
		sw := *cfg.SubjectsWeight
		if sw < 0 || sw > 100 {
			return nil, &api.InvalidRubricError{Path: path, Reason: fmt.Sprintf("subjects_weight %v outside [0, 100]", sw)}
		}
		node.SubjectsWeight = cfg.SubjectsWeight
		node.SubjectsFactor = sw / 100
		node.TestsFactor = 1 - sw/100
	case len(cfg.Subjects) > 0:
		node.SubjectsFactor = 1
	default:
		node.TestsFactor = 1
	}

	for i, sub := range cfg.Subjects {
		subPath := fmt.Sprintf("%s.subjects[%d]", path, i)
		if sub == nil {
			return nil, &api.InvalidRubricError{Path: subPath, Reason: "subject is null"}
		}
		child, err := buildNode(sub, tmpl, subPath)
		if err != nil {
			return nil, err
		}
		node.Subjects = append(node.Subjects, child)
	}

	for i, tc := range cfg.Tests {
		testPath := fmt.Sprintf("%s.tests[%d]", path, i)
		if tc.Name == "" {
			return nil, &api.InvalidRubricError{Path: testPath, Reason: "test has no name"}
		}
		if tc.Weight != nil && *tc.Weight < 0 {
			return nil, &api.InvalidRubricError{Path: testPath, Reason: fmt.Sprintf("negative weight %v", *tc.Weight)}
		}
		fn, ok := tmpl.Get(tc.Name)
		if !ok {
			return nil, &api.TestNotInTemplateError{TestName: tc.Name, Template: tmpl.Name()}
		}
		node.Tests = append(node.Tests, &TestNode{
			Name:   tc.Name,
			Weight: weightOrDefault(tc.Weight),
			Fn:     fn,
			File:   tc.File,
			Params: tc.Params,
		})
	}

	normalizeSubjects(node.Subjects)
	normalizeTests(node.Tests)

	return node, nil
}

func weightOrDefault(w *float64) float64 {
	if w == nil {
		return defaultWeight
	}
	return *w
}

// normalizeSubjects scales sibling subject weights to sum to 100. A
// zero-sum group is left all-zero.
func normalizeSubjects(subjects []*Node) {
	var sum float64
	for _, s := range subjects {
		sum += s.Weight
	}
	if sum == 0 {
		return
	}
	for _, s := range subjects {
		s.Weight = s.Weight * 100 / sum
	}
}

// normalizeTests scales sibling test weights to sum to 100. A zero-sum
// group is left all-zero.
func normalizeTests(tests []*TestNode) {
	var sum float64
	for _, t := range tests {
		sum += t.Weight
	}
	if sum == 0 {
		return
	}
	for _, t := range tests {
		t.Weight = t.Weight * 100 / sum
	}
}
