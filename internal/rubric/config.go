package rubric

import (
	"encoding/json"
	"fmt"
)

// Config is the instructor-authored grading criteria document. It is a tree
// with up to three top-level categories; base is mandatory, bonus and
// penalty are optional point budgets.
type Config struct {
	Base    *NodeConfig `json:"base"`
	Bonus   *NodeConfig `json:"bonus,omitempty"`
	Penalty *NodeConfig `json:"penalty,omitempty"`
}

// NodeConfig is one category or subject level of the rubric. A level holds
// tests, nested subjects, or both; when both are present SubjectsWeight
// splits the level between the two groups.
type NodeConfig struct {
	Name string `json:"name,omitempty"`

	// Weight is the unnormalised sibling weight. Non-negative. Absent
	// weights default to 1 so that siblings share the level evenly; an
	// explicit 0 keeps the node zero-weighted.
	Weight *float64 `json:"weight,omitempty"`

	Tests    []TestConfig  `json:"tests,omitempty"`
	Subjects []*NodeConfig `json:"subjects,omitempty"`

	// SubjectsWeight is the percentage (0-100) of this level allocated to
	// the subjects group. Required iff both Tests and Subjects are present.
	SubjectsWeight *float64 `json:"subjects_weight,omitempty"`
}

// TestConfig is one test specification inside a rubric level.
type TestConfig struct {
	// Name must resolve in the template's function registry.
	Name string `json:"name"`

	// Weight is the unnormalised sibling weight, defaulting to 1 when
	// absent. An explicit 0 keeps the test zero-weighted.
	Weight *float64 `json:"weight,omitempty"`

	// File selects which submission files are passed to the test: absent
	// for none, a filename, a list of filenames, or "all".
	File *FileSelector `json:"file,omitempty"`

	// Params is the test's parameter map. Values may include a
	// per-language command map or the "CMD" placeholder; both are resolved
	// at execution time by the grader.
	Params map[string]interface{} `json:"params,omitempty"`
}

// FileSelector is the polymorphic "file" field of a test specification.
// It unmarshals from a JSON string, a list of strings, or the sentinel
// "all".
type FileSelector struct {
	// All selects the entire submission file mapping.
	All bool

	// Names selects specific files. Empty with All unset selects nothing.
	Names []string
}

// SelectorAll is the sentinel value selecting every submission file.
const SelectorAll = "all"

// UnmarshalJSON accepts "all", a single filename, or a list of filenames.
func (s *FileSelector) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == SelectorAll {
			s.All = true
			s.Names = nil
			return nil
		}
		s.All = false
		s.Names = []string{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		s.All = false
		s.Names = list
		return nil
	}

	return fmt.Errorf("file selector must be %q, a filename or a list of filenames", SelectorAll)
}

// MarshalJSON renders the selector back into its compact document form.
func (s FileSelector) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal(SelectorAll)
	}
	if len(s.Names) == 1 {
		return json.Marshal(s.Names[0])
	}
	return json.Marshal(s.Names)
}

// ParseConfig parses a rubric JSON document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rubric document: %w", err)
	}
	return &cfg, nil
}
