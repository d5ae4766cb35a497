package pipeline

import (
	"time"

	"autograder/internal/api"
)

// Stage tags the steps of a grading run. The tags appear verbatim in the
// execution trace handed to the API layer.
type Stage string

const (
	StageLoadTemplate Stage = "LOAD_TEMPLATE"
	StageBuildTree    Stage = "BUILD_TREE"
	StagePreflight    Stage = "PREFLIGHT"
	StageGrade        Stage = "GRADE"
	StageFocus        Stage = "FOCUS"
	StageFeedback     Stage = "FEEDBACK"
	StageExport       Stage = "EXPORT"
)

// StageRecord is one attempted stage in the execution trace.
type StageRecord struct {
	Stage        Stage
	Status       api.StageStatus
	Duration     time.Duration
	Message      string
	ErrorDetails api.ErrorDetails
}
