package pipeline

import (
	"time"

	"autograder/internal/api"
	"autograder/internal/grader"
)

// Execution tracks one submission's run through a pipeline: the stage
// trace, the state machine and the materialised result. An execution is
// driven by a single goroutine; accessors are safe once Run has returned.
type Execution struct {
	submission *api.Submission
	planned    []Stage

	status     api.ExecutionStatus
	records    []StageRecord
	startedAt  time.Time
	finishedAt time.Time

	gradeResult *grader.Result
	focus       *grader.Focus
	feedback    string
	hasFeedback bool
	result      *api.GradingResult
}

func newExecution(sub *api.Submission, planned []Stage) *Execution {
	return &Execution{
		submission: sub,
		planned:    planned,
		status:     api.ExecutionEmpty,
	}
}

func (e *Execution) start() {
	e.status = api.ExecutionRunning
	e.startedAt = time.Now()
}

func (e *Execution) success(stage Stage, duration time.Duration, message string) {
	e.records = append(e.records, StageRecord{
		Stage:    stage,
		Status:   api.StageSuccess,
		Duration: duration,
		Message:  message,
	})
}

// fail appends a graceful failure record and moves the execution to
// failed. No further stages run.
func (e *Execution) fail(stage Stage, duration time.Duration, message string, details api.ErrorDetails) {
	e.records = append(e.records, StageRecord{
		Stage:        stage,
		Status:       api.StageFail,
		Duration:     duration,
		Message:      message,
		ErrorDetails: details,
	})
	e.status = api.ExecutionFailed
}

// abort records a recovered panic against the stage that raised it and
// moves the execution to interrupted.
func (e *Execution) abort(stage Stage, message string) {
	e.records = append(e.records, StageRecord{
		Stage:   stage,
		Status:  api.StageFail,
		Message: message,
		ErrorDetails: api.ErrorDetails{
			"error_type": api.ErrorTypeInternal,
			"panic":      message,
		},
	})
	e.status = api.ExecutionInterrupted
}

// finalize closes the execution and materialises the GradingResult. Runs
// on every exit path; a still-running execution becomes a success.
func (e *Execution) finalize() {
	e.finishedAt = time.Now()
	if e.status == api.ExecutionRunning {
		e.status = api.ExecutionSuccess
	}

	result := &api.GradingResult{}
	if e.gradeResult != nil {
		result.FinalScore = e.gradeResult.FinalScore
		result.ResultTree = e.gradeResult.Tree
	}
	if e.hasFeedback {
		result.Feedback = e.feedback
	}
	e.result = result
}

// Status returns the execution's lifecycle state.
func (e *Execution) Status() api.ExecutionStatus {
	return e.status
}

// Result returns the materialised GradingResult, nil before finalization.
func (e *Execution) Result() *api.GradingResult {
	return e.result
}

// Focus returns the focus ranking, nil unless the focus stage ran.
func (e *Execution) Focus() *grader.Focus {
	return e.focus
}

// Records returns the stage trace.
func (e *Execution) Records() []StageRecord {
	return e.records
}

// Response assembles the API-layer view of the execution. Final score and
// result tree are populated iff the grade stage succeeded.
func (e *Execution) Response() api.ExecutionResponse {
	resp := api.ExecutionResponse{
		Status: e.status,
	}

	if e.gradeResult != nil {
		score := e.gradeResult.FinalScore
		resp.FinalScore = &score
		resp.ResultTree = e.gradeResult.Tree
	}
	if e.hasFeedback {
		f := e.feedback
		resp.Feedback = &f
	}

	summary := api.ExecutionSummary{
		TotalStepsPlanned: len(e.planned),
		ExecutionTimeMs:   e.finishedAt.Sub(e.startedAt).Milliseconds(),
	}
	for _, record := range e.records {
		step := api.StepSummary{
			Name:         string(record.Stage),
			Status:       record.Status,
			Message:      record.Message,
			ErrorDetails: record.ErrorDetails,
		}
		summary.Steps = append(summary.Steps, step)
		if record.Status == api.StageSuccess {
			summary.StepsCompleted++
		} else if summary.FailedAtStep == nil {
			name := string(record.Stage)
			summary.FailedAtStep = &name
		}
	}
	resp.PipelineExecution = summary

	return resp
}
