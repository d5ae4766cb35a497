package api

import (
	"context"
	"time"
)

// Language identifies a supported submission runtime. The set of supported
// languages is determined by the configured sandbox pools plus the canonical
// command table in the grader.
type Language string

const (
	LanguagePython Language = "python"
	LanguageJava   Language = "java"
	LanguageNode   Language = "node"
	LanguageGo     Language = "go"
	LanguageC      Language = "c"
	LanguageCpp    Language = "cpp"
)

// Submission is a single student submission. It is created by the API layer
// and treated as immutable for the duration of a pipeline execution.
type Submission struct {
	// AssignmentID and UserID together identify the submission.
	AssignmentID string `json:"assignmentId"`
	UserID       string `json:"userId"`

	// Username is the display name used in feedback reports.
	Username string `json:"username,omitempty"`

	// Files maps filename to content. Insertion order is immaterial.
	Files map[string][]byte `json:"files"`

	// Language tags the submission runtime. Empty for static submissions
	// (e.g. plain HTML/CSS) that never touch a sandbox.
	Language Language `json:"language,omitempty"`
}

// SubmissionFile is a single named file handed to a test function. Test
// functions receive borrows; they must not mutate Content.
type SubmissionFile struct {
	Name    string
	Content []byte
}

// FileKind tags the kind of file a test function operates on. Templates use
// it to advertise what their tests expect; the empty kind means the test has
// no file-kind requirement.
type FileKind string

const (
	FileKindNone       FileKind = ""
	FileKindHTML       FileKind = "HTML"
	FileKindCSS        FileKind = "CSS"
	FileKindJavaScript FileKind = "JavaScript"
	FileKindEssay      FileKind = "Essay"
)

// ParamDescriptor advertises one configurable parameter of a test function,
// excluding file content which is delivered separately.
type ParamDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// TestOutcome is the result a test function returns for one invocation.
type TestOutcome struct {
	// Score in [0, 100]. Values outside the range are clamped by the grader.
	Score float64 `json:"score"`

	// Report is the human-readable explanation shown in feedback.
	Report string `json:"report"`

	// Metadata carries any test-emitted auxiliary data.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CommandResult is the outcome of one command run inside a sandbox.
type CommandResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// SandboxHandle is the capability a test function (and the preflight stage)
// receives for an acquired sandbox container. Cleanup is owned by the pool
// on release and is intentionally absent from this interface.
type SandboxHandle interface {
	// CopyFiles writes the given files into the container working area.
	CopyFiles(ctx context.Context, files map[string][]byte) error

	// RunCommand runs a shell command in the working area and blocks until
	// it exits or the pool's running TTL destroys the container.
	RunCommand(ctx context.Context, command string, stdin string) (CommandResult, error)

	// ReadFile reads an artifact back out of the working area.
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// TestFunc is the contract every test function in a template must satisfy.
// Implementations live in external test libraries; the core only resolves,
// invokes and contains them.
type TestFunc interface {
	// Name is unique within a template.
	Name() string

	// ParameterDescriptors advertises the configurable parameters.
	ParameterDescriptors() []ParamDescriptor

	// RequiredFileKind is the kind of file this test operates on, or
	// FileKindNone.
	RequiredFileKind() FileKind

	// Execute runs the test. files is the rubric-selected file set (may be
	// empty), sandbox is non-nil iff the template requires a sandbox and
	// preflight acquired one. Returning an error is equivalent to a zero
	// score with the error text as report; the grader contains both errors
	// and panics.
	Execute(ctx context.Context, files []SubmissionFile, sandbox SandboxHandle, params map[string]interface{}) (TestOutcome, error)
}

// ResultNode is one node of the serialisable result tree. The tree is
// structurally isomorphic to the rubric tree that produced it.
type ResultNode struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`

	// Leaf-only fields.
	Report   string                 `json:"report,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Internal-node fields. SubjectsWeight is only set on heterogeneous
	// levels carrying both groups.
	Subjects       []*ResultNode `json:"subjects,omitempty"`
	Tests          []*ResultNode `json:"tests,omitempty"`
	SubjectsWeight *float64      `json:"subjectsWeight,omitempty"`
}

// IsLeaf reports whether the node is a test leaf.
func (n *ResultNode) IsLeaf() bool {
	return len(n.Subjects) == 0 && len(n.Tests) == 0
}

// GradingResult is materialised once per execution, on every terminal path.
type GradingResult struct {
	FinalScore float64     `json:"finalScore"`
	Feedback   string      `json:"feedback,omitempty"`
	ResultTree *ResultNode `json:"resultTree,omitempty"`
}

// ExecutionStatus is the lifecycle state of a pipeline execution.
type ExecutionStatus string

const (
	ExecutionEmpty       ExecutionStatus = "empty"
	ExecutionRunning     ExecutionStatus = "running"
	ExecutionSuccess     ExecutionStatus = "success"
	ExecutionFailed      ExecutionStatus = "failed"
	ExecutionInterrupted ExecutionStatus = "interrupted"
)

// StageStatus is the outcome of a single pipeline stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFail    StageStatus = "fail"
)

// ErrorDetails is the structured failure payload of a stage. Every payload
// carries an "error_type" key; the remaining keys depend on the type (see
// the preflight payload shapes in the pipeline package).
type ErrorDetails map[string]interface{}

// ErrorType returns the payload's error_type, or empty.
func (d ErrorDetails) ErrorType() string {
	t, _ := d["error_type"].(string)
	return t
}

// Structured error_type values recorded in stage traces.
const (
	ErrorTypeRequiredFileMissing = "required_file_missing"
	ErrorTypeSetupCommandFailed  = "setup_command_failed"
	ErrorTypeSandboxUnavailable  = "sandbox_unavailable"
	ErrorTypeTemplateNotFound    = "template_not_found"
	ErrorTypeInvalidRubric       = "invalid_rubric"
	ErrorTypeInternal            = "internal_error"
)

// StepSummary is one entry of the user-visible execution trace.
type StepSummary struct {
	Name         string       `json:"name"`
	Status       StageStatus  `json:"status"`
	Message      string       `json:"message,omitempty"`
	ErrorDetails ErrorDetails `json:"error_details,omitempty"`
}

// ExecutionSummary is the trace portion of the execution response.
type ExecutionSummary struct {
	FailedAtStep       *string       `json:"failed_at_step"`
	TotalStepsPlanned  int           `json:"total_steps_planned"`
	StepsCompleted     int           `json:"steps_completed"`
	ExecutionTimeMs    int64         `json:"execution_time_ms"`
	Steps              []StepSummary `json:"steps"`
}

// ExecutionResponse is the shape handed to the API layer for one graded
// submission.
type ExecutionResponse struct {
	Status            ExecutionStatus  `json:"status"`
	FinalScore        *float64         `json:"final_score"`
	Feedback          *string          `json:"feedback"`
	ResultTree        *ResultNode      `json:"result_tree"`
	PipelineExecution ExecutionSummary `json:"pipeline_execution"`
}

// SandboxState is the lifecycle state of a pooled container.
type SandboxState string

const (
	SandboxIdle      SandboxState = "idle"
	SandboxActive    SandboxState = "active"
	SandboxDestroyed SandboxState = "destroyed"
)

// PoolStatus is a point-in-time snapshot of one language pool, used by the
// check command and the health endpoint.
type PoolStatus struct {
	Language Language  `json:"language"`
	Idle     int       `json:"idle"`
	Active   int       `json:"active"`
	Total    int       `json:"total"`
	MaxTotal int       `json:"maxTotal"`
	Image    string    `json:"image"`
	Checked  time.Time `json:"checked"`
}
