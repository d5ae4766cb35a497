package template

import (
	"context"

	"autograder/internal/api"
)

// RunFunc is the execution body of a test function built with NewFunc.
type RunFunc func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error)

// Func adapts a plain function into the api.TestFunc contract. The built-in
// test libraries declare their tests through this adapter instead of
// repeating the interface boilerplate per test.
type Func struct {
	name        string
	kind        api.FileKind
	descriptors []api.ParamDescriptor
	run         RunFunc
}

// NewFunc builds a test function from its declaration and execution body.
func NewFunc(name string, kind api.FileKind, descriptors []api.ParamDescriptor, run RunFunc) *Func {
	return &Func{
		name:        name,
		kind:        kind,
		descriptors: descriptors,
		run:         run,
	}
}

func (f *Func) Name() string { return f.name }

func (f *Func) ParameterDescriptors() []api.ParamDescriptor { return f.descriptors }

func (f *Func) RequiredFileKind() api.FileKind { return f.kind }

func (f *Func) Execute(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
	return f.run(ctx, files, sandbox, params)
}
