package template

import (
	"context"
	"testing"

	"autograder/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingTest(name string) *Func {
	return NewFunc(name, api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			return api.TestOutcome{Score: 100, Report: "ok"}, nil
		})
}

func TestNewTemplate(t *testing.T) {
	tmpl, err := New("web-static", false, passingTest("has_tag"), passingTest("has_style"))
	require.NoError(t, err)

	assert.Equal(t, "web-static", tmpl.Name())
	assert.False(t, tmpl.RequiresSandbox())
	assert.Equal(t, []string{"has_style", "has_tag"}, tmpl.TestNames())

	fn, ok := tmpl.Get("has_tag")
	require.True(t, ok)
	assert.Equal(t, "has_tag", fn.Name())

	_, ok = tmpl.Get("missing")
	assert.False(t, ok)
}

func TestNewTemplateRejectsDuplicates(t *testing.T) {
	_, err := New("dup", false, passingTest("same"), passingTest("same"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestNewTemplateRejectsEmptyName(t *testing.T) {
	_, err := New("", false)
	assert.Error(t, err)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	tmpl, err := New("program-io", true, passingTest("expect_output"))
	require.NoError(t, err)
	require.NoError(t, reg.Register(tmpl))

	got, err := reg.Get("program-io")
	require.NoError(t, err)
	assert.True(t, got.RequiresSandbox())

	_, err = reg.Get("absent")
	assert.True(t, api.IsNotFound(err))

	err = reg.Register(tmpl)
	assert.Error(t, err, "double registration must fail")

	assert.Equal(t, []string{"program-io"}, reg.Names())
}

func TestFuncAdapter(t *testing.T) {
	called := false
	fn := NewFunc("probe", api.FileKindHTML,
		[]api.ParamDescriptor{{Name: "tag", Description: "tag to find", Type: "string"}},
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			called = true
			return api.TestOutcome{Score: 42}, nil
		})

	assert.Equal(t, "probe", fn.Name())
	assert.Equal(t, api.FileKindHTML, fn.RequiredFileKind())
	require.Len(t, fn.ParameterDescriptors(), 1)

	outcome, err := fn.Execute(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 42.0, outcome.Score)
}
