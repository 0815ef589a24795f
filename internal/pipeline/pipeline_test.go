package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cloudforge/internal/analyzer"
	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/synthesize"
)

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, description string) (*blueprint.Blueprint, []string, error) {
	args := m.Called(ctx, description)
	bp, _ := args.Get(0).(*blueprint.Blueprint)
	warnings, _ := args.Get(1).([]string)
	return bp, warnings, args.Error(2)
}

type mockSynthesizer struct{ mock.Mock }

func (m *mockSynthesizer) Synthesize(ctx context.Context, bp *blueprint.Blueprint) (synthesize.Result, error) {
	args := m.Called(ctx, bp)
	res, _ := args.Get(0).(synthesize.Result)
	return res, args.Error(1)
}

type mockRenderer struct{ mock.Mock }

func (m *mockRenderer) Render(ctx context.Context, code, name string, formats []string) (map[string]string, error) {
	args := m.Called(ctx, code, name, formats)
	artifacts, _ := args.Get(0).(map[string]string)
	return artifacts, args.Error(1)
}

type stubAnalyzer struct {
	assessment analyzer.PatternAssessment
	panics     bool
}

func (s *stubAnalyzer) Assess(ctx context.Context, description string) analyzer.PatternAssessment {
	if s.panics {
		panic("analyzer exploded")
	}
	return s.assessment
}

func testBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		Title: "Serverless API",
		Nodes: []blueprint.ServiceNode{
			{Name: "API", VariableID: "api", ServiceType: "APIGateway"},
		},
	}
}

func validResult() synthesize.Result {
	code := `with Diagram("X", show=False):
    api = APIGateway("API")`
	return synthesize.Result{Code: code, Report: synthesize.Validate(code)}
}

func newOrchestrator(gen *mockGenerator, synth *mockSynthesizer, renderer *mockRenderer, opts ...Option) *Orchestrator {
	base := []Option{
		WithMaxRetries(2),
		WithFormats([]string{"png"}),
		WithClock(clockwork.NewFakeClock()),
	}
	return New(gen, synth, renderer, nil, append(base, opts...)...)
}

func TestRun_SuccessPath(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, "desc").Return(testBlueprint(), []string(nil), nil).Once()

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(validResult(), nil).Once()

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, "demo", []string{"png"}).
		Return(map[string]string{"png": "/out/demo.png"}, nil).Once()

	o := newOrchestrator(gen, synth, renderer)
	result := o.Run(context.Background(), "desc", "demo")

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]string{"png": "/out/demo.png"}, result.Artifacts)
	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, result.Summary, "demo")
	require.NotNil(t, result.Validation)
	assert.True(t, result.Validation.IsValid)

	gen.AssertExpectations(t)
	synth.AssertExpectations(t)
	renderer.AssertExpectations(t)
}

func TestRun_StageAttemptsExactlyMaxRetriesPlusOne(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Return((*blueprint.Blueprint)(nil), []string(nil), errors.New("model unavailable"))

	o := newOrchestrator(gen, &mockSynthesizer{}, &mockRenderer{}, WithMaxRetries(3))
	result := o.Run(context.Background(), "desc", "demo")

	assert.False(t, result.Success)
	// maxRetries=3 means exactly 4 attempts: initial + 3 retries.
	gen.AssertNumberOfCalls(t, "Generate", 4)
	assert.Len(t, result.Errors, 4)
	assert.Contains(t, result.Summary, "blueprint stage failed after 4 attempts")
}

func TestRun_RendererAlwaysFailsRecordsExactlyThreeErrors(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testBlueprint(), []string(nil), nil)

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(validResult(), nil)

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string(nil), errors.New("graphviz exploded"))

	o := newOrchestrator(gen, synth, renderer, WithMaxRetries(2))
	result := o.Run(context.Background(), "desc", "demo")

	assert.False(t, result.Success)

	renderErrors := 0
	for _, e := range result.Errors {
		if strings.HasPrefix(e, "render stage failed") {
			renderErrors++
		}
	}
	assert.Equal(t, 3, renderErrors, "maxRetries=2 must record exactly 3 render errors")
}

func TestRun_RenderEmptyArtifactsIsTerminalWithoutRetry(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testBlueprint(), []string(nil), nil)

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(validResult(), nil)

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{}, nil)

	o := newOrchestrator(gen, synth, renderer)
	result := o.Run(context.Background(), "desc", "demo")

	assert.False(t, result.Success)
	renderer.AssertNumberOfCalls(t, "Render", 1)
	assert.Contains(t, result.Summary, "no output files")
}

func TestRun_CodeStageRetriesOnValidationError(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testBlueprint(), []string(nil), nil)

	badReport := synthesize.Validate("import os")
	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).
		Return(synthesize.Result{Report: badReport}, &synthesize.ValidationError{Report: badReport}).Once()
	synth.On("Synthesize", mock.Anything, mock.Anything).
		Return(validResult(), nil).Once()

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{"png": "/out/demo.png"}, nil)

	o := newOrchestrator(gen, synth, renderer)
	result := o.Run(context.Background(), "desc", "demo")

	assert.True(t, result.Success)
	synth.AssertNumberOfCalls(t, "Synthesize", 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "code stage failed")
}

func TestRun_EnrichFoldsAssessmentIntoMetadata(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testBlueprint(), []string(nil), nil)

	var seen *blueprint.Blueprint
	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(1).(*blueprint.Blueprint) }).
		Return(validResult(), nil)

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{"png": "/out/demo.png"}, nil)

	a := &stubAnalyzer{assessment: analyzer.PatternAssessment{
		PatternLabels: []string{"serverless-api"},
		Recommendations: []analyzer.ServiceRecommendation{
			{Service: "Lambda", Role: "handler"},
		},
		Notes: "looks good",
	}}

	o := newOrchestrator(gen, synth, renderer, WithAnalyzer(a))
	result := o.Run(context.Background(), "desc", "demo")

	assert.True(t, result.Success)
	require.NotNil(t, seen)
	assert.Equal(t, "serverless-api", seen.Metadata["Pattern_Labels"])
	assert.Equal(t, "Lambda (handler)", seen.Metadata["Recommended_Services"])
	assert.Equal(t, "looks good", seen.Metadata["Analysis_Notes"])
}

func TestRun_EnrichPanicIsSwallowed(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testBlueprint(), []string(nil), nil)

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(validResult(), nil)

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{"png": "/out/demo.png"}, nil)

	o := newOrchestrator(gen, synth, renderer, WithAnalyzer(&stubAnalyzer{panics: true}))
	result := o.Run(context.Background(), "desc", "demo")

	assert.True(t, result.Success, "enrichment failure must never be terminal")
}

func TestRun_ErrorsAccumulateAcrossStages(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Return((*blueprint.Blueprint)(nil), []string(nil), errors.New("transient")).Once()
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(testBlueprint(), []string(nil), nil).Once()

	synth := &mockSynthesizer{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(validResult(), nil)

	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string(nil), errors.New("render down")).Once()
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{"png": "/out/demo.png"}, nil).Once()

	o := newOrchestrator(gen, synth, renderer)
	result := o.Run(context.Background(), "desc", "demo")

	assert.True(t, result.Success)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "blueprint stage failed")
	assert.Contains(t, result.Errors[1], "render stage failed")
}

func TestRun_NeverPanics(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("generator exploded") }).
		Return((*blueprint.Blueprint)(nil), []string(nil), nil)

	o := newOrchestrator(gen, &mockSynthesizer{}, &mockRenderer{})

	var result Result
	require.NotPanics(t, func() {
		result = o.Run(context.Background(), "desc", "demo")
	})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
}
