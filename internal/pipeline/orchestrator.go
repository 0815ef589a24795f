// Package pipeline orchestrates the diagram generation state machine:
// blueprint → enrich (optional) → code → validate → render, with an
// independent bounded retry budget per stage and full error
// accumulation across attempts.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/analyzer"
	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
	"github.com/fyrsmithlabs/cloudforge/internal/render"
	"github.com/fyrsmithlabs/cloudforge/internal/synthesize"
)

// BlueprintGenerator produces a compiled blueprint from a description.
type BlueprintGenerator interface {
	Generate(ctx context.Context, description string) (*blueprint.Blueprint, []string, error)
}

// PatternAnalyzer enriches a description with pattern knowledge. It
// never returns an error; degraded output is a zero-value assessment.
type PatternAnalyzer interface {
	Assess(ctx context.Context, description string) analyzer.PatternAssessment
}

// CodeSynthesizer turns a blueprint into validated diagram code.
type CodeSynthesizer interface {
	Synthesize(ctx context.Context, bp *blueprint.Blueprint) (synthesize.Result, error)
}

// Orchestrator runs the pipeline. Construct with New; all collaborators
// are injected.
type Orchestrator struct {
	generator BlueprintGenerator
	analyzer  PatternAnalyzer
	synth     CodeSynthesizer
	renderer  render.Renderer

	log        *logging.Logger
	clock      clockwork.Clock
	maxRetries int
	formats    []string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAnalyzer enables the enrich stage.
func WithAnalyzer(a PatternAnalyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

// WithMaxRetries sets the per-stage retry budget (attempts = n+1).
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// WithFormats sets the requested render formats.
func WithFormats(formats []string) Option {
	return func(o *Orchestrator) { o.formats = formats }
}

// WithClock injects a clock for deterministic timestamps in tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an Orchestrator. The logger may be nil.
func New(gen BlueprintGenerator, synth CodeSynthesizer, renderer render.Renderer, log *logging.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logging.NewNop()
	}
	o := &Orchestrator{
		generator:  gen,
		synth:      synth,
		renderer:   renderer,
		log:        log.Named("pipeline"),
		clock:      clockwork.NewRealClock(),
		maxRetries: 3,
		formats:    []string{"png", "pdf", "svg"},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline. It never panics or returns an error
// out of this entry point: every internal failure folds into the
// returned Result's failure shape.
func (o *Orchestrator) Run(ctx context.Context, description, name string) (result Result) {
	state := newState(description, name, o.clock.Now())
	ctx = logging.WithRunID(ctx, state.RunID)
	ctx = logging.WithDiagram(ctx, name)

	defer func() {
		if r := recover(); r != nil {
			o.log.Error(ctx, "pipeline panicked", zap.Any("panic", r))
			state.Errors = append(state.Errors, fmt.Sprintf("pipeline panic: %v", r))
			state.CompletedAt = o.clock.Now()
			runsTotal.WithLabelValues("failure").Inc()
			result = state.result("pipeline aborted by internal panic")
		}
	}()

	o.log.Info(ctx, "pipeline started", zap.Int("max_retries", o.maxRetries))

	// Blueprint stage.
	if !o.runStage(ctx, state, StageBlueprint, func(ctx context.Context) error {
		bp, warnings, err := o.generator.Generate(ctx, description)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			o.log.Warn(ctx, "blueprint warning", zap.String("warning", w))
		}
		state.Blueprint = bp
		return nil
	}) {
		return o.finish(ctx, state, fmt.Sprintf("blueprint stage failed after %d attempts", state.Attempts[StageBlueprint]))
	}

	// Enrich stage: best effort, never terminal.
	o.enrich(ctx, state)

	// Code stage: generation failures and validation rejections both
	// retry regeneration.
	if !o.runStage(ctx, state, StageCode, func(ctx context.Context) error {
		res, err := o.synth.Synthesize(ctx, state.Blueprint)
		if err != nil {
			return err
		}
		state.Code = res.Code
		state.Validation = &res.Report
		return nil
	}) {
		return o.finish(ctx, state, fmt.Sprintf("code stage failed after %d attempts", state.Attempts[StageCode]))
	}

	// Validate stage: deterministic structural check over the final
	// code; errors at severity "error" fail the attempt.
	if !o.runStage(ctx, state, StageValidate, func(ctx context.Context) error {
		report := synthesize.Validate(state.Code)
		state.Validation = &report
		if !report.IsValid {
			return &synthesize.ValidationError{Report: report}
		}
		for _, w := range report.Warnings {
			o.log.Warn(ctx, "validation warning", zap.String("message", w.Message))
		}
		return nil
	}) {
		return o.finish(ctx, state, fmt.Sprintf("validate stage failed after %d attempts", state.Attempts[StageValidate]))
	}

	// Render stage: an execution error is retryable; a clean execution
	// that produced nothing is a terminal failure.
	if !o.runStage(ctx, state, StageRender, func(ctx context.Context) error {
		artifacts, err := o.renderer.Render(ctx, state.Code, name, o.formats)
		if err != nil {
			return err
		}
		state.Artifacts = artifacts
		return nil
	}) {
		return o.finish(ctx, state, fmt.Sprintf("render stage failed after %d attempts", state.Attempts[StageRender]))
	}

	if len(state.Artifacts) == 0 {
		state.Errors = append(state.Errors, "render completed but produced no output files")
		return o.finish(ctx, state, "pipeline completed but no output files were generated")
	}

	state.Success = true
	formats := make([]string, 0, len(state.Artifacts))
	for f := range state.Artifacts {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return o.finish(ctx, state, fmt.Sprintf("diagram %q rendered in %d format(s): %s",
		name, len(state.Artifacts), strings.Join(formats, ", ")))
}

// runStage executes one stage with its own retry budget. Every failed
// attempt appends to the state's error list. Returns true on success.
func (o *Orchestrator) runStage(ctx context.Context, state *PipelineState, stage string, fn func(context.Context) error) bool {
	for attempt := 1; attempt <= o.maxRetries+1; attempt++ {
		state.Attempts[stage] = attempt
		stageAttempts.WithLabelValues(stage).Inc()

		start := o.clock.Now()
		err := fn(ctx)
		stageDuration.WithLabelValues(stage).Observe(o.clock.Since(start).Seconds())

		if err == nil {
			o.log.Info(ctx, "stage completed",
				zap.String("stage", stage),
				zap.Int("attempt", attempt))
			return true
		}

		stageFailures.WithLabelValues(stage).Inc()
		state.Errors = append(state.Errors, fmt.Sprintf("%s stage failed: %v", stage, err))
		o.log.Warn(ctx, "stage attempt failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.maxRetries+1),
			zap.Error(err))
	}
	return false
}

// enrich runs pattern analysis and folds a non-empty assessment into
// the blueprint metadata. Any failure, including a panic, skips the
// stage.
func (o *Orchestrator) enrich(ctx context.Context, state *PipelineState) {
	if o.analyzer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Warn(ctx, "enrich stage panicked, skipping", zap.Any("panic", r))
		}
	}()

	state.Attempts[StageEnrich] = 1
	stageAttempts.WithLabelValues(StageEnrich).Inc()

	assessment := o.analyzer.Assess(ctx, state.Description)
	if assessment.IsZero() {
		o.log.Debug(ctx, "enrichment produced nothing, continuing without it")
		return
	}

	if state.Blueprint.Metadata == nil {
		state.Blueprint.Metadata = make(map[string]string)
	}
	if len(assessment.PatternLabels) > 0 {
		state.Blueprint.Metadata["Pattern_Labels"] = strings.Join(assessment.PatternLabels, ", ")
	}
	if len(assessment.Recommendations) > 0 {
		recs := make([]string, 0, len(assessment.Recommendations))
		for _, rec := range assessment.Recommendations {
			recs = append(recs, fmt.Sprintf("%s (%s)", rec.Service, rec.Role))
		}
		state.Blueprint.Metadata["Recommended_Services"] = strings.Join(recs, "; ")
	}
	if assessment.Notes != "" {
		state.Blueprint.Metadata["Analysis_Notes"] = assessment.Notes
	}

	o.log.Info(ctx, "blueprint enriched",
		zap.Strings("patterns", assessment.PatternLabels),
		zap.Int("recommendations", len(assessment.Recommendations)))
}

// finish stamps the terminal state and emits run metrics.
func (o *Orchestrator) finish(ctx context.Context, state *PipelineState, summary string) Result {
	state.CompletedAt = o.clock.Now()

	outcome := "failure"
	if state.Success {
		outcome = "success"
	}
	runsTotal.WithLabelValues(outcome).Inc()

	o.log.Info(ctx, "pipeline finished",
		zap.Bool("success", state.Success),
		zap.Int("errors", len(state.Errors)),
		zap.Duration("duration", state.CompletedAt.Sub(state.StartedAt)),
		zap.String("summary", summary))

	return state.result(summary)
}
