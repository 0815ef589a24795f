// internal/pipeline/state.go
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/synthesize"
)

// Stage names, in execution order.
const (
	StageBlueprint = "blueprint"
	StageEnrich    = "enrich"
	StageCode      = "code"
	StageValidate  = "validate"
	StageRender    = "render"
)

// PipelineState is the mutable state of one run. It is owned
// exclusively by that run; nothing here is shared across runs.
type PipelineState struct {
	// RunID identifies the run in logs and metrics.
	RunID string

	// Inputs.
	Description string
	Name        string

	// Stage outputs.
	Blueprint  *blueprint.Blueprint
	Code       string
	Validation *synthesize.ValidationReport
	Artifacts  map[string]string

	// Errors accumulates every attempt's failure, in order; it is never
	// overwritten, so callers see the full retry history.
	Errors []string

	// Attempts counts attempts per stage.
	Attempts map[string]int

	StartedAt   time.Time
	CompletedAt time.Time
	Success     bool
}

// newState constructs the state for a fresh run.
func newState(description, name string, startedAt time.Time) *PipelineState {
	return &PipelineState{
		RunID:       uuid.NewString(),
		Description: description,
		Name:        name,
		Attempts:    make(map[string]int),
		StartedAt:   startedAt,
	}
}

// Result is the public outcome of a pipeline run.
type Result struct {
	Success    bool
	Blueprint  *blueprint.Blueprint
	Code       string
	Validation *synthesize.ValidationReport
	Artifacts  map[string]string
	Errors     []string

	// Summary is a single human-readable description of the outcome.
	Summary string

	// RunID and Duration describe the run itself.
	RunID    string
	Duration time.Duration
}

// result folds the terminal state into the public shape.
func (s *PipelineState) result(summary string) Result {
	return Result{
		Success:    s.Success,
		Blueprint:  s.Blueprint,
		Code:       s.Code,
		Validation: s.Validation,
		Artifacts:  s.Artifacts,
		Errors:     s.Errors,
		Summary:    summary,
		RunID:      s.RunID,
		Duration:   s.CompletedAt.Sub(s.StartedAt),
	}
}
