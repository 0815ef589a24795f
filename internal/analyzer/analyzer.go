// Package analyzer enriches architecture descriptions with pattern
// knowledge before blueprint compilation.
//
// Three sub-agents run against the generation client: Architect and
// Critic concurrently, then Reviewer over both raw outputs. The
// analyzer never returns an error; any failure degrades to a smaller
// (possibly zero-value) assessment so the pipeline can proceed without
// enrichment.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/genai"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
)

// ServiceRecommendation names a service and the role it plays in a
// detected pattern.
type ServiceRecommendation struct {
	Service string `json:"service"`
	Role    string `json:"role"`
}

// PatternAssessment is the analyzer's aggregate output.
type PatternAssessment struct {
	// PatternLabels are detected architecture patterns
	// ("serverless-api", "event-driven", ...).
	PatternLabels []string

	// Recommendations are services the patterns call for.
	Recommendations []ServiceRecommendation

	// Notes is the Reviewer's synthesized insight.
	Notes string
}

// IsZero reports whether the assessment carries no enrichment.
func (a PatternAssessment) IsZero() bool {
	return len(a.PatternLabels) == 0 && len(a.Recommendations) == 0 && a.Notes == ""
}

// architectOutput is the Architect agent's JSON contract.
type architectOutput struct {
	PatternLabels       []string                `json:"pattern_labels"`
	RecommendedServices []ServiceRecommendation `json:"recommended_services"`
	SkillNotes          string                  `json:"skill_notes"`
}

// criticOutput is the Critic agent's JSON contract.
type criticOutput struct {
	Gaps        []string `json:"gaps"`
	Risks       []string `json:"risks"`
	Suggestions []string `json:"suggestions"`
}

// Analyzer runs the three-agent assessment.
type Analyzer struct {
	client genai.Client
	log    *logging.Logger

	agentTimeout time.Duration
	maxTokens    int

	architectPersona string
	criticPersona    string
	reviewerPersona  string
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithAgentTimeout bounds each sub-agent call.
func WithAgentTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.agentTimeout = d }
}

// WithMaxOutputTokens bounds each sub-agent response.
func WithMaxOutputTokens(n int) Option {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithArchitectPersona replaces the default Architect system prompt.
func WithArchitectPersona(p string) Option {
	return func(a *Analyzer) { a.architectPersona = p }
}

// WithCriticPersona replaces the default Critic system prompt.
func WithCriticPersona(p string) Option {
	return func(a *Analyzer) { a.criticPersona = p }
}

// WithReviewerPersona replaces the default Reviewer system prompt.
func WithReviewerPersona(p string) Option {
	return func(a *Analyzer) { a.reviewerPersona = p }
}

// New creates an Analyzer. The logger may be nil.
func New(client genai.Client, log *logging.Logger, opts ...Option) *Analyzer {
	if log == nil {
		log = logging.NewNop()
	}
	a := &Analyzer{
		client:           client,
		log:              log.Named("analyzer"),
		agentTimeout:     45 * time.Second,
		maxTokens:        1200,
		architectPersona: defaultArchitectPersona,
		criticPersona:    defaultCriticPersona,
		reviewerPersona:  defaultReviewerPersona,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess runs Architect and Critic concurrently, then Reviewer over
// both raw outputs. It never returns an error: sub-agent failures
// degrade their contribution to empty, and a total failure yields the
// zero-value assessment.
func (a *Analyzer) Assess(ctx context.Context, description string) (assessment PatternAssessment) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error(ctx, "pattern analysis panicked, returning empty assessment",
				zap.Any("panic", r))
			assessment = PatternAssessment{}
		}
	}()

	input := "Architecture description:\n" + description

	archCh := make(chan architectOutput, 1)
	critCh := make(chan criticOutput, 1)

	go func() {
		var out architectOutput
		if err := a.callJSON(ctx, a.architectPersona, input, &out); err != nil {
			a.log.Warn(ctx, "architect agent failed", zap.Error(err))
			out = architectOutput{}
		}
		archCh <- out
	}()
	go func() {
		var out criticOutput
		if err := a.callJSON(ctx, a.criticPersona, input, &out); err != nil {
			a.log.Warn(ctx, "critic agent failed", zap.Error(err))
			out = criticOutput{}
		}
		critCh <- out
	}()

	arch := <-archCh
	crit := <-critCh

	a.log.Debug(ctx, "parallel agents completed",
		zap.Strings("patterns", arch.PatternLabels),
		zap.Int("gaps", len(crit.Gaps)),
		zap.Int("risks", len(crit.Risks)))

	notes := a.review(ctx, description, arch, crit)

	recs := make([]ServiceRecommendation, 0, len(arch.RecommendedServices))
	for _, r := range arch.RecommendedServices {
		if r.Service != "" && r.Role != "" {
			recs = append(recs, r)
		}
	}

	return PatternAssessment{
		PatternLabels:   arch.PatternLabels,
		Recommendations: recs,
		Notes:           notes,
	}
}

// callJSON runs one bounded sub-agent call and decodes its JSON output.
func (a *Analyzer) callJSON(ctx context.Context, persona, input string, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, a.agentTimeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, persona, input, genai.GenerateOptions{
		MaxOutputTokens: a.maxTokens,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(StripFences(raw)), out); err != nil {
		return fmt.Errorf("undecodable agent output: %w", err)
	}
	return nil
}

// review runs the Reviewer over both raw findings. On failure it falls
// back to a deterministic concatenation of what the parallel agents
// produced.
func (a *Analyzer) review(ctx context.Context, description string, arch architectOutput, crit criticOutput) string {
	archJSON, _ := json.MarshalIndent(arch, "", "  ")
	critJSON, _ := json.MarshalIndent(crit, "", "  ")
	input := fmt.Sprintf("Original description:\n%s\n\nArchitect findings:\n%s\n\nCritic findings:\n%s",
		description, archJSON, critJSON)

	callCtx, cancel := context.WithTimeout(ctx, a.agentTimeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, a.reviewerPersona, input, genai.GenerateOptions{
		MaxOutputTokens: a.maxTokens,
		Temperature:     0.2,
	})
	if err == nil {
		return strings.TrimSpace(raw)
	}

	a.log.Warn(ctx, "reviewer agent failed, using deterministic fallback", zap.Error(err))
	notes := arch.SkillNotes
	if len(crit.Gaps) > 0 {
		gaps := crit.Gaps
		if len(gaps) > 2 {
			gaps = gaps[:2]
		}
		notes += fmt.Sprintf(" Missing: %s.", strings.Join(gaps, "; "))
	}
	return notes
}

// StripFences removes markdown code fencing from a model response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```python", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
