// Package synthesize turns a compiled blueprint into executable
// diagram code: one generation call, markdown fence stripping, a
// two-tier identifier repair pass, then structural validation.
package synthesize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/analyzer"
	"github.com/fyrsmithlabs/cloudforge/internal/blueprint"
	"github.com/fyrsmithlabs/cloudforge/internal/genai"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
)

// coderPromptTemplate constrains generation to the pre-configured
// namespace. %s slots: allow-list, deny-list.
const coderPromptTemplate = `Generate Python code using the diagrams library. Output ONLY valid Python code.

CRITICAL RULES:
1. EVERY string parameter MUST end with a closing quote
2. EVERY opening parenthesis MUST have a matching closing parenthesis
3. NO markdown blocks, NO explanations, ONLY code
4. NO import statements: every symbol below is already defined in the execution namespace
5. Keep code SHORT and COMPLETE (no truncation)

AVAILABLE CLASSES (already imported, use ONLY these):
Diagram, Cluster, Edge, Node, %s

DO NOT INSTANTIATE (use Cluster groupings instead):
%s

MINIMAL TEMPLATE (modify ONLY variable names):
with Diagram("Title", show=False, filename="diagram", direction="TB"):
    api = APIGateway("API")
    func = Lambda("Func")
    with Cluster("Database"):
        db = RDS("PostgreSQL")
    api >> func >> db

CLUSTER EXAMPLES (logical groupings):
- Cluster("VPC - Private Subnet")
- Cluster("DynamoDB Tables")
- Cluster("Monitoring")
- Cluster("Security")`

// Result is the synthesis outcome.
type Result struct {
	// Code is the repaired, validated diagram code.
	Code string

	// Report is the structural validation report, including advisory
	// warnings.
	Report ValidationReport

	// Repairs lists identifier substitutions made before validation.
	Repairs []RepairNote
}

// Synthesizer generates diagram code from blueprints.
type Synthesizer struct {
	client genai.Client
	log    *logging.Logger
}

// New creates a Synthesizer. The logger may be nil.
func New(client genai.Client, log *logging.Logger) *Synthesizer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Synthesizer{client: client, log: log.Named("synthesize")}
}

// Synthesize generates, repairs, and validates diagram code for the
// blueprint. Validation errors return a *ValidationError; the caller
// may retry generation.
func (s *Synthesizer) Synthesize(ctx context.Context, bp *blueprint.Blueprint) (Result, error) {
	prompt := fmt.Sprintf(coderPromptTemplate,
		strings.Join(AllowedServices(), ", "),
		strings.Join(deniedConcepts, ", "))

	raw, err := s.client.Generate(ctx, prompt, "Blueprint:\n"+formatBlueprint(bp), genai.GenerateOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("code generation call failed: %w", err)
	}

	code := analyzer.StripFences(raw)
	if !strings.Contains(code, "Diagram") {
		return Result{}, fmt.Errorf("generated code missing Diagram context")
	}

	code, repairs := RepairIdentifiers(code)
	for _, note := range repairs {
		s.log.Info(ctx, "repaired identifier",
			zap.String("from", note.From),
			zap.String("to", note.To))
	}

	report := Validate(code)
	result := Result{Code: code, Report: report, Repairs: repairs}
	if !report.IsValid {
		return result, &ValidationError{Report: report}
	}

	for _, w := range report.Warnings {
		s.log.Warn(ctx, "code validation warning", zap.String("message", w.Message))
	}
	s.log.Info(ctx, "code synthesized",
		zap.Int("components", report.ComponentCount),
		zap.Int("relationships", report.RelationshipCount),
		zap.Int("repairs", len(repairs)))

	return result, nil
}

// formatBlueprint renders the blueprint as the generation input,
// folding in metadata enrichment from pattern analysis.
func formatBlueprint(bp *blueprint.Blueprint) string {
	var sb strings.Builder
	sb.WriteString("Title: " + bp.Title + "\n")
	sb.WriteString("Description: " + bp.Description + "\n\n")

	if len(bp.Metadata) > 0 {
		sb.WriteString("Context:\n")
		for _, key := range sortedKeys(bp.Metadata) {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", key, bp.Metadata[key]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Services to visualize:\n")
	for _, n := range bp.Nodes {
		sb.WriteString(fmt.Sprintf("- %s (variable: %s, type: %s)\n", n.Name, n.VariableID, n.ServiceType))
	}

	if len(bp.Clusters) > 0 {
		sb.WriteString("\nLogical groupings, create a Cluster block for each:\n")
		for _, c := range bp.Clusters {
			sb.WriteString(fmt.Sprintf("  - Cluster %q: %s\n", c.Name, strings.Join(c.Members, ", ")))
		}
	}

	sb.WriteString("\nConnections between services:\n")
	for _, r := range bp.Relationships {
		sb.WriteString(fmt.Sprintf("- %s >> %s [%s]\n", r.SourceID, r.DestID, r.ConnectionType))
	}

	sb.WriteString("\nSTRUCTURE ADVICE:\n")
	sb.WriteString("- Define each service as a standalone variable, then connect variables\n")
	sb.WriteString("- Use Clusters only to group services in the same logical area\n")
	sb.WriteString("- Connect nodes, never Clusters directly\n")

	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
