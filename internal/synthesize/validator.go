// internal/synthesize/validator.go
package synthesize

import (
	"fmt"
	"regexp"
	"strings"
)

// Issue is one validation finding.
type Issue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ValidationReport is the outcome of structural validation. Errors
// block the pipeline; warnings are advisory.
type ValidationReport struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`

	ComponentCount    int `json:"component_count"`
	RelationshipCount int `json:"relationship_count"`
}

// ValidationError wraps a report whose errors make the code unusable.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Report.Errors))
	for _, issue := range e.Report.Errors {
		msgs = append(msgs, issue.Message)
	}
	return fmt.Sprintf("code validation failed: %s", strings.Join(msgs, "; "))
}

var (
	clusterAssignPattern = regexp.MustCompile(`(\w+)\s*=\s*Cluster`)
	connectionPattern    = regexp.MustCompile(`(\w+)\s*>>\s*(\w+)`)
	relationshipCounter  = regexp.MustCompile(`>>`)
)

// Validate structurally checks generated diagram code:
//
//   - per-line unescaped quote balance on non-comment lines (string
//     literals must complete on one line);
//   - global parenthesis balance;
//   - no import-style lines (the code runs in a pre-imported
//     namespace);
//   - advisory: direct cluster-to-cluster connections.
func Validate(code string) ValidationReport {
	var report ValidationReport

	lines := strings.Split(code, "\n")
	for idx, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") {
			report.Errors = append(report.Errors, Issue{
				Field:    "imports",
				Message:  fmt.Sprintf("forbidden import statement on line %d: %s", idx+1, trimmed),
				Severity: "error",
			})
			continue
		}

		single := strings.Count(line, "'") - strings.Count(line, `\'`)
		double := strings.Count(line, `"`) - strings.Count(line, `\"`)
		if single%2 != 0 || double%2 != 0 {
			report.Errors = append(report.Errors, Issue{
				Field:    "strings",
				Message:  fmt.Sprintf("unterminated string on line %d: %s", idx+1, trimmed),
				Severity: "error",
			})
		}
	}

	if opens, closes := strings.Count(code, "("), strings.Count(code, ")"); opens != closes {
		report.Errors = append(report.Errors, Issue{
			Field:    "parentheses",
			Message:  fmt.Sprintf("unmatched parentheses: %d opening vs %d closing", opens, closes),
			Severity: "error",
		})
	}

	report.Warnings = append(report.Warnings, clusterConnectionWarnings(lines)...)

	report.ComponentCount = countComponents(code)
	report.RelationshipCount = len(relationshipCounter.FindAllString(code, -1))
	report.IsValid = len(report.Errors) == 0
	return report
}

// clusterConnectionWarnings flags direct cluster-to-cluster edges.
// Connecting groups instead of their members renders, but almost never
// means what the author intended.
func clusterConnectionWarnings(lines []string) []Issue {
	clusterVars := make(map[string]bool)
	for _, line := range lines {
		if m := clusterAssignPattern.FindStringSubmatch(line); m != nil {
			clusterVars[m[1]] = true
		}
	}
	if len(clusterVars) == 0 {
		return nil
	}

	var warnings []Issue
	for _, line := range lines {
		for _, m := range connectionPattern.FindAllStringSubmatch(line, -1) {
			if clusterVars[m[1]] && clusterVars[m[2]] {
				warnings = append(warnings, Issue{
					Field:    "connections",
					Message:  fmt.Sprintf("connecting clusters directly (%s >> %s); connect the nodes inside them instead", m[1], m[2]),
					Severity: "warning",
				})
			}
		}
	}
	return warnings
}

// countComponents counts calls to allow-listed service constructors.
var componentPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*)\s*\(`)

func countComponents(code string) int {
	count := 0
	for _, m := range componentPattern.FindAllStringSubmatch(code, -1) {
		if allowedServices[m[1]] || m[1] == "Node" {
			count++
		}
	}
	return count
}
