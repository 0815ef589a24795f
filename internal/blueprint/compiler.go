// internal/blueprint/compiler.go
package blueprint

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	beginMarker = "---BEGIN_BLUEPRINT---"
	endMarker   = "---END_BLUEPRINT---"

	// Bare fallbacks for models that drop the dashes.
	bareBeginMarker = "BEGIN_BLUEPRINT"
	bareEndMarker   = "END_BLUEPRINT"
)

// relationshipPattern is the strict two-token edge grammar.
var relationshipPattern = regexp.MustCompile(`^(\w+)\s*>>\s*(\w+)$`)

// ParseError reports a response that carries no recognizable blueprint.
type ParseError struct {
	// MissingMarker names the marker that was not found.
	MissingMarker string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("blueprint %s marker not found in response", e.MissingMarker)
}

// Compile parses marker-delimited blueprint text.
//
// Tolerances, in order:
//   - a begin marker without an end marker treats the rest of the text
//     as the blueprint body (the upstream generator has a bounded
//     output-token budget and can be cut mid-response);
//   - node lines missing ID or Type are dropped with a warning;
//   - malformed relationship lines are skipped silently;
//   - an empty Nodes section yields a warning, not an error.
//
// A missing begin marker is the only hard failure.
func Compile(text string) (*Blueprint, []string, error) {
	body, warnings, err := extractBody(text)
	if err != nil {
		return nil, warnings, err
	}

	bp := &Blueprint{
		Title:       "Generated Architecture",
		Description: "Architecture blueprint from natural language",
	}

	lines := strings.Split(body, "\n")
	section := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Title:"):
			bp.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Description:"):
			bp.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		case line == "Nodes:":
			section = "nodes"
		case line == "Clusters:":
			section = "clusters"
		case line == "Relationships:":
			section = "relationships"
		case line == "Metadata:":
			section = "metadata"
		case section == "clusters" && isClusterHeader(line):
			cluster, consumed := parseClusterBlock(line, lines[i+1:])
			bp.Clusters = append(bp.Clusters, cluster)
			i += consumed
		case strings.HasPrefix(line, "-"):
			content := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			switch section {
			case "nodes":
				node, ok := parseNodeLine(content)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("dropped node line missing ID or Type: %q", content))
					continue
				}
				bp.Nodes = append(bp.Nodes, node)
			case "relationships":
				if m := relationshipPattern.FindStringSubmatch(content); m != nil {
					bp.Relationships = append(bp.Relationships, Relationship{
						SourceID:       m[1],
						DestID:         m[2],
						ConnectionType: "default",
					})
				}
			case "metadata":
				if key, value, ok := strings.Cut(content, ":"); ok {
					if bp.Metadata == nil {
						bp.Metadata = make(map[string]string)
					}
					bp.Metadata[strings.TrimSpace(key)] = strings.TrimSpace(value)
				}
			}
		}
	}

	if len(bp.Nodes) == 0 {
		warnings = append(warnings, "no nodes parsed from blueprint; response may be incomplete")
	}

	return bp, warnings, nil
}

// extractBody locates the marker-delimited region.
func extractBody(text string) (string, []string, error) {
	var warnings []string

	marker := beginMarker
	start := strings.Index(text, beginMarker)
	if start == -1 {
		marker = bareBeginMarker
		start = strings.Index(text, bareBeginMarker)
	}
	if start == -1 {
		return "", warnings, &ParseError{MissingMarker: "begin"}
	}

	rest := text[start+len(marker):]
	end := strings.Index(rest, endMarker)
	if end == -1 {
		end = strings.Index(rest, bareEndMarker)
	}
	if end == -1 {
		warnings = append(warnings, "end marker not found; response may be truncated, using end of text")
		end = len(rest)
	}

	return strings.TrimSpace(rest[:end]), warnings, nil
}

// parseNodeLine parses `<name> | ID: <id> | Type: <type> [| Category: <cat>]`.
func parseNodeLine(content string) (ServiceNode, bool) {
	parts := strings.Split(content, "|")
	if len(parts) < 3 {
		return ServiceNode{}, false
	}

	node := ServiceNode{Name: strings.TrimSpace(parts[0])}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "ID:"):
			node.VariableID = strings.TrimSpace(strings.TrimPrefix(part, "ID:"))
		case strings.HasPrefix(part, "Type:"):
			node.ServiceType = strings.TrimSpace(strings.TrimPrefix(part, "Type:"))
		}
	}

	if node.VariableID == "" || node.ServiceType == "" {
		return ServiceNode{}, false
	}
	return node, true
}

// isClusterHeader recognizes both the bulleted `- Cluster: <name>`
// form of the prompt template and the bare `Cluster: <name>` form some
// model renditions emit.
func isClusterHeader(line string) bool {
	return strings.HasPrefix(line, "- Cluster:") || strings.HasPrefix(line, "Cluster:")
}

// parseClusterBlock parses a cluster header plus lookahead `Type:` and
// `Members:` lines, stopping at a blank line, a new bullet, or the
// next bare cluster header. Returns the cluster and how many lookahead
// lines were consumed.
func parseClusterBlock(header string, rest []string) (Cluster, int) {
	var cluster Cluster
	if idx := strings.Index(header, "Cluster:"); idx != -1 {
		cluster.Name = strings.TrimSpace(header[idx+len("Cluster:"):])
	}

	consumed := 0
	for _, raw := range rest {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "Cluster:") {
			break
		}
		consumed++

		switch {
		case strings.HasPrefix(line, "Type:"):
			cluster.Type = strings.TrimSpace(strings.TrimPrefix(line, "Type:"))
		case strings.HasPrefix(line, "Members:"):
			// The prompt template shows members bracketed
			// (`Members: [a, b]`); strip the brackets before splitting
			// so they never leak into member ids.
			membersStr := strings.TrimSpace(strings.TrimPrefix(line, "Members:"))
			membersStr = strings.Trim(membersStr, "[]")
			for _, m := range strings.Split(membersStr, ",") {
				if m = strings.Trim(strings.TrimSpace(m), "[]"); m != "" {
					cluster.Members = append(cluster.Members, m)
				}
			}
		}
	}

	return cluster, consumed
}
