// Package blueprint defines the structured architecture blueprint and
// its marker-delimited text protocol.
//
// Blueprints travel between generation calls as plain text: a model
// produces the marker-delimited form, Compile parses it, and Format
// re-emits it for downstream prompts. Compile(Format(b)) round-trips
// nodes, clusters, and relationships for any valid b.
package blueprint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// identifierPattern matches valid node variable ids (snake_case style).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ServiceNode is one instantiable service in the architecture.
type ServiceNode struct {
	// Name is the human-readable label, e.g. "User API".
	Name string

	// VariableID is the snake_case identifier used in relationships
	// and cluster membership, e.g. "user_api".
	VariableID string

	// ServiceType is the capability class, e.g. "Lambda" or "RDS".
	ServiceType string

	// Region is optional deployment placement.
	Region string
}

// Cluster is a named grouping of nodes (VPC, subnet, logical group).
type Cluster struct {
	Name string

	// Type classifies the grouping (Logical, VPC, Subnet). Optional.
	Type string

	// Members lists VariableIDs of contained nodes.
	Members []string
}

// Relationship is a directed edge between two nodes.
type Relationship struct {
	SourceID string
	DestID   string

	// ConnectionType defaults to "default".
	ConnectionType string
}

// Blueprint is the structured form of an architecture description.
type Blueprint struct {
	Title       string
	Description string

	Nodes         []ServiceNode
	Clusters      []Cluster
	Relationships []Relationship

	// Metadata carries free-form key/value annotations, including
	// enrichment from pattern analysis.
	Metadata map[string]string
}

// Validate checks structural invariants: identifier syntax, VariableID
// uniqueness, and referential integrity of cluster members and
// relationship endpoints.
func (b *Blueprint) Validate() error {
	seen := make(map[string]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		if n.VariableID == "" {
			return fmt.Errorf("node %q has empty variable id", n.Name)
		}
		if !identifierPattern.MatchString(n.VariableID) {
			return fmt.Errorf("node %q has invalid variable id %q", n.Name, n.VariableID)
		}
		if seen[n.VariableID] {
			return fmt.Errorf("duplicate variable id %q", n.VariableID)
		}
		seen[n.VariableID] = true
	}

	for _, c := range b.Clusters {
		for _, m := range c.Members {
			if !seen[m] {
				return fmt.Errorf("cluster %q references undeclared node %q", c.Name, m)
			}
		}
	}

	for _, r := range b.Relationships {
		if !seen[r.SourceID] {
			return fmt.Errorf("relationship references undeclared source %q", r.SourceID)
		}
		if !seen[r.DestID] {
			return fmt.Errorf("relationship references undeclared destination %q", r.DestID)
		}
	}

	return nil
}

// Format renders the blueprint in the marker-delimited protocol,
// suitable for inclusion in downstream generation prompts.
func Format(b *Blueprint) string {
	var sb strings.Builder

	sb.WriteString(beginMarker + "\n")
	sb.WriteString("Title: " + b.Title + "\n")
	sb.WriteString("Description: " + b.Description + "\n")

	sb.WriteString("\nNodes:\n")
	for _, n := range b.Nodes {
		sb.WriteString(fmt.Sprintf("- %s | ID: %s | Type: %s\n", n.Name, n.VariableID, n.ServiceType))
	}

	if len(b.Clusters) > 0 {
		sb.WriteString("\nClusters:\n")
		for _, c := range b.Clusters {
			sb.WriteString("- Cluster: " + c.Name + "\n")
			if c.Type != "" {
				sb.WriteString("  Type: " + c.Type + "\n")
			}
			sb.WriteString("  Members: " + strings.Join(c.Members, ", ") + "\n")
		}
	}

	if len(b.Relationships) > 0 {
		sb.WriteString("\nRelationships:\n")
		for _, r := range b.Relationships {
			sb.WriteString(fmt.Sprintf("- %s >> %s\n", r.SourceID, r.DestID))
		}
	}

	if len(b.Metadata) > 0 {
		sb.WriteString("\nMetadata:\n")
		keys := make([]string, 0, len(b.Metadata))
		for k := range b.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, b.Metadata[k]))
		}
	}

	sb.WriteString(endMarker + "\n")
	return sb.String()
}
