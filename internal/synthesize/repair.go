// internal/synthesize/repair.go
package synthesize

import (
	"regexp"
	"strings"
)

// RepairNote records one identifier substitution made during the
// repair pass.
type RepairNote struct {
	From string
	To   string
}

// aliasRepair is one exact-token substitution for a commonly-confused
// identifier.
type aliasRepair struct {
	pattern     *regexp.Regexp
	replacement string
}

// aliasRepairs maps identifiers the model commonly invents to the
// canonical names in the pre-configured namespace. Applied in order,
// before the catch-all pass.
var aliasRepairs = []aliasRepair{
	{regexp.MustCompile(`OpenSearch\(`), "AmazonOpensearchService("},
	{regexp.MustCompile(`Elasticsearch\(`), "ElasticsearchService("},
	{regexp.MustCompile(`DynamoDB\(`), "DynamodbTable("},
	{regexp.MustCompile(`CloudWatch\(`), "Cloudwatch("},
	{regexp.MustCompile(`CloudTrail\(`), "Cloudtrail("},
	{regexp.MustCompile(`X-Ray\(`), "XRay("},
	{regexp.MustCompile(`\bSecrets\(`), "SecretsManager("},
	{regexp.MustCompile(`Secrets Manager\(`), "SecretsManager("},
}

// callPattern matches capitalized call-like tokens for the catch-all
// pass.
var callPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*)\s*\(`)

// RepairIdentifiers applies the two-tier identifier repair:
//
//  1. the exact alias table, mapping commonly-confused names to their
//     canonical forms;
//  2. a catch-all that downgrades any remaining capitalized call-like
//     token outside the safe-list and allow-list to the generic Node
//     placeholder.
//
// Matches inside string literals are left alone: a node label such as
// "API Gateway (main)" is display text, not a call. The result never
// calls an undefined capability. One RepairNote is recorded per
// substituted identifier occurrence.
func RepairIdentifiers(code string) (string, []RepairNote) {
	var notes []RepairNote

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		for _, r := range aliasRepairs {
			line = replaceOutsideStrings(line, r.pattern, func(match string) (string, bool) {
				notes = append(notes, RepairNote{
					From: strings.TrimSuffix(match, "("),
					To:   strings.TrimSuffix(r.replacement, "("),
				})
				return r.replacement, true
			})
		}

		line = replaceOutsideStrings(line, callPattern, func(match string) (string, bool) {
			name := callPattern.FindStringSubmatch(match)[1]
			if safeIdentifiers[name] || allowedServices[name] {
				return "", false
			}
			notes = append(notes, RepairNote{From: name, To: "Node"})
			return "Node(", true
		})

		lines[i] = line
	}

	return strings.Join(lines, "\n"), notes
}

// replaceOutsideStrings substitutes pattern matches on a single line,
// skipping any match that begins inside a quoted string literal. The
// callback returns the replacement text and whether to substitute.
func replaceOutsideStrings(line string, pattern *regexp.Regexp, repl func(match string) (string, bool)) string {
	indexes := pattern.FindAllStringIndex(line, -1)
	if len(indexes) == 0 {
		return line
	}

	var sb strings.Builder
	last := 0
	for _, idx := range indexes {
		if idx[0] < last || insideString(line, idx[0]) {
			continue
		}
		out, ok := repl(line[idx[0]:idx[1]])
		if !ok {
			continue
		}
		sb.WriteString(line[last:idx[0]])
		sb.WriteString(out)
		last = idx[1]
	}
	sb.WriteString(line[last:])
	return sb.String()
}

// insideString reports whether position idx on the line falls inside
// an unterminated single- or double-quoted span, honoring backslash
// escapes.
func insideString(line string, idx int) bool {
	var quote byte
	for i := 0; i < idx && i < len(line); i++ {
		c := line[i]
		if quote != 0 && c == '\\' {
			i++
			continue
		}
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case c == quote:
			quote = 0
		}
	}
	return quote != 0
}
