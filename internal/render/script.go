// internal/render/script.go
package render

import (
	"fmt"
	"regexp"
)

var (
	filenameArgPattern = regexp.MustCompile(`(with\s+Diagram\s*\([^)]*filename\s*=\s*)"[^"]*"`)
	outformatPattern   = regexp.MustCompile(`(with\s+Diagram\s*\([^)]*outformat\s*=\s*)"[^"]*"`)
	diagramOpenPattern = regexp.MustCompile(`(with\s+Diagram\s*\()`)
	diagramClose       = regexp.MustCompile(`(with\s+Diagram\s*\([^)]*)\)`)
	showArgPattern     = regexp.MustCompile(`show\s*=`)
)

// pinDiagramOutput forces the Diagram filename to the output base and
// disables interactive display, regardless of what the model emitted.
func pinDiagramOutput(code, base string) string {
	if filenameArgPattern.MatchString(code) {
		code = filenameArgPattern.ReplaceAllString(code, fmt.Sprintf(`${1}%q`, base))
	} else {
		code = diagramOpenPattern.ReplaceAllString(code, fmt.Sprintf(`${1}filename=%q, `, base))
	}

	if !showArgPattern.MatchString(code) {
		code = diagramClose.ReplaceAllString(code, "${1}, show=False)")
	}
	return code
}

// setOutputFormat pins or injects the Diagram outformat argument.
func setOutputFormat(code, format string) string {
	if outformatPattern.MatchString(code) {
		return outformatPattern.ReplaceAllString(code, fmt.Sprintf(`${1}%q`, format))
	}
	return diagramClose.ReplaceAllString(code, fmt.Sprintf(`${1}, outformat=%q)`, format))
}
