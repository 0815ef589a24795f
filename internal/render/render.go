// Package render executes synthesized diagram code with an external
// interpreter and collects the produced artifacts.
package render

import (
	"context"
	"fmt"
)

// Renderer turns validated diagram code into output files.
type Renderer interface {
	// Render executes code under the given diagram name and returns a
	// map of format -> produced file path. A format the toolchain did
	// not produce is simply absent from the map; an empty map with a
	// nil error means the execution succeeded but yielded nothing.
	Render(ctx context.Context, code, name string, formats []string) (map[string]string, error)
}

// RenderError describes a failed render execution.
type RenderError struct {
	// Name is the diagram name being rendered.
	Name string

	// Stderr is the interpreter's error output, if any.
	Stderr string

	// Timeout reports whether the execution hit the wall-clock bound.
	Timeout bool

	// Err is the underlying error.
	Err error
}

func (e *RenderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render %q timed out", e.Name)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("render %q failed: %s", e.Name, e.Stderr)
	}
	return fmt.Sprintf("render %q failed: %v", e.Name, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
