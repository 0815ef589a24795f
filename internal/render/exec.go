// internal/render/exec.go
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cloudforge/internal/logging"
)

// scriptPrelude pre-imports every symbol the generated code may
// reference, so the code itself never declares imports. The alias
// assignments give the generated identifiers their diagrams-library
// names.
const scriptPrelude = `import os
from diagrams import Diagram, Cluster, Edge, Node
from diagrams.aws.compute import Lambda, EC2, ECS, Batch
from diagrams.aws.database import RDS, DynamodbTable, ElastiCache, Redshift, ElasticsearchService
from diagrams.aws.analytics import AmazonOpensearchService
from diagrams.aws.storage import S3, EBS, EFS
from diagrams.aws.network import APIGateway, ALB, NLB, NATGateway, Route53
from diagrams.aws.integration import SQS, SNS
from diagrams.aws.analytics import Kinesis
from diagrams.aws.management import Cloudwatch, Cloudtrail
from diagrams.aws.devtools import XRay
from diagrams.aws.security import SecretsManager

os.makedirs(os.path.dirname(r"%s") or ".", exist_ok=True)

`

// runFunc executes a prepared command; injectable for tests.
type runFunc func(ctx context.Context, cmd *exec.Cmd) error

// ExecRenderer runs diagram scripts through an external interpreter.
type ExecRenderer struct {
	interpreter string
	outputDir   string
	timeout     time.Duration
	log         *logging.Logger

	run runFunc
}

// NewExecRenderer creates a renderer. The logger may be nil.
func NewExecRenderer(interpreter, outputDir string, timeout time.Duration, log *logging.Logger) *ExecRenderer {
	if log == nil {
		log = logging.NewNop()
	}
	return &ExecRenderer{
		interpreter: interpreter,
		outputDir:   outputDir,
		timeout:     timeout,
		log:         log.Named("render"),
		run:         func(_ context.Context, cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// Render implements Renderer. The code is composed into a script with
// the pre-imported namespace, executed under the configured timeout,
// and the output directory is probed per requested format.
func (r *ExecRenderer) Render(ctx context.Context, code, name string, formats []string) (map[string]string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, &RenderError{Name: name, Err: fmt.Errorf("create output dir: %w", err)}
	}

	base := filepath.Join(r.outputDir, name)
	script := r.composeScript(code, base, formats)

	scriptPath := filepath.Join(r.outputDir, name+"_script.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return nil, &RenderError{Name: name, Err: fmt.Errorf("write script: %w", err)}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, r.interpreter, scriptPath)
	cmd.Dir = r.outputDir
	cmd.Stderr = &stderr

	start := time.Now()
	err := r.run(execCtx, cmd)
	elapsed := time.Since(start)

	if err != nil {
		timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)
		r.log.Error(ctx, "render execution failed",
			zap.String("diagram", name),
			zap.Bool("timeout", timedOut),
			zap.Duration("elapsed", elapsed),
			zap.String("stderr", stderr.String()))
		return nil, &RenderError{
			Name:    name,
			Stderr:  strings.TrimSpace(stderr.String()),
			Timeout: timedOut,
			Err:     err,
		}
	}

	artifacts := r.probeArtifacts(ctx, base, formats)
	r.log.Info(ctx, "render completed",
		zap.String("diagram", name),
		zap.Int("artifacts", len(artifacts)),
		zap.Duration("elapsed", elapsed))
	return artifacts, nil
}

// composeScript builds the executable script: prelude, the generated
// code with its Diagram filename pinned to the output base, and one
// re-render per extra requested format.
func (r *ExecRenderer) composeScript(code, base string, formats []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(scriptPrelude, base))

	pinned := pinDiagramOutput(code, base)
	for i, format := range formats {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(setOutputFormat(pinned, format))
	}
	return sb.String()
}

// probeArtifacts checks which requested formats actually produced a
// file.
func (r *ExecRenderer) probeArtifacts(ctx context.Context, base string, formats []string) map[string]string {
	artifacts := make(map[string]string)
	for _, format := range formats {
		path := base + "." + format
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			artifacts[format] = path
		} else {
			r.log.Debug(ctx, "requested format not produced", zap.String("format", format))
		}
	}
	return artifacts
}
